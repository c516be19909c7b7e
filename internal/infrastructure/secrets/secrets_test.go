package secrets_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cschwartz85032/loanserve-sub001/internal/infrastructure/secrets"
)

const testKey = "4f8c2e6a1b9d7c3e5a0f8b6d4c2e0a9f7b5d3c1e8a6f4b2d0c9e7a5f3b1d8c6e"

func TestCipher_RoundTrip(t *testing.T) {
	c, err := secrets.NewCipher(testKey)
	require.NoError(t, err)

	plaintext := []byte(`{"routing_number":"021000021","account":"123456789"}`)
	sealed, err := c.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, sealed)

	opened, err := c.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestCipher_NonceMakesCiphertextsDiffer(t *testing.T) {
	c, err := secrets.NewCipher(testKey)
	require.NoError(t, err)

	a, err := c.Encrypt([]byte("same secret"))
	require.NoError(t, err)
	b, err := c.Encrypt([]byte("same secret"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCipher_RejectsBadKeys(t *testing.T) {
	_, err := secrets.NewCipher("not-hex")
	assert.Error(t, err)

	_, err = secrets.NewCipher("deadbeef")
	assert.Error(t, err, "16 hex chars is 8 bytes, not 32")
}

func TestCipher_RejectsTruncatedCiphertext(t *testing.T) {
	c, err := secrets.NewCipher(testKey)
	require.NoError(t, err)

	_, err = c.Decrypt([]byte{0x01, 0x02})
	assert.Error(t, err)
}

func TestCipher_RejectsTamperedCiphertext(t *testing.T) {
	c, err := secrets.NewCipher(testKey)
	require.NoError(t, err)

	sealed, err := c.Encrypt([]byte("account data"))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = c.Decrypt(sealed)
	assert.Error(t, err)
}

func TestHasher_DigestIsDeterministicPerSalt(t *testing.T) {
	h1, err := secrets.NewHasher("salt-a")
	require.NoError(t, err)
	h2, err := secrets.NewHasher("salt-b")
	require.NoError(t, err)

	d := h1.Digest("123456789")
	assert.Len(t, d, 64)
	assert.Equal(t, d, h1.Digest("123456789"))
	assert.NotEqual(t, d, h2.Digest("123456789"), "different salt, different digest")
	assert.NotEqual(t, d, h1.Digest("123456780"))
}

func TestHasher_MaskKeepsOnlyLastFour(t *testing.T) {
	h, err := secrets.NewHasher("salt-a")
	require.NoError(t, err)

	mask := h.Mask("123456789")
	assert.True(t, strings.HasSuffix(mask, "6789"))
	assert.NotContains(t, mask, "12345")
	assert.Equal(t, h.Digest("123456789")[:12], mask[:12])
}

func TestHasher_RequiresSalt(t *testing.T) {
	_, err := secrets.NewHasher("")
	assert.Error(t, err)
}
