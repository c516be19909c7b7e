package service

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// GenesisHash is the fixed all-zero sentinel used as prev_event_hash for the
// first event of a tenant's chain.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// CanonicalJSON renders v as deterministic JSON: object keys sorted
// recursively, no insignificant whitespace, numbers preserved verbatim.
// Canonicalization is idempotent: canonicalize(canonicalize(x)) == canonicalize(x).
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: marshal: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var parsed any
	if err := dec.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("canonicalize: parse: %w", err)
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, parsed); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(t))
	case json.Number:
		buf.WriteString(t.String())
	case string:
		enc, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("canonicalize: encode string: %w", err)
		}
		buf.Write(enc)
	case []any:
		buf.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			enc, err := json.Marshal(k)
			if err != nil {
				return fmt.Errorf("canonicalize: encode key: %w", err)
			}
			buf.Write(enc)
			buf.WriteByte(':')
			if err := writeCanonical(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("canonicalize: unsupported type %T", v)
	}
	return nil
}

// ComputeEventHash derives the chain hash for one payment event:
// SHA-256 over the canonical form of {prev_event_hash, data, correlation_id,
// occurred_at}. The data document participates as parsed JSON so its own key
// order cannot influence the hash.
func ComputeEventHash(prevHash string, data json.RawMessage, correlationID string, occurredAt time.Time) (string, error) {
	var parsedData any
	if len(data) > 0 {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&parsedData); err != nil {
			return "", fmt.Errorf("event hash: parse data: %w", err)
		}
	}

	canonical, err := CanonicalJSON(map[string]any{
		"prev_event_hash": prevHash,
		"data":            parsedData,
		"correlation_id":  correlationID,
		"occurred_at":     occurredAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// HashPayload returns the SHA-256 of an arbitrary canonicalized document.
// Used for servicing run input hashes and chain export digests.
func HashPayload(v any) (string, error) {
	canonical, err := CanonicalJSON(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
