package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresDatabaseAndBroker(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("BROKER_URL", "")
	_, err := Load()
	assert.ErrorContains(t, err, "DATABASE_URL")

	t.Setenv("DATABASE_URL", "postgres://localhost/loanserve")
	_, err = Load()
	assert.ErrorContains(t, err, "BROKER_URL")
}

func TestLoad_LockoutIntervalsInMinutes(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/loanserve")
	t.Setenv("BROKER_URL", "amqp://localhost")
	t.Setenv("LOCKOUT_THRESHOLD", "3")
	t.Setenv("LOCKOUT_WINDOW_MINUTES", "10")
	t.Setenv("LOCKOUT_AUTO_UNLOCK_MINUTES", "45")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.LockoutThreshold)
	assert.Equal(t, 10*time.Minute, cfg.LockoutWindow)
	assert.Equal(t, 45*time.Minute, cfg.LockoutAutoUnlock)
}

func TestLoad_LockoutDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/loanserve")
	t.Setenv("BROKER_URL", "amqp://localhost")
	t.Setenv("LOCKOUT_THRESHOLD", "")
	t.Setenv("LOCKOUT_WINDOW_MINUTES", "")
	t.Setenv("LOCKOUT_AUTO_UNLOCK_MINUTES", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.LockoutThreshold)
	assert.Equal(t, 15*time.Minute, cfg.LockoutWindow)
	assert.Equal(t, 30*time.Minute, cfg.LockoutAutoUnlock)
}
