package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIRM_SECRET", "0123456789abcdef")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "rhoai-intent", cfg.ServiceName)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.True(t, cfg.NatsEnabled)
	assert.Equal(t, "rhoai.query", cfg.NatsQuerySubject)
	assert.Equal(t, "rhoai.confirm", cfg.NatsConfirmSubject)
	assert.Equal(t, 720*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 20, cfg.ContextWindow)
	assert.Equal(t, "default", cfg.DefaultNamespace)
	assert.Equal(t, 5*time.Minute, cfg.ConfirmTTL)
	assert.Equal(t, "tokenreview", cfg.AuthMode)
	assert.Equal(t, 60, cfg.RateLimitPerMinute)
	assert.Equal(t, 10, cfg.RateLimitBurst)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CONFIRM_SECRET", "0123456789abcdef")
	t.Setenv("NATS_ENABLED", "false")
	t.Setenv("SESSION_EXPIRY", "2h")
	t.Setenv("AUTH_MODE", "Trust")
	t.Setenv("CONTEXT_WINDOW", "5")
	t.Setenv("RATE_LIMIT_BURST", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.NatsEnabled)
	assert.Equal(t, 2*time.Hour, cfg.SessionExpiry)
	assert.Equal(t, "trust", cfg.AuthMode)
	assert.Equal(t, 5, cfg.ContextWindow)
	assert.Equal(t, 10, cfg.RateLimitBurst, "unparsable values keep the default")
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("CONFIRM_SECRET", "short")
	t.Setenv("AUTH_MODE", "ldap")
	t.Setenv("CONFIRM_TTL", "-1m")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONFIRM_SECRET")
	assert.Contains(t, err.Error(), "AUTH_MODE")
	assert.Contains(t, err.Error(), "CONFIRM_TTL")
}
