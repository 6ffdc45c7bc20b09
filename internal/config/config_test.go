package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:8431", cfg.HTTPAddr)
	require.Equal(t, 2*time.Hour, cfg.JWT.TTL)
	require.Empty(t, cfg.Redis.Addr)
	require.Equal(t, 24*time.Hour, cfg.Quota.Window)
	require.Equal(t, "none", cfg.Tracing.Exporter)
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("JWT_SECRET", "0123456789abcdef")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("TRACING_EXPORTER", "stdout")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.HTTPAddr)
	require.Equal(t, "0123456789abcdef", cfg.JWT.Secret)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.Equal(t, 5, cfg.RateLimit.Burst)
	require.Equal(t, "stdout", cfg.Tracing.Exporter)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("QUOTA_LIMIT", "lots")
	_, err := Load()
	require.Error(t, err)
}
