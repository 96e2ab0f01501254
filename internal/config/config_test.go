package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadGateway_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := LoadGateway()
	assert.Error(t, err)
}

func TestLoadGateway_RequiresJWTSecretOutsideDevMode(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("AUTH_JWT_SECRET", "")
	t.Setenv("DEV_MODE", "false")

	_, err := LoadGateway()
	assert.Error(t, err)
}

func TestLoadGateway_AllowsMissingJWTSecretInDevMode(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("AUTH_JWT_SECRET", "")
	t.Setenv("DEV_MODE", "true")

	cfg, err := LoadGateway()
	require.NoError(t, err)
	assert.True(t, cfg.DevMode)
}

func TestLoadGateway_ParsesAllowedOriginsList(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := LoadGateway()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
}

func TestLoadWorker_RequiresSigningMaterialOutsideDevMode(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("WORKER_DEV_MODE", "false")
	t.Setenv("SIGNING_CERT", "")
	t.Setenv("SIGNING_KEY", "")

	_, err := LoadWorker()
	assert.Error(t, err)
}

func TestLoadWorker_AllowsMissingSigningMaterialInDevMode(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("WORKER_DEV_MODE", "true")
	t.Setenv("SIGNING_CERT", "")
	t.Setenv("SIGNING_KEY", "")

	cfg, err := LoadWorker()
	require.NoError(t, err)
	assert.True(t, cfg.DevMode)
}

func TestMonthStart_TruncatesToFirstOfMonthUTC(t *testing.T) {
	now, err := time.Parse(time.RFC3339, "2026-07-30T18:45:00Z")
	require.NoError(t, err)

	start := MonthStart(now)

	expected, err := time.Parse(time.RFC3339, "2026-07-01T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, expected, start)
}
