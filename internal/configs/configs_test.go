package configs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{"ENVIRONMENT", "PORT", "ALLOWED_ORIGINS", "JWT_SECRET", "DATABASE_URL", "REDIS_URL"} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDevelopmentDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Port)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.Contains(t, cfg.DatabaseDSN, "postgres://")
	assert.Empty(t, cfg.RedisURL)
}

func TestLoadConfigProductionRequiresJWTSecret(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DATABASE_URL", "postgres://app@db:5432/parley")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadConfigProductionRequiresDatabaseURL(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "prod-secret")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadConfigParsesAllowedOrigins(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com ,")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.AllowedOrigins)
}

func TestLoadConfigRejectsInvalidPort(t *testing.T) {
	clearConfigEnv(t)

	t.Setenv("PORT", "not-a-number")
	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("PORT", "80")
	_, err = LoadConfig()
	assert.Error(t, err, "privileged ports are rejected")
}

func TestLoadConfigReadsRedisURL(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
}
