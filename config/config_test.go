package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"DATABASE_PATH", "PORT", "JWT_EXPIRATION", "DAILY_TOLERANCE_MINUTES", "ALLOWED_EMAIL_DOMAIN", "LOG_DEBUG"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "timecost.db", cfg.DatabasePath)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 12*time.Hour, cfg.JWTExpiration)
	assert.Equal(t, "6", cfg.DailyToleranceMinutes.String())
	assert.Empty(t, cfg.AllowedEmailDomain)
	assert.False(t, cfg.LogDebug)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DATABASE_PATH", "/tmp/tc.db")
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_EXPIRATION", "30m")
	t.Setenv("DAILY_TOLERANCE_MINUTES", "10")
	t.Setenv("ALLOWED_EMAIL_DOMAIN", "@Example.com")
	t.Setenv("LOG_DEBUG", "true")

	cfg := Load()

	assert.Equal(t, "/tmp/tc.db", cfg.DatabasePath)
	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, 30*time.Minute, cfg.JWTExpiration)
	assert.Equal(t, "10", cfg.DailyToleranceMinutes.String())
	assert.Equal(t, "example.com", cfg.AllowedEmailDomain)
	assert.True(t, cfg.LogDebug)
}

func TestLoadIgnoresInvalidValues(t *testing.T) {
	t.Setenv("JWT_EXPIRATION", "soon")
	t.Setenv("DAILY_TOLERANCE_MINUTES", "-5")
	t.Setenv("LOG_DEBUG", "maybe")

	cfg := Load()

	assert.Equal(t, 12*time.Hour, cfg.JWTExpiration)
	assert.Equal(t, "6", cfg.DailyToleranceMinutes.String())
	assert.False(t, cfg.LogDebug)
}
