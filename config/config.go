package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultJWTSecret is the development signing key used when JWT_SECRET is unset.
const DefaultJWTSecret = "change-me-in-production"

type Config struct {
	DatabasePath  string
	ServerPort    string
	JWTSecret     string
	JWTExpiration time.Duration

	// Defaults used when the settings table has no value.
	DailyToleranceMinutes decimal.Decimal
	AllowedEmailDomain    string

	// Bootstrap admin created on first start when no user has that email.
	AdminSeedEmail    string
	AdminSeedPassword string

	LogDir   string
	LogDebug bool
}

func Load() *Config {
	return &Config{
		DatabasePath:          getEnv("DATABASE_PATH", "timecost.db"),
		ServerPort:            getEnv("PORT", "8080"),
		JWTSecret:             getEnv("JWT_SECRET", DefaultJWTSecret),
		JWTExpiration:         getDuration("JWT_EXPIRATION", 12*time.Hour),
		DailyToleranceMinutes: getDecimal("DAILY_TOLERANCE_MINUTES", decimal.NewFromInt(6)),
		AllowedEmailDomain:    strings.ToLower(strings.TrimPrefix(getEnv("ALLOWED_EMAIL_DOMAIN", ""), "@")),
		AdminSeedEmail:        getEnv("ADMIN_SEED_EMAIL", ""),
		AdminSeedPassword:     getEnv("ADMIN_SEED_PASSWORD", ""),
		LogDir:                getEnv("LOG_DIR", ""),
		LogDebug:              getBool("LOG_DEBUG", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return defaultValue
}

func getDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if d, err := decimal.NewFromString(strings.TrimSpace(os.Getenv(key))); err == nil && !d.IsNegative() {
		return d
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}
