package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	LogLevel       string
	LogFile        string
	DatabaseURL    string
	AuthToken      string
	MigrationsDir  string
	RateLimitRPS   float64
	RateLimitBurst int
}

func Load() Config {
	// Best effort; absent .env is the normal case in production.
	_ = godotenv.Load()

	cfg := Config{
		Port:           envOrDefault("DEVICE_SYNC_PORT", "8091"),
		LogLevel:       envOrDefault("DEVICE_SYNC_LOG_LEVEL", "info"),
		LogFile:        strings.TrimSpace(os.Getenv("DEVICE_SYNC_LOG_FILE")),
		DatabaseURL:    envOrDefault("DEVICE_SYNC_DATABASE_URL", "file:devicesync.db"),
		AuthToken:      strings.TrimSpace(os.Getenv("DEVICE_SYNC_AUTH_TOKEN")),
		MigrationsDir:  envOrDefault("DEVICE_SYNC_MIGRATIONS_DIR", "migrations"),
		RateLimitRPS:   floatOrDefault(os.Getenv("DEVICE_SYNC_RATE_RPS"), 20),
		RateLimitBurst: intOrDefault(os.Getenv("DEVICE_SYNC_RATE_BURST"), 40),
	}
	if p := strings.TrimSpace(os.Getenv("PORT")); p != "" {
		cfg.Port = p
	}
	return cfg
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func intOrDefault(v string, fallback int) int {
	if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && i > 0 {
		return i
	}
	return fallback
}

func floatOrDefault(v string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f > 0 {
		return f
	}
	return fallback
}
