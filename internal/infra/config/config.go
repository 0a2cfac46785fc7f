package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken    string
	DatabaseURL      string
	AdminTelegramID  int64 // 0 disables admin commands
	LogLevel         string
	Environment      string
	StorageDriver    string
	Location         *time.Location
	MediaHost        string // prefix for relative attachment URLs
	CronSpecDispatch string
	CronSpecIgnored  string
	CronSpecExpired  string
	CronSpecDelayed  string
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	cfg.StorageDriver = strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverPostgres))
	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is not set")
		}
	case StorageDriverMemory:
	default:
		return nil, fmt.Errorf("invalid STORAGE_DRIVER %q: expected %q or %q", cfg.StorageDriver, StorageDriverPostgres, StorageDriverMemory)
	}

	if adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID"); adminIDStr != "" {
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}

	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(getEnv("ENVIRONMENT", "development"))

	tz := getEnv("TIMEZONE", "Europe/Moscow")
	cfg.Location, err = time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
	}

	cfg.MediaHost = os.Getenv("MEDIA_HOST")

	cfg.CronSpecDispatch = getEnv("CRON_SPEC_DISPATCH", "* * * * *")  // Default: every minute
	cfg.CronSpecIgnored = getEnv("CRON_SPEC_IGNORED", "*/10 * * * *") // Default: every 10 minutes
	cfg.CronSpecExpired = getEnv("CRON_SPEC_EXPIRED", "*/5 * * * *")  // Default: every 5 minutes
	cfg.CronSpecDelayed = getEnv("CRON_SPEC_DELAYED", "0 * * * *")    // Default: hourly

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
