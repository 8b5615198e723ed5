package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultDatabaseURL     = "sqlite://users.db"
	defaultSendInterval    = 24 * time.Hour
	defaultRecoveryDelay   = 10 * time.Second
	defaultSendTimeout     = 30 * time.Second
	defaultSendRatePerSec  = 25
	defaultCatalogFile     = "catalog.yaml"
	defaultRedisKeyPrefix  = "videobot"
	defaultShutdownTimeout = 15 * time.Second
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken   string
	DatabaseURL     string
	RedisKeyPrefix  string
	AdminTelegramID int64 // 0 disables admin commands
	LogLevel        string
	Environment     string

	SendInterval         time.Duration
	SendFirstImmediately bool
	RecoveryDelay        time.Duration
	WrapAround           bool
	SendTimeout          time.Duration
	SendRatePerSec       int
	ShutdownTimeout      time.Duration

	CatalogFile string
	Catalog     []string

	HTTPAddr string // empty disables the admin HTTP server
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	cfg.DatabaseURL = getEnv("DATABASE_URL", defaultDatabaseURL)
	cfg.RedisKeyPrefix = getEnv("REDIS_KEY_PREFIX", defaultRedisKeyPrefix)

	if raw := strings.TrimSpace(os.Getenv("ADMIN_TELEGRAM_ID")); raw != "" {
		cfg.AdminTelegramID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}

	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(getEnv("ENVIRONMENT", "development"))

	if cfg.SendInterval, err = getDuration("SEND_INTERVAL", defaultSendInterval, false); err != nil {
		return nil, err
	}
	if err = validateSendInterval(cfg.SendInterval); err != nil {
		return nil, err
	}
	// RECOVERY_DELAY=0 is allowed: re-arm everyone for an immediate send.
	if cfg.RecoveryDelay, err = getDuration("RECOVERY_DELAY", defaultRecoveryDelay, true); err != nil {
		return nil, err
	}
	if cfg.SendTimeout, err = getDuration("SEND_TIMEOUT", defaultSendTimeout, false); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", defaultShutdownTimeout, false); err != nil {
		return nil, err
	}

	if cfg.SendFirstImmediately, err = parseBool("SEND_FIRST_IMMEDIATELY", true); err != nil {
		return nil, err
	}
	if cfg.WrapAround, err = parseBool("WRAP_AROUND", true); err != nil {
		return nil, err
	}

	cfg.SendRatePerSec = defaultSendRatePerSec
	if raw := strings.TrimSpace(os.Getenv("SEND_RATE_PER_SEC")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid SEND_RATE_PER_SEC %q: must be a positive integer", raw)
		}
		cfg.SendRatePerSec = n
	}

	cfg.HTTPAddr = strings.TrimSpace(os.Getenv("HTTP_ADDR"))

	if raw := strings.TrimSpace(os.Getenv("CATALOG")); raw != "" {
		cfg.Catalog = strings.Split(raw, ",")
	} else {
		path, explicit := os.LookupEnv("CATALOG_FILE")
		if !explicit || strings.TrimSpace(path) == "" {
			path = defaultCatalogFile
		}
		cfg.CatalogFile = path
		cfg.Catalog, err = LoadCatalogFile(path)
		if err != nil {
			// The default file is optional: an empty catalog only disables sending.
			if !(errors.Is(err, os.ErrNotExist) && !explicit) {
				return nil, err
			}
		}
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBool(key string, def bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

// getDuration reads key as a Go duration, returning def when it is unset or blank.
// Negative values are always rejected, zero unless allowZero is set.
func getDuration(key string, def time.Duration, allowZero bool) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, raw)
	}
	return d, nil
}

// The timer engine works in whole seconds.
func validateSendInterval(d time.Duration) error {
	if d < time.Second || d%time.Second != 0 {
		return fmt.Errorf("invalid SEND_INTERVAL %s: must be a whole number of seconds, at least 1s", d)
	}
	return nil
}
