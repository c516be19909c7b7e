package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/cschwartz85032/loanserve-sub001/internal/infrastructure/messaging"
	"github.com/cschwartz85032/loanserve-sub001/pkg/observability"
	"github.com/cschwartz85032/loanserve-sub001/pkg/postgres"
	"github.com/cschwartz85032/loanserve-sub001/pkg/rabbitmq"
)

// Config is the full runtime configuration, loaded from the environment.
type Config struct {
	ServiceName string
	HTTPAddr    string

	Database   postgres.Config
	Broker     rabbitmq.Config
	Dispatcher messaging.DispatcherConfig

	Log     observability.LogConfig
	Tracing observability.TracingConfig

	// EncryptionKey is the hex-encoded 32-byte AES key for secrets at rest.
	EncryptionKey string
	// PIISalt feeds the salted digests that stand in for raw PII in logs and
	// event payloads.
	PIISalt string

	// Lockout bounds repeated failed review-queue authentications. The window
	// counts failures; a locked account frees itself after the auto-unlock
	// interval.
	LockoutThreshold  int
	LockoutWindow     time.Duration
	LockoutAutoUnlock time.Duration
}

// Load reads configuration from environment variables, applying defaults
// suitable for local development. Missing hard requirements are errors.
func Load() (Config, error) {
	cfg := Config{
		ServiceName: getEnv("SERVICE_NAME", "loanserve"),
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		Database: postgres.Config{
			URL: os.Getenv("DATABASE_URL"),
		},
		Broker: rabbitmq.Config{
			URL:     os.Getenv("BROKER_URL"),
			MgmtURL: os.Getenv("BROKER_MGMT_URL"),
			VHost:   getEnv("BROKER_VHOST", "/"),
		},
		Dispatcher: messaging.DispatcherConfig{
			BatchSize:    getEnvInt("OUTBOX_BATCH_SIZE", 100),
			PollInterval: getEnvDuration("OUTBOX_POLL_INTERVAL", time.Second),
			MaxAttempts:  getEnvInt("OUTBOX_MAX_ATTEMPTS", 10),
		},
		Log: observability.LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Tracing: observability.TracingConfig{
			ServiceName: getEnv("SERVICE_NAME", "loanserve"),
			Endpoint:    os.Getenv("OTLP_ENDPOINT"),
			Insecure:    getEnvBool("OTLP_INSECURE", true),
		},
		EncryptionKey:     os.Getenv("ENCRYPTION_KEY"),
		PIISalt:           os.Getenv("PII_SALT"),
		LockoutThreshold:  getEnvInt("LOCKOUT_THRESHOLD", 5),
		LockoutWindow:     getEnvMinutes("LOCKOUT_WINDOW_MINUTES", 15),
		LockoutAutoUnlock: getEnvMinutes("LOCKOUT_AUTO_UNLOCK_MINUTES", 30),
	}

	if cfg.Database.URL == "" {
		return Config{}, fmt.Errorf("config: DATABASE_URL is required")
	}
	if cfg.Broker.URL == "" {
		return Config{}, fmt.Errorf("config: BROKER_URL is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvMinutes reads a whole-minute interval, e.g. LOCKOUT_WINDOW_MINUTES=15.
func getEnvMinutes(key string, fallbackMinutes int) time.Duration {
	return time.Duration(getEnvInt(key, fallbackMinutes)) * time.Minute
}
