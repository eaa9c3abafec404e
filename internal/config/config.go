package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type Config struct {
	HTTPAddr    string
	Environment string
	LogLevel    string
	LogFormat   string
	CORSOrigins []string

	ConversionDelay time.Duration
	MaxUploadBytes  int64
	SessionTTL      time.Duration
	JanitorInterval time.Duration

	// Optional backends. Sessions stay in memory without DatabaseURL; events
	// are logged instead of published without KafkaBrokers.
	DatabaseURL     string
	KafkaBrokers    []string
	KafkaTopic      string
	OutboxInterval  time.Duration
	OutboxBatchSize int
}

// Load reads the configuration from the environment. Callers load .env first.
func Load() (*Config, error) {
	env := getEnv("ENVIRONMENT", "dev")

	cfg := &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		Environment: env,
		LogLevel:    getEnv("LOG_LEVEL", defaultLogLevel(env)),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),

		DatabaseURL:  os.Getenv("DATABASE_URL"),
		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "converter.session-events"),
	}

	var err error
	if cfg.ConversionDelay, err = getDuration("CONVERSION_DELAY", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.JanitorInterval, err = getDuration("JANITOR_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.OutboxInterval, err = getDuration("OUTBOX_INTERVAL", time.Second); err != nil {
		return nil, err
	}
	if cfg.MaxUploadBytes, err = getInt64("MAX_UPLOAD_BYTES", 50<<20); err != nil {
		return nil, err
	}
	batch, err := getInt64("OUTBOX_BATCH_SIZE", 100)
	if err != nil {
		return nil, err
	}
	cfg.OutboxBatchSize = int(batch)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.HTTPAddr, validation.Required),
		validation.Field(&c.Environment, validation.In("dev", "test", "prod")),
		validation.Field(&c.LogLevel, validation.In("trace", "debug", "info", "warn", "error")),
		validation.Field(&c.LogFormat, validation.In("json", "console")),
		validation.Field(&c.ConversionDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxUploadBytes, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.SessionTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.JanitorInterval, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.KafkaTopic, validation.When(len(c.KafkaBrokers) > 0, validation.Required)),
		validation.Field(&c.OutboxInterval, validation.Required, validation.Min(10*time.Millisecond)),
		validation.Field(&c.OutboxBatchSize, validation.Required, validation.Min(1)),
	)
}

func defaultLogLevel(env string) string {
	if env == "prod" {
		return "info"
	}
	return "debug"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getInt64(key string, defaultValue int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
