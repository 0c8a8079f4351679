package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultSessionTimeout = 30 * time.Minute
	DefaultBatchSize      = 1000
)

// ValidationError reports an invalid configuration value. It is fatal: the
// run aborts before any source is processed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// ClickHouse holds the optional analytics mirror connection settings.
// The mirror is enabled when Host is non-empty.
type ClickHouse struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

func (c ClickHouse) Enabled() bool { return c.Host != "" }

// S3 holds the optional object-store settings for remote log sources.
// Remote ingestion is enabled when Endpoint is non-empty.
type S3 struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func (s S3) Enabled() bool { return s.Endpoint != "" }

// Config is the full runtime configuration, read from the environment.
type Config struct {
	DatabaseURL    string
	ClickHouse     ClickHouse
	S3             S3
	SessionTimeout time.Duration
	BatchSize      int
	GeoIPDBPath    string
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		SessionTimeout: DefaultSessionTimeout,
		BatchSize:      DefaultBatchSize,
		GeoIPDBPath:    os.Getenv("GEOIP_DB_PATH"),
	}

	if v := os.Getenv("SESSION_TIMEOUT_MINUTES"); v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil {
			return nil, &ValidationError{Field: "SESSION_TIMEOUT_MINUTES", Reason: "not an integer"}
		}
		cfg.SessionTimeout = time.Duration(minutes) * time.Minute
	}

	if v := os.Getenv("LOAD_BATCH_SIZE"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return nil, &ValidationError{Field: "LOAD_BATCH_SIZE", Reason: "not an integer"}
		}
		cfg.BatchSize = size
	}

	cfg.ClickHouse = ClickHouse{
		Host:     os.Getenv("CLICKHOUSE_HOST"),
		Database: os.Getenv("CLICKHOUSE_DB_NAME"),
		Username: os.Getenv("CLICKHOUSE_USERNAME"),
		Password: os.Getenv("CLICKHOUSE_PASSWORD"),
		Port:     9000,
	}
	if v := os.Getenv("CLICKHOUSE_NATIVE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, &ValidationError{Field: "CLICKHOUSE_NATIVE_PORT", Reason: "not an integer"}
		}
		cfg.ClickHouse.Port = port
	}

	cfg.S3 = S3{
		Endpoint:  os.Getenv("S3_ENDPOINT"),
		AccessKey: os.Getenv("S3_ACCESS_KEY"),
		SecretKey: os.Getenv("S3_SECRET_KEY"),
		Bucket:    os.Getenv("S3_BUCKET"),
		UseSSL:    os.Getenv("S3_USE_SSL") == "true",
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants that must hold before processing begins.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return &ValidationError{Field: "DATABASE_URL", Reason: "must be set"}
	}
	if c.SessionTimeout <= 0 {
		return &ValidationError{Field: "SESSION_TIMEOUT_MINUTES", Reason: "must be positive"}
	}
	if c.BatchSize <= 0 {
		return &ValidationError{Field: "LOAD_BATCH_SIZE", Reason: "must be positive"}
	}
	if c.ClickHouse.Enabled() && c.ClickHouse.Database == "" {
		return &ValidationError{Field: "CLICKHOUSE_DB_NAME", Reason: "must be set when CLICKHOUSE_HOST is set"}
	}
	if c.S3.Enabled() && c.S3.Bucket == "" {
		return &ValidationError{Field: "S3_BUCKET", Reason: "must be set when S3_ENDPOINT is set"}
	}
	return nil
}
