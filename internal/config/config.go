// Package config holds the environment-driven settings for tabload: the
// destination connection, logging, metrics and load tuning. CLI flags
// override these values; see cmd/tabload.
package config

import (
	"fmt"
	"strings"
	"time"

	"tabload/internal/storage"
)

// Config is the full environment configuration.
type Config struct {
	Database DatabaseConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
	Load     LoadConfig
}

// DatabaseConfig describes the destination store.
type DatabaseConfig struct {
	// Kind selects the backend: mysql, sqlite, postgres or mssql.
	Kind string `env:"TABLOAD_DB_KIND" default:"mysql"`
	Host string `env:"TABLOAD_DB_HOST" envAlt:"DB_HOST" default:"localhost"`
	// Port 0 means the backend's default port.
	Port     int    `env:"TABLOAD_DB_PORT" envAlt:"DB_PORT"`
	User     string `env:"TABLOAD_DB_USER" envAlt:"DB_USER" default:"root"`
	Password string `env:"TABLOAD_DB_PASSWORD" envAlt:"DB_PASSWORD"`
	Name     string `env:"TABLOAD_DB_NAME" envAlt:"DB_NAME"`
	// DSN, when set, is passed to the driver as is.
	DSN string `env:"TABLOAD_DSN" envAlt:"DATABASE_URL"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" default:"info"`
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig selects and tunes the metrics backend.
type MetricsConfig struct {
	// Backend is none, datadog or pushgateway.
	Backend        string        `env:"METRICS_BACKEND" default:"none"`
	Job            string        `env:"METRICS_JOB" default:"tabload"`
	PushgatewayURL string        `env:"PUSHGATEWAY_URL" default:"http://localhost:9091"`
	Tags           []string      `env:"METRICS_TAGS"`
	FlushEvery     time.Duration `env:"METRICS_FLUSH_EVERY" default:"60s"`
}

// LoadConfig tunes parsing and loading.
type LoadConfig struct {
	ChunkSize        int    `env:"TABLOAD_CHUNK_SIZE" default:"250"`
	ParseConcurrency int    `env:"TABLOAD_PARSE_CONCURRENCY" default:"4"`
	OutputDir        string `env:"TABLOAD_OUTPUT_DIR" default:"output"`
}

// Storage converts the database settings to a storage.Config.
func (c *Config) Storage() storage.Config {
	return storage.Config{
		Kind:     c.Database.Kind,
		Host:     c.Database.Host,
		Port:     c.Database.Port,
		User:     c.Database.User,
		Password: c.Database.Password,
		Database: c.Database.Name,
		DSN:      c.Database.DSN,
	}
}

// String renders the config for logs with secrets masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Database: {Kind: %q, Host: %q, Port: %d, User: %q, Password: %s, Name: %q, DSN: %s}, ",
		c.Database.Kind, c.Database.Host, c.Database.Port, c.Database.User,
		mask(c.Database.Password), c.Database.Name, mask(c.Database.DSN))
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}, ", c.Logging.Level, c.Logging.Format)
	fmt.Fprintf(&b, "Metrics: {Backend: %q, Job: %q}, ", c.Metrics.Backend, c.Metrics.Job)
	fmt.Fprintf(&b, "Load: {ChunkSize: %d, ParseConcurrency: %d, OutputDir: %q}",
		c.Load.ChunkSize, c.Load.ParseConcurrency, c.Load.OutputDir)
	b.WriteString("}")
	return b.String()
}

func mask(s string) string {
	if s == "" {
		return `""`
	}
	return "[MASKED]"
}
