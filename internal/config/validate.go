package config

import (
	"fmt"
	"strings"

	"tabload/internal/ddl"
)

// IssueSeverity grades a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks the run.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is reported and ignored.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is one configuration finding. Path is the environment variable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate lints c. skipDB drops the destination checks, for runs that never
// connect (dry run, skip load).
func (c *Config) Validate(skipDB bool) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if !skipDB {
		d, err := ddl.ForKind(c.Database.Kind)
		if err != nil {
			add(SeverityError, "TABLOAD_DB_KIND", "%v", err)
		}
		if c.Database.Port < 0 || c.Database.Port > 65535 {
			add(SeverityError, "TABLOAD_DB_PORT", "port %d must be 0-65535", c.Database.Port)
		}
		if c.Database.DSN == "" && c.Database.Name == "" && (err != nil || d.Name != "sqlite") {
			add(SeverityWarning, "TABLOAD_DB_NAME", "no database selected; tables go to the server default schema")
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add(SeverityError, "LOG_LEVEL", "%q must be one of debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		add(SeverityError, "LOG_FORMAT", "%q must be text or json", c.Logging.Format)
	}

	switch c.Metrics.Backend {
	case "", "none":
	case "datadog":
		if c.Metrics.FlushEvery <= 0 {
			add(SeverityError, "METRICS_FLUSH_EVERY", "must be positive")
		}
	case "pushgateway":
		if c.Metrics.PushgatewayURL == "" {
			add(SeverityError, "PUSHGATEWAY_URL", "required for the pushgateway backend")
		}
	default:
		add(SeverityError, "METRICS_BACKEND", "unknown backend %q (want none, datadog or pushgateway)", c.Metrics.Backend)
	}

	if c.Load.ChunkSize <= 0 {
		add(SeverityError, "TABLOAD_CHUNK_SIZE", "must be positive, got %d", c.Load.ChunkSize)
	} else if c.Load.ChunkSize > 5000 {
		add(SeverityWarning, "TABLOAD_CHUNK_SIZE", "%d rows per statement may exceed server packet limits", c.Load.ChunkSize)
	}
	if c.Load.ParseConcurrency <= 0 {
		add(SeverityError, "TABLOAD_PARSE_CONCURRENCY", "must be positive, got %d", c.Load.ParseConcurrency)
	}
	return issues
}
