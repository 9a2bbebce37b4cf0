package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "capture.sample").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateCapture(&cfg.Capture)...)
	errs = append(errs, validateCatalog(&cfg.Catalog)...)
	errs = append(errs, validateProxy(&cfg.Proxy)...)
	errs = append(errs, validateReport(&cfg.Report)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateCapture(cfg *CaptureConfig) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(cfg.LogDir) == "" {
		errs = append(errs, FieldError{Field: "capture.log_dir", Message: "log directory is required"})
	}
	if cfg.Sample < 1 {
		errs = append(errs, FieldError{
			Field:   "capture.sample",
			Message: fmt.Sprintf("sample must be at least 1, got %d", cfg.Sample),
		})
	}
	if cfg.Limit < 1 {
		errs = append(errs, FieldError{
			Field:   "capture.limit",
			Message: fmt.Sprintf("limit must be a positive byte count, got %d", cfg.Limit),
		})
	}
	for i, f := range cfg.SensitiveFields {
		if strings.TrimSpace(f) == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("capture.sensitive_fields[%d]", i),
				Message: "field name cannot be empty",
			})
		}
		if strings.ContainsAny(f, "*?") {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("capture.sensitive_fields[%d]", i),
				Message: fmt.Sprintf("wildcards are not supported: %q", f),
			})
		}
	}
	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{Field: "capture.max_body_bytes", Message: "must not be negative"})
	}
	if cfg.QueueSize < 1 {
		errs = append(errs, FieldError{Field: "capture.queue_size", Message: "must be at least 1"})
	}
	if cfg.Workers < 1 {
		errs = append(errs, FieldError{Field: "capture.workers", Message: "must be at least 1"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "capture.write_timeout", Message: "must not be negative"})
	}
	if cfg.AlertThreshold < 0 || cfg.AlertThreshold > 1 {
		errs = append(errs, FieldError{
			Field:   "capture.alert_threshold",
			Message: fmt.Sprintf("must be between 0.0 and 1.0, got %.2f", cfg.AlertThreshold),
		})
	}

	return errs
}

func validateCatalog(cfg *CatalogConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}

	var errs []FieldError
	switch cfg.Driver {
	case "sqlite", "sqlite3":
		if cfg.Path == "" {
			errs = append(errs, FieldError{Field: "catalog.path", Message: "path is required for sqlite drivers"})
		}
	case "memory":
	default:
		errs = append(errs, FieldError{
			Field:   "catalog.driver",
			Message: fmt.Sprintf("unsupported driver %q (expected sqlite, sqlite3 or memory)", cfg.Driver),
		})
	}
	return errs
}

func validateProxy(cfg *ProxyConfig) []FieldError {
	var errs []FieldError

	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "proxy.listen_address",
			Message: fmt.Sprintf("invalid address %q: %v", cfg.ListenAddress, err),
		})
	}
	if cfg.AdminAddress != "" {
		if _, _, err := net.SplitHostPort(cfg.AdminAddress); err != nil {
			errs = append(errs, FieldError{
				Field:   "proxy.admin_address",
				Message: fmt.Sprintf("invalid address %q: %v", cfg.AdminAddress, err),
			})
		}
	}
	if cfg.Upstream != "" {
		u, err := url.Parse(cfg.Upstream)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, FieldError{
				Field:   "proxy.upstream",
				Message: fmt.Sprintf("upstream must be an http(s) URL, got %q", cfg.Upstream),
			})
		}
	}
	if cfg.ReadTimeout < 0 || cfg.WriteTimeout < 0 || cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{Field: "proxy", Message: "timeouts must not be negative"})
	}

	return errs
}

func validateReport(cfg *ReportConfig) []FieldError {
	if cfg.Schedule == "" {
		return nil
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return []FieldError{{
			Field:   "report.schedule",
			Message: fmt.Sprintf("invalid cron schedule %q: %v", cfg.Schedule, err),
		}}
	}
	return nil
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("unknown log level %q", cfg.Logging.Level),
		})
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("unknown log format %q", cfg.Logging.Format),
		})
	}

	if cfg.Tracing.Enabled {
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "endpoint is required when tracing is enabled"})
		}
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sample_ratio",
				Message: fmt.Sprintf("must be between 0.0 and 1.0, got %.2f", cfg.Tracing.SampleRatio),
			})
		}
	}

	return errs
}
