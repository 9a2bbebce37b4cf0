package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"mercator-hq/trafficdump/pkg/capture/redact"
	"mercator-hq/trafficdump/pkg/config"
)

// LogFormat represents the output format for logs.
type LogFormat string

const (
	// FormatJSON outputs logs in JSON format.
	FormatJSON LogFormat = "json"
	// FormatText outputs logs in key=value text format.
	FormatText LogFormat = "text"
	// FormatConsole is text output intended for a terminal.
	FormatConsole LogFormat = "console"
)

// Config contains configuration for the logger.
type Config struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string

	// Format is the output format ("json", "text", "console").
	Format string

	// AddSource includes file and line number in logs.
	AddSource bool

	// Redactor masks attributes named after sensitive fields. Nil disables
	// redaction.
	Redactor *Redactor

	// Writer is the output writer (defaults to os.Stderr).
	Writer io.Writer
}

// New creates a structured logger. Records flow through the context handler,
// which adds session identifiers, and then the redactor when one is set.
func New(cfg Config) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	format, err := ParseFormat(cfg.Format)
	if err != nil {
		return nil, fmt.Errorf("invalid log format: %w", err)
	}

	writer := cfg.Writer
	if writer == nil {
		writer = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	switch format {
	case FormatJSON:
		handler = slog.NewJSONHandler(writer, opts)
	default:
		handler = slog.NewTextHandler(writer, opts)
	}

	if cfg.Redactor != nil {
		handler = cfg.Redactor.Handler(handler)
	}
	handler = &contextHandler{next: handler}

	return slog.New(handler), nil
}

// FromConfig builds a logger from the telemetry section of the configuration.
// The returned redactor is nil when redaction is disabled.
func FromConfig(cfg config.LoggingConfig, fields []string, w io.Writer) (*slog.Logger, *Redactor, error) {
	var r *Redactor
	if config.Bool(cfg.RedactSensitive, true) {
		r = NewRedactor(redact.NewPolicy(fields))
	}

	logger, err := New(Config{
		Level:     cfg.Level,
		Format:    cfg.Format,
		AddSource: cfg.AddSource,
		Redactor:  r,
		Writer:    w,
	})
	if err != nil {
		return nil, nil, err
	}
	return logger, r, nil
}

// ParseLevel parses a log level string into slog.Level.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", levelStr)
	}
}

// ParseFormat parses a log format string into LogFormat.
func ParseFormat(formatStr string) (LogFormat, error) {
	switch strings.ToLower(formatStr) {
	case "json":
		return FormatJSON, nil
	case "text", "":
		return FormatText, nil
	case "console":
		return FormatConsole, nil
	default:
		return FormatText, fmt.Errorf("unknown log format: %s", formatStr)
	}
}
