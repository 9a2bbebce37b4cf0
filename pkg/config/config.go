package config

import "time"

// Config is the root configuration structure for the traffic dump proxy.
// It contains the capture engine settings plus the proxy, catalog,
// reporting and telemetry sections around it.
type Config struct {
	// Capture contains the capture engine configuration: output
	// directory, sampling, disk budget and sensitive fields.
	Capture CaptureConfig `yaml:"capture"`

	// Catalog contains configuration for the index of written captures.
	Catalog CatalogConfig `yaml:"catalog"`

	// Proxy contains the capturing reverse proxy configuration.
	Proxy ProxyConfig `yaml:"proxy"`

	// Report contains configuration for the periodic usage report.
	Report ReportConfig `yaml:"report"`

	// Telemetry contains configuration for logging, metrics and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// CaptureConfig contains the capture engine settings.
type CaptureConfig struct {
	// LogDir is the root directory for replay files. Files are laid out
	// as <log_dir>/<address prefix>/<16 hex digit counter>.
	LogDir string `yaml:"log_dir"`

	// Sample captures one of every Sample sessions. 1 captures all.
	// Default: 1000
	Sample int `yaml:"sample"`

	// Limit is the disk budget ceiling in bytes across all replay files.
	// Default: 10000000 (10 MB)
	Limit int64 `yaml:"limit"`

	// SensitiveFields lists header names whose values are redacted.
	// Default: authorization, cookie, proxy-authorization, set-cookie
	SensitiveFields []string `yaml:"sensitive_fields"`

	// DumpBodies records body bytes in addition to body sizes.
	// Default: false
	DumpBodies bool `yaml:"dump_bodies"`

	// MaxBodyBytes caps the body bytes retained per session.
	// Default: 1048576 (1 MiB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// QueueSize is the number of finalized sessions that may wait for the
	// writer. Sessions arriving at a full queue are dropped.
	// Default: 1024
	QueueSize int `yaml:"queue_size"`

	// Workers is the number of writer goroutines.
	// Default: 2
	Workers int `yaml:"workers"`

	// WriteTimeout bounds a single session write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// AlertThreshold is the fraction of the limit at which the budget
	// reports an alert.
	// Default: 0.9
	AlertThreshold float64 `yaml:"alert_threshold"`
}

// CatalogConfig contains configuration for the capture catalog.
type CatalogConfig struct {
	// Enabled turns the catalog on.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Driver selects the backend: "sqlite" (pure Go), "sqlite3" (cgo) or
	// "memory".
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// Path is the database file path for the sqlite drivers.
	// Default: "data/captures.db"
	Path string `yaml:"path"`

	// BusyTimeout is how long to wait for database locks.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// SeedBudget starts the disk budget at the catalog's recorded total so
	// a restart keeps honouring the limit.
	// Default: true
	SeedBudget *bool `yaml:"seed_budget"`
}

// ProxyConfig contains configuration for the capturing reverse proxy.
type ProxyConfig struct {
	// ListenAddress is the address the proxy accepts clients on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// Upstream is the origin URL requests are forwarded to.
	Upstream string `yaml:"upstream"`

	// AdminAddress serves /metrics, /healthz, /readyz and /budget.
	// Empty disables the admin listener.
	// Default: "127.0.0.1:9090"
	AdminAddress string `yaml:"admin_address"`

	// H2C accepts HTTP/2 over cleartext connections.
	// Default: true
	H2C *bool `yaml:"h2c"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is how long keep-alive connections stay open.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ReportConfig contains configuration for the periodic usage report.
type ReportConfig struct {
	// Schedule is a cron expression (e.g. "@every 1m", "*/5 * * * *").
	// Empty disables the report.
	Schedule string `yaml:"schedule"`
}

// TelemetryConfig groups the observability settings.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains configuration for structured logging.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format: "json", "text" or "console".
	// Default: "text"
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	AddSource bool `yaml:"add_source"`

	// RedactSensitive masks log attributes named after sensitive fields.
	// Default: true
	RedactSensitive *bool `yaml:"redact_sensitive"`
}

// MetricsConfig contains configuration for Prometheus metrics.
type MetricsConfig struct {
	// Enabled turns metric collection on.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Namespace is the metric namespace.
	// Default: "trafficdump"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem.
	// Default: "capture"
	Subsystem string `yaml:"subsystem"`

	// WriteDurationBuckets are histogram buckets (seconds) for file writes.
	WriteDurationBuckets []float64 `yaml:"write_duration_buckets"`

	// DocumentSizeBuckets are histogram buckets (bytes) for replay files.
	DocumentSizeBuckets []float64 `yaml:"document_size_buckets"`
}

// TracingConfig contains configuration for OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled turns tracing on. When off a no-op tracer is used.
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS towards the collector.
	Insecure bool `yaml:"insecure"`

	// ServiceName is reported as the service.name resource attribute.
	// Default: "trafficdump"
	ServiceName string `yaml:"service_name"`

	// SampleRatio is the fraction of traces sampled (0.0-1.0).
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Timeout bounds exporter calls.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// Bool returns the value of an optional flag, or def when unset.
func Bool(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
