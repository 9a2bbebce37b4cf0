package config

import (
	"time"

	"mercator-hq/trafficdump/pkg/capture/redact"
)

// Default values for configuration fields.
const (
	// Capture defaults
	DefaultCaptureLogDir       = "logs/dump"
	DefaultCaptureSample       = 1000
	DefaultCaptureLimit        = 10_000_000 // 10 MB
	DefaultCaptureMaxBodyBytes = 1 << 20    // 1 MiB
	DefaultCaptureQueueSize    = 1024
	DefaultCaptureWorkers      = 2
	DefaultCaptureWriteTimeout = 5 * time.Second
	DefaultCaptureAlert        = 0.9

	// Catalog defaults
	DefaultCatalogDriver      = "sqlite"
	DefaultCatalogPath        = "data/captures.db"
	DefaultCatalogBusyTimeout = 5 * time.Second

	// Proxy defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultAdminAddress    = "127.0.0.1:9090"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Telemetry defaults
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
	DefaultMetricsNamespace   = "trafficdump"
	DefaultMetricsSubsystem   = "capture"
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingServiceName = "trafficdump"
	DefaultTracingSampleRatio = 1.0
	DefaultTracingTimeout     = 10 * time.Second
)

// NewDefault returns a configuration with every default applied.
func NewDefault() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults. Explicitly
// set values are never overwritten.
func ApplyDefaults(cfg *Config) {
	applyCaptureDefaults(&cfg.Capture)
	applyCatalogDefaults(&cfg.Catalog)
	applyProxyDefaults(&cfg.Proxy)
	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyCaptureDefaults(c *CaptureConfig) {
	if c.LogDir == "" {
		c.LogDir = DefaultCaptureLogDir
	}
	if c.Sample == 0 {
		c.Sample = DefaultCaptureSample
	}
	if c.Limit == 0 {
		c.Limit = DefaultCaptureLimit
	}
	if len(c.SensitiveFields) == 0 {
		c.SensitiveFields = append([]string(nil), redact.DefaultSensitiveFields...)
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = DefaultCaptureMaxBodyBytes
	}
	if c.QueueSize == 0 {
		c.QueueSize = DefaultCaptureQueueSize
	}
	if c.Workers == 0 {
		c.Workers = DefaultCaptureWorkers
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultCaptureWriteTimeout
	}
	if c.AlertThreshold == 0 {
		c.AlertThreshold = DefaultCaptureAlert
	}
}

func applyCatalogDefaults(c *CatalogConfig) {
	if c.Driver == "" {
		c.Driver = DefaultCatalogDriver
	}
	if c.Path == "" {
		c.Path = DefaultCatalogPath
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = DefaultCatalogBusyTimeout
	}
	if c.SeedBudget == nil {
		seed := true
		c.SeedBudget = &seed
	}
}

func applyProxyDefaults(c *ProxyConfig) {
	if c.ListenAddress == "" {
		c.ListenAddress = DefaultListenAddress
	}
	if c.AdminAddress == "" {
		c.AdminAddress = DefaultAdminAddress
	}
	if c.H2C == nil {
		h2c := true
		c.H2C = &h2c
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
}

func applyTelemetryDefaults(c *TelemetryConfig) {
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Logging.RedactSensitive == nil {
		on := true
		c.Logging.RedactSensitive = &on
	}

	if c.Metrics.Enabled == nil {
		enabled := true
		c.Metrics.Enabled = &enabled
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultMetricsNamespace
	}
	if c.Metrics.Subsystem == "" {
		c.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(c.Metrics.WriteDurationBuckets) == 0 {
		// Local disk writes: 100µs - 1s
		c.Metrics.WriteDurationBuckets = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1}
	}
	if len(c.Metrics.DocumentSizeBuckets) == 0 {
		// Replay documents: 1 KB - 10 MB
		c.Metrics.DocumentSizeBuckets = []float64{1e3, 4e3, 16e3, 64e3, 256e3, 1e6, 4e6, 10e6}
	}

	if c.Tracing.Endpoint == "" {
		c.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = DefaultTracingServiceName
	}
	if c.Tracing.SampleRatio == 0 {
		c.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if c.Tracing.Timeout == 0 {
		c.Tracing.Timeout = DefaultTracingTimeout
	}
}
