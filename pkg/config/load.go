package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "TRAFFICDUMP_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML configuration and applies defaults. It does not
// validate.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention TRAFFICDUMP_SECTION_FIELD (e.g., TRAFFICDUMP_CAPTURE_LOG_DIR).
//
// A missing file is not an error: defaults and environment overrides are
// used instead, so the proxy can be configured from flags alone.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if cfg, err = Parse(data); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	} else if os.IsNotExist(err) {
		cfg = NewDefault()
	} else {
		return nil, fmt.Errorf("failed to stat configuration file %q: %w", path, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) error {
	if val := os.Getenv(EnvPrefix + "CAPTURE_LOG_DIR"); val != "" {
		cfg.Capture.LogDir = val
	}
	if val := os.Getenv(EnvPrefix + "CAPTURE_SAMPLE"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return FieldError{Field: EnvPrefix + "CAPTURE_SAMPLE", Message: fmt.Sprintf("invalid integer %q", val)}
		}
		cfg.Capture.Sample = n
	}
	if val := os.Getenv(EnvPrefix + "CAPTURE_LIMIT"); val != "" {
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return FieldError{Field: EnvPrefix + "CAPTURE_LIMIT", Message: fmt.Sprintf("invalid integer %q", val)}
		}
		cfg.Capture.Limit = n
	}
	if val := os.Getenv(EnvPrefix + "CAPTURE_SENSITIVE_FIELDS"); val != "" {
		var fields []string
		for _, f := range strings.Split(val, ",") {
			if f = strings.TrimSpace(f); f != "" {
				fields = append(fields, f)
			}
		}
		cfg.Capture.SensitiveFields = fields
	}
	if val := os.Getenv(EnvPrefix + "CAPTURE_DUMP_BODIES"); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return FieldError{Field: EnvPrefix + "CAPTURE_DUMP_BODIES", Message: fmt.Sprintf("invalid boolean %q", val)}
		}
		cfg.Capture.DumpBodies = b
	}

	if val := os.Getenv(EnvPrefix + "PROXY_LISTEN_ADDRESS"); val != "" {
		cfg.Proxy.ListenAddress = val
	}
	if val := os.Getenv(EnvPrefix + "PROXY_UPSTREAM"); val != "" {
		cfg.Proxy.Upstream = val
	}
	if val := os.Getenv(EnvPrefix + "PROXY_ADMIN_ADDRESS"); val != "" {
		cfg.Proxy.AdminAddress = val
	}

	if val := os.Getenv(EnvPrefix + "LOG_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv(EnvPrefix + "LOG_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	return nil
}
