// Package config provides configuration loading for the traffic dump proxy.
//
// # Overview
//
// Configuration is read from a YAML file, completed with defaults,
// overridden from TRAFFICDUMP_* environment variables and validated. All
// validation errors are collected into a single ValidationError.
//
// # Example
//
//	capture:
//	  log_dir: /var/log/trafficdump
//	  sample: 1000
//	  limit: 1000000000
//	  sensitive_fields: [cookie, set-cookie, authorization]
//	proxy:
//	  listen_address: 0.0.0.0:8080
//	  upstream: http://127.0.0.1:8081
//	report:
//	  schedule: "@every 1m"
//
// # Hot Reload
//
// Watcher observes the file with fsnotify and hands each successfully
// reloaded configuration to a callback. Only the sensitive field list is
// applied at runtime; sampling and the disk limit are fixed for a run.
package config
