// Trafficdump is a capturing reverse proxy that records sampled client
// sessions as replay files.
//
// Each sampled connection is written to
// <log_dir>/<first three characters of the client address>/<counter>
// as a Proxy Verifier replay document, with sensitive header values
// replaced by a same-length placeholder. A global disk budget bounds the
// bytes written across all files.
//
// Usage:
//
//	# Proxy to an origin, capturing one of every 1000 sessions
//	trafficdump run --upstream http://127.0.0.1:8081 --logdir /var/log/dump
//
//	# Capture everything, up to 1 GB, redacting two extra headers
//	trafficdump run -c config.yaml --sample 1 --limit 1000000000 \
//	    --sensitive-fields cookie,set-cookie,x-request-1,x-request-2
//
//	# Check written files
//	trafficdump verify /var/log/dump --sensitive-fields cookie,set-cookie
//
//	# List recorded captures
//	trafficdump catalog list --client 10.0.0.7
package main

import (
	"os"

	"mercator-hq/trafficdump/pkg/cli"
)

func main() {
	os.Exit(cli.ExitCode(Execute()))
}
