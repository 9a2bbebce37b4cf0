package tracing

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// createSampler maps a ratio onto a parent-based sampler. A ratio of 1 or
// more samples everything and a ratio of 0 or less samples nothing.
//
// Span sampling is unrelated to session sampling: a session that the
// capture sampler skips is still traced as a proxied request.
func createSampler(ratio float64) sdktrace.Sampler {
	var root sdktrace.Sampler
	switch {
	case ratio >= 1:
		root = sdktrace.AlwaysSample()
	case ratio <= 0:
		root = sdktrace.NeverSample()
	default:
		root = sdktrace.TraceIDRatioBased(ratio)
	}
	return sdktrace.ParentBased(root)
}
