package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Extract returns ctx carrying any W3C trace context found in headers.
func Extract(ctx context.Context, headers http.Header) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(headers))
}

// HTTPMiddleware extracts incoming trace context and starts a server span
// per request. The trace ID reaches the logs through the context; no
// header is added to the response.
func HTTPMiddleware(t *Tracer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := Extract(r.Context(), r.Header)
		ctx, span := t.Start(ctx, "proxy.request", ServerSpan(), RequestAttributes(r))
		defer span.End()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
