package tracing

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// HeaderTraceID carries the trace id of the request back to the caller.
const HeaderTraceID = "X-Trace-ID"

// HTTPMiddleware continues the W3C trace context of incoming requests, for
// example
//
//	traceparent: 00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01
//
// and echoes the trace id in the X-Trace-ID response header.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		if id := TraceID(ctx); id != "" {
			w.Header().Set(HeaderTraceID, id)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
