package middleware

import (
	"net/http"

	"go-concord/pkg/config"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// TracingMiddleware wraps the router in an otelhttp handler when telemetry is
// enabled; spans are named after the matched chi route pattern.
func TracingMiddleware(next http.Handler) http.Handler {
	if !config.GetBoolEnv("ENABLE_TELEMETRY", false) {
		return next
	}

	return otelhttp.NewHandler(next, "concord",
		otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					return r.Method + " " + pattern
				}
			}
			return r.Method + " " + r.URL.Path
		}),
	)
}
