package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"proofdeck/internal/platform/metrics"
)

// Latency records per-endpoint handler latency, labeled by the chi route
// pattern so path parameters do not explode cardinality.
func Latency(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)

			pattern := chi.RouteContext(r.Context()).RoutePattern()
			if pattern == "" {
				pattern = "unmatched"
			}
			m.ObserveEndpoint(pattern, start)
		})
	}
}
