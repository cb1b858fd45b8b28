package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// HTTPMetrics is the subset of the application metrics the HTTP layer feeds.
type HTTPMetrics interface {
	RecordHTTPRequest(method, route string, statusCode int, d time.Duration)
	TrackInFlight(method string) func()
}

// Metrics records one observation per request, labelled with the chi route
// pattern so path parameters do not explode cardinality. Unmatched requests
// are labelled "unmatched".
func Metrics(m HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			done := m.TrackInFlight(r.Method)
			defer done()

			start := time.Now()
			wrapped := newWrappedResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			m.RecordHTTPRequest(r.Method, route, wrapped.statusCode, time.Since(start))
		})
	}
}
