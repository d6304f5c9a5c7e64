package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oddskit/oddsrelay/internal/telemetry"
)

// statusText holds pre-computed status code strings to avoid
// strconv.Itoa allocations on the hot path.
var statusText [600]string

func init() {
	for i := 100; i < 600; i++ {
		statusText[i] = strconv.Itoa(i)
	}
}

func statusLabel(code int) string {
	if code >= 100 && code < 600 {
		return statusText[code]
	}
	return strconv.Itoa(code)
}

// metricsMiddleware records request counts, durations, and in-flight gauge.
func metricsMiddleware(m *telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.ActiveRequests.Inc()
			sw := statusWriterPool.Get().(*statusWriter)
			sw.ResponseWriter = w
			sw.status = http.StatusOK
			sw.wroteHeader = false
			next.ServeHTTP(sw, r)
			m.ActiveRequests.Dec()

			route := routePattern(r)
			m.RequestsTotal.WithLabelValues(r.Method, route, statusLabel(sw.status)).Inc()
			m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			sw.ResponseWriter = nil
			statusWriterPool.Put(sw)
		})
	}
}

// routePattern returns the chi route pattern so metrics have bounded
// cardinality even for parameterized paths.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
