package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/umiteyigun/santral-ai/internal/metrics"
)

// Metrics returns middleware that records Prometheus metrics.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status; the chi wrapper keeps
		// http.Hijacker so websocket upgrades still work.
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		path := normalizePath(r.URL.Path)

		metrics.HTTPRequestsTotal.WithLabelValues(
			r.Method, path, strconv.Itoa(status),
		).Inc()

		metrics.HTTPRequestDuration.WithLabelValues(
			r.Method, path,
		).Observe(time.Since(start).Seconds())
	})
}

// knownPaths are recorded verbatim; anything else is folded to keep label
// cardinality bounded.
var knownPaths = map[string]bool{
	"/":                      true,
	"/admin":                 true,
	"/agent-message":         true,
	"/agent-message/ws":      true,
	"/agent-message/publish": true,
	"/start-chat":            true,
	"/token":                 true,
	"/dispatch-agent":        true,
	"/api/voices":            true,
	"/api/voices/active":     true,
	"/api/voices/set-active": true,
	"/api/voices/upload":     true,
	"/api/cache/info":        true,
	"/api":                   true,
	"/health":                true,
	"/metrics":               true,
}

// normalizePath normalizes paths to avoid high cardinality in metrics.
func normalizePath(path string) string {
	if knownPaths[path] {
		return path
	}
	if strings.HasPrefix(path, "/static/") {
		return "/static/*"
	}
	return "other"
}
