package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// normalizePath converts paths with dynamic segments to route patterns
// to prevent cardinality explosion in metrics, mapping /sightings/123 to
// /sightings/{id}.
func normalizePath(path string) string {
	staticRoutes := map[string]bool{
		"/":              true,
		"/sightings":     true,
		"/auth/login":    true,
		"/auth/callback": true,
		"/auth/refresh":  true,
		"/uploads/sign":  true,
		"/health":        true,
		"/ready":         true,
		"/metrics":       true,
	}

	if staticRoutes[path] {
		return path
	}

	if strings.HasPrefix(path, "/sightings/") {
		parts := strings.Split(path, "/")
		// /sightings/feed is the websocket endpoint, not an id
		if len(parts) == 3 && parts[2] == "feed" {
			return "/sightings/feed"
		}
		if len(parts) == 3 && parts[2] != "" {
			return "/sightings/{id}"
		}
	}

	// Unknown patterns pass through so new routes still get metrics.
	return path
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code
// and response size.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

// WriteHeader captures the status code before writing it.
func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size and writes the data.
func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// HTTPMetrics records duration, sizes, and counts per request. Health
// check endpoints are excluded to avoid noise.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			mrw := newMetricsResponseWriter(w)

			requestSize := int64(0)
			if contentLength := r.Header.Get("Content-Length"); contentLength != "" {
				if size, err := strconv.ParseInt(contentLength, 10, 64); err == nil {
					requestSize = size
				}
			}

			next.ServeHTTP(mrw, r)

			duration := time.Since(start).Seconds()
			normalizedPath := normalizePath(r.URL.Path)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizedPath,
				strconv.Itoa(mrw.statusCode),
				duration,
				requestSize,
				mrw.size,
			)
		})
	}
}
