// Package middleware holds the HTTP middleware shared by every route:
// request logging, Prometheus metrics and security headers.
//
// Each middleware has the standard shape
//
//	func(next http.Handler) http.Handler
//
// and is installed on the chi router in internal/server.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// publicKeyPrefix starts every path that carries an API key.
const publicKeyPrefix = "/data/key/"

// responseWriter records the status code and body size, which
// http.ResponseWriter does not expose after the fact.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	written     int64
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.wroteHeader = true
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Logger logs one line per request with method, route, status, duration,
// bytes written and the chi request id. 5xx responses log at Error, 4xx at
// Warn, everything else at Info.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapped, r)

			level := slog.LevelInfo
			switch {
			case wrapped.statusCode >= 500:
				level = slog.LevelError
			case wrapped.statusCode >= 400:
				level = slog.LevelWarn
			}

			logger.LogAttrs(r.Context(), level, "request completed",
				slog.String("method", r.Method),
				slog.String("route", RoutePath(r)),
				slog.Int("status", wrapped.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", wrapped.written),
				slog.String("requestID", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}

// RoutePath returns what a log line should show for r: the matched route
// pattern, so an API key in the path never reaches the log. Requests that
// matched no route get the raw path with the key segment masked.
func RoutePath(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return redactKey(r.URL.Path)
}

func redactKey(path string) string {
	if len(path) <= len(publicKeyPrefix) || !strings.EqualFold(path[:len(publicKeyPrefix)], publicKeyPrefix) {
		return path
	}
	rest := path[len(publicKeyPrefix):]
	if _, tail, ok := strings.Cut(rest, "/"); ok {
		return path[:len(publicKeyPrefix)] + "{apiKey}/" + tail
	}
	return path[:len(publicKeyPrefix)] + "{apiKey}"
}
