package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jsonhost_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	authAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jsonhost_auth_attempts_total",
			Help: "Sign-up and login attempts by method and outcome",
		},
		[]string{"event", "success"},
	)
	publicReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jsonhost_public_reads_total",
			Help: "API key reads by kind and outcome",
		},
		[]string{"kind", "found"},
	)
)

// Prometheus records request duration labelled by the chi route pattern,
// so /data/key/{apiKey}/{fileName} is one series no matter which key was
// used.
func Prometheus(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}

// RecordAuthAttempt counts a signup, login or GitHub sign-in.
func RecordAuthAttempt(event string, success bool) {
	authAttempts.WithLabelValues(event, strconv.FormatBool(success)).Inc()
}

// RecordPublicRead counts a key-based listing or file read.
func RecordPublicRead(kind string, found bool) {
	publicReads.WithLabelValues(kind, strconv.FormatBool(found)).Inc()
}
