package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"net/http"
	"strconv"
	"time"
)

const METRICS_NAMESPACE = "afemec"

// Sources of stored registrations.
const (
	SOURCE_FORM   = "form"
	SOURCE_BULK   = "bulk"
	SOURCE_IMPORT = "import"
	SOURCE_MAIL   = "mail"
)

type metrics struct {
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	registrations *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: METRICS_NAMESPACE,
			Name:      "http_requests_total",
			Help:      "Handled HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: METRICS_NAMESPACE,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: METRICS_NAMESPACE,
			Name:      "registrations_total",
			Help:      "Players stored by source.",
		}, []string{"source"}),
	}

	reg.MustRegister(m.requests, m.duration, m.registrations)
	return m
}

func (m *metrics) registered(source string, count int) {
	if count > 0 {
		m.registrations.WithLabelValues(source).Add(float64(count))
	}
}

// RequestsMetricsMiddleware labels by chi route pattern so ids in paths do not blow up cardinality.
func (m *metrics) RequestsMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(r.Method, route).Observe(time.Since(started).Seconds())
	})
}
