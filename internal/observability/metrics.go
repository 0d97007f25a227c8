package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total gateway requests",
		}, []string{"route", "code"},
	)
	Latency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_duration_seconds",
		Help:    "Request latency seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_in_flight",
		Help: "In-flight HTTP requests",
	})
	OperationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_operation_errors_total",
			Help: "Proxy operation errors by operation and kind",
		}, []string{"operation", "kind"},
	)
	UpstreamCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_calls_total",
			Help: "Upstream API calls by resource and outcome",
		}, []string{"resource", "outcome"},
	)
	UpstreamLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "upstream_call_duration_seconds",
		Help:    "Upstream call latency seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"resource"})
	UpstreamAuth = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_auth_total",
			Help: "Upstream credential exchanges by channel and outcome",
		}, []string{"channel", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(RequestsTotal, Latency, InFlight, OperationErrors, UpstreamCalls, UpstreamLatency, UpstreamAuth)
}

func MetricsHandler() http.Handler { return promhttp.Handler() }

type rec struct {
	http.ResponseWriter
	code int
}

func (r *rec) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *rec) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func Measure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		InFlight.Inc()
		defer InFlight.Dec()

		rr := &rec{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rr, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		Latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
		RequestsTotal.WithLabelValues(route, strconv.Itoa(rr.code)).Inc()
	})
}
