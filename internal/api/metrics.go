package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seantiz/tatool/internal/model"
)

// Resource request outcomes.
const (
	resourceServed       = "served"
	resourceUnauthorized = "unauthorized"
	resourceNotFound     = "not_found"
	resourceRejected     = "rejected"
	resourceError        = "error"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tatool_http_requests_total",
			Help: "HTTP requests by run mode, route and status.",
		},
		[]string{"mode", "method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tatool_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds by run mode and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode", "route"},
	)

	resourceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tatool_resource_requests_total",
			Help: "Project resource requests by access kind and outcome.",
		},
		[]string{"access", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, resourceRequestsTotal)

	for _, access := range []string{model.AccessInternal, model.AccessPrivate, model.AccessPublic} {
		for _, outcome := range []string{resourceServed, resourceUnauthorized, resourceNotFound, resourceError} {
			resourceRequestsTotal.WithLabelValues(access, outcome)
		}
	}
}

// observeRequest records one finished request. route is the chi pattern so
// resource names and session ids do not become label values.
func (s *Server) observeRequest(r *http.Request, status int, seconds float64) {
	if status == 0 {
		status = http.StatusOK
	}
	route := "unmatched"
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		route = rctx.RoutePattern()
	}
	mode := s.engine.Mode()
	httpRequestsTotal.WithLabelValues(mode, r.Method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(mode, route).Observe(seconds)
}

// countResource records the outcome of a resource request. Unknown access
// values are folded into one label.
func countResource(access, outcome string) {
	switch access {
	case model.AccessInternal, model.AccessPrivate, model.AccessPublic, model.AccessExternal:
	default:
		access = "invalid"
	}
	resourceRequestsTotal.WithLabelValues(access, outcome).Inc()
}

func metricsHandler() http.Handler {
	return promhttp.Handler()
}
