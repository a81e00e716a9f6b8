package resource

import "github.com/prometheus/client_golang/prometheus"

// Metric label values.
const (
	scopeExternal = "external"
	scopeProject  = "project"

	outcomeOK             = "ok"
	outcomeHTTPError      = "http_error"
	outcomeTransportError = "transport_error"
)

var (
	fetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tatool_resource_fetches_total",
			Help: "Total number of resource fetches by scope and outcome.",
		},
		[]string{"scope", "outcome"},
	)

	fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tatool_resource_fetch_duration_seconds",
			Help:    "Resource fetch duration from request to fully read body, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"scope"},
	)
)

func init() {
	prometheus.MustRegister(fetchesTotal)
	prometheus.MustRegister(fetchDuration)

	for _, scope := range []string{scopeExternal, scopeProject} {
		fetchesTotal.WithLabelValues(scope, outcomeOK)
		fetchesTotal.WithLabelValues(scope, outcomeHTTPError)
		fetchesTotal.WithLabelValues(scope, outcomeTransportError)
	}
}
