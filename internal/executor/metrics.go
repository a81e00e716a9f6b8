package executor

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/seantiz/tatool/internal/model"
)

var (
	sessionsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tatool_sessions_finished_total",
			Help: "Total number of sessions that reached a terminal status.",
		},
		[]string{"status"},
	)

	executableDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tatool_executable_run_duration_seconds",
			Help:    "Time spent inside an executable's Run, in seconds.",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"executable"},
	)

	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tatool_sessions_active",
			Help: "Number of sessions whose module queue is currently running.",
		},
	)
)

func init() {
	prometheus.MustRegister(sessionsFinished)
	prometheus.MustRegister(executableDuration)
	prometheus.MustRegister(sessionsActive)

	for _, s := range []string{model.StatusCompleted, model.StatusStopped, model.StatusFailed} {
		sessionsFinished.WithLabelValues(s)
	}
}
