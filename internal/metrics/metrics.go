// Package metrics exposes Prometheus collectors for the harvester service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	harvestRunsTotal            *prometheus.CounterVec
	harvestProblemsTotal        *prometheus.CounterVec
	harvestThrottleDelaySeconds prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		harvestRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_runs_total",
				Help: "Total number of harvest runs, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		harvestProblemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_problems_total",
				Help: "Total number of problems processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		harvestThrottleDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harvester_throttle_delay_seconds",
				Help:    "Histogram of inter-item throttle delays.",
				Buckets: []float64{0.1, 0.5, 1, 2, 3, 5, 10},
			},
		)
	})
}

// RecordRun counts one finished run by outcome ("completed" or "list_fetch_failed").
func RecordRun(outcome string) {
	if harvestRunsTotal == nil {
		return
	}
	harvestRunsTotal.WithLabelValues(outcome).Inc()
}

// RecordProblem counts one processed item by outcome ("success" or "failure").
func RecordProblem(outcome string) {
	if harvestProblemsTotal == nil {
		return
	}
	harvestProblemsTotal.WithLabelValues(outcome).Inc()
}

// ObserveThrottleDelay records one inter-item delay.
func ObserveThrottleDelay(d time.Duration) {
	if harvestThrottleDelaySeconds == nil {
		return
	}
	harvestThrottleDelaySeconds.Observe(d.Seconds())
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
