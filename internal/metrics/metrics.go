// Package metrics exposes run and discovery counters for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"btp/internal/domain"
)

const MetricsNamespace = "btp"

var (
	casesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "cases_total",
		Help:      "Count of finished test cases by result",
	}, []string{
		"target",
		"result",
	})

	caseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "case_duration_seconds",
		Help:      "Duration of finished test cases as reported by the binary",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
	}, []string{
		"target",
	})

	discoveryDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "discovery_duration_seconds",
		Help:      "Duration of the last discovery of a target",
	}, []string{
		"target",
	})

	discoveryErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "discovery_errors_total",
		Help:      "Count of failed discoveries",
	}, []string{
		"target",
	})

	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "sessions_total",
		Help:      "Count of run sessions by outcome",
	}, []string{
		"target",
		"outcome",
	})
)

// RecordCase counts one finished case.
func RecordCase(targetID string, status domain.Status, d time.Duration) {
	casesTotal.WithLabelValues(targetID, string(status)).Inc()
	if d > 0 {
		caseDuration.WithLabelValues(targetID).Observe(d.Seconds())
	}
}

// RecordDiscovery records the duration and outcome of a discovery.
func RecordDiscovery(targetID string, d time.Duration, err error) {
	discoveryDuration.WithLabelValues(targetID).Set(d.Seconds())
	if err != nil {
		discoveryErrors.WithLabelValues(targetID).Inc()
	}
}

// RecordSession counts a run session outcome: "completed", "cancelled",
// "rejected" or "launch_error".
func RecordSession(targetID, outcome string) {
	sessionsTotal.WithLabelValues(targetID, outcome).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
