// File: internal/observability/metrics.go
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Poll outcomes.
const (
	OutcomeReady       = "ready"
	OutcomeTimeout     = "timeout"
	OutcomeSoftTimeout = "soft_timeout"
	OutcomeFailed      = "failed"
	OutcomeCancelled   = "cancelled"
)

var (
	metricPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "webready",
		Name:      "polls_total",
		Help:      "Condition polls by outcome.",
	}, []string{"outcome"})
	metricPollEvaluations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "webready",
		Name:      "poll_evaluations_total",
		Help:      "Condition evaluations across all polls.",
	})
	metricPollDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "webready",
		Name:      "poll_duration_seconds",
		Help:      "Wall time of a condition poll by outcome.",
		Buckets:   []float64{.001, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"outcome"})
	metricClickFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "webready",
		Name:      "click_fallbacks_total",
		Help:      "Synthetic click fallbacks after a rejected native click, by result.",
	}, []string{"result"})
	metricScenarioSteps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "webready",
		Name:      "scenario_steps_total",
		Help:      "Scenario steps executed by action and result.",
	}, []string{"action", "result"})
)

// RecordPoll records one finished poll.
func RecordPoll(outcome string, evaluations int, elapsed time.Duration) {
	metricPolls.WithLabelValues(outcome).Inc()
	if evaluations > 0 {
		metricPollEvaluations.Add(float64(evaluations))
	}
	metricPollDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// RecordClickFallback records a synthetic click attempt.
func RecordClickFallback(ok bool) {
	metricClickFallbacks.WithLabelValues(result(ok)).Inc()
}

// RecordScenarioStep records one executed scenario step.
func RecordScenarioStep(action string, ok bool) {
	metricScenarioSteps.WithLabelValues(action, result(ok)).Inc()
}

// WriteTextfile writes every registered metric to path in the Prometheus
// text format, for the node exporter textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
