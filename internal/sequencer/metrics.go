package sequencer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultCompleted = "completed"
	resultSkipped   = "skipped"
	resultFailed    = "failed"
)

// Metrics holds the sequencer's Prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	stepDuration *prometheus.HistogramVec
	stepRuns     *prometheus.CounterVec
	lastSuccess  prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "k8solo",
				Name:      "step_duration_seconds",
				Help:      "Duration of executed bootstrap steps in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12), // 500ms to ~17min
			},
			[]string{"step"},
		),
		stepRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "k8solo",
				Name:      "step_runs_total",
				Help:      "Bootstrap step outcomes by step and result",
			},
			[]string{"step", "result"},
		),
		lastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "k8solo",
				Subsystem: "bootstrap",
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last fully successful bootstrap pass",
			},
		),
	}
	reg.MustRegister(m.stepDuration, m.stepRuns, m.lastSuccess)
	return m
}

func (m *Metrics) recordStep(step, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.stepRuns.WithLabelValues(step, result).Inc()
	if result != resultSkipped {
		m.stepDuration.WithLabelValues(step).Observe(d.Seconds())
	}
}

func (m *Metrics) recordSuccess(at time.Time) {
	if m == nil {
		return
	}
	m.lastSuccess.Set(float64(at.Unix()))
}
