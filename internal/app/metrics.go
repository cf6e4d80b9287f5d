package app

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vk/bozogo/internal/stage"
)

// metrics records dispatcher progress for the status server's /metrics
// endpoint. Each App owns its own registry.
type metrics struct {
	registry      *prometheus.Registry
	phaseDuration *prometheus.HistogramVec
	runs          *prometheus.CounterVec
	running       prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bozogo",
			Name:      "phase_duration_seconds",
			Help:      "Time spent in each build phase.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"phase", "result"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bozogo",
			Name:      "runs_total",
			Help:      "Finished build runs by final status.",
		}, []string{"status"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bozogo",
			Name:      "build_running",
			Help:      "1 while a build is in progress.",
		}),
	}
	m.registry.MustRegister(m.phaseDuration, m.runs, m.running)
	return m
}

// PhaseFinished implements stage.Observer.
func (m *metrics) PhaseFinished(phase stage.Phase, d time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.phaseDuration.WithLabelValues(string(phase), result).Observe(d.Seconds())
}

// RunFinished implements stage.Observer.
func (m *metrics) RunFinished(state stage.State) {
	m.runs.WithLabelValues(string(state.Status)).Inc()
	m.running.Set(0)
}
