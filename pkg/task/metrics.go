package task

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	inflight prometheus.Gauge
	outcomes *prometheus.CounterVec
	cycles   *prometheus.CounterVec
}

// WithMetrics exports task counters to reg:
//   - weft_tasks_inflight: tasks currently tracked
//   - weft_tasks_settled_total{outcome}: resolved, rejected or canceled
//   - weft_poll_cycles_total{result}: ok or error
//
// Collectors already registered by another Manager are reused.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(m *Manager) {
		m.metrics = &metrics{
			inflight: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "weft_tasks_inflight",
				Help: "Number of tasks currently tracked",
			})),
			outcomes: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "weft_tasks_settled_total",
				Help: "Tracked tasks settled, by outcome",
			}, []string{"outcome"})),
			cycles: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "weft_poll_cycles_total",
				Help: "Polling cycles executed, by result",
			}, []string{"result"})),
		}
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *metrics) setInflight(n int) {
	if m == nil {
		return
	}
	m.inflight.Set(float64(n))
}

func (m *metrics) settled(outcome Outcome) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(string(outcome)).Inc()
}

func (m *metrics) cycle(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.cycles.WithLabelValues(result).Inc()
}
