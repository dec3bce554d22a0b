package schedule

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the schedule engine's counters and gauges.
type Metrics struct {
	registry           prometheus.Registerer
	generationsTotal   *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	rotationsTotal     prometheus.Counter
	overridesTotal     prometheus.Counter
	tickErrors         prometheus.Counter
	agentsTracked      prometheus.Gauge
	historyEntries     *prometheus.GaugeVec
}

// InitMetrics registers the schedule metrics against reg, defaulting to the
// process-wide registerer.
func InitMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		registry: reg,
		generationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "schedule_generations_total",
				Help:      "Total schedule generation attempts",
			},
			[]string{"kind", "outcome"},
		),
		generationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "schedule_generation_duration_seconds",
				Help:      "Duration of schedule generation calls",
				Buckets:   []float64{.1, .5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"kind"},
		),
		rotationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "schedule_rotations_total",
				Help:      "Expired items rotated into history",
			},
		),
		overridesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "schedule_overrides_total",
				Help:      "Force-available overrides applied",
			},
		),
		tickErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "schedule_tick_errors_total",
				Help:      "Monitor loop tick errors",
			},
		),
		agentsTracked: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "schedule_agents_tracked",
				Help:      "Agents with a current schedule item",
			},
		),
		historyEntries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "schedule_history_entries",
				Help:      "History entries retained per agent",
			},
			[]string{"agent_id"},
		),
	}

	reg.MustRegister(
		m.generationsTotal,
		m.generationDuration,
		m.rotationsTotal,
		m.overridesTotal,
		m.tickErrors,
		m.agentsTracked,
		m.historyEntries,
	)

	return m
}

// RecordGeneration records one generation attempt. kind is "day", "next"
// or "initial"; outcome is "ok" or "error".
func (m *Metrics) RecordGeneration(kind, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.generationsTotal.WithLabelValues(kind, outcome).Inc()
	m.generationDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordRotation counts one expiry rotation.
func (m *Metrics) RecordRotation() {
	if m == nil {
		return
	}
	m.rotationsTotal.Inc()
}

// RecordOverride counts one force-available override.
func (m *Metrics) RecordOverride() {
	if m == nil {
		return
	}
	m.overridesTotal.Inc()
}

// RecordTickError counts one recovered tick failure.
func (m *Metrics) RecordTickError() {
	if m == nil {
		return
	}
	m.tickErrors.Inc()
}

// SetAgentsTracked reports how many agents currently hold a schedule item.
func (m *Metrics) SetAgentsTracked(n int) {
	if m == nil {
		return
	}
	m.agentsTracked.Set(float64(n))
}

// SetHistoryEntries reports the retained history depth for one agent.
func (m *Metrics) SetHistoryEntries(agentID string, n int) {
	if m == nil {
		return
	}
	m.historyEntries.WithLabelValues(agentID).Set(float64(n))
}
