// Package metrics exposes the pipeline's Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every instrument so wiring stays one struct.
type Metrics struct {
	CyclesTotal     *prometheus.CounterVec
	CycleDuration   prometheus.Histogram
	RecordsTotal    *prometheus.CounterVec
	SkippedTotal    *prometheus.CounterVec
	BudgetRemaining *prometheus.GaugeVec
	BreakerOpen     *prometheus.GaugeVec
	BusEventsTotal  *prometheus.CounterVec
	WSConnections   prometheus.Gauge
}

func New(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		CyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sportsync",
			Name:      "sync_cycles_total",
			Help:      "Sync cycles by kind and outcome.",
		}, []string{"kind", "outcome"}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sportsync",
			Name:      "sync_cycle_duration_seconds",
			Help:      "Wall time of one full sync cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		RecordsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sportsync",
			Name:      "records_total",
			Help:      "Landed records by entity and operation.",
		}, []string{"entity", "op"}),
		SkippedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sportsync",
			Name:      "records_skipped_total",
			Help:      "Raw records dropped by the transformers.",
		}, []string{"sport"}),
		BudgetRemaining: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sportsync",
			Name:      "budget_remaining",
			Help:      "Remaining daily request budget per provider.",
		}, []string{"provider"}),
		BreakerOpen: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sportsync",
			Name:      "breaker_open",
			Help:      "1 when the provider's circuit breaker is open.",
		}, []string{"provider"}),
		BusEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sportsync",
			Name:      "bus_events_total",
			Help:      "Events dispatched on the bus by type.",
		}, []string{"type"}),
		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "sportsync",
			Name:      "gateway_connections",
			Help:      "Open websocket connections.",
		}),
	}
}

// ObserveUpsert records one batch outcome.
func (m *Metrics) ObserveUpsert(entity string, created, updated, errors int) {
	if m == nil {
		return
	}
	m.RecordsTotal.WithLabelValues(entity, "created").Add(float64(created))
	m.RecordsTotal.WithLabelValues(entity, "updated").Add(float64(updated))
	m.RecordsTotal.WithLabelValues(entity, "error").Add(float64(errors))
}
