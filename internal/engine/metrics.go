package engine

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the alert engine.
type Metrics struct {
	IngestsTotal        *prometheus.CounterVec
	TransitionsTotal    *prometheus.CounterVec
	BulkItemsTotal      *prometheus.CounterVec
	BulkDuration        prometheus.Histogram
	CorrelationDuration prometheus.Histogram
	IncidentsOpen       prometheus.Gauge
	SLAItems            *prometheus.GaugeVec
	SLARefreshTotal     *prometheus.CounterVec
}

// NewMetrics registers and returns engine metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IngestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "klaxon_ingests_total",
			Help: "Total raw events ingested by source and result.",
		}, []string{"source", "result"}),
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "klaxon_transitions_total",
			Help: "Total lifecycle transitions by action and outcome.",
		}, []string{"action", "outcome"}),
		BulkItemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "klaxon_bulk_items_total",
			Help: "Total bulk operation items by outcome.",
		}, []string{"outcome"}),
		BulkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "klaxon_bulk_duration_seconds",
			Help:    "Duration of bulk operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms .. ~20s
		}),
		CorrelationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "klaxon_correlation_duration_seconds",
			Help:    "Duration of correlation passes in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms .. ~1s
		}),
		IncidentsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "klaxon_incidents",
			Help: "Incident count from the most recent correlation pass.",
		}),
		SLAItems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "klaxon_sla_items",
			Help: "Tracked deadline items by risk class from the last SLA cycle.",
		}, []string{"risk"}),
		SLARefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "klaxon_sla_refresh_total",
			Help: "Total SLA monitor cycles by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.IngestsTotal,
		m.TransitionsTotal,
		m.BulkItemsTotal,
		m.BulkDuration,
		m.CorrelationDuration,
		m.IncidentsOpen,
		m.SLAItems,
		m.SLARefreshTotal,
	)

	return m
}

func (m *Metrics) bulkTimer() *prometheus.Timer {
	return prometheus.NewTimer(m.BulkDuration)
}
