package store

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	ops         *prometheus.CounterVec
	storedBytes prometheus.Histogram
	incidents   *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mongofs_operations_total",
			Help: "Grid operations by kind and outcome.",
		}, []string{"op", "result"}),
		storedBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mongofs_stored_bytes",
			Help:    "Size distribution of stored files.",
			Buckets: prometheus.ExponentialBuckets(1<<10, 4, 10),
		}),
		incidents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mongofs_consistency_incidents_total",
			Help: "Detected consistency incidents requiring repair.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.ops, m.storedBytes, m.incidents)
	return m
}

func (m *metrics) op(name string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ops.WithLabelValues(name, result).Inc()
}
