package query

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts cache activity per resource
type Metrics struct {
	Hits          *prometheus.CounterVec
	Misses        *prometheus.CounterVec
	Fetches       *prometheus.CounterVec
	Invalidations *prometheus.CounterVec
}

// NewMetrics creates the cache counters and registers them with reg when it is not nil
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medlink",
			Subsystem: "query_cache",
			Name:      "hits_total",
			Help:      "Reads served from the cache.",
		}, []string{"resource"}),
		Misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medlink",
			Subsystem: "query_cache",
			Name:      "misses_total",
			Help:      "Reads that had to wait for a fetch.",
		}, []string{"resource"}),
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medlink",
			Subsystem: "query_cache",
			Name:      "fetches_total",
			Help:      "Network fetches issued, after de-duplication.",
		}, []string{"resource", "result"}),
		Invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medlink",
			Subsystem: "query_cache",
			Name:      "invalidations_total",
			Help:      "Resource invalidations.",
		}, []string{"resource"}),
	}
	if reg != nil {
		reg.MustRegister(m.Hits, m.Misses, m.Fetches, m.Invalidations)
	}
	return m
}
