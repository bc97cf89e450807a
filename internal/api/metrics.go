package api

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the server's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	CohortsGenerated  prometheus.Counter
	PatientsGenerated prometheus.Counter
	CyclesGenerated   prometheus.Counter
	TableRequests     *prometheus.CounterVec
	GenerationSeconds prometheus.Histogram
}

// NewMetrics registers the collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		CohortsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rwe_cohorts_generated_total",
			Help: "Number of cohorts generated.",
		}),
		PatientsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rwe_patients_generated_total",
			Help: "Number of synthetic patients generated.",
		}),
		CyclesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rwe_cycles_generated_total",
			Help: "Number of treatment cycles emitted.",
		}),
		TableRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rwe_table_requests_total",
			Help: "Flattened table requests by table name.",
		}, []string{"table"}),
		GenerationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rwe_cohort_generation_seconds",
			Help:    "Wall time spent generating one cohort.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(
		m.CohortsGenerated,
		m.PatientsGenerated,
		m.CyclesGenerated,
		m.TableRequests,
		m.GenerationSeconds,
	)

	return m
}

// Registry exposes the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
