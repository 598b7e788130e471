package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueriesTotal counts logical query executions by source kind and outcome.
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livetables_queries_total",
			Help: "Total number of logical query executions",
		},
		[]string{"source", "status"},
	)
	// QueryDuration is the latency of logical query executions.
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "livetables_query_duration_seconds",
			Help:    "Logical query execution latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)
	// AdapterCacheSize tracks the number of cached external adapters.
	AdapterCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "livetables_adapter_cache_size",
			Help: "Number of connected external adapters held in the cache",
		},
	)
	// FormulaEvaluationsTotal counts computed-column evaluations by outcome.
	FormulaEvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livetables_formula_evaluations_total",
			Help: "Total number of computed-column formula evaluations",
		},
		[]string{"status"},
	)
)
