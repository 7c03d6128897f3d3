package executor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// executionsTotal counts finished executions by block type and outcome
	executionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "float_executions_total",
		Help: "Finished block executions by block type and outcome",
	}, []string{"type", "outcome"})

	// executionDuration tracks collaborator round-trip latency
	executionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "float_execution_duration_seconds",
		Help:    "Block execution duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
	}, []string{"outcome"})

	inflightGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "float_executions_in_flight",
		Help: "Block executions currently waiting on the collaborator",
	})

	rejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "float_execution_rejected_total",
		Help: "Execution requests rejected before reaching the collaborator",
	}, []string{"reason"})
)
