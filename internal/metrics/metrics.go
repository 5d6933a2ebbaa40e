// Package metrics provides Prometheus metrics for the matcher service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MatchRunsTotal tracks match search runs by outcome
	MatchRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "engine",
			Name:      "runs_total",
			Help:      "Total number of match search runs by outcome",
		},
		[]string{"outcome"},
	)

	// MatchRunDuration tracks how long a match search run takes
	MatchRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "matcher",
			Subsystem: "engine",
			Name:      "run_duration_seconds",
			Help:      "Duration of match search runs in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// CandidatesScoredTotal counts candidate pairs run through the scorer
	CandidatesScoredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "engine",
			Name:      "candidates_scored_total",
			Help:      "Total number of candidate reports scored",
		},
	)

	// MatchUpsertsTotal tracks persister results
	MatchUpsertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "persister",
			Name:      "upserts_total",
			Help:      "Total number of match upserts by result",
		},
		[]string{"result"},
	)

	// EmbeddingRequestsTotal tracks calls to the embedding service
	EmbeddingRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "embedding",
			Name:      "requests_total",
			Help:      "Total number of embedding service requests by status",
		},
		[]string{"status"},
	)

	// EmbeddingRequestDuration tracks embedding service latency
	EmbeddingRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "matcher",
			Subsystem: "embedding",
			Name:      "request_duration_seconds",
			Help:      "Duration of embedding service requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// VectorIndexWritesTotal tracks writes to the vector index
	VectorIndexWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "vector_index",
			Name:      "writes_total",
			Help:      "Total number of vector index writes by status",
		},
		[]string{"status"},
	)

	// TriggersConsumedTotal counts report.created deliveries handled by the consumer
	TriggersConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "queue",
			Name:      "triggers_consumed_total",
			Help:      "Total number of match triggers consumed from RabbitMQ by status",
		},
		[]string{"status"},
	)

	// RunsInFlight tracks match runs currently executing
	RunsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "matcher",
			Subsystem: "engine",
			Name:      "runs_in_flight",
			Help:      "Number of match search runs currently executing",
		},
	)
)
