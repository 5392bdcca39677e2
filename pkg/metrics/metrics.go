// Package metrics provides Prometheus metrics for the matcher.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolverDecisionsTotal tracks resolver decisions by object type and outcome
	ResolverDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "resolver",
			Name:      "decisions_total",
			Help:      "Total number of resolver decisions by object type and decision",
		},
		[]string{"type", "decision"},
	)

	// ResolverConflictsTotal tracks uniqueness conflicts converted into attaches
	ResolverConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "resolver",
			Name:      "conflicts_total",
			Help:      "Total number of concurrent uniqueness conflicts retried by the resolver",
		},
	)

	// ComparatorErrorsTotal tracks candidates excluded because their data could not be scored
	ComparatorErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "comparator",
			Name:      "errors_total",
			Help:      "Total number of candidates scored 0 because of malformed attributes",
		},
		[]string{"type"},
	)

	// ScrapProcessedTotal tracks finished scrap runs by final status
	ScrapProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "scrap",
			Name:      "processed_total",
			Help:      "Total number of scrap runs by final status",
		},
		[]string{"status"},
	)

	// ScrapDuration tracks scrap run duration in seconds
	ScrapDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "matcher",
			Subsystem: "scrap",
			Name:      "duration_seconds",
			Help:      "Duration of scrap runs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 900},
		},
	)

	// SimilarityRecomputesTotal tracks similarity recomputations by outcome
	SimilarityRecomputesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "similarity",
			Name:      "recomputes_total",
			Help:      "Total number of similarity recomputations by status",
		},
		[]string{"status"},
	)

	// SimilarityQueueDropped tracks recompute requests dropped because the queue was full
	SimilarityQueueDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "similarity",
			Name:      "queue_dropped_total",
			Help:      "Total number of similarity recompute requests dropped under load",
		},
	)

	// SimilarityQueueDepth tracks pending recompute requests
	SimilarityQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "matcher",
			Subsystem: "similarity",
			Name:      "queue_depth",
			Help:      "Number of similarity recompute requests waiting for a worker",
		},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

	// KafkaMessagesConsumed tracks scrap jobs consumed from Kafka
	KafkaMessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "kafka",
			Name:      "messages_consumed_total",
			Help:      "Total number of scrap jobs consumed from Kafka by outcome",
		},
		[]string{"topic", "status"},
	)

	// GraphProjectionsTotal tracks graph projection writes
	GraphProjectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "graph",
			Name:      "projections_total",
			Help:      "Total number of graph projection writes by status",
		},
		[]string{"status"},
	)
)

// RecordDecision records one resolver decision
func RecordDecision(objectType, decision string) {
	ResolverDecisionsTotal.WithLabelValues(objectType, decision).Inc()
}

// RecordScrap records a finished scrap run
func RecordScrap(status string, elapsed time.Duration) {
	ScrapProcessedTotal.WithLabelValues(status).Inc()
	ScrapDuration.Observe(elapsed.Seconds())
}

// RecordRecompute records a similarity recomputation
func RecordRecompute(status string) {
	SimilarityRecomputesTotal.WithLabelValues(status).Inc()
}
