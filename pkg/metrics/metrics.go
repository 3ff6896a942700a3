// Package metrics provides Prometheus metrics for the fern worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ShipmentsProcessedTotal tracks terminal applier results
	ShipmentsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "applier",
			Name:      "shipments_total",
			Help:      "Total number of shipments processed by terminal state and error kind",
		},
		[]string{"company_id", "state", "error_kind"},
	)

	// ShipmentDuration tracks end-to-end processing time of one work item
	ShipmentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "applier",
			Name:      "shipment_duration_seconds",
			Help:      "Duration of shipment processing in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"company_id"},
	)

	// StepDuration tracks time spent in each pipeline step
	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "applier",
			Name:      "step_duration_seconds",
			Help:      "Duration of individual applier steps in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 5},
		},
		[]string{"step"},
	)

	// ItemsWrittenTotal tracks item rows inserted for fulfillment customers
	ItemsWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "applier",
			Name:      "items_written_total",
			Help:      "Total number of shipment item rows written",
		},
		[]string{"company_id"},
	)

	// SkippedColumnsTotal tracks candidate columns dropped because the live table lacks them
	SkippedColumnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "planner",
			Name:      "skipped_columns_total",
			Help:      "Total number of candidate columns skipped by the write planner",
		},
		[]string{"company_id", "table"},
	)

	// HTTPRequestsTotal tracks outbound HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "http_client",
			Name:      "requests_total",
			Help:      "Total number of outbound HTTP requests",
		},
		[]string{"method", "status_code"},
	)

	// HTTPRequestDuration tracks outbound HTTP request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "http_client",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound HTTP requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method"},
	)

	// QueueJobsProcessed tracks work items handled by a transport
	QueueJobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "queue",
			Name:      "jobs_processed_total",
			Help:      "Total number of work items processed from the queue by outcome",
		},
		[]string{"transport", "outcome"},
	)

	// QueueJobsInFlight tracks work items currently being processed
	QueueJobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fern",
			Subsystem: "queue",
			Name:      "jobs_in_flight",
			Help:      "Number of work items currently being processed",
		},
	)

	// DLQJobsTotal tracks work items sent to the dead letter queue
	DLQJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "dlq",
			Name:      "jobs_total",
			Help:      "Total number of work items sent to dead letter queue",
		},
		[]string{"company_id", "reason"},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

	// KafkaPublishDuration tracks Kafka publish duration
	KafkaPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "publish_duration_seconds",
			Help:      "Duration of Kafka publish operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
	)

	// CacheLookups tracks schema and credential cache hits and misses
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Total number of in-process cache lookups by cache and result",
		},
		[]string{"cache", "result"},
	)

	// DatabaseQueryDuration tracks database statement duration
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Duration of database statements in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	// RedisOperationDuration tracks Redis operation duration
	RedisOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "redis",
			Name:      "operation_duration_seconds",
			Help:      "Duration of Redis operations in seconds",
			Buckets:   []float64{0.0001, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
		[]string{"operation"},
	)
)

// RecordShipment records a terminal applier result
func RecordShipment(companyID, state, errorKind string, durationSeconds float64) {
	ShipmentsProcessedTotal.WithLabelValues(companyID, state, errorKind).Inc()
	ShipmentDuration.WithLabelValues(companyID).Observe(durationSeconds)
}

// RecordStep records the duration of one applier step
func RecordStep(step string, durationSeconds float64) {
	StepDuration.WithLabelValues(step).Observe(durationSeconds)
}

// RecordHTTPRequest records an outbound HTTP request metric
func RecordHTTPRequest(method, statusCode string, durationSeconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordQueueJob records a queue job processing metric
func RecordQueueJob(transport, outcome string) {
	QueueJobsProcessed.WithLabelValues(transport, outcome).Inc()
}

// RecordDLQJob records a dead letter queue job
func RecordDLQJob(companyID, reason string) {
	DLQJobsTotal.WithLabelValues(companyID, reason).Inc()
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string, durationSeconds float64) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
	KafkaPublishDuration.Observe(durationSeconds)
}

// RecordCacheLookup records a hit or miss against a named cache
func RecordCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(cache, result).Inc()
}

// RecordQuery records a database statement duration
func RecordQuery(operation string, durationSeconds float64) {
	DatabaseQueryDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordRedisOperation records a Redis operation duration
func RecordRedisOperation(operation string, durationSeconds float64) {
	RedisOperationDuration.WithLabelValues(operation).Observe(durationSeconds)
}
