// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

// Package metrics holds the Prometheus collectors for Waypoint and small
// Record* helpers so call sites stay one line long.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "waypoint"

var (
	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Duration of API requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "api_active_requests",
			Help:      "Number of API requests currently being served",
		},
	)

	// Ingestion Metrics
	IngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_total",
			Help:      "Total number of ingested messages by outcome",
		},
		[]string{"source", "outcome"}, // outcome: stored, ignored, invalid_payload, invalid_topic, failed
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Duration of a stored ingest (index update plus log append)",
			Buckets:   prometheus.DefBuckets,
		},
	)

	IngestStepFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_step_failures_total",
			Help:      "Failures of individual ingest steps",
		},
		[]string{"step"}, // index, log
	)

	// Record log metrics
	RecordsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Stored record lines skipped during range reads",
		},
		[]string{"reason"}, // timestamp, json, format
	)

	// Object store metrics
	ObjectStoreDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "object_store_duration_seconds",
			Help:      "Duration of object store operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	ObjectStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "object_store_errors_total",
			Help:      "Total number of failed object store operations",
		},
		[]string{"backend", "operation"},
	)

	// Index store metrics
	IndexTxnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "index_txn_duration_seconds",
			Help:      "Duration of index update transactions including retries",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	IndexTxnConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_txn_conflicts_total",
			Help:      "Index transactions retried after a write conflict",
		},
		[]string{"backend"},
	)

	IndexGCRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_gc_runs_total",
			Help:      "Value log garbage collection runs by result",
		},
		[]string{"result"}, // rewritten, nothing, error
	)

	// Key lock metrics
	KeyLockWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "keylock_wait_seconds",
			Help:      "Time spent waiting for a per-key write lock",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"table"},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_requests_total",
			Help:      "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state_transitions_total",
			Help:      "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Messaging metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Location events published to NATS by result",
		},
		[]string{"result"},
	)

	MQTTMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_messages_total",
			Help:      "MQTT messages received by result",
		},
		[]string{"result"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "app_info",
			Help:      "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordIngest counts one ingest outcome. A stored ingest also observes duration.
func RecordIngest(source, outcome string, duration time.Duration) {
	IngestTotal.WithLabelValues(source, outcome).Inc()
	if outcome == "stored" {
		IngestDuration.Observe(duration.Seconds())
	}
}

// RecordIngestStepFailure counts a failed index or log step.
func RecordIngestStepFailure(step string) {
	IngestStepFailures.WithLabelValues(step).Inc()
}

// RecordSkippedLine counts a record line dropped during a range read.
func RecordSkippedLine(reason string) {
	RecordsSkipped.WithLabelValues(reason).Inc()
}

// RecordObjectStoreOp records latency and failure of an object store call.
func RecordObjectStoreOp(backend, operation string, duration time.Duration, err error) {
	ObjectStoreDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	if err != nil {
		ObjectStoreErrors.WithLabelValues(backend, operation).Inc()
	}
}

// RecordIndexTxn records an index transaction and the conflicts it retried through.
func RecordIndexTxn(backend string, duration time.Duration, conflicts int) {
	IndexTxnDuration.WithLabelValues(backend).Observe(duration.Seconds())
	if conflicts > 0 {
		IndexTxnConflicts.WithLabelValues(backend).Add(float64(conflicts))
	}
}

// RecordIndexGC counts a value log GC pass.
func RecordIndexGC(result string) {
	IndexGCRuns.WithLabelValues(result).Inc()
}

// RecordKeyLockWait observes time spent acquiring a per-key lock.
func RecordKeyLockWait(table string, wait time.Duration) {
	KeyLockWait.WithLabelValues(table).Observe(wait.Seconds())
}

// RecordCacheLookup counts a cache hit or miss.
func RecordCacheLookup(cacheType string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(cacheType).Inc()
	} else {
		CacheMisses.WithLabelValues(cacheType).Inc()
	}
}

// RecordEventPublish counts a NATS publish attempt.
func RecordEventPublish(err error) {
	if err != nil {
		EventsPublished.WithLabelValues("error").Inc()
		return
	}
	EventsPublished.WithLabelValues("ok").Inc()
}

// RecordMQTTMessage counts a received MQTT message by result.
func RecordMQTTMessage(result string) {
	MQTTMessages.WithLabelValues(result).Inc()
}
