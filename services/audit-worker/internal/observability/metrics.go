package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "audit_worker",
			Name:      "messages_received_total",
			Help:      "Kafka messages pulled by the worker",
		},
		[]string{"topic"},
	)

	EventsPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "audit_worker",
			Name:      "persisted_total",
			Help:      "Request-log events stored in postgres",
		},
		[]string{"classification"},
	)

	EventsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "audit_worker",
			Name:      "skipped_total",
			Help:      "Messages committed without being stored, by reason",
		},
		[]string{"reason"},
	)

	PersistRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "audit_worker",
			Name:      "persist_retries_total",
			Help:      "Storage attempts repeated after a failure",
		},
	)

	ProcessLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "audit_worker",
			Name:      "process_duration_seconds",
			Help:      "End-to-end processing latency per message",
			Buckets:   prometheus.DefBuckets,
		},
	)

	InflightJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "audit_worker",
			Name:      "inflight_jobs",
			Help:      "Number of messages currently being processed (semaphore depth)",
		},
	)
)
