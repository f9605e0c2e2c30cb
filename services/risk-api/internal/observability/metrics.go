package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "risk_api_classifier",
			Name:      "requests_total",
			Help:      "Requests counted by the classifier, by classification",
		},
		[]string{"classification"},
	)

	RequestsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "risk_api_classifier",
			Name:      "rejected_total",
			Help:      "Requests short-circuited with 429",
		},
	)

	CounterResets = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "risk_api_classifier",
			Name:      "resets_total",
			Help:      "Global counter sweeps",
		},
	)

	AuditDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "risk_api_audit",
			Name:      "dropped_total",
			Help:      "Audit events dropped because the dispatch buffer was full",
		},
	)

	AuditFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "risk_api_audit",
			Name:      "failed_total",
			Help:      "Audit events the sink failed to store, by sink",
		},
		[]string{"sink"},
	)

	AuditBacklog = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "risk_api_audit",
			Name:      "backlog",
			Help:      "Audit events waiting in the dispatch buffer",
		},
	)

	ScoringOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "risk_api_scoring",
			Name:      "decisions_total",
			Help:      "Risk decisions by outcome (scored, fallback) and label",
		},
		[]string{"outcome", "label"},
	)

	ScoringFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "risk_api_scoring",
			Name:      "failures_total",
			Help:      "Scoring calls that fell back, by reason",
		},
		[]string{"reason"},
	)

	ScoringLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "risk_api_scoring",
			Name:      "call_duration_seconds",
			Help:      "Latency of calls to the scoring service",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
