// Package metrics defines Prometheus instrumentation for the HTTP surface,
// the background worker and the rule engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ecocomply"

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)
)

// Background job metrics
var (
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Total number of jobs processed",
		},
		[]string{"type", "status"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Job execution time distribution",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"type"},
	)

	JobRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_retries_total",
			Help:      "Total number of job retry attempts",
		},
		[]string{"type"},
	)
)

// Rule engine metrics. Rule ids come from the bounded readiness catalog, so
// the label cardinality stays small.
var (
	RulesEvaluatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rules_evaluated_total",
			Help:      "Total number of readiness rule evaluations",
		},
		[]string{"rule_id", "result"},
	)

	ReadinessEvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readiness_evaluations_total",
			Help:      "Total number of readiness checks",
		},
		[]string{"pack_type", "outcome"},
	)

	PacksGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packs_generated_total",
			Help:      "Total number of packs accepted for generation",
		},
		[]string{"pack_type", "mode"}, // mode: dispatched or degraded
	)

	PackDispatchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pack_dispatch_failures_total",
			Help:      "Total number of pack generation dispatch failures",
		},
		[]string{"pack_type"},
	)

	ElvChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "elv_checks_total",
			Help:      "Total number of emission limit compliance checks",
		},
		[]string{"status"},
	)
)

// RuleEvaluated records one rule handler outcome.
func RuleEvaluated(ruleID, result string) {
	RulesEvaluatedTotal.WithLabelValues(ruleID, result).Inc()
}

// ReadinessEvaluated records one full readiness check.
func ReadinessEvaluated(packType, outcome string) {
	ReadinessEvaluationsTotal.WithLabelValues(packType, outcome).Inc()
}

// PackGenerated records a pack accepted for generation. Mode is "dispatched"
// when a job was queued and "degraded" when dispatch failed and the pack was
// marked for manual generation.
func PackGenerated(packType, mode string) {
	PacksGeneratedTotal.WithLabelValues(packType, mode).Inc()
}

// PackDispatchFailed records a dispatch infrastructure failure.
func PackDispatchFailed(packType string) {
	PackDispatchFailuresTotal.WithLabelValues(packType).Inc()
}

// ElvChecked records an emission limit check outcome.
func ElvChecked(status string) {
	ElvChecksTotal.WithLabelValues(status).Inc()
}
