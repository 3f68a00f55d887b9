package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sage",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "route"},
	)

	// CascadeAttemptsTotal counts model attempts by tier and outcome
	// (success, rate_limited, error, skipped).
	CascadeAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "cascade",
			Name:      "attempts_total",
			Help:      "Model cascade attempts by tier and outcome",
		},
		[]string{"rank", "model", "outcome"},
	)

	AttemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sage",
			Subsystem: "cascade",
			Name:      "attempt_duration_seconds",
			Help:      "Provider call duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"model"},
	)

	// AnalysesTotal counts analyses by outcome (success, quota_exceeded, failed).
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "analyzer",
			Name:      "analyses_total",
			Help:      "Analyses by outcome",
		},
		[]string{"outcome"},
	)

	QuotaUsed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sage",
			Subsystem: "analyzer",
			Name:      "quota_used",
			Help:      "Analyses recorded in the current rate window",
		},
	)
)
