package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// total requests per endpoint, method and status code
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustsafety_requests_total",
			Help: "Total API requests received",
		},
		[]string{"endpoint", "method", "status"},
	)

	// request latency in seconds per endpoint/method
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trustsafety_request_duration_seconds",
			Help:    "Histogram of request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// screening gate decisions labelled allowed, denied or fail_open
	ScreeningDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustsafety_screening_decisions_total",
			Help: "Total screening gate decisions by outcome",
		},
		[]string{"outcome"},
	)

	// classifier calls labelled by outcome
	ClassifierRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustsafety_classifier_requests_total",
			Help: "Total remote classifier calls by outcome",
		},
		[]string{"outcome"},
	)

	// latency of remote classifier calls
	ClassifierLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trustsafety_classifier_duration_seconds",
			Help:    "Duration of remote classifier calls",
			Buckets: prometheus.DefBuckets,
		},
	)

	// pre-filter checks labelled clean or flagged
	PrefilterChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustsafety_prefilter_checks_total",
			Help: "Total lexical pre-filter checks",
		},
		[]string{"result"},
	)

	// rate limit requests per action kind
	RateLimitRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustsafety_ratelimit_requests_total",
			Help: "Total rate limit checks per action kind",
		},
		[]string{"action_kind"},
	)

	// rate limit denials per action kind
	RateLimitHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustsafety_ratelimit_hits_total",
			Help: "Total rate limit denials per action kind",
		},
		[]string{"action_kind"},
	)

	// reports submitted per reason
	ReportCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustsafety_reports_total",
			Help: "Total content reports submitted",
		},
		[]string{"reason"},
	)

	// moderation actions written per type
	ModerationActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustsafety_moderation_actions_total",
			Help: "Total moderation actions recorded",
		},
		[]string{"action_type"},
	)

	// mutations refused because the actor is suspended or banned
	SuspensionBlocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustsafety_suspension_blocks_total",
			Help: "Total mutations refused for suspended users",
		},
		[]string{"action_kind"},
	)

	// best-effort side effects that failed (notifications, analytics)
	SideEffectErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustsafety_side_effect_errors_total",
			Help: "Total failed best-effort side effects",
		},
		[]string{"kind"},
	)
)

func init() {
	// register all metrics
	prometheus.MustRegister(
		RequestCount,
		RequestLatency,
		ScreeningDecisions,
		ClassifierRequests,
		ClassifierLatency,
		PrefilterChecks,
		RateLimitRequests,
		RateLimitHits,
		ReportCount,
		ModerationActions,
		SuspensionBlocks,
		SideEffectErrors,
	)
}
