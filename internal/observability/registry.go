package observability

import "time"

// MetricsRegistry provides an interface for recording application metrics.
// Components receive it by injection instead of touching the Prometheus
// vectors directly.
type MetricsRegistry interface {
	// HTTP Request metrics
	IncrementRequests(endpoint, method, status string)
	RecordRequestLatency(endpoint, method string, duration time.Duration)

	// Screening metrics
	IncrementScreeningDecision(outcome string)
	IncrementClassifierRequests(outcome string)
	RecordClassifierLatency(duration time.Duration)
	IncrementPrefilterChecks(result string)

	// Rate limiting metrics
	IncrementRateLimitRequests(actionKind string)
	IncrementRateLimitHits(actionKind string)

	// Moderation metrics
	IncrementReports(reason string)
	IncrementModerationActions(actionType string)
	IncrementSuspensionBlocks(actionKind string)
	IncrementSideEffectErrors(kind string)
}

// PrometheusRegistry implements MetricsRegistry using the global Prometheus metrics
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

func (r *PrometheusRegistry) IncrementRequests(endpoint, method, status string) {
	RequestCount.WithLabelValues(endpoint, method, status).Inc()
}

func (r *PrometheusRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	RequestLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementScreeningDecision(outcome string) {
	ScreeningDecisions.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRegistry) IncrementClassifierRequests(outcome string) {
	ClassifierRequests.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRegistry) RecordClassifierLatency(duration time.Duration) {
	ClassifierLatency.Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementPrefilterChecks(result string) {
	PrefilterChecks.WithLabelValues(result).Inc()
}

func (r *PrometheusRegistry) IncrementRateLimitRequests(actionKind string) {
	RateLimitRequests.WithLabelValues(actionKind).Inc()
}

func (r *PrometheusRegistry) IncrementRateLimitHits(actionKind string) {
	RateLimitHits.WithLabelValues(actionKind).Inc()
}

func (r *PrometheusRegistry) IncrementReports(reason string) {
	ReportCount.WithLabelValues(reason).Inc()
}

func (r *PrometheusRegistry) IncrementModerationActions(actionType string) {
	ModerationActions.WithLabelValues(actionType).Inc()
}

func (r *PrometheusRegistry) IncrementSuspensionBlocks(actionKind string) {
	SuspensionBlocks.WithLabelValues(actionKind).Inc()
}

func (r *PrometheusRegistry) IncrementSideEffectErrors(kind string) {
	SideEffectErrors.WithLabelValues(kind).Inc()
}

// NoOpRegistry implements MetricsRegistry with no-op methods for testing
type NoOpRegistry struct{}

// NewNoOpRegistry creates a new NoOpRegistry
func NewNoOpRegistry() *NoOpRegistry {
	return &NoOpRegistry{}
}

func (r *NoOpRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (r *NoOpRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (r *NoOpRegistry) IncrementScreeningDecision(outcome string)                            {}
func (r *NoOpRegistry) IncrementClassifierRequests(outcome string)                           {}
func (r *NoOpRegistry) RecordClassifierLatency(duration time.Duration)                       {}
func (r *NoOpRegistry) IncrementPrefilterChecks(result string)                               {}
func (r *NoOpRegistry) IncrementRateLimitRequests(actionKind string)                         {}
func (r *NoOpRegistry) IncrementRateLimitHits(actionKind string)                             {}
func (r *NoOpRegistry) IncrementReports(reason string)                                       {}
func (r *NoOpRegistry) IncrementModerationActions(actionType string)                         {}
func (r *NoOpRegistry) IncrementSuspensionBlocks(actionKind string)                          {}
func (r *NoOpRegistry) IncrementSideEffectErrors(kind string)                                {}
