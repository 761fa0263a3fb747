package observability

import (
	"sync"
	"time"
)

// MockMetricsRegistry records counter increments by name and label so tests
// can assert on them.
type MockMetricsRegistry struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewMockMetricsRegistry creates an empty recording registry.
func NewMockMetricsRegistry() *MockMetricsRegistry {
	return &MockMetricsRegistry{counts: make(map[string]int)}
}

func (m *MockMetricsRegistry) inc(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[key]++
}

// Count returns how many times the named counter was incremented with label.
func (m *MockMetricsRegistry) Count(name, label string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name+"/"+label]
}

func (m *MockMetricsRegistry) IncrementRequests(endpoint, method, status string) {
	m.inc("requests/" + endpoint + ":" + status)
}
func (m *MockMetricsRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (m *MockMetricsRegistry) IncrementScreeningDecision(outcome string) {
	m.inc("screening/" + outcome)
}
func (m *MockMetricsRegistry) IncrementClassifierRequests(outcome string) {
	m.inc("classifier/" + outcome)
}
func (m *MockMetricsRegistry) RecordClassifierLatency(duration time.Duration) {}
func (m *MockMetricsRegistry) IncrementPrefilterChecks(result string) {
	m.inc("prefilter/" + result)
}
func (m *MockMetricsRegistry) IncrementRateLimitRequests(actionKind string) {
	m.inc("ratelimit_requests/" + actionKind)
}
func (m *MockMetricsRegistry) IncrementRateLimitHits(actionKind string) {
	m.inc("ratelimit_hits/" + actionKind)
}
func (m *MockMetricsRegistry) IncrementReports(reason string) {
	m.inc("reports/" + reason)
}
func (m *MockMetricsRegistry) IncrementModerationActions(actionType string) {
	m.inc("actions/" + actionType)
}
func (m *MockMetricsRegistry) IncrementSuspensionBlocks(actionKind string) {
	m.inc("suspension_blocks/" + actionKind)
}
func (m *MockMetricsRegistry) IncrementSideEffectErrors(kind string) {
	m.inc("side_effect_errors/" + kind)
}
