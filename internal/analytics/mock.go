package analytics

import (
	"context"
	"sync"

	"github.com/patrickwarner/trustsafety/internal/models"
)

var _ AnalyticsService = (*MockAnalytics)(nil)

// MockAnalytics keeps recorded events in memory for tests.
type MockAnalytics struct {
	mu     sync.Mutex
	events []Event
	// Err, when set, is returned from every call after the event is recorded.
	Err error
}

// NewMockAnalytics creates a new mock analytics instance
func NewMockAnalytics() *MockAnalytics {
	return &MockAnalytics{}
}

// RecordEvent stores ev.
func (m *MockAnalytics) RecordEvent(ctx context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return m.Err
}

func (m *MockAnalytics) RecordScreening(ctx context.Context, actorID, outcome, reason string) error {
	return m.RecordEvent(ctx, ScreeningEvent(actorID, outcome, reason))
}

func (m *MockAnalytics) RecordReport(ctx context.Context, r models.Report, client ClientContext) error {
	return m.RecordEvent(ctx, ReportEvent(r, client))
}

func (m *MockAnalytics) RecordAction(ctx context.Context, act models.ModerationAction) error {
	return m.RecordEvent(ctx, ActionEvent(act))
}

// Events returns a copy of the recorded events.
func (m *MockAnalytics) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// EventsOfType returns recorded events with the given type.
func (m *MockAnalytics) EventsOfType(eventType string) []Event {
	var out []Event
	for _, ev := range m.Events() {
		if ev.EventType == eventType {
			out = append(out, ev)
		}
	}
	return out
}
