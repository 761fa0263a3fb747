package db

import (
	"context"
	"sort"
	"sync"

	"github.com/patrickwarner/trustsafety/internal/models"
)

// MemoryStore implements Store in process memory. It backs tests and
// STORE_BACKEND=memory.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]models.User
	reports map[string]models.Report
	actions []models.ModerationAction
	reasons []models.ReasonInfo
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store seeded with the default reasons.
func NewMemoryStore() *MemoryStore {
	reasons := make([]models.ReasonInfo, len(DefaultReportReasons))
	copy(reasons, DefaultReportReasons)
	return &MemoryStore{
		users:   make(map[string]models.User),
		reports: make(map[string]models.Report),
		reasons: reasons,
	}
}

func (m *MemoryStore) GetUser(ctx context.Context, id string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return models.User{}, models.ErrNotFound
	}
	return u, nil
}

func (m *MemoryStore) UpsertUser(ctx context.Context, u models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *MemoryStore) InsertReport(ctx context.Context, r *models.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[r.ID] = *r
	return nil
}

func (m *MemoryStore) GetReport(ctx context.Context, id string) (models.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[id]
	if !ok {
		return models.Report{}, models.ErrNotFound
	}
	return r, nil
}

// ListPendingReports returns pending reports oldest first.
func (m *MemoryStore) ListPendingReports(ctx context.Context, limit int) ([]models.Report, error) {
	m.mu.RLock()
	var out []models.Report
	for _, r := range m.reports {
		if r.Status == models.ReportPending {
			out = append(out, r)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit = clampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) CountOpenReports(ctx context.Context, ref models.ContentRef) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, r := range m.reports {
		if r.Content == ref && r.Status.Open() {
			n++
		}
	}
	return n, nil
}

// CommitAction applies c under the store lock. Nothing is written unless
// every step succeeds.
func (m *MemoryStore) CommitAction(ctx context.Context, c ActionCommit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var report models.Report
	resolve := c.Action.ReportID != nil && c.ReportStatus != ""
	if resolve {
		r, ok := m.reports[*c.Action.ReportID]
		if !ok {
			return models.ErrNotFound
		}
		if !r.Status.Open() {
			return ErrReportResolved
		}
		at := c.ResolvedAt.UTC()
		r.Status = c.ReportStatus
		r.ReviewedAt = &at
		report = r
	}

	if resolve {
		m.reports[report.ID] = report
	}
	if c.Suspension != nil {
		u := m.users[c.Action.TargetUserID]
		u.ID = c.Action.TargetUserID
		u.Suspension = *c.Suspension
		m.users[u.ID] = u
	}
	m.actions = append(m.actions, c.Action)
	return nil
}

func (m *MemoryStore) GetAction(ctx context.Context, id string) (models.ModerationAction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.actions {
		if a.ID == id {
			return a, nil
		}
	}
	return models.ModerationAction{}, models.ErrNotFound
}

// ListActions returns the target's actions newest first.
func (m *MemoryStore) ListActions(ctx context.Context, targetUserID string, limit int) ([]models.ModerationAction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	limit = clampLimit(limit)
	var out []models.ModerationAction
	for i := len(m.actions) - 1; i >= 0 && len(out) < limit; i-- {
		if m.actions[i].TargetUserID == targetUserID {
			out = append(out, m.actions[i])
		}
	}
	return out, nil
}

func (m *MemoryStore) CountActions(ctx context.Context, targetUserID string, types []models.ActionType) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, a := range m.actions {
		if a.TargetUserID != targetUserID {
			continue
		}
		for _, t := range types {
			if a.Type == t {
				n++
				break
			}
		}
	}
	return n, nil
}

func (m *MemoryStore) LoadReportReasons(ctx context.Context) ([]models.ReasonInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.ReasonInfo, len(m.reasons))
	copy(out, m.reasons)
	return out, nil
}

// SetReportReasons replaces the reason rows returned by LoadReportReasons.
func (m *MemoryStore) SetReportReasons(reasons []models.ReasonInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reasons = append([]models.ReasonInfo(nil), reasons...)
}

// ActionCount returns the total number of stored actions.
func (m *MemoryStore) ActionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.actions)
}
