package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/trustsafety/internal/models"
)

func seedReport(t *testing.T, s *MemoryStore, id string, created time.Time) models.Report {
	t.Helper()
	r := models.Report{
		ID:         id,
		ReporterID: "reporter",
		Content:    models.ContentRef{Type: models.ContentTypePost, ID: "post-1"},
		Reason:     models.ReasonSpam,
		Status:     models.ReportPending,
		CreatedAt:  created,
	}
	require.NoError(t, s.InsertReport(context.Background(), &r))
	return r
}

func TestMemoryCommitActionResolvesOnce(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()
	r := seedReport(t, s, "r1", now)

	susp := models.SuspendedUntil(now.Add(72*time.Hour), "spam")
	err := s.CommitAction(ctx, ActionCommit{
		Action:       models.ModerationAction{ID: "a1", ModeratorID: "m", TargetUserID: "u", Type: models.ActionSuspend, ReportID: &r.ID, Days: 3, CreatedAt: now},
		Suspension:   &susp,
		ReportStatus: models.ReportActioned,
		ResolvedAt:   now,
	})
	require.NoError(t, err)

	got, err := s.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, models.ReportActioned, got.Status)
	require.NotNil(t, got.ReviewedAt)

	u, err := s.GetUser(ctx, "u")
	require.NoError(t, err)
	assert.True(t, u.Suspension.IsSuspended(now))

	// a second resolution changes nothing
	ban := models.Banned("again")
	err = s.CommitAction(ctx, ActionCommit{
		Action:       models.ModerationAction{ID: "a2", ModeratorID: "m", TargetUserID: "u", Type: models.ActionBan, ReportID: &r.ID, CreatedAt: now},
		Suspension:   &ban,
		ReportStatus: models.ReportActioned,
		ResolvedAt:   now,
	})
	assert.ErrorIs(t, err, ErrReportResolved)
	assert.Equal(t, 1, s.ActionCount())
	u, _ = s.GetUser(ctx, "u")
	assert.Equal(t, models.SuspensionSuspended, u.Suspension.Kind)

	missing := "nope"
	err = s.CommitAction(ctx, ActionCommit{
		Action:       models.ModerationAction{ID: "a3", TargetUserID: "u", Type: models.ActionDismiss, ReportID: &missing},
		ReportStatus: models.ReportDismissed,
	})
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, 1, s.ActionCount())
}

func TestMemoryPendingAndCounts(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seedReport(t, s, "r2", base.Add(time.Minute))
	seedReport(t, s, "r1", base)
	r3 := seedReport(t, s, "r3", base.Add(2*time.Minute))

	require.NoError(t, s.CommitAction(ctx, ActionCommit{
		Action:       models.ModerationAction{ID: "a1", TargetUserID: "u", Type: models.ActionDismiss, ReportID: &r3.ID},
		ReportStatus: models.ReportDismissed,
	}))

	pending, err := s.ListPendingReports(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "r1", pending[0].ID)
	assert.Equal(t, "r2", pending[1].ID)

	n, err := s.CountOpenReports(ctx, models.ContentRef{Type: models.ContentTypePost, ID: "post-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.CommitAction(ctx, ActionCommit{Action: models.ModerationAction{ID: "a2", TargetUserID: "u", Type: models.ActionWarn}}))
	require.NoError(t, s.CommitAction(ctx, ActionCommit{Action: models.ModerationAction{ID: "a3", TargetUserID: "other", Type: models.ActionWarn}}))

	v, err := s.CountActions(ctx, "u", models.ViolationActionTypes)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	acts, err := s.ListActions(ctx, "u", 0)
	require.NoError(t, err)
	require.Len(t, acts, 2)
	assert.Equal(t, "a2", acts[0].ID)

	_, err = s.GetUser(ctx, "ghost")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
