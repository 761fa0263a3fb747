package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/trustsafety/internal/content"
	"github.com/patrickwarner/trustsafety/internal/db"
	"github.com/patrickwarner/trustsafety/internal/models"
	"github.com/patrickwarner/trustsafety/internal/reports"
)

type brokenPreviewer struct{}

func (brokenPreviewer) Preview(context.Context, models.ContentRef) (content.Preview, error) {
	return content.Preview{}, errors.New("timeout")
}

func seedReports(t *testing.T, store *db.MemoryStore, refs ...models.ContentRef) {
	t.Helper()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, ref := range refs {
		r := models.Report{
			ID:         string(rune('a' + i)),
			ReporterID: "reporter",
			Content:    ref,
			Reason:     models.ReasonOther,
			Status:     models.ReportPending,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.InsertReport(context.Background(), &r))
	}
}

func TestQueueToleratesPreviewFailures(t *testing.T) {
	store := db.NewMemoryStore()
	profile := models.ContentRef{Type: models.ContentTypeUser, ID: "troll"}
	seedReports(t, store, models.ContentRef{Type: models.ContentTypeComment, ID: "c1"}, profile)
	require.NoError(t, store.UpsertUser(context.Background(), models.User{ID: "troll", DisplayName: "Troll"}))

	q := NewQueue(store, brokenPreviewer{}, reports.NewCatalog(store), nil)
	items, err := q.Pending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "a", items[0].Report.ID)
	assert.Empty(t, items[0].Preview)
	assert.Equal(t, 1, items[0].PendingReports)

	assert.Equal(t, "troll", items[1].TargetUserID, "profile reports target the profile owner")
	assert.Equal(t, "Troll", items[1].TargetUserName)
}

func TestQueueMarksDeletedContent(t *testing.T) {
	store := db.NewMemoryStore()
	seedReports(t, store, models.ContentRef{Type: models.ContentTypePost, ID: "gone"})

	q := NewQueue(store, &stubContent{previews: map[models.ContentRef]content.Preview{}}, nil, nil)
	items, err := q.Pending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "[content deleted]", items[0].Preview)
	assert.Equal(t, "other", items[0].ReasonLabel)
}

func TestQueueLimit(t *testing.T) {
	store := db.NewMemoryStore()
	ref := models.ContentRef{Type: models.ContentTypePost, ID: "p"}
	seedReports(t, store, ref, ref, ref)

	q := NewQueue(store, nil, nil, nil)
	items, err := q.Pending(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 3, items[0].PendingReports)
}
