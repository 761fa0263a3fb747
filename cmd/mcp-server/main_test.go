package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/patrickwarner/trustsafety/internal/api"
	"github.com/patrickwarner/trustsafety/internal/content"
	"github.com/patrickwarner/trustsafety/internal/db"
	"github.com/patrickwarner/trustsafety/internal/escalation"
	"github.com/patrickwarner/trustsafety/internal/models"
	"github.com/patrickwarner/trustsafety/internal/moderation"
	"github.com/patrickwarner/trustsafety/internal/notify"
	"github.com/patrickwarner/trustsafety/internal/suspension"
)

func newTools(t *testing.T) (*moderatorTools, *db.MemoryStore) {
	t.Helper()
	store := db.NewMemoryStore()
	logger := zap.NewNop()
	return &moderatorTools{
		moderatorID: "mod-1",
		store:       store,
		queue:       api.NewQueue(store, content.Unavailable{}, nil, logger),
		ledger:      escalation.NewLedger(store, escalation.DefaultPolicy()),
		guard:       suspension.NewGuard(store, nil, logger),
		executor:    moderation.NewExecutor(store, content.Unavailable{}, notify.NewLogDispatcher(logger)),
		logger:      logger,
	}, store
}

func TestQueueTool(t *testing.T) {
	tools, store := newTools(t)
	r := models.Report{ID: "r1", ReporterID: "u1", Content: models.ContentRef{Type: models.ContentTypeComment, ID: "c1"}, Reason: models.ReasonSpam, Status: models.ReportPending}
	require.NoError(t, store.InsertReport(context.Background(), &r))

	_, out, err := tools.Queue(context.Background(), nil, QueueInput{})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "r1", out.Items[0].Report.ID)
}

func TestTakeActionAttributesModerator(t *testing.T) {
	tools, _ := newTools(t)
	ctx := context.Background()

	_, out, err := tools.TakeAction(ctx, nil, ActionInput{Action: "suspend", TargetUserID: "u2", Days: 7, Notes: "spam"})
	require.NoError(t, err)
	assert.Equal(t, "mod-1", out.Action.ModeratorID)

	_, review, err := tools.ReviewUser(ctx, nil, UserInput{UserID: "u2"})
	require.NoError(t, err)
	assert.Equal(t, models.SuspensionSuspended, review.SuspensionState)
	assert.Equal(t, 1, review.Suggestion.ViolationCount)
	assert.Len(t, review.Actions, 1)
}

func TestTakeActionRejectsInvalid(t *testing.T) {
	tools, store := newTools(t)
	_, _, err := tools.TakeAction(context.Background(), nil, ActionInput{Action: "ban", TargetUserID: "u2"})
	var verr *moderation.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 0, store.ActionCount())

	_, _, err = tools.ReviewUser(context.Background(), nil, UserInput{})
	assert.Error(t, err)
}
