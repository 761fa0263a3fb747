package api

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/patrickwarner/trustsafety/internal/content"
	"github.com/patrickwarner/trustsafety/internal/models"
	"github.com/patrickwarner/trustsafety/internal/reports"
)

// QueueSource is the read side of the store the queue needs.
type QueueSource interface {
	ListPendingReports(ctx context.Context, limit int) ([]models.Report, error)
	CountOpenReports(ctx context.Context, ref models.ContentRef) (int, error)
	GetUser(ctx context.Context, id string) (models.User, error)
}

// Queue projects pending reports into moderator queue items. It never
// mutates anything.
type Queue struct {
	store    QueueSource
	previews content.Previewer
	catalog  *reports.Catalog
	logger   *zap.Logger
	// Concurrency bounds parallel enrichment lookups.
	Concurrency int
}

// NewQueue creates the read model. previews may be nil.
func NewQueue(store QueueSource, previews content.Previewer, catalog *reports.Catalog, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{store: store, previews: previews, catalog: catalog, logger: logger, Concurrency: 8}
}

// Pending returns up to limit enriched pending reports, oldest first. Preview
// and name lookups are best effort; only the report listing can fail.
func (q *Queue) Pending(ctx context.Context, limit int) ([]models.QueueItem, error) {
	pending, err := q.store.ListPendingReports(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending reports: %w", err)
	}
	items := make([]models.QueueItem, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(q.Concurrency, 1))
	for i, rep := range pending {
		g.Go(func() error {
			items[i] = q.enrich(gctx, rep)
			return nil
		})
	}
	_ = g.Wait()
	return items, nil
}

func (q *Queue) enrich(ctx context.Context, rep models.Report) models.QueueItem {
	item := models.QueueItem{Report: rep, ReasonLabel: string(rep.Reason)}
	if q.catalog != nil {
		item.ReasonLabel = q.catalog.DisplayName(rep.Reason)
	}
	item.ReporterName = q.displayName(ctx, rep.ReporterID)

	if rep.Content.Type == models.ContentTypeUser {
		item.TargetUserID = rep.Content.ID
	}
	if q.previews != nil {
		p, err := q.previews.Preview(ctx, rep.Content)
		switch {
		case err == nil:
			item.Preview = p.Text
			if p.OwnerID != "" {
				item.TargetUserID = p.OwnerID
			}
			item.TargetUserName = p.OwnerName
		case errors.Is(err, models.ErrNotFound):
			item.Preview = "[content deleted]"
		case errors.Is(err, content.ErrUnavailable):
		default:
			q.logger.Warn("content preview failed",
				zap.Error(err),
				zap.String("report_id", rep.ID),
				zap.String("content", rep.Content.String()))
		}
	}
	if item.TargetUserName == "" && item.TargetUserID != "" {
		item.TargetUserName = q.displayName(ctx, item.TargetUserID)
	}

	n, err := q.store.CountOpenReports(ctx, rep.Content)
	if err != nil {
		q.logger.Warn("count open reports", zap.Error(err), zap.String("report_id", rep.ID))
	}
	item.PendingReports = n
	return item
}

func (q *Queue) displayName(ctx context.Context, userID string) string {
	u, err := q.store.GetUser(ctx, userID)
	if err != nil {
		return ""
	}
	return u.DisplayName
}
