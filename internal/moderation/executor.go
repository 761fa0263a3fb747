// Package moderation applies moderator decisions: it changes a user's
// suspension status, resolves reports and appends the audit trail.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/patrickwarner/trustsafety/internal/analytics"
	"github.com/patrickwarner/trustsafety/internal/content"
	"github.com/patrickwarner/trustsafety/internal/db"
	"github.com/patrickwarner/trustsafety/internal/models"
	"github.com/patrickwarner/trustsafety/internal/notify"
	"github.com/patrickwarner/trustsafety/internal/observability"
)

// MaxSuspensionDays bounds a single suspension.
const MaxSuspensionDays = 3650

// Request carries a moderator's decision. Which fields are required depends
// on the action.
type Request struct {
	ModeratorID    string             `json:"-"`
	TargetUserID   string             `json:"target_user_id"`
	ReportID       string             `json:"report_id,omitempty"`
	Content        *models.ContentRef `json:"content,omitempty"`
	Notes          string             `json:"notes,omitempty"`
	Days           int                `json:"days,omitempty"`
	IdempotencyKey string             `json:"-"`
}

// Executor runs moderation actions.
type Executor struct {
	store     db.Store
	remover   content.Remover
	notifier  notify.Dispatcher
	keys      KeyStore
	analytics analytics.AnalyticsService
	metrics   observability.MetricsRegistry
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// Option customises an Executor.
type Option func(*Executor)

// WithKeyStore enables idempotency keys.
func WithKeyStore(keys KeyStore) Option {
	return func(e *Executor) { e.keys = keys }
}

// WithAnalytics records executed actions as analytics events.
func WithAnalytics(a analytics.AnalyticsService) Option {
	return func(e *Executor) { e.analytics = a }
}

// WithMetrics sets the metrics registry.
func WithMetrics(m observability.MetricsRegistry) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// NewExecutor creates an executor.
func NewExecutor(store db.Store, remover content.Remover, notifier notify.Dispatcher, opts ...Option) *Executor {
	e := &Executor{
		store:    store,
		remover:  remover,
		notifier: notifier,
		metrics:  observability.NewNoOpRegistry(),
		logger:   zap.NewNop(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute dispatches to the operation for typ.
func (e *Executor) Execute(ctx context.Context, typ models.ActionType, req Request) (models.ModerationAction, error) {
	switch typ {
	case models.ActionDismiss:
		return e.Dismiss(ctx, req)
	case models.ActionRemoveContent:
		return e.RemoveContent(ctx, req)
	case models.ActionWarn:
		return e.Warn(ctx, req)
	case models.ActionSuspend:
		return e.Suspend(ctx, req)
	case models.ActionBan:
		return e.Ban(ctx, req)
	case models.ActionLiftSuspension:
		return e.LiftSuspension(ctx, req)
	default:
		return models.ModerationAction{}, invalid("action_type", fmt.Sprintf("unknown action %q", typ))
	}
}

// Dismiss closes a report without penalising anyone.
func (e *Executor) Dismiss(ctx context.Context, req Request) (models.ModerationAction, error) {
	return e.run(ctx, models.ActionDismiss, req)
}

// RemoveContent deletes the reported content through its owner and marks the
// report actioned. The content reference defaults to the report's. If the
// report is resolved by someone else while the owner deletes, the removal is
// still recorded and the report keeps the other resolution.
func (e *Executor) RemoveContent(ctx context.Context, req Request) (models.ModerationAction, error) {
	return e.run(ctx, models.ActionRemoveContent, req)
}

// Warn records a warning and notifies the user.
func (e *Executor) Warn(ctx context.Context, req Request) (models.ModerationAction, error) {
	return e.run(ctx, models.ActionWarn, req)
}

// Suspend sets the user's suspension to end req.Days from now, replacing any
// existing suspension or ban.
func (e *Executor) Suspend(ctx context.Context, req Request) (models.ModerationAction, error) {
	return e.run(ctx, models.ActionSuspend, req)
}

// Ban suspends the user permanently.
func (e *Executor) Ban(ctx context.Context, req Request) (models.ModerationAction, error) {
	return e.run(ctx, models.ActionBan, req)
}

// LiftSuspension returns the user to active whatever their current status.
// Lifting an active user still writes an audit record.
func (e *Executor) LiftSuspension(ctx context.Context, req Request) (models.ModerationAction, error) {
	return e.run(ctx, models.ActionLiftSuspension, req)
}

func validate(typ models.ActionType, req Request) error {
	if strings.TrimSpace(req.ModeratorID) == "" {
		return invalid("moderator_id", "required")
	}
	if strings.TrimSpace(req.TargetUserID) == "" {
		return invalid("target_user_id", "required")
	}
	switch typ {
	case models.ActionDismiss:
		if req.ReportID == "" {
			return invalid("report_id", "required to dismiss")
		}
	case models.ActionRemoveContent:
		if req.ReportID == "" && req.Content == nil {
			return invalid("content", "a report or content reference is required")
		}
	case models.ActionWarn, models.ActionBan:
		if strings.TrimSpace(req.Notes) == "" {
			return invalid("notes", "required")
		}
	case models.ActionSuspend:
		if strings.TrimSpace(req.Notes) == "" {
			return invalid("notes", "required")
		}
		if req.Days < 1 || req.Days > MaxSuspensionDays {
			return invalid("days", fmt.Sprintf("must be between 1 and %d", MaxSuspensionDays))
		}
	case models.ActionLiftSuspension:
		if req.ReportID != "" {
			return invalid("report_id", "not accepted when lifting a suspension")
		}
	}
	if req.Content != nil {
		if err := req.Content.Validate(); err != nil {
			return invalid("content", err.Error())
		}
	}
	if typ != models.ActionSuspend && req.Days != 0 {
		return invalid("days", "only accepted when suspending")
	}
	return nil
}

// run validates, claims the idempotency key, performs the content removal if
// any and commits. Nothing is written if any step before the commit fails.
func (e *Executor) run(ctx context.Context, typ models.ActionType, req Request) (models.ModerationAction, error) {
	ctx, span := observability.Tracer("moderation").Start(ctx, "moderation."+string(typ))
	defer span.End()
	span.SetAttributes(
		attribute.String("moderation.action", string(typ)),
		attribute.String("moderation.target_user_id", req.TargetUserID),
	)

	if err := validate(typ, req); err != nil {
		return models.ModerationAction{}, err
	}

	key := ""
	if req.IdempotencyKey != "" && e.keys != nil {
		key = req.ModeratorID + ":" + req.IdempotencyKey
		prior, claimed, err := e.keys.Claim(ctx, key)
		switch {
		case err != nil:
			e.logger.Warn("idempotency store unavailable, executing without key", zap.Error(err))
			key = ""
		case prior != "":
			act, err := e.store.GetAction(ctx, prior)
			if err != nil {
				return models.ModerationAction{}, fmt.Errorf("load prior action: %w", err)
			}
			e.logger.Info("duplicate moderation request, returning prior action",
				zap.String("action_id", act.ID),
				zap.String("idempotency_key", req.IdempotencyKey))
			return act, nil
		case !claimed:
			return models.ModerationAction{}, ErrInProgress
		}
	}

	act, err := e.apply(ctx, typ, req)
	if err != nil {
		if key != "" {
			if rerr := e.keys.Release(ctx, key); rerr != nil {
				e.logger.Warn("release idempotency key", zap.Error(rerr))
			}
		}
		return models.ModerationAction{}, err
	}
	if key != "" {
		if err := e.keys.Complete(ctx, key, act.ID); err != nil {
			e.logger.Warn("complete idempotency key", zap.Error(err))
		}
	}

	e.afterCommit(ctx, act)
	return act, nil
}

func (e *Executor) apply(ctx context.Context, typ models.ActionType, req Request) (models.ModerationAction, error) {
	now := e.now().UTC()
	act := models.ModerationAction{
		ID:           e.newID(),
		ModeratorID:  req.ModeratorID,
		TargetUserID: req.TargetUserID,
		Type:         typ,
		Content:      req.Content,
		Notes:        strings.TrimSpace(req.Notes),
		Days:         req.Days,
		CreatedAt:    now,
	}
	commit := db.ActionCommit{Action: act, ResolvedAt: now}

	if req.ReportID != "" {
		report, err := e.store.GetReport(ctx, req.ReportID)
		if errors.Is(err, models.ErrNotFound) {
			return models.ModerationAction{}, ErrReportNotFound
		}
		if err != nil {
			return models.ModerationAction{}, fmt.Errorf("load report: %w", err)
		}
		if !report.Status.Open() {
			return models.ModerationAction{}, db.ErrReportResolved
		}
		id := report.ID
		commit.Action.ReportID = &id
		if commit.Action.Content == nil {
			ref := report.Content
			commit.Action.Content = &ref
		}
		commit.ReportStatus = models.ReportActioned
		if typ == models.ActionDismiss {
			commit.ReportStatus = models.ReportDismissed
		}
	}

	switch typ {
	case models.ActionSuspend:
		st := models.SuspendedUntil(now.AddDate(0, 0, req.Days), commit.Action.Notes)
		commit.Suspension = &st
	case models.ActionBan:
		st := models.Banned(commit.Action.Notes)
		commit.Suspension = &st
	case models.ActionLiftSuspension:
		st := models.Active()
		commit.Suspension = &st
	case models.ActionRemoveContent:
		// the owner must finish deleting before the action counts as done
		if err := e.remover.Remove(ctx, *commit.Action.Content); err != nil {
			e.metrics.IncrementSideEffectErrors("content_removal")
			return models.ModerationAction{}, fmt.Errorf("%w: %v", ErrContentRemoval, err)
		}
	}

	err := e.store.CommitAction(ctx, commit)
	if errors.Is(err, db.ErrReportResolved) && typ == models.ActionRemoveContent {
		// the content is already gone; record the removal without touching
		// the report another moderator resolved meanwhile
		e.logger.Warn("report resolved during content removal, recording action only",
			zap.String("report_id", *commit.Action.ReportID),
			zap.String("action_id", commit.Action.ID))
		commit.ReportStatus = ""
		err = e.store.CommitAction(ctx, commit)
	}
	if err != nil {
		if errors.Is(err, db.ErrReportResolved) {
			return models.ModerationAction{}, db.ErrReportResolved
		}
		if errors.Is(err, models.ErrNotFound) {
			return models.ModerationAction{}, ErrReportNotFound
		}
		return models.ModerationAction{}, fmt.Errorf("commit %s: %w", typ, err)
	}

	e.logger.Info("moderation action committed",
		zap.String("action_id", commit.Action.ID),
		zap.String("action_type", string(typ)),
		zap.String("moderator_id", commit.Action.ModeratorID),
		zap.String("target_user_id", commit.Action.TargetUserID))
	return commit.Action, nil
}

// afterCommit emits best-effort side effects. Failures are logged and
// counted, never returned.
func (e *Executor) afterCommit(ctx context.Context, act models.ModerationAction) {
	e.metrics.IncrementModerationActions(string(act.Type))

	if n, ok := notificationFor(act); ok && e.notifier != nil {
		if err := e.notifier.Dispatch(ctx, n); err != nil {
			e.metrics.IncrementSideEffectErrors("notification")
			e.logger.Warn("notification dispatch failed",
				zap.Error(err),
				zap.String("action_id", act.ID),
				zap.String("user_id", act.TargetUserID))
		}
	}

	if e.analytics != nil {
		if err := e.analytics.RecordAction(ctx, act); err != nil && !errors.Is(err, analytics.ErrUnavailable) {
			e.logger.Warn("record action event", zap.Error(err))
		}
	}
}

func notificationFor(act models.ModerationAction) (models.NotificationIntent, bool) {
	n := models.NotificationIntent{
		UserID:    act.TargetUserID,
		CreatedAt: act.CreatedAt,
		Data:      map[string]any{"action_id": act.ID},
	}
	if act.Notes != "" {
		n.Data["reason"] = act.Notes
	}
	switch act.Type {
	case models.ActionWarn:
		n.Type = models.NotificationWarning
	case models.ActionSuspend:
		n.Type = models.NotificationSuspended
		n.Data["days"] = act.Days
		n.Data["until"] = act.CreatedAt.AddDate(0, 0, act.Days)
	case models.ActionBan:
		n.Type = models.NotificationBanned
	case models.ActionLiftSuspension:
		n.Type = models.NotificationSuspensionLifted
	default:
		return models.NotificationIntent{}, false
	}
	return n, true
}
