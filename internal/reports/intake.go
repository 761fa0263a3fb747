// Package reports accepts user reports about content and exposes the reason
// catalog shown to moderators.
package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/patrickwarner/trustsafety/internal/analytics"
	"github.com/patrickwarner/trustsafety/internal/models"
	"github.com/patrickwarner/trustsafety/internal/observability"
	"github.com/patrickwarner/trustsafety/internal/ratelimit"
)

// MaxDetailsLength bounds the free-text details, in characters.
const MaxDetailsLength = 1000

var (
	ErrInvalidReason  = errors.New("invalid report reason")
	ErrDetailsTooLong = fmt.Errorf("details exceed %d characters", MaxDetailsLength)
	ErrMissingActor   = errors.New("reporter id required")
)

// RateLimitedError is returned when the reporter has exhausted their
// report allowance.
type RateLimitedError struct {
	Result ratelimit.Result
}

func (e *RateLimitedError) Error() string {
	return e.Result.Message
}

// Store persists reports. db.Store implements it.
type Store interface {
	InsertReport(ctx context.Context, r *models.Report) error
}

// SuspensionChecker refuses mutations by suspended users.
// *suspension.Guard implements it.
type SuspensionChecker interface {
	Check(ctx context.Context, userID, kind string) error
}

// Submission is a user's report.
type Submission struct {
	ReporterID string
	Content    models.ContentRef
	Reason     models.ReportReason
	Details    string
	Client     analytics.ClientContext
}

// Intake validates and records reports.
type Intake struct {
	store     Store
	guard     SuspensionChecker
	limiter   ratelimit.Limiter
	analytics analytics.AnalyticsService
	metrics   observability.MetricsRegistry
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// NewIntake wires an intake. guard and an may be nil.
func NewIntake(store Store, guard SuspensionChecker, limiter ratelimit.Limiter, an analytics.AnalyticsService, metrics observability.MetricsRegistry, logger *zap.Logger) *Intake {
	if limiter == nil {
		limiter = ratelimit.AllowAll{}
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Intake{
		store:     store,
		guard:     guard,
		limiter:   limiter,
		analytics: an,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Submit records a pending report. Repeated reports of the same content are
// all kept.
func (i *Intake) Submit(ctx context.Context, s Submission) (models.Report, error) {
	ctx, span := observability.Tracer("reports").Start(ctx, "reports.Submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("report.reason", string(s.Reason)),
		attribute.String("report.content_type", string(s.Content.Type)),
	)

	if strings.TrimSpace(s.ReporterID) == "" {
		return models.Report{}, ErrMissingActor
	}
	if i.guard != nil {
		if err := i.guard.Check(ctx, s.ReporterID, string(ratelimit.KindReport)); err != nil {
			return models.Report{}, err
		}
	}
	if res := i.limiter.Check(ctx, s.ReporterID, ratelimit.KindReport); !res.Allowed {
		i.logger.Info("report rate limited",
			zap.String("reporter_id", s.ReporterID),
			zap.Duration("retry_after", res.RetryAfter))
		return models.Report{}, &RateLimitedError{Result: res}
	}
	if !s.Reason.Valid() {
		return models.Report{}, fmt.Errorf("%w: %q", ErrInvalidReason, s.Reason)
	}
	if err := s.Content.Validate(); err != nil {
		return models.Report{}, err
	}
	details := strings.TrimSpace(s.Details)
	if utf8.RuneCountInString(details) > MaxDetailsLength {
		return models.Report{}, ErrDetailsTooLong
	}

	r := models.Report{
		ID:         i.newID(),
		ReporterID: s.ReporterID,
		Content:    s.Content,
		Reason:     s.Reason,
		Details:    details,
		Status:     models.ReportPending,
		CreatedAt:  i.now().UTC(),
	}
	if err := i.store.InsertReport(ctx, &r); err != nil {
		return models.Report{}, fmt.Errorf("insert report: %w", err)
	}
	i.metrics.IncrementReports(string(r.Reason))
	i.logger.Info("report submitted",
		zap.String("report_id", r.ID),
		zap.String("reporter_id", r.ReporterID),
		zap.String("content", r.Content.String()),
		zap.String("reason", string(r.Reason)))

	if i.analytics != nil {
		if err := i.analytics.RecordReport(ctx, r, s.Client); err != nil && !errors.Is(err, analytics.ErrUnavailable) {
			i.logger.Warn("record report event", zap.Error(err))
		}
	}
	return r, nil
}
