package db

import (
	"context"
	"errors"
	"time"

	"github.com/patrickwarner/trustsafety/internal/models"
)

// ErrReportResolved is returned when an action tries to resolve a report that
// is already actioned or dismissed.
var ErrReportResolved = errors.New("report already resolved")

// ActionCommit is the unit of work written by one moderation action. The
// report resolution, suspension change and audit row are applied together or
// not at all; the audit row is always written last.
type ActionCommit struct {
	Action models.ModerationAction
	// Suspension, when set, replaces the target user's suspension status.
	Suspension *models.SuspensionStatus
	// ReportStatus is applied to Action.ReportID when both are set.
	ReportStatus models.ReportStatus
	ResolvedAt   time.Time
}

// Store is the persistence surface of the safety core. Moderation actions
// can only be inserted through CommitAction; nothing updates or deletes them.
type Store interface {
	// Users
	GetUser(ctx context.Context, id string) (models.User, error)
	UpsertUser(ctx context.Context, u models.User) error

	// Reports
	InsertReport(ctx context.Context, r *models.Report) error
	GetReport(ctx context.Context, id string) (models.Report, error)
	ListPendingReports(ctx context.Context, limit int) ([]models.Report, error)
	CountOpenReports(ctx context.Context, ref models.ContentRef) (int, error)

	// Moderation actions
	CommitAction(ctx context.Context, c ActionCommit) error
	GetAction(ctx context.Context, id string) (models.ModerationAction, error)
	ListActions(ctx context.Context, targetUserID string, limit int) ([]models.ModerationAction, error)
	CountActions(ctx context.Context, targetUserID string, types []models.ActionType) (int, error)

	// Report reason catalog
	LoadReportReasons(ctx context.Context) ([]models.ReasonInfo, error)
}

// DefaultReportReasons seeds the report_reasons table.
var DefaultReportReasons = []models.ReasonInfo{
	{Code: models.ReasonSpam, DisplayName: "Spam", Description: "Unsolicited promotion or repetitive content", Severity: "low"},
	{Code: models.ReasonHarassment, DisplayName: "Harassment", Description: "Targets or intimidates another person", Severity: "high"},
	{Code: models.ReasonImpersonation, DisplayName: "Impersonation", Description: "Pretends to be someone else", Severity: "medium"},
	{Code: models.ReasonInappropriateImage, DisplayName: "Inappropriate image", Description: "Image is explicit, violent or otherwise unsuitable", Severity: "high"},
	{Code: models.ReasonOther, DisplayName: "Other", Description: "Other issue", Severity: "medium"},
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
