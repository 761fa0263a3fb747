package models

import "time"

// ReportReason is the enumerated reason a user gives when reporting content.
type ReportReason string

const (
	ReasonSpam               ReportReason = "spam"
	ReasonHarassment         ReportReason = "harassment"
	ReasonImpersonation      ReportReason = "impersonation"
	ReasonInappropriateImage ReportReason = "inappropriate_image"
	ReasonOther              ReportReason = "other"
)

// ReportReasons lists every accepted reason in display order.
var ReportReasons = []ReportReason{
	ReasonSpam,
	ReasonHarassment,
	ReasonImpersonation,
	ReasonInappropriateImage,
	ReasonOther,
}

// Valid reports whether r is one of the enumerated reasons.
func (r ReportReason) Valid() bool {
	for _, v := range ReportReasons {
		if r == v {
			return true
		}
	}
	return false
}

// ReportStatus tracks a report through review.
type ReportStatus string

const (
	ReportPending   ReportStatus = "pending"
	ReportReviewed  ReportStatus = "reviewed"
	ReportActioned  ReportStatus = "actioned"
	ReportDismissed ReportStatus = "dismissed"
)

// Open reports whether a report in this status can still be resolved.
func (s ReportStatus) Open() bool {
	return s == ReportPending || s == ReportReviewed
}

// Report represents a user-submitted report about a piece of content.
// Only Status and ReviewedAt change after creation, and only through the
// moderation executor.
type Report struct {
	ID         string       `json:"id"`
	ReporterID string       `json:"reporter_id"`
	Content    ContentRef   `json:"content"`
	Reason     ReportReason `json:"reason"`
	Details    string       `json:"details,omitempty"`
	Status     ReportStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	ReviewedAt *time.Time   `json:"reviewed_at,omitempty"`
}

// ReasonInfo describes a report reason for moderator-facing displays.
type ReasonInfo struct {
	Code        ReportReason `json:"code"`
	DisplayName string       `json:"display_name"`
	Description string       `json:"description"`
	Severity    string       `json:"severity"`
}
