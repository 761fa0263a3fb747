package models

import "time"

// Notification types emitted by moderation actions.
const (
	NotificationWarning          = "moderation_warning"
	NotificationSuspended        = "account_suspended"
	NotificationBanned           = "account_banned"
	NotificationSuspensionLifted = "suspension_lifted"
)

// NotificationIntent asks the delivery collaborator to notify a user.
// Delivery is best effort and may repeat.
type NotificationIntent struct {
	UserID    string         `json:"user_id"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// QueueItem is the moderator queue projection of a pending report.
type QueueItem struct {
	Report         Report `json:"report"`
	ReasonLabel    string `json:"reason_label"`
	ReporterName   string `json:"reporter_name,omitempty"`
	TargetUserID   string `json:"target_user_id,omitempty"`
	TargetUserName string `json:"target_user_name,omitempty"`
	Preview        string `json:"preview,omitempty"`
	PendingReports int    `json:"pending_reports_for_content"`
}
