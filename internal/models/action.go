package models

import "time"

// ActionType is the kind of moderation decision recorded in the audit log.
type ActionType string

const (
	ActionWarn           ActionType = "warn"
	ActionRemoveContent  ActionType = "remove_content"
	ActionSuspend        ActionType = "suspend"
	ActionBan            ActionType = "ban"
	ActionDismiss        ActionType = "dismiss"
	ActionLiftSuspension ActionType = "lift_suspension"
)

// ViolationActionTypes are the action types that count towards a user's
// violation history.
var ViolationActionTypes = []ActionType{ActionWarn, ActionSuspend, ActionBan}

// IsViolation reports whether the action counts as a violation.
func (a ActionType) IsViolation() bool {
	for _, v := range ViolationActionTypes {
		if a == v {
			return true
		}
	}
	return false
}

// ModerationAction is an append-only audit record. Nothing updates or
// deletes a stored action.
type ModerationAction struct {
	ID           string      `json:"id"`
	ModeratorID  string      `json:"moderator_id"`
	TargetUserID string      `json:"target_user_id"`
	Type         ActionType  `json:"action_type"`
	ReportID     *string     `json:"report_id,omitempty"`
	Content      *ContentRef `json:"content,omitempty"`
	Notes        string      `json:"notes,omitempty"`
	Days         int         `json:"days,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}
