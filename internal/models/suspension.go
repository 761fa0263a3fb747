package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// SuspensionKind discriminates the variants of SuspensionStatus.
type SuspensionKind string

const (
	SuspensionActive    SuspensionKind = "active"
	SuspensionSuspended SuspensionKind = "suspended"
	SuspensionBanned    SuspensionKind = "banned"
)

// legacyBanYear is the sentinel year older records used to encode a permanent
// ban as a far-future suspension end. It is decoded, never written.
const legacyBanYear = 9999

// SuspensionStatus is the discipline state of a user. It is one of
// Active, Suspended(until, reason) or Banned(reason). Until is only
// meaningful for the Suspended variant.
type SuspensionStatus struct {
	Kind   SuspensionKind
	Until  time.Time
	Reason string
}

// Active returns the unrestricted status.
func Active() SuspensionStatus {
	return SuspensionStatus{Kind: SuspensionActive}
}

// SuspendedUntil returns a time-bounded suspension.
func SuspendedUntil(until time.Time, reason string) SuspensionStatus {
	return SuspensionStatus{Kind: SuspensionSuspended, Until: until.UTC(), Reason: reason}
}

// Banned returns the permanent variant.
func Banned(reason string) SuspensionStatus {
	return SuspensionStatus{Kind: SuspensionBanned, Reason: reason}
}

// IsSuspended reports whether the status blocks content mutation at now.
// A suspension ends at Until: it is in force only while Until is strictly
// after now.
func (s SuspensionStatus) IsSuspended(now time.Time) bool {
	switch s.Kind {
	case SuspensionBanned:
		return true
	case SuspensionSuspended:
		return s.Until.After(now)
	default:
		return false
	}
}

// Effective collapses an elapsed suspension to Active.
func (s SuspensionStatus) Effective(now time.Time) SuspensionStatus {
	if s.Kind == SuspensionSuspended && !s.Until.After(now) {
		return Active()
	}
	return s
}

// Message is the user-facing explanation shown when a mutation is refused.
func (s SuspensionStatus) Message() string {
	switch s.Kind {
	case SuspensionBanned:
		if s.Reason != "" {
			return fmt.Sprintf("Your account has been permanently banned. Reason: %s", s.Reason)
		}
		return "Your account has been permanently banned."
	case SuspensionSuspended:
		until := s.Until.UTC().Format("Jan 2, 2006 15:04 MST")
		if s.Reason != "" {
			return fmt.Sprintf("Your account is suspended until %s. Reason: %s", until, s.Reason)
		}
		return fmt.Sprintf("Your account is suspended until %s.", until)
	default:
		return ""
	}
}

// Fields returns the persisted column values for the status.
func (s SuspensionStatus) Fields() (kind SuspensionKind, until *time.Time, reason *string) {
	switch s.Kind {
	case SuspensionSuspended:
		u := s.Until.UTC()
		r := s.Reason
		return SuspensionSuspended, &u, &r
	case SuspensionBanned:
		r := s.Reason
		return SuspensionBanned, nil, &r
	default:
		return SuspensionActive, nil, nil
	}
}

// StatusFromFields rebuilds a status from stored columns. Rows written before
// the kind column existed carry only until/reason; a sentinel year in until is
// read as a ban.
func StatusFromFields(kind string, until *time.Time, reason *string) SuspensionStatus {
	r := ""
	if reason != nil {
		r = *reason
	}
	switch SuspensionKind(kind) {
	case SuspensionBanned:
		return Banned(r)
	case SuspensionSuspended:
		if until == nil {
			return Active()
		}
		return SuspendedUntil(*until, r)
	case SuspensionActive:
		return Active()
	}
	if until == nil {
		return Active()
	}
	if until.Year() >= legacyBanYear {
		return Banned(r)
	}
	return SuspendedUntil(*until, r)
}

type suspensionJSON struct {
	State  SuspensionKind `json:"state"`
	Until  *time.Time     `json:"until,omitempty"`
	Reason string         `json:"reason,omitempty"`
}

// MarshalJSON renders the variant with only its meaningful fields.
func (s SuspensionStatus) MarshalJSON() ([]byte, error) {
	out := suspensionJSON{State: s.Kind, Reason: s.Reason}
	if out.State == "" {
		out.State = SuspensionActive
	}
	if s.Kind == SuspensionSuspended {
		u := s.Until
		out.Until = &u
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the shape produced by MarshalJSON.
func (s *SuspensionStatus) UnmarshalJSON(data []byte) error {
	var in suspensionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	reason := in.Reason
	*s = StatusFromFields(string(in.State), in.Until, &reason)
	return nil
}

// User is the subset of the user record the safety core reads and writes.
type User struct {
	ID          string           `json:"id"`
	DisplayName string           `json:"display_name"`
	Suspension  SuspensionStatus `json:"suspension"`
}
