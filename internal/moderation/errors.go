package moderation

import (
	"errors"
	"fmt"
)

// ValidationError rejects a request before anything is changed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

var (
	// ErrReportNotFound is returned when the referenced report does not exist.
	ErrReportNotFound = errors.New("report not found")
	// ErrInProgress is returned when an action with the same idempotency key
	// is still executing.
	ErrInProgress = errors.New("action with this idempotency key is in progress")
	// ErrContentRemoval wraps failures of the content owner's delete call.
	ErrContentRemoval = errors.New("content removal failed")
)
