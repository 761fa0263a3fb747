package models

import (
	"errors"
	"fmt"
	"strings"
)

// ContentType identifies the kind of user-generated entity a reference points to.
type ContentType string

const (
	ContentTypePost    ContentType = "post"
	ContentTypeComment ContentType = "comment"
	ContentTypeUser    ContentType = "user"
	ContentTypeGoal    ContentType = "goal"
)

// ErrInvalidContentRef is returned when a content reference is missing or malformed.
var ErrInvalidContentRef = errors.New("invalid content reference")

// Valid reports whether t is one of the known content types.
func (t ContentType) Valid() bool {
	switch t {
	case ContentTypePost, ContentTypeComment, ContentTypeUser, ContentTypeGoal:
		return true
	}
	return false
}

// ContentRef is an opaque (type, id) pair. The body of the referenced content
// is owned by other services.
type ContentRef struct {
	Type ContentType `json:"content_type"`
	ID   string      `json:"content_id"`
}

// Validate checks that the reference names a known type and a non-empty id.
func (c ContentRef) Validate() error {
	if !c.Type.Valid() {
		return fmt.Errorf("%w: unknown content type %q", ErrInvalidContentRef, c.Type)
	}
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: content id required", ErrInvalidContentRef)
	}
	return nil
}

func (c ContentRef) String() string {
	return string(c.Type) + ":" + c.ID
}
