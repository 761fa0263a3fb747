package models

import "errors"

// ErrNotFound is returned when an entity is not found in the store.
var ErrNotFound = errors.New("entity not found")
