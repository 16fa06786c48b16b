package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/travel-availability/internal/model"
)

// Failures the unavailability manager reports.  Handlers map them onto
// status codes; anything else is an internal error.
var (
	ErrInvalidRange     = errors.New("end datetime must be after start datetime")
	ErrConflict         = errors.New("overlapping unavailability period exists for this reference")
	ErrNotFound         = errors.New("unavailability not found")
	ErrInvalidReference = errors.New("invalid reference")
)

// ConflictError carries the stored intervals that blocked a write.  It
// matches ErrConflict under errors.Is.
type ConflictError struct {
	Key       model.ReferenceKey
	Conflicts []model.Unavailability
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s (%s, %d conflicting)", ErrConflict.Error(), e.Key, len(e.Conflicts))
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// ReferenceError explains why a reference is invalid.  It matches
// ErrInvalidReference under errors.Is.
type ReferenceError struct {
	Field  string
	Reason string
}

func (e *ReferenceError) Error() string { return e.Field + ": " + e.Reason }

func (e *ReferenceError) Is(target error) bool { return target == ErrInvalidReference }
