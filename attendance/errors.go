/*
errors.go - Error types for the attendance engine

PURPOSE:
  All error types in one place. The API layer maps them to status codes:

    ValidationError    -> 400
    NotFoundError      -> 404
    ConflictError      -> 409 (carries the conflicting dates)
    PartialWriteError  -> 500 (carries the dates already written)

  Store implementations wrap driver errors with context and return
  ErrDuplicateDay when the one-record-per-day index rejects a write.

SEE ALSO:
  - api/handlers.go: writeServiceError
  - store.go: Store contract
*/
package attendance

import (
	"errors"
	"fmt"
	"strings"

	"github.com/warp/attendance/calendar"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all input validation failures.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a user or record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write would collide with existing records.
	ErrConflict = errors.New("conflict")

	// ErrDuplicateDay is returned by stores when a second record for the same
	// user and day is inserted.
	ErrDuplicateDay = errors.New("record already exists for this day")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError describes invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError names the missing resource.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError lists the days that already hold a conflicting record.
type ConflictError struct {
	Message string
	Dates   []calendar.Day
}

func (e *ConflictError) Error() string {
	if len(e.Dates) == 0 {
		return e.Message
	}
	dates := make([]string, len(e.Dates))
	for i, d := range e.Dates {
		dates[i] = d.String()
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(dates, ", "))
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// PartialWriteError reports a multi-day write that failed part way through
// on a store without transactions.
type PartialWriteError struct {
	Written []calendar.Day
	Err     error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial write: %d day(s) written before failure: %v", len(e.Written), e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrConflict)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
