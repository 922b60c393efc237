// internal/booking/errors.go
package booking

import (
	"errors"
	"fmt"
)

var (
	// ErrSlotTaken means another booking won the slot between display and
	// submission. The caller should re-fetch slots, not retry blindly.
	ErrSlotTaken = errors.New("slot no longer available")

	// ErrNotFound covers both a missing booking and a guest lookup whose
	// reference/email pair does not match. Guest lookups deliberately do
	// not reveal which half of the pair was wrong.
	ErrNotFound = errors.New("booking not found")

	// ErrNotConfigured means no operating window exists for the weekday.
	// Callers treat it like a closed day but can surface the distinction.
	ErrNotConfigured = errors.New("no operating hours configured for this day")

	// ErrClosed means a window exists for the weekday but is marked not
	// open. The day is closed by configuration, not by omission.
	ErrClosed = errors.New("facility is closed on this day")

	ErrFacilityNotFound = errors.New("facility not found")
)

// ValidationError reports malformed input. It is always recoverable by the
// caller correcting the request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var verr ValidationError
	return errors.As(err, &verr)
}
