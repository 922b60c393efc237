// internal/booking/reference.go
package booking

import (
	"crypto/rand"
	"fmt"
)

// referenceAlphabet skips 0/O/1/I so references survive being read over the
// phone.
const referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const referenceLength = 8

// NewGuestReference returns a short, unguessable, uppercase alphanumeric
// code. Uniqueness is not guaranteed here; the caller resamples on a
// unique-constraint violation.
func NewGuestReference() (string, error) {
	buf := make([]byte, referenceLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate guest reference: %w", err)
	}
	for i, b := range buf {
		buf[i] = referenceAlphabet[int(b)%len(referenceAlphabet)]
	}
	return string(buf), nil
}
