// internal/booking/status.go
package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// SetStatus applies a status transition on behalf of the given actor.
// Allowed transitions: pending→confirmed, pending→cancelled,
// confirmed→cancelled. Cancelling an already-cancelled booking is an
// idempotent no-op. Everything else is a validation error. Who may act is
// the caller's auth layer's problem; the actor is only logged here.
func (e *Engine) SetStatus(ctx context.Context, id int64, next Status, actor Actor) (*Booking, error) {
	if !next.Valid() {
		return nil, ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", next)}
	}
	if next == StatusPending {
		return nil, ValidationError{Field: "status", Reason: "bookings cannot return to pending"}
	}

	var updated *Booking
	err := e.db.RunInTx(ctx, func(tx *sql.Tx) error {
		s := e.store.WithTx(tx)

		current, err := s.GetBooking(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("load booking: %w", err)
		}

		if current.Status == next {
			if next == StatusCancelled {
				// Idempotent: same terminal state, no error.
				updated = current
				return nil
			}
			return ValidationError{Field: "status", Reason: fmt.Sprintf("booking is already %s", next)}
		}
		if !transitionAllowed(current.Status, next) {
			return ValidationError{
				Field:  "status",
				Reason: fmt.Sprintf("cannot change a %s booking to %s", current.Status, next),
			}
		}

		rows, err := s.UpdateBookingStatus(ctx, id, current.Status, next)
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("booking %d changed concurrently", id)
		}
		current.Status = next
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().
		Int64("booking_id", id).
		Str("status", string(updated.Status)).
		Str("actor_id", actor.ID).
		Str("actor_role", actor.Role).
		Msg("Booking status updated")
	return updated, nil
}

func transitionAllowed(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusCancelled
	}
	return false
}

// ExpireStalePending cancels pending bookings whose start time passed more
// than the policy's grace period ago. Returns how many were cancelled.
// Disabled when the grace period is zero.
func (e *Engine) ExpireStalePending(ctx context.Context) (int, error) {
	if e.policy.PendingGrace <= 0 {
		return 0, nil
	}
	cutoff := e.clock.Now().Add(-e.policy.PendingGrace)

	stale, err := e.store.ListStalePending(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list stale pending bookings: %w", err)
	}

	expired := 0
	for i := range stale {
		if _, err := e.SetStatus(ctx, stale[i].ID, StatusCancelled, SystemActor); err != nil {
			// A concurrent confirm or cancel won; skip, the next run
			// re-evaluates.
			log.Ctx(ctx).Warn().Err(err).Int64("booking_id", stale[i].ID).
				Msg("Could not expire stale pending booking")
			continue
		}
		expired++
	}
	return expired, nil
}
