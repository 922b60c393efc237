// internal/booking/guard.go
package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/nyaruka/phonenumbers"
	"github.com/rs/zerolog/log"
)

// emailPattern is deliberately loose; deliverability is not this engine's
// problem.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const commitRetryBackoff = 25 * time.Millisecond

// ReserveRequest is a proposed booking. Exactly one holder must be present:
// UserID for registered users, or the three customer fields for guests.
type ReserveRequest struct {
	FacilityID      int64
	StartTime       time.Time
	EndTime         time.Time
	UserID          *int64
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	PaymentMethodID *int64
}

func (r *ReserveRequest) guest() bool {
	return r.UserID == nil
}

// Reserve validates the proposed interval against current state and either
// commits a new pending booking or rejects it. The overlap check and insert
// run in a single immediate-mode transaction, so concurrent submissions for
// the same slot serialize and exactly one wins; the advisory slot and
// duration answers are never trusted here.
//
// Transient store contention is retried a bounded number of times and then
// surfaced as a plain error; ErrSlotTaken is never retried.
func (e *Engine) Reserve(ctx context.Context, req ReserveRequest) (*Booking, error) {
	if err := e.validateHolder(&req); err != nil {
		return nil, err
	}

	facility, loc, err := e.facilityAndLocation(ctx, req.FacilityID)
	if err != nil {
		return nil, err
	}

	start := req.StartTime.In(loc)
	end := req.EndTime.In(loc)
	hours, err := e.validateInterval(start, end)
	if err != nil {
		return nil, err
	}

	window, err := e.ResolveWindow(ctx, req.FacilityID, start)
	if err != nil {
		return nil, err
	}
	if !window.IsOpen {
		return nil, ValidationError{Field: "start_time", Reason: "facility is closed on this day"}
	}
	open, close, err := window.Bounds(start)
	if err != nil {
		return nil, err
	}
	if start.Before(open) || end.After(close) {
		return nil, ValidationError{Field: "start_time", Reason: "booking is outside operating hours"}
	}

	if req.PaymentMethodID != nil {
		if err := e.checkPaymentMethod(ctx, *req.PaymentMethodID); err != nil {
			return nil, err
		}
	}

	booking := &Booking{
		FacilityID:      req.FacilityID,
		UserID:          req.UserID,
		StartTime:       start.UTC(),
		EndTime:         end.UTC(),
		Status:          StatusPending,
		TotalPrice:      facility.PricePerHour * int64(hours),
		PaymentMethodID: req.PaymentMethodID,
		CustomerName:    strings.TrimSpace(req.CustomerName),
		CustomerEmail:   strings.TrimSpace(req.CustomerEmail),
		CustomerPhone:   strings.TrimSpace(req.CustomerPhone),
		IsGuestBooking:  req.guest(),
	}

	for attempt := 0; ; attempt++ {
		created, err := e.commit(ctx, booking)
		if err == nil {
			log.Ctx(ctx).Info().
				Int64("booking_id", created.ID).
				Int64("facility_id", created.FacilityID).
				Time("start_time", created.StartTime).
				Time("end_time", created.EndTime).
				Bool("guest", created.IsGuestBooking).
				Msg("Reservation committed")
			return created, nil
		}
		if isTransient(err) && attempt < e.policy.CommitRetries {
			log.Ctx(ctx).Warn().Err(err).Int("attempt", attempt+1).
				Int64("facility_id", booking.FacilityID).
				Msg("Reservation commit contention, retrying")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(commitRetryBackoff << uint(attempt)):
			}
			continue
		}
		return nil, err
	}
}

// commit performs the atomic commit-or-reject step: re-check overlap,
// insert, all inside one write transaction.
func (e *Engine) commit(ctx context.Context, booking *Booking) (*Booking, error) {
	var created *Booking
	err := e.db.RunInTx(ctx, func(tx *sql.Tx) error {
		s := e.store.WithTx(tx)

		count, err := s.CountActiveOverlapping(ctx, booking.FacilityID, booking.StartTime, booking.EndTime)
		if err != nil {
			return fmt.Errorf("overlap check: %w", err)
		}
		if count > 0 {
			return ErrSlotTaken
		}

		b := *booking
		b.CreatedAt = e.clock.Now().UTC()

		if !b.IsGuestBooking {
			id, err := s.InsertBooking(ctx, &b)
			if err != nil {
				return fmt.Errorf("insert booking: %w", err)
			}
			b.ID = id
			created = &b
			return nil
		}

		// Guest references live under a unique constraint; resample on
		// collision instead of assuming the generator is collision-free.
		for attempt := 0; attempt < e.policy.ReferenceAttempts; attempt++ {
			reference, err := NewGuestReference()
			if err != nil {
				return err
			}
			b.GuestReference = reference
			id, err := s.InsertBooking(ctx, &b)
			if err == nil {
				b.ID = id
				created = &b
				return nil
			}
			if isReferenceCollision(err) {
				continue
			}
			return fmt.Errorf("insert booking: %w", err)
		}
		return fmt.Errorf("could not allocate a unique guest reference after %d attempts", e.policy.ReferenceAttempts)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (e *Engine) validateHolder(req *ReserveRequest) error {
	if req.FacilityID <= 0 {
		return ValidationError{Field: "facility_id", Reason: "must be a positive integer"}
	}
	if req.UserID != nil {
		if *req.UserID <= 0 {
			return ValidationError{Field: "user_id", Reason: "must be a positive integer"}
		}
		if req.CustomerName != "" || req.CustomerEmail != "" || req.CustomerPhone != "" {
			return ValidationError{Field: "user_id", Reason: "must not be combined with guest contact fields"}
		}
		return nil
	}

	name := strings.TrimSpace(req.CustomerName)
	email := strings.TrimSpace(req.CustomerEmail)
	phone := strings.TrimSpace(req.CustomerPhone)
	switch {
	case name == "":
		return ValidationError{Field: "customer_name", Reason: "is required for guest bookings"}
	case email == "":
		return ValidationError{Field: "customer_email", Reason: "is required for guest bookings"}
	case phone == "":
		return ValidationError{Field: "customer_phone", Reason: "is required for guest bookings"}
	case !emailPattern.MatchString(email):
		return ValidationError{Field: "customer_email", Reason: "must be a valid email address"}
	}

	parsed, err := phonenumbers.Parse(phone, e.policy.PhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return ValidationError{Field: "customer_phone", Reason: "must be a valid phone number"}
	}
	return nil
}

func (e *Engine) validateInterval(start, end time.Time) (int, error) {
	if !end.After(start) {
		return 0, ValidationError{Field: "end_time", Reason: "must be after start_time"}
	}
	if start.Minute() != 0 || start.Second() != 0 || start.Nanosecond() != 0 {
		return 0, ValidationError{Field: "start_time", Reason: "must start on the hour"}
	}
	duration := end.Sub(start)
	if duration%time.Hour != 0 {
		return 0, ValidationError{Field: "end_time", Reason: "must be a whole number of hours after start_time"}
	}
	hours := int(duration / time.Hour)
	if hours > e.policy.MaxDurationHours {
		return 0, ValidationError{
			Field:  "end_time",
			Reason: fmt.Sprintf("duration must not exceed %d hours", e.policy.MaxDurationHours),
		}
	}
	if start.Before(e.clock.Now()) {
		return 0, ValidationError{Field: "start_time", Reason: "must be in the future"}
	}
	return hours, nil
}

func (e *Engine) checkPaymentMethod(ctx context.Context, id int64) error {
	method, err := e.store.GetPaymentMethod(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ValidationError{Field: "payment_method_id", Reason: "unknown payment method"}
		}
		return fmt.Errorf("load payment method: %w", err)
	}
	if !method.IsActive {
		return ValidationError{Field: "payment_method_id", Reason: "payment method is not active"}
	}
	return nil
}

// isTransient reports lock contention worth retrying.
func isTransient(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code == sqlite3.ErrBusy || serr.Code == sqlite3.ErrLocked
	}
	return false
}

func isReferenceCollision(err error) bool {
	var serr sqlite3.Error
	if !errors.As(err, &serr) || serr.ExtendedCode != sqlite3.ErrConstraintUnique {
		return false
	}
	return strings.Contains(serr.Error(), "guest_reference")
}
