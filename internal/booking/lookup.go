// internal/booking/lookup.go
package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// GuestBooking retrieves a guest's booking by its reference code and the
// email used at booking time. Any mismatch yields ErrNotFound; the response
// never reveals whether the reference or the email was wrong.
func (e *Engine) GuestBooking(ctx context.Context, reference, email string) (*Booking, error) {
	reference = strings.ToUpper(strings.TrimSpace(reference))
	email = strings.TrimSpace(email)
	if reference == "" || email == "" {
		return nil, ErrNotFound
	}

	b, err := e.store.GetGuestBooking(ctx, reference, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("guest lookup: %w", err)
	}
	return b, nil
}

// BookingsForUser lists a registered holder's bookings, newest first.
func (e *Engine) BookingsForUser(ctx context.Context, userID int64) ([]Booking, error) {
	if userID <= 0 {
		return nil, ValidationError{Field: "user_id", Reason: "must be a positive integer"}
	}
	bookings, err := e.store.ListBookingsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user bookings: %w", err)
	}
	return bookings, nil
}

// BookingsForFacility lists every booking, cancelled included, intersecting
// [from, to) for a facility. This is the admin dashboard's read path.
func (e *Engine) BookingsForFacility(ctx context.Context, facilityID int64, from, to time.Time) ([]Booking, error) {
	if !to.After(from) {
		return nil, ValidationError{Field: "end_time", Reason: "must be after start_time"}
	}
	if _, err := e.Facility(ctx, facilityID); err != nil {
		return nil, err
	}
	bookings, err := e.store.ListBookingsForFacilityRange(ctx, facilityID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list facility bookings: %w", err)
	}
	return bookings, nil
}

// Facility returns a facility by id.
func (e *Engine) Facility(ctx context.Context, id int64) (*Facility, error) {
	facility, err := e.store.GetFacility(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFacilityNotFound
		}
		return nil, fmt.Errorf("load facility: %w", err)
	}
	return facility, nil
}

// Facilities lists all facilities, ordered by name.
func (e *Engine) Facilities(ctx context.Context) ([]Facility, error) {
	facilities, err := e.store.ListFacilities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list facilities: %w", err)
	}
	return facilities, nil
}

// PaymentMethods lists the active payment methods offered at booking time.
func (e *Engine) PaymentMethods(ctx context.Context) ([]PaymentMethod, error) {
	methods, err := e.store.ListActivePaymentMethods(ctx)
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	return methods, nil
}
