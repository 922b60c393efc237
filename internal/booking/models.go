// internal/booking/models.go
package booking

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status is the lifecycle state of a booking. A booking starts pending,
// may be confirmed, and may be cancelled from either state. Cancelled is
// terminal; cancelled bookings no longer occupy their slot.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// Facility is read-only input to the engine; it is managed elsewhere.
type Facility struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	PricePerHour int64     `json:"price_per_hour"`
	ImageURL     string    `json:"image_url"`
	Timezone     string    `json:"timezone"`
	CreatedAt    time.Time `json:"created_at"`
}

// Location resolves the facility's IANA timezone. Slot arithmetic happens
// in facility-local wall time; storage is UTC.
func (f *Facility) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return nil, fmt.Errorf("facility %d has invalid timezone %q: %w", f.ID, f.Timezone, err)
	}
	return loc, nil
}

// OperatingWindow is the open/close range for one weekday. FacilityID is
// nil for the shared default row; a facility-specific row overrides it.
type OperatingWindow struct {
	ID         int64        `json:"id"`
	FacilityID *int64       `json:"facility_id,omitempty"`
	DayOfWeek  time.Weekday `json:"day_of_week"`
	OpenTime   string       `json:"open_time"`
	CloseTime  string       `json:"close_time"`
	IsOpen     bool         `json:"is_open"`
}

// Bounds returns the window's open and close instants for the given
// facility-local date (any instant on that date works; only Y/M/D and the
// location are used).
func (w *OperatingWindow) Bounds(date time.Time) (open, close time.Time, err error) {
	openHour, openMinute, err := parseClock(w.OpenTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("open_time: %w", err)
	}
	closeHour, closeMinute, err := parseClock(w.CloseTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("close_time: %w", err)
	}
	year, month, day := date.Date()
	open = time.Date(year, month, day, openHour, openMinute, 0, 0, date.Location())
	close = time.Date(year, month, day, closeHour, closeMinute, 0, 0, date.Location())
	return open, close, nil
}

// parseClock parses a wall-clock "HH:MM" value.
func parseClock(value string) (hour, minute int, err error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock value %q", value)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid clock value %q", value)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid clock value %q", value)
	}
	return hour, minute, nil
}

// PaymentMethod is a bank account customers transfer to. The engine only
// records a reference to one; it never moves money.
type PaymentMethod struct {
	ID            int64  `json:"id"`
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
	IsActive      bool   `json:"is_active"`
}

// Booking is a committed interval reserved against a facility. The interval
// and holder are immutable once created; only the status changes.
type Booking struct {
	ID              int64     `json:"id"`
	FacilityID      int64     `json:"facility_id"`
	UserID          *int64    `json:"user_id,omitempty"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Status          Status    `json:"status"`
	TotalPrice      int64     `json:"total_price"`
	PaymentMethodID *int64    `json:"payment_method_id,omitempty"`
	CustomerName    string    `json:"customer_name,omitempty"`
	CustomerEmail   string    `json:"customer_email,omitempty"`
	CustomerPhone   string    `json:"customer_phone,omitempty"`
	IsGuestBooking  bool      `json:"is_guest_booking"`
	GuestReference  string    `json:"guest_reference,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Overlaps reports whether the booking's interval intersects [start, end).
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.StartTime.Before(end) && b.EndTime.After(start)
}

// Active reports whether the booking still occupies its slot.
func (b *Booking) Active() bool {
	return b.Status == StatusPending || b.Status == StatusConfirmed
}

// SlotCandidate is a bookable one-hour start slot, computed fresh per query
// and never persisted.
type SlotCandidate struct {
	Time      string    `json:"time"`
	Start     time.Time `json:"start"`
	Available bool      `json:"available"`
}

// Actor identifies who requested a status transition. Authorization is the
// caller's responsibility; the engine only records the identity in logs.
type Actor struct {
	ID   string
	Role string
}

// SystemActor marks transitions performed by background jobs.
var SystemActor = Actor{ID: "system", Role: "system"}
