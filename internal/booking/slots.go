// internal/booking/slots.go
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DaySchedule is the engine's answer to "what can I book on this date".
// Closed and Reason let callers show a closed day and an unconfigured day
// the same way while keeping the diagnostics distinct.
type DaySchedule struct {
	Date   time.Time       `json:"date"`
	Closed bool            `json:"closed"`
	Reason string          `json:"reason,omitempty"`
	Slots  []SlotCandidate `json:"slots"`
}

// Slots computes the bookable start slots for a facility on a calendar
// date. The date is interpreted in the facility's timezone. The result is
// advisory: it is recomputed from a snapshot on every call and the guard
// re-validates at commit time.
func (e *Engine) Slots(ctx context.Context, facilityID int64, date time.Time) (*DaySchedule, error) {
	_, loc, err := e.facilityAndLocation(ctx, facilityID)
	if err != nil {
		return nil, err
	}

	year, month, day := date.Date()
	localDate := time.Date(year, month, day, 0, 0, 0, 0, loc)

	window, err := e.ResolveWindow(ctx, facilityID, localDate)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return &DaySchedule{Date: localDate, Closed: true, Reason: ErrNotConfigured.Error()}, nil
		}
		return nil, err
	}
	if !window.IsOpen {
		return &DaySchedule{Date: localDate, Closed: true, Reason: ErrClosed.Error()}, nil
	}

	existing, err := e.store.ListActiveBookings(ctx, facilityID, localDate, localDate.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}

	slots, err := GenerateSlots(window, localDate, existing, e.clock.Now().In(loc), e.policy.LeadTime)
	if err != nil {
		return nil, err
	}
	return &DaySchedule{Date: localDate, Slots: slots}, nil
}

// GenerateSlots turns an operating window, the existing non-cancelled
// bookings for the date, and "now" into hourly start candidates. Pure
// function over its inputs.
//
// Same-day slots earlier than now truncated to the hour plus the lead time
// are excluded entirely, not merely marked unavailable: a slot stays
// bookable until the top of the current hour plus the lead time. Remaining
// slots are unavailable when their start instant falls inside an existing
// booking's interval.
func GenerateSlots(window *OperatingWindow, date time.Time, existing []Booking, now time.Time, leadTime time.Duration) ([]SlotCandidate, error) {
	if !window.IsOpen {
		return nil, nil
	}
	open, close, err := window.Bounds(date)
	if err != nil {
		return nil, err
	}

	sameDay := sameDate(date, now)
	// Round down to the local wall-clock hour. Truncate works on absolute
	// time and lands mid-hour in fractional-offset zones.
	hourStart := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	earliest := hourStart.Add(leadTime)

	var slots []SlotCandidate
	for hour := open.Hour(); hour < close.Hour(); hour++ {
		start := time.Date(date.Year(), date.Month(), date.Day(), hour, 0, 0, 0, date.Location())
		if sameDay && start.Before(earliest) {
			continue
		}

		available := true
		for i := range existing {
			b := &existing[i]
			if !start.Before(b.StartTime.In(date.Location())) && start.Before(b.EndTime.In(date.Location())) {
				available = false
				break
			}
		}

		slots = append(slots, SlotCandidate{
			Time:      start.Format("15:04"),
			Start:     start,
			Available: available,
		})
	}
	return slots, nil
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}
