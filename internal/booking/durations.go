// internal/booking/durations.go
package booking

import (
	"context"
	"fmt"
	"time"
)

// Durations computes the valid booking lengths, in whole hours, for a
// chosen start slot. Ascending order. Advisory only: the guard re-derives
// validity at commit time, so a stale answer here costs the caller a
// conflict error, never a double booking.
func (e *Engine) Durations(ctx context.Context, facilityID int64, start time.Time) ([]int, error) {
	_, loc, err := e.facilityAndLocation(ctx, facilityID)
	if err != nil {
		return nil, err
	}
	localStart := start.In(loc)

	window, err := e.ResolveWindow(ctx, facilityID, localStart)
	if err != nil {
		return nil, err
	}
	if !window.IsOpen {
		return nil, ErrClosed
	}

	dayStart := time.Date(localStart.Year(), localStart.Month(), localStart.Day(), 0, 0, 0, 0, loc)
	existing, err := e.store.ListActiveBookings(ctx, facilityID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}

	return AvailableDurations(window, localStart, existing, e.policy.MaxDurationHours)
}

// AvailableDurations accepts a duration d when start+d hours stays within
// the operating window and [start, start+d h) intersects no existing
// booking. The cap is policy, not a physical constraint.
func AvailableDurations(window *OperatingWindow, start time.Time, existing []Booking, maxHours int) ([]int, error) {
	_, close, err := window.Bounds(start)
	if err != nil {
		return nil, err
	}

	var durations []int
	for d := 1; d <= maxHours; d++ {
		end := start.Add(time.Duration(d) * time.Hour)
		if end.After(close) {
			break
		}

		overlap := false
		for i := range existing {
			if existing[i].Overlaps(start, end) {
				overlap = true
				break
			}
		}
		if overlap {
			break
		}
		durations = append(durations, d)
	}
	return durations, nil
}
