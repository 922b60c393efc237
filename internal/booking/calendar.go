// internal/booking/calendar.go
package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ResolveWindow resolves a facility and date to that weekday's operating
// window. Returns ErrNotConfigured when no window exists for the weekday;
// callers treat that like a closed day but surface the distinction. The
// date's weekday is evaluated in the date's own location, so pass a
// facility-local time.
func (e *Engine) ResolveWindow(ctx context.Context, facilityID int64, date time.Time) (*OperatingWindow, error) {
	window, err := e.store.GetOperatingWindow(ctx, facilityID, date.Weekday())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotConfigured
		}
		return nil, fmt.Errorf("resolve operating window: %w", err)
	}
	return window, nil
}

// facilityAndLocation loads a facility and its timezone in one step.
func (e *Engine) facilityAndLocation(ctx context.Context, facilityID int64) (*Facility, *time.Location, error) {
	facility, err := e.store.GetFacility(ctx, facilityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrFacilityNotFound
		}
		return nil, nil, fmt.Errorf("load facility: %w", err)
	}
	loc, err := facility.Location()
	if err != nil {
		return nil, nil, err
	}
	return facility, loc, nil
}
