package booking

import (
	"context"
	"testing"
	"time"
)

func TestAvailableDurations_Cap(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	durations, err := AvailableDurations(openWindow("08:00", "20:00"), start, nil, 5)
	if err != nil {
		t.Fatalf("AvailableDurations() error: %v", err)
	}

	want := []int{1, 2, 3, 4, 5}
	assertDurations(t, durations, want)
}

func TestAvailableDurations_CloseBound(t *testing.T) {
	// Starting at 18:00 against a 20:00 close leaves room for 2 hours.
	start := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)

	durations, err := AvailableDurations(openWindow("08:00", "20:00"), start, nil, 5)
	if err != nil {
		t.Fatalf("AvailableDurations() error: %v", err)
	}
	assertDurations(t, durations, []int{1, 2})
}

func TestAvailableDurations_StopsAtNextBooking(t *testing.T) {
	start := time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC)
	existing := []Booking{
		{
			StartTime: time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC),
			EndTime:   time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC),
			Status:    StatusPending,
		},
	}

	// 13:00+2h would run into the 14:00 booking; only the single hour fits.
	durations, err := AvailableDurations(openWindow("08:00", "20:00"), start, existing, 5)
	if err != nil {
		t.Fatalf("AvailableDurations() error: %v", err)
	}
	assertDurations(t, durations, []int{1})
}

func TestAvailableDurations_NoRoom(t *testing.T) {
	// Starting exactly at close.
	start := time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC)

	durations, err := AvailableDurations(openWindow("08:00", "20:00"), start, nil, 5)
	if err != nil {
		t.Fatalf("AvailableDurations() error: %v", err)
	}
	if len(durations) != 0 {
		t.Errorf("expected no durations at close, got %v", durations)
	}
}

func TestDurations_UnconfiguredDay(t *testing.T) {
	clock := newMockClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	engine, database := newTestEngine(t, clock)

	facilityID := seedFacility(t, database, "Court A", "UTC", 100000)

	_, err := engine.Durations(context.Background(), facilityID, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	if err != ErrNotConfigured {
		t.Errorf("Durations() error = %v, want ErrNotConfigured", err)
	}
}

func TestDurations_ClosedDay(t *testing.T) {
	clock := newMockClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	engine, database := newTestEngine(t, clock)

	facilityID := seedFacility(t, database, "Court A", "UTC", 100000)
	// Monday has a window row, explicitly closed.
	seedWindow(t, database, &facilityID, 1, "08:00", "20:00", false)

	_, err := engine.Durations(context.Background(), facilityID, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	if err != ErrClosed {
		t.Errorf("Durations() error = %v, want ErrClosed", err)
	}
}

func TestDurations_ContiguousAscending(t *testing.T) {
	clock := newMockClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	engine, database := newTestEngine(t, clock)

	facilityID := seedFacility(t, database, "Court A", "UTC", 100000)
	seedWeek(t, database, &facilityID, "08:00", "20:00")

	// Occupy 16:00-18:00.
	start := time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC)
	if _, err := engine.Reserve(context.Background(), guestRequest(facilityID, start, 2)); err != nil {
		t.Fatalf("Reserve() error: %v", err)
	}

	durations, err := engine.Durations(context.Background(), facilityID, time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Durations() error: %v", err)
	}
	assertDurations(t, durations, []int{1, 2, 3})
}

func assertDurations(t *testing.T, got, want []int) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("durations = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("durations = %v, want %v", got, want)
		}
	}
}
