package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/arenadesk/arenadesk/internal/db"
	"github.com/arenadesk/arenadesk/internal/testutil"
)

// mockClock is a controllable clock for testing.
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock(now time.Time) *mockClock {
	return &mockClock{now: now}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func newTestEngine(t *testing.T, clock Clock) (*Engine, *db.DB) {
	t.Helper()
	database := testutil.NewTestDB(t)
	policy := DefaultPolicy()
	policy.Clock = clock
	return New(database, policy), database
}

func seedFacility(t *testing.T, database *db.DB, name, timezone string, pricePerHour int64) int64 {
	t.Helper()
	result, err := database.ExecContext(context.Background(), `
		INSERT INTO facilities (name, description, price_per_hour, image_url, timezone)
		VALUES (?, '', ?, '', ?)`,
		name, pricePerHour, timezone)
	if err != nil {
		t.Fatalf("seed facility: %v", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		t.Fatalf("seed facility id: %v", err)
	}
	return id
}

// seedWeek configures the same window for every weekday. A nil facilityID
// seeds the shared default rows.
func seedWeek(t *testing.T, database *db.DB, facilityID *int64, openTime, closeTime string) {
	t.Helper()
	for day := 0; day < 7; day++ {
		seedWindow(t, database, facilityID, day, openTime, closeTime, true)
	}
}

func seedWindow(t *testing.T, database *db.DB, facilityID *int64, day int, openTime, closeTime string, isOpen bool) {
	t.Helper()
	_, err := database.ExecContext(context.Background(), `
		INSERT INTO operating_hours (facility_id, day_of_week, open_time, close_time, is_open)
		VALUES (?, ?, ?, ?, ?)`,
		facilityID, day, openTime, closeTime, isOpen)
	if err != nil {
		t.Fatalf("seed operating window: %v", err)
	}
}

func seedPaymentMethod(t *testing.T, database *db.DB, bankName string, active bool) int64 {
	t.Helper()
	result, err := database.ExecContext(context.Background(), `
		INSERT INTO payment_methods (bank_name, account_number, account_name, is_active)
		VALUES (?, '0000111122', 'PT Arena Desk', ?)`,
		bankName, active)
	if err != nil {
		t.Fatalf("seed payment method: %v", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		t.Fatalf("seed payment method id: %v", err)
	}
	return id
}

func guestRequest(facilityID int64, start time.Time, hours int) ReserveRequest {
	return ReserveRequest{
		FacilityID:    facilityID,
		StartTime:     start,
		EndTime:       start.Add(time.Duration(hours) * time.Hour),
		CustomerName:  "Dewi Lestari",
		CustomerEmail: "dewi@example.com",
		CustomerPhone: "+628123456789",
	}
}

func userRequest(facilityID int64, userID int64, start time.Time, hours int) ReserveRequest {
	return ReserveRequest{
		FacilityID: facilityID,
		StartTime:  start,
		EndTime:    start.Add(time.Duration(hours) * time.Hour),
		UserID:     &userID,
	}
}
