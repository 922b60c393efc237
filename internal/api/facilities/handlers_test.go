package facilities

// NOTE: Tests cannot use t.Parallel() due to shared package state.

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/arenadesk/arenadesk/internal/booking"
	"github.com/arenadesk/arenadesk/internal/db"
	"github.com/arenadesk/arenadesk/internal/testutil"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func setupFacilitiesTest(t *testing.T) (*db.DB, int64) {
	t.Helper()

	database := testutil.NewTestDB(t)
	ctx := context.Background()

	result, err := database.ExecContext(ctx, `
		INSERT INTO facilities (name, description, price_per_hour, image_url, timezone)
		VALUES ('Court A', 'Indoor futsal court', 100000, '', 'UTC')`)
	if err != nil {
		t.Fatalf("insert facility: %v", err)
	}
	facilityID, err := result.LastInsertId()
	if err != nil {
		t.Fatalf("facility id: %v", err)
	}

	policy := booking.DefaultPolicy()
	policy.Clock = fixedClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	testEngine := booking.New(database, policy)

	engine = nil
	initOnce = sync.Once{}
	InitHandlers(testEngine)

	t.Cleanup(func() {
		engine = nil
		initOnce = sync.Once{}
	})

	return database, facilityID
}

func seedMonday(t *testing.T, database *db.DB, facilityID int64, open, close string, isOpen bool) {
	t.Helper()
	_, err := database.ExecContext(context.Background(), `
		INSERT INTO operating_hours (facility_id, day_of_week, open_time, close_time, is_open)
		VALUES (?, 1, ?, ?, ?)`, facilityID, open, close, isOpen)
	if err != nil {
		t.Fatalf("insert operating hours: %v", err)
	}
}

func TestHandleFacilitiesList(t *testing.T) {
	_, _ = setupFacilitiesTest(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/facilities", nil)
	recorder := httptest.NewRecorder()
	HandleFacilitiesList(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status: %d", recorder.Code)
	}
	var facilities []booking.Facility
	if err := json.Unmarshal(recorder.Body.Bytes(), &facilities); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(facilities) != 1 || facilities[0].Name != "Court A" {
		t.Fatalf("unexpected facility list: %+v", facilities)
	}
}

func TestHandleFacilityGet_NotFound(t *testing.T) {
	_, _ = setupFacilitiesTest(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/facilities/9999", nil)
	req.SetPathValue("id", "9999")
	recorder := httptest.NewRecorder()
	HandleFacilityGet(recorder, req)

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status: %d, want 404", recorder.Code)
	}
}

func TestHandleSlots(t *testing.T) {
	database, facilityID := setupFacilitiesTest(t)
	seedMonday(t, database, facilityID, "08:00", "20:00", true)

	// 2026-03-02 is a Monday.
	url := fmt.Sprintf("/api/v1/facilities/%d/slots?date=2026-03-02", facilityID)
	req := httptest.NewRequest(http.MethodGet, url, nil)
	req.SetPathValue("id", fmt.Sprintf("%d", facilityID))
	recorder := httptest.NewRecorder()
	HandleSlots(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status: %d, body: %s", recorder.Code, recorder.Body.String())
	}
	var schedule booking.DaySchedule
	if err := json.Unmarshal(recorder.Body.Bytes(), &schedule); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if schedule.Closed {
		t.Fatal("Monday should be open")
	}
	if len(schedule.Slots) != 12 {
		t.Errorf("expected 12 slots, got %d", len(schedule.Slots))
	}
}

func TestHandleSlots_ClosedDayStill200(t *testing.T) {
	database, facilityID := setupFacilitiesTest(t)
	seedMonday(t, database, facilityID, "08:00", "20:00", false)

	url := fmt.Sprintf("/api/v1/facilities/%d/slots?date=2026-03-02", facilityID)
	req := httptest.NewRequest(http.MethodGet, url, nil)
	req.SetPathValue("id", fmt.Sprintf("%d", facilityID))
	recorder := httptest.NewRecorder()
	HandleSlots(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status: %d, want 200 with closed flag", recorder.Code)
	}
	var schedule booking.DaySchedule
	if err := json.Unmarshal(recorder.Body.Bytes(), &schedule); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !schedule.Closed {
		t.Error("closed day should be flagged")
	}
	if len(schedule.Slots) != 0 {
		t.Errorf("closed day should have no slots, got %d", len(schedule.Slots))
	}
}

func TestHandleSlots_BadDate(t *testing.T) {
	_, facilityID := setupFacilitiesTest(t)

	url := fmt.Sprintf("/api/v1/facilities/%d/slots?date=02-03-2026", facilityID)
	req := httptest.NewRequest(http.MethodGet, url, nil)
	req.SetPathValue("id", fmt.Sprintf("%d", facilityID))
	recorder := httptest.NewRecorder()
	HandleSlots(recorder, req)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status: %d, want 400", recorder.Code)
	}
}

func TestHandleDurations(t *testing.T) {
	database, facilityID := setupFacilitiesTest(t)
	seedMonday(t, database, facilityID, "08:00", "20:00", true)

	url := fmt.Sprintf("/api/v1/facilities/%d/durations?start=2026-03-02T18:00:00Z", facilityID)
	req := httptest.NewRequest(http.MethodGet, url, nil)
	req.SetPathValue("id", fmt.Sprintf("%d", facilityID))
	recorder := httptest.NewRecorder()
	HandleDurations(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status: %d, body: %s", recorder.Code, recorder.Body.String())
	}
	var payload struct {
		Durations []int `json:"durations"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	// Two hours left before the 20:00 close.
	if len(payload.Durations) != 2 {
		t.Errorf("durations = %v, want [1 2]", payload.Durations)
	}
}

func TestHandleDurations_ClosedDayStill200(t *testing.T) {
	database, facilityID := setupFacilitiesTest(t)
	// A window row exists for Monday but the day is closed.
	seedMonday(t, database, facilityID, "08:00", "20:00", false)

	url := fmt.Sprintf("/api/v1/facilities/%d/durations?start=2026-03-02T18:00:00Z", facilityID)
	req := httptest.NewRequest(http.MethodGet, url, nil)
	req.SetPathValue("id", fmt.Sprintf("%d", facilityID))
	recorder := httptest.NewRecorder()
	HandleDurations(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status: %d, want 200 with closed flag", recorder.Code)
	}
	var payload struct {
		Durations []int  `json:"durations"`
		Closed    bool   `json:"closed"`
		Reason    string `json:"reason"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !payload.Closed {
		t.Error("closed day should be flagged closed")
	}
	if payload.Reason == "" {
		t.Error("closed day should carry a reason")
	}
	if len(payload.Durations) != 0 {
		t.Errorf("closed day durations = %v, want empty", payload.Durations)
	}
}

func TestHandleDurations_UnconfiguredDayStill200(t *testing.T) {
	_, facilityID := setupFacilitiesTest(t)

	url := fmt.Sprintf("/api/v1/facilities/%d/durations?start=2026-03-02T18:00:00Z", facilityID)
	req := httptest.NewRequest(http.MethodGet, url, nil)
	req.SetPathValue("id", fmt.Sprintf("%d", facilityID))
	recorder := httptest.NewRecorder()
	HandleDurations(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status: %d, want 200 with closed flag", recorder.Code)
	}
	var payload struct {
		Durations []int `json:"durations"`
		Closed    bool  `json:"closed"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !payload.Closed {
		t.Error("unconfigured day should be flagged closed")
	}
	if len(payload.Durations) != 0 {
		t.Errorf("unconfigured day durations = %v, want empty", payload.Durations)
	}
}
