// internal/api/facilities/handlers.go
package facilities

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/arenadesk/arenadesk/internal/api/apiutil"
	"github.com/arenadesk/arenadesk/internal/booking"
)

var (
	engine   *booking.Engine
	initOnce sync.Once
)

const facilityQueryTimeout = 5 * time.Second

func InitHandlers(e *booking.Engine) {
	if e == nil {
		return
	}
	initOnce.Do(func() {
		engine = e
	})
}

// GET /api/v1/facilities
func HandleFacilitiesList(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if engine == nil {
		logger.Error().Msg("Booking engine not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), facilityQueryTimeout)
	defer cancel()

	list, err := engine.Facilities(ctx)
	if err != nil {
		apiutil.WriteEngineError(w, r, err, "Failed to list facilities")
		return
	}
	if list == nil {
		list = []booking.Facility{}
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, list); err != nil {
		logger.Error().Err(err).Msg("Failed to write facility list response")
		return
	}
}

// GET /api/v1/facilities/{id}
func HandleFacilityGet(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if engine == nil {
		logger.Error().Msg("Booking engine not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	facilityID, err := apiutil.IDFromPath(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), facilityQueryTimeout)
	defer cancel()

	facility, err := engine.Facility(ctx, facilityID)
	if err != nil {
		apiutil.WriteEngineError(w, r, err, "Failed to load facility")
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, facility); err != nil {
		logger.Error().Err(err).Int64("facility_id", facilityID).Msg("Failed to write facility response")
		return
	}
}

// GET /api/v1/facilities/{id}/slots?date=YYYY-MM-DD
//
// Closed and unconfigured days are a normal answer, not an error: the
// schedule comes back with Closed set and an empty slot list.
func HandleSlots(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if engine == nil {
		logger.Error().Msg("Booking engine not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	facilityID, err := apiutil.IDFromPath(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	date, err := apiutil.ParseDate(r.URL.Query().Get("date"), "date")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), facilityQueryTimeout)
	defer cancel()

	schedule, err := engine.Slots(ctx, facilityID, date)
	if err != nil {
		apiutil.WriteEngineError(w, r, err, "Failed to generate slots")
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, schedule); err != nil {
		logger.Error().Err(err).Int64("facility_id", facilityID).Msg("Failed to write schedule response")
		return
	}
}

// GET /api/v1/facilities/{id}/durations?start=...
func HandleDurations(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if engine == nil {
		logger.Error().Msg("Booking engine not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	facilityID, err := apiutil.IDFromPath(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	start, err := apiutil.ParseTime(r.URL.Query().Get("start"), "start")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), facilityQueryTimeout)
	defer cancel()

	durations, err := engine.Durations(ctx, facilityID, start)
	closed := errors.Is(err, booking.ErrNotConfigured) || errors.Is(err, booking.ErrClosed)
	if err != nil && !closed {
		apiutil.WriteEngineError(w, r, err, "Failed to resolve durations")
		return
	}
	if durations == nil {
		durations = []int{}
	}

	payload := map[string]any{
		"facility_id": facilityID,
		"start_time":  start,
		"durations":   durations,
	}
	if closed {
		// Closed and unconfigured days share a shape, distinct reasons.
		payload["closed"] = true
		payload["reason"] = err.Error()
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, payload); err != nil {
		logger.Error().Err(err).Int64("facility_id", facilityID).Msg("Failed to write durations response")
		return
	}
}
