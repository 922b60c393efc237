// internal/api/bookings/handlers.go
package bookings

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/arenadesk/arenadesk/internal/api/apiutil"
	"github.com/arenadesk/arenadesk/internal/booking"
	"github.com/arenadesk/arenadesk/internal/ratelimit"
)

var (
	engine   *booking.Engine
	limiter  *ratelimit.Limiter
	initOnce sync.Once
)

const bookingQueryTimeout = 5 * time.Second

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(e *booking.Engine, l *ratelimit.Limiter) {
	if e == nil {
		return
	}
	initOnce.Do(func() {
		engine = e
		limiter = l
	})
}

type reserveRequest struct {
	FacilityID      int64  `json:"facility_id"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	UserID          *int64 `json:"user_id,omitempty"`
	CustomerName    string `json:"customer_name,omitempty"`
	CustomerEmail   string `json:"customer_email,omitempty"`
	CustomerPhone   string `json:"customer_phone,omitempty"`
	PaymentMethodID *int64 `json:"payment_method_id,omitempty"`
}

// POST /api/v1/bookings
func HandleReserve(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if engine == nil {
		logger.Error().Msg("Booking engine not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if !allowReserve(w, r) {
		return
	}

	var req reserveRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	startTime, err := apiutil.ParseTime(req.StartTime, "start_time")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	endTime, err := apiutil.ParseTime(req.EndTime, "end_time")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	created, err := engine.Reserve(ctx, booking.ReserveRequest{
		FacilityID:      req.FacilityID,
		StartTime:       startTime,
		EndTime:         endTime,
		UserID:          req.UserID,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		PaymentMethodID: req.PaymentMethodID,
	})
	if err != nil {
		apiutil.WriteEngineError(w, r, err, "Failed to create booking")
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusCreated, created); err != nil {
		logger.Error().Err(err).Int64("booking_id", created.ID).Msg("Failed to write booking response")
		return
	}
}

// GET /api/v1/bookings?facility_id=...&start_time=...&end_time=...
func HandleBookingsList(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if engine == nil {
		logger.Error().Msg("Booking engine not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	facilityID, err := apiutil.ParsePositiveInt64Field(r.URL.Query().Get("facility_id"), "facility_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	startTime, err := apiutil.ParseTime(r.URL.Query().Get("start_time"), "start_time")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	endTime, err := apiutil.ParseTime(r.URL.Query().Get("end_time"), "end_time")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	bookings, err := engine.BookingsForFacility(ctx, facilityID, startTime, endTime)
	if err != nil {
		apiutil.WriteEngineError(w, r, err, "Failed to list bookings")
		return
	}
	if bookings == nil {
		bookings = []booking.Booking{}
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, bookings); err != nil {
		logger.Error().Err(err).Int64("facility_id", facilityID).Msg("Failed to write booking list response")
		return
	}
}

// GET /api/v1/bookings/guest?reference=...&email=...
func HandleGuestLookup(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if engine == nil {
		logger.Error().Msg("Booking engine not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	reference := strings.TrimSpace(r.URL.Query().Get("reference"))
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if reference == "" || email == "" {
		http.Error(w, "reference and email are required", http.StatusBadRequest)
		return
	}

	if !allowGuestLookup(w, r, reference) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	found, err := engine.GuestBooking(ctx, reference, email)
	if err != nil {
		// A single not-found answer for any mismatch; never hint at which
		// half of the pair was wrong.
		apiutil.WriteEngineError(w, r, err, "Failed to look up booking")
		return
	}
	if limiter != nil {
		limiter.ResetLookupAttempts(reference)
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, found); err != nil {
		logger.Error().Err(err).Msg("Failed to write guest booking response")
		return
	}
}

// GET /api/v1/users/{id}/bookings
func HandleUserBookings(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if engine == nil {
		logger.Error().Msg("Booking engine not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	userID, err := apiutil.IDFromPath(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	bookings, err := engine.BookingsForUser(ctx, userID)
	if err != nil {
		apiutil.WriteEngineError(w, r, err, "Failed to list bookings")
		return
	}
	if bookings == nil {
		bookings = []booking.Booking{}
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, bookings); err != nil {
		logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to write booking list response")
		return
	}
}

type statusRequest struct {
	Status string `json:"status"`
}

// PATCH /api/v1/bookings/{id}/status
//
// The actor comes from the X-Actor-Id / X-Actor-Role headers; whether that
// actor is allowed to act is enforced upstream.
func HandleStatusUpdate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if engine == nil {
		logger.Error().Msg("Booking engine not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	bookingID, err := apiutil.IDFromPath(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req statusRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	actor := booking.Actor{
		ID:   strings.TrimSpace(r.Header.Get("X-Actor-Id")),
		Role: strings.TrimSpace(r.Header.Get("X-Actor-Role")),
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	updated, err := engine.SetStatus(ctx, bookingID, booking.Status(req.Status), actor)
	if err != nil {
		apiutil.WriteEngineError(w, r, err, "Failed to update booking status")
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, updated); err != nil {
		logger.Error().Err(err).Int64("booking_id", bookingID).Msg("Failed to write booking response")
		return
	}
}

func allowReserve(w http.ResponseWriter, r *http.Request) bool {
	if limiter == nil {
		return true
	}
	ip := ratelimit.GetClientIP(r, false)
	result := limiter.CheckReserve(ip)
	if !result.Allowed {
		ratelimit.LogRateLimitExceeded("reserve", "", ip, result.Reason)
		writeRateLimited(w, result)
		return false
	}
	limiter.RecordReserve(ip)
	return true
}

func allowGuestLookup(w http.ResponseWriter, r *http.Request, reference string) bool {
	if limiter == nil {
		return true
	}
	ip := ratelimit.GetClientIP(r, false)
	result := limiter.CheckLookup(reference, ip)
	if !result.Allowed {
		ratelimit.LogRateLimitExceeded("guest_lookup", reference, ip, result.Reason)
		writeRateLimited(w, result)
		return false
	}
	limiter.RecordLookup(reference, ip)
	return true
}

func writeRateLimited(w http.ResponseWriter, result ratelimit.LimitResult) {
	seconds := int(result.RetryAfter / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	http.Error(w, "Too many requests", http.StatusTooManyRequests)
}
