// cmd/server/server.go
package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/arenadesk/arenadesk/internal/api"
	"github.com/arenadesk/arenadesk/internal/api/bookings"
	"github.com/arenadesk/arenadesk/internal/api/facilities"
	"github.com/arenadesk/arenadesk/internal/api/paymentmethods"
	"github.com/arenadesk/arenadesk/internal/booking"
	"github.com/arenadesk/arenadesk/internal/config"
	"github.com/arenadesk/arenadesk/internal/ratelimit"
)

func newServer(cfg *config.Config, engine *booking.Engine, limiter *ratelimit.Limiter) *http.Server {
	router := http.NewServeMux()

	// Setup middleware chain
	handler := api.ChainMiddleware(
		router,
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
		api.WithContentType,
	)

	bookings.InitHandlers(engine, limiter)
	facilities.InitHandlers(engine)
	paymentmethods.InitHandlers(engine)

	// Register routes
	registerRoutes(router)

	return &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Facility routes
	mux.HandleFunc("GET /api/v1/facilities", facilities.HandleFacilitiesList)
	mux.HandleFunc("GET /api/v1/facilities/{id}", facilities.HandleFacilityGet)
	mux.HandleFunc("GET /api/v1/facilities/{id}/slots", facilities.HandleSlots)
	mux.HandleFunc("GET /api/v1/facilities/{id}/durations", facilities.HandleDurations)

	// Booking routes
	mux.HandleFunc("POST /api/v1/bookings", bookings.HandleReserve)
	mux.HandleFunc("GET /api/v1/bookings", bookings.HandleBookingsList)
	mux.HandleFunc("GET /api/v1/bookings/guest", bookings.HandleGuestLookup)
	mux.HandleFunc("PATCH /api/v1/bookings/{id}/status", bookings.HandleStatusUpdate)
	mux.HandleFunc("GET /api/v1/users/{id}/bookings", bookings.HandleUserBookings)

	// Payment method routes
	mux.HandleFunc("GET /api/v1/payment-methods", paymentmethods.HandlePaymentMethodsList)
}
