// internal/api/paymentmethods/handlers.go
package paymentmethods

import (
	"context"
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

const paymentQueryTimeout = 5 * time.Second

func InitHandlers(e *booking.Engine) {
	if e == nil {
		return
	}
	initOnce.Do(func() {
		engine = e
	})
}

// GET /api/v1/payment-methods
func HandlePaymentMethodsList(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if engine == nil {
		logger.Error().Msg("Booking engine not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), paymentQueryTimeout)
	defer cancel()

	methods, err := engine.PaymentMethods(ctx)
	if err != nil {
		apiutil.WriteEngineError(w, r, err, "Failed to list payment methods")
		return
	}
	if methods == nil {
		methods = []booking.PaymentMethod{}
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, methods); err != nil {
		logger.Error().Err(err).Msg("Failed to write payment method response")
		return
	}
}
