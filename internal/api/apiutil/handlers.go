package apiutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/arenadesk/arenadesk/internal/booking"
)

type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

type HandlerError struct {
	Status  int
	Message string
	Err     error
}

func (e HandlerError) Error() string {
	return e.Message
}

func (e HandlerError) Unwrap() error {
	return e.Err
}

func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("missing request body")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	if err := encoder.Encode(payload); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteEngineError maps engine errors onto HTTP statuses: validation → 400,
// conflict → 409, not found → 404, anything else → 500 (logged).
func WriteEngineError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var verr booking.ValidationError
	switch {
	case errors.As(err, &verr):
		http.Error(w, verr.Error(), http.StatusBadRequest)
	case errors.Is(err, booking.ErrSlotTaken):
		http.Error(w, "Slot no longer available", http.StatusConflict)
	case errors.Is(err, booking.ErrNotFound):
		http.Error(w, "Booking not found", http.StatusNotFound)
	case errors.Is(err, booking.ErrFacilityNotFound):
		http.Error(w, "Facility not found", http.StatusNotFound)
	case errors.Is(err, booking.ErrNotConfigured), errors.Is(err, booking.ErrClosed):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Ctx(r.Context()).Error().Err(err).Msg(fallback)
		http.Error(w, fallback, http.StatusInternalServerError)
	}
}
