package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"

	"github.com/arenadesk/arenadesk/internal/booking"
)

const expiryJobTimeout = 2 * time.Minute

// RegisterExpiryJob schedules periodic cancellation of pending bookings
// whose grace period has lapsed. A non-positive interval disables the job.
func RegisterExpiryJob(engine *booking.Engine, interval time.Duration) (gocron.Job, error) {
	if interval <= 0 {
		log.Info().Msg("Pending booking expiry disabled")
		return nil, nil
	}
	return AddIntervalJob("expire-pending-bookings", interval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), expiryJobTimeout)
		defer cancel()

		expired, err := engine.ExpireStalePending(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Failed to expire pending bookings")
			return
		}
		if expired > 0 {
			log.Info().Int("expired", expired).Msg("Expired stale pending bookings")
		}
	})
}
