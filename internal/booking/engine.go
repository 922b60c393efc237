// internal/booking/engine.go

// Package booking implements the availability and reservation engine: it
// computes bookable slots and durations for a facility and atomically turns
// a chosen slot into a booking without double-selling it.
package booking

import (
	"time"

	appdb "github.com/arenadesk/arenadesk/internal/db"
)

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

// realClock implements Clock using the system time.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Policy holds the tunable reservation rules.
type Policy struct {
	// MaxDurationHours caps a single booking's length (default: 5).
	MaxDurationHours int
	// LeadTime is the minimum gap between "now" and the earliest same-day
	// slot (default: 1h). Applied at hour granularity: a slot stays
	// bookable until the top of the current hour plus the lead time.
	LeadTime time.Duration
	// CommitRetries bounds retries of the commit transaction on transient
	// store contention (default: 3).
	CommitRetries int
	// ReferenceAttempts bounds guest reference resampling on collision
	// (default: 5).
	ReferenceAttempts int
	// PhoneRegion is the default region for guest phone numbers without a
	// country prefix (default: "ID").
	PhoneRegion string
	// PendingGrace is how long after its start time a pending booking may
	// linger before the expiry job cancels it. Zero disables expiry.
	PendingGrace time.Duration

	// Clock for testing (nil uses real time)
	Clock Clock
}

// DefaultPolicy returns production-ready defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxDurationHours:  5,
		LeadTime:          time.Hour,
		CommitRetries:     3,
		ReferenceAttempts: 5,
		PhoneRegion:       "ID",
		PendingGrace:      2 * time.Hour,
	}
}

// Engine is the reservation engine. Slot and duration queries are pure
// reads over a snapshot and safe to run concurrently; Reserve serializes
// its commit through the database's write transaction.
type Engine struct {
	db     *appdb.DB
	store  *Store
	policy Policy
	clock  Clock
}

func New(database *appdb.DB, policy Policy) *Engine {
	if policy.MaxDurationHours < 1 {
		policy.MaxDurationHours = DefaultPolicy().MaxDurationHours
	}
	if policy.ReferenceAttempts < 1 {
		policy.ReferenceAttempts = DefaultPolicy().ReferenceAttempts
	}
	if policy.PhoneRegion == "" {
		policy.PhoneRegion = DefaultPolicy().PhoneRegion
	}
	clock := policy.Clock
	if clock == nil {
		clock = realClock{}
	}
	return &Engine{
		db:     database,
		store:  NewStore(database.DB),
		policy: policy,
		clock:  clock,
	}
}
