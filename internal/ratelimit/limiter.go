// Package ratelimit provides rate limiting for booking operations.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

// realClock implements Clock using the system time.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config holds rate limit configuration.
type Config struct {
	// Reservation limits
	ReserveMaxPerMinute int // Max reservation attempts per IP per minute (default: 10)
	ReserveMaxPerHour   int // Max reservation attempts per IP per hour (default: 60)

	// Guest lookup limits
	LookupMaxAttempts  int           // Max lookup attempts per reference before lockout (default: 5)
	LookupLockout      time.Duration // Lockout duration after max attempts (default: 5m)
	LookupMaxIPPerHour int           // Max lookup attempts per IP per hour (default: 30)

	// Clock for testing (nil uses real time)
	Clock Clock
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() *Config {
	return &Config{
		ReserveMaxPerMinute: 10,
		ReserveMaxPerHour:   60,
		LookupMaxAttempts:   5,
		LookupLockout:       5 * time.Minute,
		LookupMaxIPPerHour:  30,
	}
}

// LimitResult contains the result of a rate limit check.
type LimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
	Reason     string // For logging
}

// entry tracks request counts and timestamps.
type entry struct {
	count    int
	firstAt  time.Time // First request in window
	lastAt   time.Time // Most recent request
	lockedAt time.Time // When lockout started (zero if not locked)
}

// Limiter implements multi-layer rate limiting for booking operations.
// Reservation attempts are throttled per IP; guest booking lookups are
// additionally throttled per reference so the reference+email pair cannot
// be brute-forced.
type Limiter struct {
	config *Config
	clock  Clock
	mu     sync.RWMutex
	// Keyed by hash of reference or IP
	reserveMinute map[string]*entry
	reserveHour   map[string]*entry
	lookupByRef   map[string]*entry
	lookupByIP    map[string]*entry

	// Cleanup goroutine management
	cleanupCtx    context.Context
	cleanupCancel context.CancelFunc
	cleanupOnce   sync.Once
	cleanupWg     sync.WaitGroup
}

// New creates a new rate limiter with the given config.
func New(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Limiter{
		config:        cfg,
		clock:         clock,
		reserveMinute: make(map[string]*entry),
		reserveHour:   make(map[string]*entry),
		lookupByRef:   make(map[string]*entry),
		lookupByIP:    make(map[string]*entry),
		cleanupCtx:    ctx,
		cleanupCancel: cancel,
	}
}

// Close stops the cleanup goroutine and releases resources.
func (l *Limiter) Close() {
	l.cleanupCancel()
	l.cleanupWg.Wait()
}

// CheckReserve checks if a reservation attempt is allowed.
// Does NOT record the attempt - call RecordReserve once the request is accepted.
func (l *Limiter) CheckReserve(ip string) LimitResult {
	l.startCleanup()
	now := l.clock.Now()
	ipKey := l.hashKey("reserve:ip:", ip)

	l.mu.RLock()
	defer l.mu.RUnlock()

	if e := l.reserveMinute[ipKey]; e != nil {
		if now.Sub(e.firstAt) < time.Minute && e.count >= l.config.ReserveMaxPerMinute {
			return LimitResult{
				Allowed:    false,
				RetryAfter: time.Minute - now.Sub(e.firstAt),
				Reason:     "minute_limit",
			}
		}
	}

	if e := l.reserveHour[ipKey]; e != nil {
		if now.Sub(e.firstAt) < time.Hour && e.count >= l.config.ReserveMaxPerHour {
			return LimitResult{
				Allowed:    false,
				RetryAfter: time.Hour - now.Sub(e.firstAt),
				Reason:     "hourly_limit",
			}
		}
	}

	return LimitResult{Allowed: true}
}

// RecordReserve records a reservation attempt.
func (l *Limiter) RecordReserve(ip string) {
	now := l.clock.Now()
	ipKey := l.hashKey("reserve:ip:", ip)

	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.reserveMinute[ipKey]
	if e == nil || now.Sub(e.firstAt) >= time.Minute {
		l.reserveMinute[ipKey] = &entry{count: 1, firstAt: now, lastAt: now}
	} else {
		e.count++
		e.lastAt = now
	}

	e = l.reserveHour[ipKey]
	if e == nil || now.Sub(e.firstAt) >= time.Hour {
		l.reserveHour[ipKey] = &entry{count: 1, firstAt: now, lastAt: now}
	} else {
		e.count++
		e.lastAt = now
	}
}

// CheckLookup checks if a guest booking lookup is allowed.
// Does NOT record the attempt - call RecordLookup after checking the pair.
func (l *Limiter) CheckLookup(reference, ip string) LimitResult {
	l.startCleanup()
	now := l.clock.Now()
	refKey := l.hashKey("lookup:ref:", normalizeReference(reference))
	ipKey := l.hashKey("lookup:ip:", ip)

	l.mu.RLock()
	defer l.mu.RUnlock()

	// Check if the reference is locked out
	if e := l.lookupByRef[refKey]; e != nil {
		if !e.lockedAt.IsZero() {
			elapsed := now.Sub(e.lockedAt)
			if elapsed < l.config.LookupLockout {
				return LimitResult{
					Allowed:    false,
					RetryAfter: l.config.LookupLockout - elapsed,
					Reason:     "lockout",
				}
			}
			// Lockout expired - will be cleaned up, allow this request
		} else if e.count >= l.config.LookupMaxAttempts {
			// Already at max attempts, lockout should be started
			return LimitResult{
				Allowed:    false,
				RetryAfter: l.config.LookupLockout,
				Reason:     "max_attempts",
			}
		}
	}

	// Check per-IP hourly limit
	if e := l.lookupByIP[ipKey]; e != nil {
		if now.Sub(e.firstAt) < time.Hour && e.count >= l.config.LookupMaxIPPerHour {
			return LimitResult{
				Allowed:    false,
				RetryAfter: time.Hour - now.Sub(e.firstAt),
				Reason:     "ip_hourly_limit",
			}
		}
	}

	return LimitResult{Allowed: true}
}

// RecordLookup records a guest booking lookup attempt.
// Returns true if max attempts reached and lockout was triggered.
func (l *Limiter) RecordLookup(reference, ip string) (lockedOut bool) {
	now := l.clock.Now()
	refKey := l.hashKey("lookup:ref:", normalizeReference(reference))
	ipKey := l.hashKey("lookup:ip:", ip)

	l.mu.Lock()
	defer l.mu.Unlock()

	// Update reference entry
	e := l.lookupByRef[refKey]
	if e == nil {
		l.lookupByRef[refKey] = &entry{count: 1, firstAt: now, lastAt: now}
	} else if !e.lockedAt.IsZero() && now.Sub(e.lockedAt) >= l.config.LookupLockout {
		// Lockout expired, reset
		l.lookupByRef[refKey] = &entry{count: 1, firstAt: now, lastAt: now}
	} else {
		e.count++
		e.lastAt = now
		// Check if we just hit max attempts
		if e.count >= l.config.LookupMaxAttempts && e.lockedAt.IsZero() {
			e.lockedAt = now
			lockedOut = true
		}
	}

	// Update IP entry
	e = l.lookupByIP[ipKey]
	if e == nil || now.Sub(e.firstAt) >= time.Hour {
		l.lookupByIP[ipKey] = &entry{count: 1, firstAt: now, lastAt: now}
	} else {
		e.count++
		e.lastAt = now
	}

	return lockedOut
}

// ResetLookupAttempts clears the lookup counter after a successful match.
func (l *Limiter) ResetLookupAttempts(reference string) {
	refKey := l.hashKey("lookup:ref:", normalizeReference(reference))
	l.mu.Lock()
	delete(l.lookupByRef, refKey)
	l.mu.Unlock()
}

func (l *Limiter) hashKey(prefix, value string) string {
	hash := sha256.Sum256([]byte(value))
	return prefix + hex.EncodeToString(hash[:8])
}

// normalizeReference uppercases the reference to prevent case-based bypass.
func normalizeReference(reference string) string {
	return strings.ToUpper(strings.TrimSpace(reference))
}

func (l *Limiter) startCleanup() {
	l.cleanupOnce.Do(func() {
		l.cleanupWg.Add(1)
		go func() {
			defer l.cleanupWg.Done()
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-l.cleanupCtx.Done():
					return
				case <-ticker.C:
					l.cleanup()
				}
			}
		}()
	})
}

func (l *Limiter) cleanup() {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	for k, e := range l.reserveMinute {
		if now.Sub(e.lastAt) > time.Minute {
			delete(l.reserveMinute, k)
		}
	}
	for k, e := range l.reserveHour {
		if now.Sub(e.lastAt) > time.Hour {
			delete(l.reserveHour, k)
		}
	}

	// Lookup entries live long enough to cover an active lockout
	maxAge := l.config.LookupLockout + time.Hour
	for k, e := range l.lookupByRef {
		if now.Sub(e.lastAt) > maxAge {
			delete(l.lookupByRef, k)
		}
	}
	for k, e := range l.lookupByIP {
		if now.Sub(e.lastAt) > time.Hour {
			delete(l.lookupByIP, k)
		}
	}
}

// GetClientIP extracts the client IP from a request.
// When trustProxy is true, uses the rightmost IP from X-Forwarded-For (added by your proxy).
// When trustProxy is false, ignores X-Forwarded-For entirely (prevents spoofing).
func GetClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			// Use RIGHTMOST IP - this is the one your proxy added, not user-supplied
			parts := strings.Split(xff, ",")
			for i := len(parts) - 1; i >= 0; i-- {
				ip := strings.TrimSpace(parts[i])
				// Skip private/internal IPs to find the real client
				if ip != "" && !isPrivateIP(ip) {
					return ip
				}
			}
			// All IPs are private, use the last one
			return strings.TrimSpace(parts[len(parts)-1])
		}

		// Check X-Real-IP (set by nginx)
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	// Fall back to RemoteAddr (direct connection or untrusted proxy)
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port (e.g., Unix socket or malformed)
		// Try to parse as IP directly, otherwise return as-is
		if parsed := net.ParseIP(r.RemoteAddr); parsed != nil {
			return r.RemoteAddr
		}
		// Last resort: strip anything after last colon that looks like a port
		if idx := strings.LastIndex(r.RemoteAddr, ":"); idx != -1 {
			candidate := r.RemoteAddr[:idx]
			if net.ParseIP(candidate) != nil {
				return candidate
			}
		}
		return r.RemoteAddr
	}
	return ip
}

// privateNetworks holds parsed CIDR ranges for private/reserved IPs.
// Parsed once at package init for efficiency.
var privateNetworks []*net.IPNet

func init() {
	privateRanges := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"::1/128",
		"fc00::/7",
		"fe80::/10", // Link-local
	}
	for _, cidr := range privateRanges {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("invalid private CIDR: " + cidr)
		}
		privateNetworks = append(privateNetworks, network)
	}
}

// isPrivateIP checks if an IP is in a private/reserved range.
// Handles both IPv4 and IPv4-mapped IPv6 addresses (e.g., ::ffff:192.168.1.1).
func isPrivateIP(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}

	// Convert IPv4-mapped IPv6 to IPv4 for consistent matching
	// e.g., ::ffff:192.168.1.1 -> 192.168.1.1
	if ipv4 := ip.To4(); ipv4 != nil {
		ip = ipv4
	}

	for _, network := range privateNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// SanitizeReference masks a booking reference for logging.
func SanitizeReference(reference string) string {
	reference = strings.ToUpper(strings.TrimSpace(reference))
	if len(reference) >= 4 {
		return "***" + reference[len(reference)-4:]
	}
	return "***"
}

// LogRateLimitExceeded logs a rate limit event with sanitized reference.
func LogRateLimitExceeded(limitType, reference, ip, reason string) {
	log.Warn().
		Str("event", "rate_limit_exceeded").
		Str("type", limitType).
		Str("reference", SanitizeReference(reference)).
		Str("ip", ip).
		Str("reason", reason).
		Msg("Booking rate limit exceeded")
}
