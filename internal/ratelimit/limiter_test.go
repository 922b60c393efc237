package ratelimit

import (
	"net/http"
	"sync"
	"testing"
	"time"
)

// mockClock is a controllable clock for testing.
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock() *mockClock {
	return &mockClock{now: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCheckReserve_MinuteLimit(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{
		ReserveMaxPerMinute: 3,
		ReserveMaxPerHour:   100,
		LookupMaxAttempts:   5,
		LookupLockout:       5 * time.Minute,
		LookupMaxIPPerHour:  30,
		Clock:               clock,
	})
	defer limiter.Close()

	ip := "203.0.113.5"

	// First 3 requests should be allowed
	for i := 0; i < 3; i++ {
		result := limiter.CheckReserve(ip)
		if !result.Allowed {
			t.Errorf("Request %d should be allowed, got blocked: %s", i+1, result.Reason)
		}
		limiter.RecordReserve(ip)
	}

	// 4th request within the minute should be blocked
	clock.Advance(10 * time.Second)
	result := limiter.CheckReserve(ip)
	if result.Allowed {
		t.Error("4th request should be blocked (minute limit)")
	}
	if result.Reason != "minute_limit" {
		t.Errorf("Expected reason 'minute_limit', got '%s'", result.Reason)
	}

	// After the minute window passes, allowed again
	clock.Advance(51 * time.Second)
	result = limiter.CheckReserve(ip)
	if !result.Allowed {
		t.Errorf("Request after window should be allowed, got blocked: %s", result.Reason)
	}
}

func TestCheckReserve_HourlyLimit(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{
		ReserveMaxPerMinute: 100,
		ReserveMaxPerHour:   5,
		LookupMaxAttempts:   5,
		LookupLockout:       5 * time.Minute,
		LookupMaxIPPerHour:  30,
		Clock:               clock,
	})
	defer limiter.Close()

	ip := "203.0.113.6"

	for i := 0; i < 5; i++ {
		clock.Advance(2 * time.Minute)
		result := limiter.CheckReserve(ip)
		if !result.Allowed {
			t.Errorf("Request %d should be allowed, got blocked: %s", i+1, result.Reason)
		}
		limiter.RecordReserve(ip)
	}

	clock.Advance(2 * time.Minute)
	result := limiter.CheckReserve(ip)
	if result.Allowed {
		t.Error("6th request should be blocked (hourly limit)")
	}
	if result.Reason != "hourly_limit" {
		t.Errorf("Expected reason 'hourly_limit', got '%s'", result.Reason)
	}

	clock.Advance(1 * time.Hour)
	result = limiter.CheckReserve(ip)
	if !result.Allowed {
		t.Errorf("Request after hour should be allowed, got blocked: %s", result.Reason)
	}
}

func TestCheckReserve_PerIPIsolation(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{
		ReserveMaxPerMinute: 1,
		ReserveMaxPerHour:   100,
		LookupMaxAttempts:   5,
		LookupLockout:       5 * time.Minute,
		LookupMaxIPPerHour:  30,
		Clock:               clock,
	})
	defer limiter.Close()

	limiter.RecordReserve("203.0.113.7")

	if result := limiter.CheckReserve("203.0.113.7"); result.Allowed {
		t.Error("Same IP should be blocked")
	}
	if result := limiter.CheckReserve("203.0.113.8"); !result.Allowed {
		t.Errorf("Different IP should be allowed, got blocked: %s", result.Reason)
	}
}

func TestCheckLookup_Lockout(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{
		ReserveMaxPerMinute: 100,
		ReserveMaxPerHour:   100,
		LookupMaxAttempts:   3,
		LookupLockout:       5 * time.Minute,
		LookupMaxIPPerHour:  30,
		Clock:               clock,
	})
	defer limiter.Close()

	reference := "AB23CD45"
	ip := "203.0.113.9"

	// First 2 attempts allowed, 3rd triggers lockout on record
	for i := 0; i < 2; i++ {
		result := limiter.CheckLookup(reference, ip)
		if !result.Allowed {
			t.Errorf("Attempt %d should be allowed, got blocked: %s", i+1, result.Reason)
		}
		if locked := limiter.RecordLookup(reference, ip); locked {
			t.Errorf("Attempt %d should not trigger lockout", i+1)
		}
	}

	result := limiter.CheckLookup(reference, ip)
	if !result.Allowed {
		t.Errorf("Attempt 3 should be allowed, got blocked: %s", result.Reason)
	}
	if locked := limiter.RecordLookup(reference, ip); !locked {
		t.Error("Attempt 3 should trigger lockout")
	}

	result = limiter.CheckLookup(reference, ip)
	if result.Allowed {
		t.Error("Attempt during lockout should be blocked")
	}
	if result.Reason != "lockout" {
		t.Errorf("Expected reason 'lockout', got '%s'", result.Reason)
	}

	// Lockout expires
	clock.Advance(5*time.Minute + time.Second)
	result = limiter.CheckLookup(reference, ip)
	if !result.Allowed {
		t.Errorf("Attempt after lockout should be allowed, got blocked: %s", result.Reason)
	}
}

func TestCheckLookup_CaseInsensitiveReference(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{
		ReserveMaxPerMinute: 100,
		ReserveMaxPerHour:   100,
		LookupMaxAttempts:   2,
		LookupLockout:       5 * time.Minute,
		LookupMaxIPPerHour:  30,
		Clock:               clock,
	})
	defer limiter.Close()

	ip := "203.0.113.10"
	limiter.RecordLookup("ab23cd45", ip)
	limiter.RecordLookup("AB23CD45", ip)

	result := limiter.CheckLookup("Ab23Cd45", ip)
	if result.Allowed {
		t.Error("Case variants should share a counter; attempt should be blocked")
	}
}

func TestResetLookupAttempts(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{
		ReserveMaxPerMinute: 100,
		ReserveMaxPerHour:   100,
		LookupMaxAttempts:   2,
		LookupLockout:       5 * time.Minute,
		LookupMaxIPPerHour:  30,
		Clock:               clock,
	})
	defer limiter.Close()

	reference := "CD45EF67"
	ip := "203.0.113.11"

	limiter.RecordLookup(reference, ip)
	limiter.ResetLookupAttempts(reference)

	// Counter cleared; two more attempts before lockout
	limiter.RecordLookup(reference, ip)
	result := limiter.CheckLookup(reference, ip)
	if !result.Allowed {
		t.Errorf("Attempt after reset should be allowed, got blocked: %s", result.Reason)
	}
}

func TestCheckLookup_IPLimit(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{
		ReserveMaxPerMinute: 100,
		ReserveMaxPerHour:   100,
		LookupMaxAttempts:   100,
		LookupLockout:       5 * time.Minute,
		LookupMaxIPPerHour:  2,
		Clock:               clock,
	})
	defer limiter.Close()

	ip := "203.0.113.12"
	limiter.RecordLookup("REF1AAAA", ip)
	limiter.RecordLookup("REF2BBBB", ip)

	result := limiter.CheckLookup("REF3CCCC", ip)
	if result.Allowed {
		t.Error("3rd lookup from same IP should be blocked")
	}
	if result.Reason != "ip_hourly_limit" {
		t.Errorf("Expected reason 'ip_hourly_limit', got '%s'", result.Reason)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		trustProxy bool
		want       string
	}{
		{
			name:       "direct connection",
			remoteAddr: "203.0.113.1:54321",
			want:       "203.0.113.1",
		},
		{
			name:       "untrusted proxy ignores XFF",
			remoteAddr: "10.0.0.1:54321",
			xff:        "198.51.100.7",
			want:       "10.0.0.1",
		},
		{
			name:       "trusted proxy uses rightmost public XFF",
			remoteAddr: "10.0.0.1:54321",
			xff:        "198.51.100.7, 203.0.113.2, 192.168.1.1",
			trustProxy: true,
			want:       "203.0.113.2",
		},
		{
			name:       "trusted proxy falls back to X-Real-IP",
			remoteAddr: "10.0.0.1:54321",
			xri:        "198.51.100.9",
			trustProxy: true,
			want:       "198.51.100.9",
		},
		{
			name:       "no port in remote addr",
			remoteAddr: "203.0.113.3",
			want:       "203.0.113.3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &http.Request{
				RemoteAddr: tt.remoteAddr,
				Header:     make(http.Header),
			}
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := GetClientIP(r, tt.trustProxy); got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanitizeReference(t *testing.T) {
	if got := SanitizeReference("ab23cd45"); got != "***CD45" {
		t.Errorf("SanitizeReference() = %q, want %q", got, "***CD45")
	}
	if got := SanitizeReference("ab"); got != "***" {
		t.Errorf("SanitizeReference() = %q, want %q", got, "***")
	}
}
