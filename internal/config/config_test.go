package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.App.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.App.Port)
	}
	if cfg.Booking.MaxDurationHours != 5 {
		t.Errorf("max duration = %d, want 5", cfg.Booking.MaxDurationHours)
	}
	if cfg.Booking.LeadTime.Std() != time.Hour {
		t.Errorf("lead time = %v, want 1h", cfg.Booking.LeadTime.Std())
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("driver = %s, want sqlite", cfg.Database.Driver)
	}
}

func TestLoad_YAMLOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
app:
  name: arenadesk
  environment: production
  port: 9090
database:
  driver: sqlite
  filename: /tmp/test.db
booking:
  max_duration_hours: 3
  lead_time: 2h
  phone_region: SG
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.App.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.App.Port)
	}
	if cfg.Booking.MaxDurationHours != 3 {
		t.Errorf("max duration = %d, want 3", cfg.Booking.MaxDurationHours)
	}
	if cfg.Booking.LeadTime.Std() != 2*time.Hour {
		t.Errorf("lead time = %v, want 2h", cfg.Booking.LeadTime.Std())
	}
	if cfg.Booking.PhoneRegion != "SG" {
		t.Errorf("phone region = %s, want SG", cfg.Booking.PhoneRegion)
	}
	// Untouched keys keep their defaults.
	if cfg.Booking.CommitRetries != 3 {
		t.Errorf("commit retries = %d, want default 3", cfg.Booking.CommitRetries)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("DATABASE_FILENAME", "/tmp/env.db")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.App.Port != 7070 {
		t.Errorf("port = %d, want 7070", cfg.App.Port)
	}
	if cfg.Database.Filename != "/tmp/env.db" {
		t.Errorf("filename = %s, want /tmp/env.db", cfg.Database.Filename)
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unsupported driver", func(c *Config) { c.Database.Driver = "postgres" }},
		{"missing filename", func(c *Config) { c.Database.Filename = "" }},
		{"zero duration cap", func(c *Config) { c.Booking.MaxDurationHours = 0 }},
		{"negative lead time", func(c *Config) { c.Booking.LeadTime = Duration(-time.Hour) }},
		{"zero reference attempts", func(c *Config) { c.Booking.ReferenceAttempts = 0 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaults()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}
}

func TestLoad_BadPort(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	if _, err := Load(""); err == nil {
		t.Error("Load() should reject a non-numeric PORT")
	}
}
