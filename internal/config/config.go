// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "90m" parse.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped standard duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
}

// BookingConfig carries the reservation policy. The five hour duration cap
// and one hour same-day lead time mirror the front desk rules; both are
// policy, not invariants, so they live in configuration.
type BookingConfig struct {
	MaxDurationHours  int      `yaml:"max_duration_hours"`
	LeadTime          Duration `yaml:"lead_time"`
	CommitRetries     int      `yaml:"commit_retries"`
	ReferenceAttempts int      `yaml:"reference_attempts"`
	PhoneRegion       string   `yaml:"phone_region"`
	PendingGrace      Duration `yaml:"pending_grace"`
	ExpiryInterval    Duration `yaml:"expiry_interval"`
}

type Config struct {
	App struct {
		Name            string   `yaml:"name"`
		Environment     string   `yaml:"environment"`
		Port            int      `yaml:"port"`
		ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	} `yaml:"app"`

	Database DatabaseConfig `yaml:"database"`
	Booking  BookingConfig  `yaml:"booking"`
}

// Load loads both .env and yaml configuration. An empty configPath yields
// the defaults, adjusted by environment variables only.
func Load(configPath string) (*Config, error) {
	cfg := defaults()

	if configPath != "" {
		// Load .env file if it exists
		envPath := filepath.Join(filepath.Dir(configPath), ".env")
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}

		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	} else if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	if port := os.Getenv("PORT"); port != "" {
		parsed, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT value: %q", port)
		}
		cfg.App.Port = parsed
	}
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		cfg.App.Environment = env
	}
	if filename := os.Getenv("DATABASE_FILENAME"); filename != "" {
		cfg.Database.Filename = filename
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.App.Name = "arenadesk"
	cfg.App.Environment = "development"
	cfg.App.Port = 8080
	cfg.App.ShutdownTimeout = Duration(30 * time.Second)
	cfg.Database.Driver = "sqlite"
	cfg.Database.Filename = "data/arenadesk.db"
	cfg.Booking = BookingConfig{
		MaxDurationHours:  5,
		LeadTime:          Duration(time.Hour),
		CommitRetries:     3,
		ReferenceAttempts: 5,
		PhoneRegion:       "ID",
		PendingGrace:      Duration(2 * time.Hour),
		ExpiryInterval:    Duration(15 * time.Minute),
	}
	return cfg
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if c.Database.Driver != "sqlite" {
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Database.Filename == "" {
		return fmt.Errorf("database filename is required for sqlite")
	}
	if c.Booking.MaxDurationHours < 1 {
		return fmt.Errorf("booking max_duration_hours must be at least 1")
	}
	if c.Booking.LeadTime < 0 {
		return fmt.Errorf("booking lead_time must not be negative")
	}
	if c.Booking.CommitRetries < 0 {
		return fmt.Errorf("booking commit_retries must not be negative")
	}
	if c.Booking.ReferenceAttempts < 1 {
		return fmt.Errorf("booking reference_attempts must be at least 1")
	}
	if c.Booking.PendingGrace < 0 {
		return fmt.Errorf("booking pending_grace must not be negative")
	}
	return nil
}
