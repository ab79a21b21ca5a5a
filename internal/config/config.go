// Package config defines the service configuration: plain data types,
// defaults, and validation. Loading and parsing live in loader.go.
package config

import (
	"fmt"
	"time"

	"github.com/nackswinget/calsync/internal/infrastructure/blob/minio"
	"github.com/nackswinget/calsync/internal/infrastructure/ido"
	"github.com/nackswinget/calsync/internal/infrastructure/monitoring/logging"
	"github.com/nackswinget/calsync/internal/infrastructure/push/kafka"
	"github.com/nackswinget/calsync/internal/infrastructure/store/redis"
)

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SyncConfig holds reconciliation tunables.
type SyncConfig struct {
	// OrgID is the organization whose calendars are mirrored.
	OrgID string `mapstructure:"org_id"`

	// Timezone is the display zone for calendar output and notification
	// copy.
	Timezone string `mapstructure:"timezone"`

	// OpenPracticeCalendar is the calendar whose notifications use
	// booking-centric copy.
	OpenPracticeCalendar string `mapstructure:"open_practice_calendar"`

	// Lookahead is the notification eligibility window.
	Lookahead time.Duration `mapstructure:"lookahead"`

	// Concurrency bounds parallel per-calendar reconciliation.
	Concurrency int `mapstructure:"concurrency"`

	// Schedule is the cron expression for periodic lean runs; empty
	// disables the scheduler.
	Schedule string `mapstructure:"schedule"`
}

// Config is the root configuration.
type Config struct {
	Server ServerConfig   `mapstructure:"server"`
	Sync   SyncConfig     `mapstructure:"sync"`
	Portal ido.Config     `mapstructure:"portal"`
	Redis  redis.Config   `mapstructure:"redis"`
	Blob   minio.Config   `mapstructure:"blob"`
	Push   kafka.Config   `mapstructure:"push"`
	Log    logging.Config `mapstructure:"log"`
}

// ApplyDefaults fills unset fields with working defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		// Full updates drive a headless browser; the update endpoints are
		// slow by nature.
		cfg.Server.WriteTimeout = 10 * time.Minute
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}

	if cfg.Sync.Timezone == "" {
		cfg.Sync.Timezone = "Europe/Stockholm"
	}
	if cfg.Sync.OpenPracticeCalendar == "" {
		cfg.Sync.OpenPracticeCalendar = "Friträning"
	}
	if cfg.Sync.Lookahead == 0 {
		cfg.Sync.Lookahead = 6 * 24 * time.Hour
	}
	if cfg.Sync.Concurrency == 0 {
		cfg.Sync.Concurrency = 1
	}

	if cfg.Blob.Bucket == "" {
		cfg.Blob.Bucket = "calendars"
	}
	if cfg.Blob.Timezone == "" {
		cfg.Blob.Timezone = cfg.Sync.Timezone
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if len(cfg.Log.OutputPaths) == 0 {
		cfg.Log.OutputPaths = []string{"stdout"}
	}
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Sync.OrgID == "" {
		return fmt.Errorf("sync.org_id is required")
	}
	if _, err := time.LoadLocation(c.Sync.Timezone); err != nil {
		return fmt.Errorf("sync.timezone %q: %w", c.Sync.Timezone, err)
	}
	if c.Sync.Lookahead < 0 {
		return fmt.Errorf("sync.lookahead must not be negative")
	}
	if err := c.Portal.Validate(); err != nil {
		return fmt.Errorf("portal: %w", err)
	}
	if err := c.Push.Validate(); err != nil {
		return fmt.Errorf("push: %w", err)
	}
	if c.Blob.Endpoint == "" {
		return fmt.Errorf("blob.endpoint is required")
	}
	return nil
}

// Location returns the parsed display time zone. Validate must have passed.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Sync.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
