// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

// Package config loads SchoolHub client configuration.
//
// Sources are layered with koanf: built-in defaults, then an optional YAML
// file, then environment variables. The single setting most deployments
// touch is the backend location:
//
//	API_BASE_URL=https://staging.schoolhub.app schoolhub whoami
//
// When unset, the client talks to the production backend at
// DefaultAPIBaseURL.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/schoolhub/internal/validation"
)

// DefaultAPIBaseURL is the production backend.
const DefaultAPIBaseURL = "https://api.schoolhub.app"

// Config is the root configuration.
type Config struct {
	API        APIConfig        `koanf:"api"`
	Auth       AuthConfig       `koanf:"auth"`
	Cache      CacheConfig      `koanf:"cache"`
	Storage    StorageConfig    `koanf:"storage"`
	Logging    LoggingConfig    `koanf:"logging"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
	Mock       MockConfig       `koanf:"mock"`
}

// APIConfig controls the HTTP client.
type APIConfig struct {
	// BaseURL is scheme and host of the backend, without the /api/v1 prefix.
	BaseURL string `koanf:"base_url" validate:"required,http_url"`

	// Timeout bounds a single HTTP exchange, replay included separately.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// RequestsPerSecond throttles outbound calls. 0 disables throttling.
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"gte=0"`
	Burst             int     `koanf:"burst" validate:"gte=0"`

	// CircuitBreaker trips after repeated transport or 5xx failures.
	CircuitBreaker bool `koanf:"circuit_breaker"`

	UserAgent string `koanf:"user_agent"`
}

// AuthConfig controls the session state machine.
type AuthConfig struct {
	MaxLoginAttempts int           `koanf:"max_login_attempts" validate:"gte=1"`
	LockoutDuration  time.Duration `koanf:"lockout_duration" validate:"gt=0"`
	RefreshTimeout   time.Duration `koanf:"refresh_timeout" validate:"gt=0"`

	// KeepAlive refreshes the access token shortly before it expires.
	KeepAlive         bool          `koanf:"keep_alive"`
	KeepAliveInterval time.Duration `koanf:"keep_alive_interval" validate:"gt=0"`
	RefreshLeadTime   time.Duration `koanf:"refresh_lead_time" validate:"gte=0"`
}

// CacheConfig controls the entity cache.
type CacheConfig struct {
	// KeepUnusedFor is how long an entry survives after its last subscriber
	// leaves.
	KeepUnusedFor   time.Duration `koanf:"keep_unused_for" validate:"gt=0"`
	CleanupInterval time.Duration `koanf:"cleanup_interval" validate:"gt=0"`

	// MaxAge marks entries stale after this long. 0 means only invalidation
	// makes an entry stale.
	MaxAge time.Duration `koanf:"max_age" validate:"gte=0"`
}

// StorageConfig controls where credentials are kept.
type StorageConfig struct {
	// Path is the BadgerDB directory backing the persistent scope. Empty
	// keeps the persistent scope in memory.
	Path string `koanf:"path"`

	// EncryptionKey is a base64 key (16 bytes or more) for encrypting stored
	// tokens. Empty stores them in clear text.
	EncryptionKey string `koanf:"encryption_key" validate:"omitempty,base64"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error disabled"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// SupervisorConfig tunes restart behaviour of background services.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold" validate:"gt=0"`
	FailureDecay     float64       `koanf:"failure_decay" validate:"gt=0"`
	FailureBackoff   time.Duration `koanf:"failure_backoff" validate:"gt=0"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// MockConfig configures the development backend in cmd/mockapi.
type MockConfig struct {
	Addr          string        `koanf:"addr" validate:"required"`
	SigningKey    string        `koanf:"signing_key" validate:"required,min=16"`
	AccessTTL     time.Duration `koanf:"access_ttl" validate:"gt=0"`
	RotateRefresh bool          `koanf:"rotate_refresh"`
	CORSOrigins   []string      `koanf:"cors_origins"`

	// LoginRateLimit is login requests per minute per client IP. 0 disables.
	LoginRateLimit int `koanf:"login_rate_limit" validate:"gte=0"`
}

// Validate checks field rules and cross-field constraints.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}
	if strings.HasSuffix(strings.TrimRight(c.API.BaseURL, "/"), "/api/v1") {
		return errors.New("api.base_url must not include the /api/v1 prefix")
	}
	if c.Auth.KeepAlive && c.Auth.RefreshLeadTime == 0 {
		return errors.New("auth.refresh_lead_time must be set when keep_alive is enabled")
	}
	if c.Cache.CleanupInterval > c.Cache.KeepUnusedFor {
		return fmt.Errorf("cache.cleanup_interval (%s) must not exceed cache.keep_unused_for (%s)",
			c.Cache.CleanupInterval, c.Cache.KeepUnusedFor)
	}
	return nil
}
