// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"schoolhub.yaml",
	"schoolhub.yml",
	"/etc/schoolhub/config.yaml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "SCHOOLHUB_CONFIG"

func defaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:           DefaultAPIBaseURL,
			Timeout:           30 * time.Second,
			RequestsPerSecond: 0,
			Burst:             10,
			CircuitBreaker:    true,
			UserAgent:         "schoolhub-client/1.0",
		},
		Auth: AuthConfig{
			MaxLoginAttempts:  3,
			LockoutDuration:   15 * time.Minute,
			RefreshTimeout:    15 * time.Second,
			KeepAlive:         true,
			KeepAliveInterval: 30 * time.Second,
			RefreshLeadTime:   time.Minute,
		},
		Cache: CacheConfig{
			KeepUnusedFor:   60 * time.Second,
			CleanupInterval: 15 * time.Second,
		},
		Storage: StorageConfig{},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
		Mock: MockConfig{
			Addr:           "127.0.0.1:8000",
			SigningKey:     "schoolhub-mock-signing-key",
			AccessTTL:      5 * time.Minute,
			RotateRefresh:  true,
			CORSOrigins:    []string{"http://localhost:3000"},
			LoginRateLimit: 30,
		},
	}
}

// Default returns the built-in configuration without consulting files or
// the environment.
func Default() *Config {
	return defaultConfig()
}

// Load layers defaults, the optional YAML file and the environment, in
// that order of increasing priority, then validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"mock.cors_origins",
}

// processSliceFields splits comma separated env values for slice settings.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased environment names to koanf paths. Unlisted
// variables are ignored.
var envMappings = map[string]string{
	"api_base_url":            "api.base_url",
	"api_timeout":             "api.timeout",
	"api_requests_per_second": "api.requests_per_second",
	"api_burst":               "api.burst",
	"api_circuit_breaker":     "api.circuit_breaker",
	"api_user_agent":          "api.user_agent",

	"auth_max_login_attempts":  "auth.max_login_attempts",
	"auth_lockout_duration":    "auth.lockout_duration",
	"auth_refresh_timeout":     "auth.refresh_timeout",
	"auth_keep_alive":          "auth.keep_alive",
	"auth_keep_alive_interval": "auth.keep_alive_interval",
	"auth_refresh_lead_time":   "auth.refresh_lead_time",

	"cache_keep_unused_for":  "cache.keep_unused_for",
	"cache_cleanup_interval": "cache.cleanup_interval",
	"cache_max_age":          "cache.max_age",

	"storage_path":         "storage.path",
	"token_encryption_key": "storage.encryption_key",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",

	"mock_addr":             "mock.addr",
	"mock_signing_key":      "mock.signing_key",
	"mock_access_ttl":       "mock.access_ttl",
	"mock_rotate_refresh":   "mock.rotate_refresh",
	"mock_cors_origins":     "mock.cors_origins",
	"mock_login_rate_limit": "mock.login_rate_limit",
}

// envTransformFunc maps API_BASE_URL to api.base_url and so on. Returning
// "" tells koanf to skip the variable.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
