package config

import (
	"reflect"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	expected := SecurityConfig{
		IdleTimeout:      8 * time.Hour,
		LockoutThreshold: 5,
		LockoutWindow:    30 * time.Minute,
		LockoutDuration:  30 * time.Minute,
		HashIterations:   100_000,
		SaltLength:       32,
		MinSecretLength:  8,
		SuperRole:        "admin",
		PermissionSource: PermissionSourceStatic,
		SessionBackend:   BackendMemory,
		LockoutBackend:   BackendMemory,
		AuditToDatabase:  true,
	}
	if !reflect.DeepEqual(cfg.Security, expected) {
		t.Fatalf("unexpected security defaults:\nexpected: %#v\ngot:      %#v", expected, cfg.Security)
	}
	if cfg.NeedsRedis() {
		t.Fatalf("default config should not need redis")
	}
	if cfg.Sweeper.Interval != 5*time.Minute || !cfg.Sweeper.Enabled {
		t.Fatalf("unexpected sweeper defaults: %#v", cfg.Sweeper)
	}
}

func TestAppConfig_ParseSecurityEnv(t *testing.T) {
	t.Setenv("AUTH_SESSION_IDLE_TIMEOUT", "2h")
	t.Setenv("AUTH_LOCKOUT_THRESHOLD", "3")
	t.Setenv("AUTH_LOCKOUT_WINDOW", "10m")
	t.Setenv("AUTH_LOCKOUT_DURATION", "1h")
	t.Setenv("AUTH_LOCKOUT_TRACK_ORIGIN", "true")
	t.Setenv("AUTH_HASH_ITERATIONS", "310000")
	t.Setenv("AUTH_MIN_SECRET_LENGTH", "12")
	t.Setenv("AUTH_SUPER_ROLE", " NONE ")
	t.Setenv("AUTH_PERMISSION_SOURCE", "Database")
	t.Setenv("AUTH_SESSION_BACKEND", "redis")
	t.Setenv("AUTH_LOCKOUT_BACKEND", "postgres")
	t.Setenv("AUTH_AUDIT_TO_DATABASE", "false")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	expected := SecurityConfig{
		IdleTimeout:        2 * time.Hour,
		LockoutThreshold:   3,
		LockoutWindow:      10 * time.Minute,
		LockoutDuration:    time.Hour,
		LockoutTrackOrigin: true,
		HashIterations:     310_000,
		SaltLength:         32,
		MinSecretLength:    12,
		SuperRole:          "",
		PermissionSource:   PermissionSourceDatabase,
		SessionBackend:     BackendRedis,
		LockoutBackend:     BackendPostgres,
	}
	if !reflect.DeepEqual(cfg.Security, expected) {
		t.Fatalf("unexpected security configuration:\nexpected: %#v\ngot:      %#v", expected, cfg.Security)
	}
	if !cfg.NeedsRedis() {
		t.Fatalf("redis session backend should need redis")
	}
}

func TestAppConfig_InvalidEnum(t *testing.T) {
	t.Setenv("AUTH_PERMISSION_SOURCE", "ldap")

	var cfg AppConfig
	if err := env.Parse(&cfg); err == nil {
		t.Fatalf("expected parse error for invalid permission source")
	}
}

func TestSecurityConfig_Sanitize(t *testing.T) {
	cfg := SecurityConfig{
		HashIterations:  1000,
		SaltLength:      4,
		MinSecretLength: -1,
		SessionBackend:  BackendPostgres,
		SuperRole:       " Admin ",
	}
	cfg.Sanitize()

	if cfg.HashIterations != MinHashIterations {
		t.Fatalf("expected iterations floor, got %d", cfg.HashIterations)
	}
	if cfg.SaltLength != 32 {
		t.Fatalf("expected salt length default, got %d", cfg.SaltLength)
	}
	if cfg.MinSecretLength != 1 {
		t.Fatalf("expected min secret length clamp, got %d", cfg.MinSecretLength)
	}
	if cfg.SessionBackend != BackendMemory {
		t.Fatalf("sessions cannot be mirrored to postgres, got %q", cfg.SessionBackend)
	}
	if cfg.SuperRole != "admin" {
		t.Fatalf("expected normalised super role, got %q", cfg.SuperRole)
	}
	if cfg.IdleTimeout != 8*time.Hour || cfg.LockoutThreshold != 5 {
		t.Fatalf("expected zero values to fall back to defaults: %#v", cfg)
	}
}

func TestSweeperConfig_Sanitize(t *testing.T) {
	cfg := SweeperConfig{Interval: time.Second}
	cfg.Sanitize()
	if cfg.Interval != 10*time.Second {
		t.Fatalf("expected minimum interval, got %v", cfg.Interval)
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " ",
	}

	cfg.Sanitize()

	if cfg.Enabled {
		t.Fatalf("expected enabled to be false when address is empty")
	}
	if cfg.Prefix != "mmk_auth" {
		t.Fatalf("expected default prefix, got %q", cfg.Prefix)
	}

	cfg = ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " statsd:1234 ",
	}

	cfg.Sanitize()

	if !cfg.IsEnabled() {
		t.Fatalf("expected metrics to remain enabled")
	}
	if cfg.StatsdAddress != "statsd:1234" {
		t.Fatalf("expected address to be trimmed, got %q", cfg.StatsdAddress)
	}
}
