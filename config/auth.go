package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	// MinHashIterations is the lowest PBKDF2 work factor accepted from configuration.
	MinHashIterations = 100_000
	minSaltLength     = 16
)

// PermissionSourceMode selects where the role to capability mapping is loaded from.
type PermissionSourceMode string

const (
	// PermissionSourceStatic uses the built-in default matrix.
	PermissionSourceStatic PermissionSourceMode = "static"
	// PermissionSourceDatabase loads the role_permissions table.
	PermissionSourceDatabase PermissionSourceMode = "database"
)

// UnmarshalText implements encoding.TextUnmarshaler for PermissionSourceMode.
func (m *PermissionSourceMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "static", "database":
		*m = PermissionSourceMode(v)
		return nil
	default:
		return fmt.Errorf("invalid PermissionSourceMode: %q (valid options: static, database)", v)
	}
}

// Backend selects where a piece of runtime state is mirrored.
type Backend string

const (
	// BackendMemory keeps state in process only.
	BackendMemory Backend = "memory"
	// BackendRedis mirrors state to Redis.
	BackendRedis Backend = "redis"
	// BackendPostgres mirrors state to PostgreSQL.
	BackendPostgres Backend = "postgres"
)

// UnmarshalText implements encoding.TextUnmarshaler for Backend.
func (b *Backend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "memory", "redis", "postgres":
		*b = Backend(v)
		return nil
	default:
		return fmt.Errorf("invalid Backend: %q (valid options: memory, redis, postgres)", v)
	}
}

// SecurityConfig holds the authentication policy constants.
type SecurityConfig struct {
	// IdleTimeout is how long a session may go unused before it expires.
	IdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"8h"`

	// LockoutThreshold is the number of failures within LockoutWindow that locks an identity.
	LockoutThreshold int           `env:"LOCKOUT_THRESHOLD" envDefault:"5"`
	LockoutWindow    time.Duration `env:"LOCKOUT_WINDOW"    envDefault:"30m"`
	LockoutDuration  time.Duration `env:"LOCKOUT_DURATION"  envDefault:"30m"`
	// LockoutTrackOrigin also counts failures per client origin across usernames.
	LockoutTrackOrigin bool `env:"LOCKOUT_TRACK_ORIGIN" envDefault:"false"`

	HashIterations  int `env:"HASH_ITERATIONS"   envDefault:"100000"`
	SaltLength      int `env:"HASH_SALT_LENGTH"  envDefault:"32"`
	MinSecretLength int `env:"MIN_SECRET_LENGTH" envDefault:"8"`

	// SuperRole is granted every capability. Set to "none" to disable.
	SuperRole string `env:"SUPER_ROLE" envDefault:"admin"`

	PermissionSource PermissionSourceMode `env:"PERMISSION_SOURCE" envDefault:"static"`
	SessionBackend   Backend              `env:"SESSION_BACKEND"   envDefault:"memory"`
	LockoutBackend   Backend              `env:"LOCKOUT_BACKEND"   envDefault:"memory"`
	// AuditToDatabase appends audit events to the audit_events table; otherwise they are only logged.
	AuditToDatabase bool `env:"AUDIT_TO_DATABASE" envDefault:"true"`
}

// Sanitize applies guardrails to security configuration values.
func (c *SecurityConfig) Sanitize() {
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 8 * time.Hour
	}
	if c.LockoutThreshold < 1 {
		c.LockoutThreshold = 5
	}
	if c.LockoutWindow <= 0 {
		c.LockoutWindow = 30 * time.Minute
	}
	if c.LockoutDuration <= 0 {
		c.LockoutDuration = 30 * time.Minute
	}

	// Never allow a weaker work factor than the documented floor.
	if c.HashIterations < MinHashIterations {
		c.HashIterations = MinHashIterations
	}
	if c.SaltLength < minSaltLength {
		c.SaltLength = 32
	}
	if c.MinSecretLength < 1 {
		c.MinSecretLength = 1
	}

	c.SuperRole = strings.ToLower(strings.TrimSpace(c.SuperRole))
	if c.SuperRole == "none" {
		c.SuperRole = ""
	}

	if c.PermissionSource == "" {
		c.PermissionSource = PermissionSourceStatic
	}
	if c.SessionBackend == "" || c.SessionBackend == BackendPostgres {
		// Sessions are only mirrored to Redis.
		c.SessionBackend = BackendMemory
	}
	if c.LockoutBackend == "" {
		c.LockoutBackend = BackendMemory
	}
}
