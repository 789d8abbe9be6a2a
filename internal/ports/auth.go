package ports

// Package ports defines interfaces (hexagonal ports) for the auth core's
// persistence collaborators. Implementations live in internal/adapters and
// internal/data; orchestration in internal/service.

import (
	"context"
	"errors"
	"time"

	domainauth "github.com/target/mmk-auth/internal/domain/auth"
)

// ErrNotFound is returned by stores when the requested record does not exist.
// Any other error means the store itself failed.
var ErrNotFound = errors.New("not found")

// IdentityStore loads and saves identities.
//
// SaveIdentity replaces the whole record and is only used for registration.
// Every later change goes through a narrow setter so a copy loaded before a
// slow hash never overwrites a concurrent change.
type IdentityStore interface {
	// LoadIdentityByUsername returns ErrNotFound when the username is not registered.
	LoadIdentityByUsername(ctx context.Context, username string) (domainauth.Identity, error)
	SaveIdentity(ctx context.Context, identity domainauth.Identity) error
	// SetLockedUntil stamps or clears (nil) the persisted lock only.
	// It returns ErrNotFound for an unknown id.
	SetLockedUntil(ctx context.Context, id string, until *time.Time, at time.Time) error
	// SetActive changes the active flag only. It returns ErrNotFound for an unknown id.
	SetActive(ctx context.Context, id string, active bool, at time.Time) error
	// UpdateCredential replaces the credential. With a non-nil previous digest
	// the write only happens while the stored digest still equals it, and the
	// result reports whether it did.
	UpdateCredential(ctx context.Context, id string, previous []byte, cred domainauth.Credential, at time.Time) (bool, error)
}

// SessionStore persists and retrieves user sessions.
// The in-memory session index is authoritative; a store is a durable mirror.
type SessionStore interface {
	Save(ctx context.Context, sess domainauth.Session) error
	Get(ctx context.Context, id string) (domainauth.Session, error)
	Delete(ctx context.Context, id string) error
	// DeleteByIdentity removes every stored session of identityID, including
	// ones written by an earlier process, and returns them.
	DeleteByIdentity(ctx context.Context, identityID string) ([]domainauth.Session, error)
}

// LockoutState is the persisted form of a lockout counter.
type LockoutState struct {
	Key         string
	Failures    []time.Time
	LockedUntil *time.Time
}

// LockoutStore mirrors lockout counters so they survive a restart.
type LockoutStore interface {
	SaveLockout(ctx context.Context, state LockoutState) error
	DeleteLockout(ctx context.Context, key string) error
	LoadLockouts(ctx context.Context) ([]LockoutState, error)
}

// AuditSink receives append-only audit events.
type AuditSink interface {
	AppendAuditEvent(ctx context.Context, event domainauth.AuditEvent) error
}

// PermissionSource provides the role to capability mapping.
type PermissionSource interface {
	LoadRolePermissionMap(ctx context.Context) (domainauth.PermissionMap, error)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is a Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time { return time.Now() }
