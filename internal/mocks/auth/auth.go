package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	domainauth "github.com/target/mmk-auth/internal/domain/auth"
	"github.com/target/mmk-auth/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityStore    = (*MemoryIdentityStore)(nil)
	_ ports.SessionStore     = (*MemorySessionStore)(nil)
	_ ports.LockoutStore     = (*MemoryLockoutStore)(nil)
	_ ports.AuditSink        = (*MemoryAuditSink)(nil)
	_ ports.PermissionSource = (*StaticPermissionSource)(nil)
	_ ports.Clock            = (*FakeClock)(nil)
)

// ErrUnavailable simulates a storage collaborator that cannot be reached.
var ErrUnavailable = errors.New("store unavailable")

// MemoryIdentityStore keeps identities keyed by username.
type MemoryIdentityStore struct {
	mu         sync.RWMutex
	identities map[string]domainauth.Identity

	// LoadErr, when set, is returned by every LoadIdentityByUsername call.
	LoadErr error
	// SaveErr, when set, is returned by every SaveIdentity call.
	SaveErr error
}

// NewMemoryIdentityStore creates a store seeded with the given identities.
func NewMemoryIdentityStore(identities ...domainauth.Identity) *MemoryIdentityStore {
	s := &MemoryIdentityStore{identities: make(map[string]domainauth.Identity)}
	for _, id := range identities {
		s.identities[id.Username] = id
	}
	return s
}

func (s *MemoryIdentityStore) LoadIdentityByUsername(_ context.Context, username string) (domainauth.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.LoadErr != nil {
		return domainauth.Identity{}, s.LoadErr
	}
	id, ok := s.identities[username]
	if !ok {
		return domainauth.Identity{}, ports.ErrNotFound
	}
	return id, nil
}

func (s *MemoryIdentityStore) SaveIdentity(_ context.Context, identity domainauth.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	if identity.Username == "" {
		return errors.New("username cannot be empty")
	}
	s.identities[identity.Username] = identity
	return nil
}

func (s *MemoryIdentityStore) SetLockedUntil(_ context.Context, id string, until *time.Time, at time.Time) error {
	return s.update(id, func(identity *domainauth.Identity) {
		identity.LockedUntil = until
		identity.UpdatedAt = at
	})
}

func (s *MemoryIdentityStore) SetActive(_ context.Context, id string, active bool, at time.Time) error {
	return s.update(id, func(identity *domainauth.Identity) {
		identity.Active = active
		identity.UpdatedAt = at
	})
}

func (s *MemoryIdentityStore) UpdateCredential(
	_ context.Context,
	id string,
	previous []byte,
	cred domainauth.Credential,
	at time.Time,
) (bool, error) {
	updated := false
	err := s.update(id, func(identity *domainauth.Identity) {
		if previous != nil && !bytes.Equal(identity.Credential.Digest, previous) {
			return
		}
		identity.Credential = cred
		identity.UpdatedAt = at
		updated = true
	})
	return updated, err
}

func (s *MemoryIdentityStore) update(id string, fn func(*domainauth.Identity)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	for username, identity := range s.identities {
		if identity.ID != id {
			continue
		}
		fn(&identity)
		s.identities[username] = identity
		return nil
	}
	return ports.ErrNotFound
}

// Get returns the stored identity, for assertions.
func (s *MemoryIdentityStore) Get(username string) (domainauth.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.identities[username]
	return id, ok
}

// MemorySessionStore is an in-memory session store for unit tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domainauth.Session
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]domainauth.Session),
	}
}

func (m *MemorySessionStore) Save(_ context.Context, sess domainauth.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (domainauth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok || id == "" {
		return domainauth.Session{}, ports.ErrNotFound
	}
	return sess, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemorySessionStore) DeleteByIdentity(_ context.Context, identityID string) ([]domainauth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed []domainauth.Session
	for id, sess := range m.sessions {
		if sess.IdentityID == identityID {
			removed = append(removed, sess)
			delete(m.sessions, id)
		}
	}
	return removed, nil
}

// Len returns the number of stored sessions.
func (m *MemorySessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// MemoryLockoutStore keeps lockout states keyed by lockout key.
type MemoryLockoutStore struct {
	mu     sync.Mutex
	states map[string]ports.LockoutState
}

// NewMemoryLockoutStore creates an empty lockout store.
func NewMemoryLockoutStore() *MemoryLockoutStore {
	return &MemoryLockoutStore{states: make(map[string]ports.LockoutState)}
}

func (m *MemoryLockoutStore) SaveLockout(_ context.Context, state ports.LockoutState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.Key] = state
	return nil
}

func (m *MemoryLockoutStore) DeleteLockout(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, key)
	return nil
}

func (m *MemoryLockoutStore) LoadLockouts(_ context.Context) ([]ports.LockoutState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ports.LockoutState, 0, len(m.states))
	for _, st := range m.states {
		out = append(out, st)
	}
	return out, nil
}

// State returns the stored lockout state for key.
func (m *MemoryLockoutStore) State(key string) (ports.LockoutState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[key]
	return st, ok
}

// MemoryAuditSink records every appended event.
type MemoryAuditSink struct {
	mu     sync.Mutex
	events []domainauth.AuditEvent

	// Err, when set, is returned from AppendAuditEvent after the event is dropped.
	Err error
}

// NewMemoryAuditSink creates an empty audit sink.
func NewMemoryAuditSink() *MemoryAuditSink {
	return &MemoryAuditSink{}
}

func (m *MemoryAuditSink) AppendAuditEvent(_ context.Context, event domainauth.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of all recorded events.
func (m *MemoryAuditSink) Events() []domainauth.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domainauth.AuditEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Actions returns the recorded actions in order, optionally filtered by username.
func (m *MemoryAuditSink) Actions(username string) []domainauth.AuditAction {
	var out []domainauth.AuditAction
	for _, ev := range m.Events() {
		if username == "" || ev.Username == username {
			out = append(out, ev.Action)
		}
	}
	return out
}

// StaticPermissionSource returns a fixed mapping.
type StaticPermissionSource struct {
	Map domainauth.PermissionMap
	Err error
}

func (s *StaticPermissionSource) LoadRolePermissionMap(_ context.Context) (domainauth.PermissionMap, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	out := make(domainauth.PermissionMap, len(s.Map))
	for role, caps := range s.Map {
		out[role] = caps.Clone()
	}
	return out, nil
}

// FakeClock is a settable Clock safe for concurrent use.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a clock frozen at t.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t}
}

// Now returns the frozen time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
