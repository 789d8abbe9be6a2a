package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"sync"
	"time"

	domainauth "github.com/target/mmk-auth/internal/domain/auth"
	apperrors "github.com/target/mmk-auth/internal/errors"
	"github.com/target/mmk-auth/internal/ports"
)

const (
	// DefaultIdleTimeout is how long a session may go unused before it expires.
	DefaultIdleTimeout = 8 * time.Hour
	// sessionIDBytes is the entropy of a session id.
	sessionIDBytes = 32
)

// SessionManagerOptions groups dependencies for SessionManager.
type SessionManagerOptions struct {
	IdleTimeout time.Duration
	Clock       ports.Clock        // Optional: defaults to the system clock
	Store       ports.SessionStore // Optional: durable mirror of the live index
	Logger      *slog.Logger       // Optional
}

// SessionManager owns the live-session index. Inserts, lookups and removals
// happen under one mutex; the optional store is written after the decision
// and its failures never change the outcome.
type SessionManager struct {
	mu   sync.Mutex
	live map[string]*domainauth.Session
	// ended remembers recently removed ids so a stale store copy is never
	// revived. It is only populated when a store is configured.
	ended map[string]time.Time

	idleTimeout time.Duration
	clock       ports.Clock
	store       ports.SessionStore
	logger      *slog.Logger
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(opts SessionManagerOptions) *SessionManager {
	idle := opts.IdleTimeout
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	clock := opts.Clock
	if clock == nil {
		clock = ports.SystemClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		live:        make(map[string]*domainauth.Session),
		ended:       make(map[string]time.Time),
		idleTimeout: idle,
		clock:       clock,
		store:       opts.Store,
		logger:      logger.With("component", "session_manager"),
	}
}

// IdleTimeout returns the configured idle timeout.
func (m *SessionManager) IdleTimeout() time.Duration { return m.idleTimeout }

// Create mints a session for identity and inserts it into the live index.
func (m *SessionManager) Create(
	ctx context.Context,
	identity domainauth.Identity,
	client domainauth.ClientMetadata,
) (domainauth.Session, error) {
	id, err := newSessionID()
	if err != nil {
		return domainauth.Session{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "generate session id")
	}

	m.mu.Lock()
	now := m.clock.Now()
	sess := &domainauth.Session{
		ID:             id,
		IdentityID:     identity.ID,
		Username:       identity.Username,
		Role:           identity.Role,
		CreatedAt:      now,
		LastActivityAt: now,
		Client:         client,
		Status:         domainauth.SessionActive,
	}
	m.live[id] = sess
	out := *sess
	m.mu.Unlock()

	m.save(ctx, out)
	return out, nil
}

// Validate returns the session for id and slides its idle window forward.
// An unknown id yields SessionNotFound; an idle one is removed and yields
// SessionExpired along with the expired session for auditing.
func (m *SessionManager) Validate(ctx context.Context, id string) (domainauth.Session, error) {
	if id == "" {
		return domainauth.Session{}, apperrors.SessionNotFound()
	}

	m.mu.Lock()
	_, ok := m.live[id]
	m.mu.Unlock()
	if !ok {
		m.rehydrate(ctx, id)
	}

	m.mu.Lock()
	sess, ok := m.live[id]
	if !ok {
		m.mu.Unlock()
		return domainauth.Session{}, apperrors.SessionNotFound()
	}
	now := m.clock.Now()
	if sess.IdleFor(now) > m.idleTimeout {
		sess.Status = domainauth.SessionExpired
		delete(m.live, id)
		m.endLocked(id, now)
		expired := *sess
		m.mu.Unlock()

		m.remove(ctx, id)
		return expired, apperrors.SessionExpired()
	}
	sess.LastActivityAt = now
	out := *sess
	m.mu.Unlock()

	m.save(ctx, out)
	return out, nil
}

// Terminate ends the session. It reports whether a live session was removed;
// terminating an absent session is a no-op.
func (m *SessionManager) Terminate(ctx context.Context, id string) (domainauth.Session, bool) {
	m.mu.Lock()
	sess, ok := m.live[id]
	if ok {
		delete(m.live, id)
		m.endLocked(id, m.clock.Now())
		sess.Status = domainauth.SessionTerminated
	}
	m.mu.Unlock()

	if !ok {
		return domainauth.Session{}, false
	}
	m.remove(ctx, id)
	return *sess, true
}

// LockIdentity ends every session of identityID with status locked and
// returns them. With a store configured this includes sessions persisted by
// an earlier process that were never rehydrated here.
func (m *SessionManager) LockIdentity(ctx context.Context, identityID string) []domainauth.Session {
	out := m.removeWhere(ctx, domainauth.SessionLocked, func(s *domainauth.Session, _ time.Time) bool {
		return s.IdentityID == identityID
	})
	if m.store == nil {
		return out
	}

	stored, err := m.store.DeleteByIdentity(ctx, identityID)
	if err != nil {
		m.logger.WarnContext(ctx, "delete persisted sessions failed", "identity_id", identityID, "error", err)
		return out
	}

	seen := make(map[string]struct{}, len(out))
	for _, s := range out {
		seen[s.ID] = struct{}{}
	}
	m.mu.Lock()
	now := m.clock.Now()
	for _, s := range stored {
		if _, dup := seen[s.ID]; dup || !s.IsActive() {
			continue
		}
		// A concurrent Validate may have rehydrated it after removeWhere ran.
		delete(m.live, s.ID)
		m.endLocked(s.ID, now)
		s.Status = domainauth.SessionLocked
		out = append(out, s)
	}
	m.mu.Unlock()
	return out
}

// Sweep expires every idle session and returns them.
func (m *SessionManager) Sweep(ctx context.Context) []domainauth.Session {
	return m.removeWhere(ctx, domainauth.SessionExpired, func(s *domainauth.Session, now time.Time) bool {
		return s.IdleFor(now) > m.idleTimeout
	})
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// CountFor returns the number of live sessions of identityID.
func (m *SessionManager) CountFor(identityID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.live {
		if s.IdentityID == identityID {
			n++
		}
	}
	return n
}

// Close drops every live session without touching the store, so persisted
// sessions can be picked up again after a restart.
func (m *SessionManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.live = make(map[string]*domainauth.Session)
	m.ended = make(map[string]time.Time)
}

func (m *SessionManager) removeWhere(
	ctx context.Context,
	status domainauth.SessionStatus,
	match func(*domainauth.Session, time.Time) bool,
) []domainauth.Session {
	m.mu.Lock()
	now := m.clock.Now()
	var out []domainauth.Session
	for id, s := range m.live {
		if !match(s, now) {
			continue
		}
		delete(m.live, id)
		m.endLocked(id, now)
		s.Status = status
		out = append(out, *s)
	}
	m.mu.Unlock()

	for _, s := range out {
		m.remove(ctx, s.ID)
	}
	return out
}

// endLocked records a tombstone for id and drops tombstones older than the
// idle timeout, after which any stored copy has expired anyway. Callers hold mu.
func (m *SessionManager) endLocked(id string, now time.Time) {
	if m.store == nil {
		return
	}
	m.ended[id] = now
	for endedID, at := range m.ended {
		if now.Sub(at) > m.idleTimeout {
			delete(m.ended, endedID)
		}
	}
}

// rehydrate pulls a session persisted by an earlier process back into the
// live index. Store failures are logged and treated as not found.
func (m *SessionManager) rehydrate(ctx context.Context, id string) {
	if m.store == nil {
		return
	}
	sess, err := m.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, ports.ErrNotFound) {
			m.logger.WarnContext(ctx, "session store lookup failed", "error", err)
		}
		return
	}
	if sess.ID != id || !sess.IsActive() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, gone := m.ended[id]; gone {
		return
	}
	if _, exists := m.live[id]; !exists {
		m.live[id] = &sess
	}
}

func (m *SessionManager) save(ctx context.Context, sess domainauth.Session) {
	if m.store == nil {
		return
	}
	if err := m.store.Save(ctx, sess); err != nil {
		m.logger.WarnContext(ctx, "persist session failed", "username", sess.Username, "error", err)
	}
}

func (m *SessionManager) remove(ctx context.Context, id string) {
	if m.store == nil {
		return
	}
	if err := m.store.Delete(ctx, id); err != nil {
		m.logger.WarnContext(ctx, "delete persisted session failed", "error", err)
	}
}

func newSessionID() (string, error) {
	var buf [sessionIDBytes]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf[:]), nil
}
