package core

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/target/mmk-auth/internal/ports"
)

const (
	// DefaultLockoutThreshold is the number of failures within the window that locks a key.
	DefaultLockoutThreshold = 5
	// DefaultLockoutWindow is the sliding window failures are counted in.
	DefaultLockoutWindow = 30 * time.Minute
	// DefaultLockoutDuration is how long a key stays locked once the threshold is reached.
	DefaultLockoutDuration = 30 * time.Minute
)

// LockoutConfig holds the lockout policy.
type LockoutConfig struct {
	Threshold int
	Window    time.Duration
	Duration  time.Duration
	// TrackOrigin also counts failures per client origin, across usernames.
	TrackOrigin bool
}

// LockoutGuardOptions groups dependencies for LockoutGuard.
type LockoutGuardOptions struct {
	Config LockoutConfig
	Clock  ports.Clock        // Optional: defaults to the system clock
	Store  ports.LockoutStore // Optional: durable mirror of the counters
	Logger *slog.Logger       // Optional
}

// LockoutGuard tracks failed attempts per key and suspends keys that fail too often.
// All reads and writes of the counter table happen under one mutex.
type LockoutGuard struct {
	mu      sync.Mutex
	entries map[string]*lockoutEntry

	cfg    LockoutConfig
	clock  ports.Clock
	store  ports.LockoutStore
	logger *slog.Logger
}

type lockoutEntry struct {
	failures    []time.Time
	lockedUntil time.Time
	// pending counts admitted attempts whose outcome is not known yet.
	pending int
}

// NewLockoutGuard constructs a LockoutGuard.
func NewLockoutGuard(opts LockoutGuardOptions) *LockoutGuard {
	cfg := opts.Config
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultLockoutThreshold
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultLockoutWindow
	}
	if cfg.Duration <= 0 {
		cfg.Duration = DefaultLockoutDuration
	}
	clock := opts.Clock
	if clock == nil {
		clock = ports.SystemClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LockoutGuard{
		entries: make(map[string]*lockoutEntry),
		cfg:     cfg,
		clock:   clock,
		store:   opts.Store,
		logger:  logger.With("component", "lockout_guard"),
	}
}

// Config returns the effective policy.
func (g *LockoutGuard) Config() LockoutConfig { return g.cfg }

// IdentityKey returns the counter key for a username.
func IdentityKey(username string) string {
	return "user:" + strings.ToLower(strings.TrimSpace(username))
}

// OriginKey returns the counter key for a client origin.
func OriginKey(origin string) string {
	return "origin:" + strings.ToLower(strings.TrimSpace(origin))
}

// Keys returns the counter keys an attempt for username from origin is tracked under.
func (g *LockoutGuard) Keys(username, origin string) []string {
	keys := []string{IdentityKey(username)}
	if g.cfg.TrackOrigin && strings.TrimSpace(origin) != "" {
		keys = append(keys, OriginKey(origin))
	}
	return keys
}

// RecordFailure appends a failure for key, prunes the window and returns the count.
// Reaching the threshold locks the key for the configured duration.
func (g *LockoutGuard) RecordFailure(ctx context.Context, key string) int {
	g.mu.Lock()
	now := g.clock.Now()
	e := g.entryLocked(key, now)
	count := g.failLocked(key, e, now)
	snap := g.snapshotLocked(key, e)
	g.mu.Unlock()

	g.persist(ctx, snap)
	return count
}

// IsLocked reports whether key is currently suspended.
func (g *LockoutGuard) IsLocked(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.clock.Now()
	e, ok := g.entries[key]
	if !ok {
		return false
	}
	g.pruneLocked(e, now)
	return g.lockedLocked(e, now)
}

// LockedUntil returns the lock expiry for key, if any.
func (g *LockoutGuard) LockedUntil(key string) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.clock.Now()
	e, ok := g.entries[key]
	if !ok {
		return time.Time{}, false
	}
	g.pruneLocked(e, now)
	if !g.lockedLocked(e, now) {
		return time.Time{}, false
	}
	if e.lockedUntil.IsZero() {
		// Locked by count alone; the oldest failure leaving the window unlocks it.
		return e.failures[0].Add(g.cfg.Window), true
	}
	return e.lockedUntil, true
}

// Reset clears the failure window and any lock for key.
func (g *LockoutGuard) Reset(ctx context.Context, key string) {
	g.mu.Lock()
	g.resetLocked(key)
	g.mu.Unlock()

	g.forget(ctx, key)
}

// Attempt is an admitted authentication attempt holding a reserved slot on
// each of its keys. Exactly one of Fail, Succeed or Release must be called.
type Attempt struct {
	guard *LockoutGuard
	keys  []string
	once  sync.Once
}

// Admit checks every key and, when none is locked and none has its
// remaining slots already reserved, reserves a slot on each. The check and
// the reservation happen in one critical section so concurrent attempts on a
// key never pass the gate more than threshold times.
func (g *LockoutGuard) Admit(keys ...string) (*Attempt, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.clock.Now()

	for _, key := range keys {
		e, ok := g.entries[key]
		if !ok {
			continue
		}
		g.pruneLocked(e, now)
		if g.lockedLocked(e, now) || len(e.failures)+e.pending >= g.cfg.Threshold {
			return nil, false
		}
	}
	for _, key := range keys {
		g.entryLocked(key, now).pending++
	}
	return &Attempt{guard: g, keys: keys}, true
}

// Fail records a failure on every key of the attempt and returns the highest
// resulting count.
func (a *Attempt) Fail(ctx context.Context) int {
	highest := 0
	a.once.Do(func() {
		g := a.guard
		g.mu.Lock()
		now := g.clock.Now()
		snaps := make([]ports.LockoutState, 0, len(a.keys))
		for _, key := range a.keys {
			e := g.entryLocked(key, now)
			e.release()
			if n := g.failLocked(key, e, now); n > highest {
				highest = n
			}
			snaps = append(snaps, g.snapshotLocked(key, e))
		}
		g.mu.Unlock()

		for _, snap := range snaps {
			g.persist(ctx, snap)
		}
	})
	return highest
}

// Succeed resets the identity key of the attempt. Origin keys keep their
// failures so one valid account cannot clear an origin's history.
func (a *Attempt) Succeed(ctx context.Context) {
	a.once.Do(func() {
		g := a.guard
		var cleared []string
		g.mu.Lock()
		for _, key := range a.keys {
			if e, ok := g.entries[key]; ok {
				e.release()
			}
			if strings.HasPrefix(key, "user:") {
				g.resetLocked(key)
				cleared = append(cleared, key)
			}
		}
		g.mu.Unlock()

		for _, key := range cleared {
			g.forget(ctx, key)
		}
	})
}

// Release frees the reserved slots without recording an outcome, e.g. when
// the identity store could not be reached.
func (a *Attempt) Release() {
	a.once.Do(func() {
		g := a.guard
		g.mu.Lock()
		defer g.mu.Unlock()
		for _, key := range a.keys {
			if e, ok := g.entries[key]; ok {
				e.release()
			}
		}
	})
}

// Snapshot returns the current state of key.
func (g *LockoutGuard) Snapshot(key string) (ports.LockoutState, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[key]
	if !ok {
		return ports.LockoutState{}, false
	}
	g.pruneLocked(e, g.clock.Now())
	return g.snapshotLocked(key, e), true
}

// Sweep drops entries with no failures in the window, no active lock and no
// pending attempts. It returns the number of entries removed.
func (g *LockoutGuard) Sweep(ctx context.Context) int {
	g.mu.Lock()
	now := g.clock.Now()
	var removed []string
	for key, e := range g.entries {
		g.pruneLocked(e, now)
		if len(e.failures) == 0 && e.lockedUntil.IsZero() && e.pending == 0 {
			delete(g.entries, key)
			removed = append(removed, key)
		}
	}
	g.mu.Unlock()

	for _, key := range removed {
		g.forget(ctx, key)
	}
	return len(removed)
}

// Len returns the number of tracked keys.
func (g *LockoutGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// Restore loads persisted counters from the store. Existing in-memory entries win.
func (g *LockoutGuard) Restore(ctx context.Context) error {
	if g.store == nil {
		return nil
	}
	states, err := g.store.LoadLockouts(ctx)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.clock.Now()
	for _, st := range states {
		if _, exists := g.entries[st.Key]; exists || st.Key == "" {
			continue
		}
		e := &lockoutEntry{failures: append([]time.Time(nil), st.Failures...)}
		if st.LockedUntil != nil {
			e.lockedUntil = *st.LockedUntil
		}
		g.pruneLocked(e, now)
		if len(e.failures) > 0 || !e.lockedUntil.IsZero() {
			g.entries[st.Key] = e
		}
	}
	return nil
}

func (e *lockoutEntry) release() {
	if e.pending > 0 {
		e.pending--
	}
}

func (g *LockoutGuard) entryLocked(key string, now time.Time) *lockoutEntry {
	e, ok := g.entries[key]
	if !ok {
		e = &lockoutEntry{}
		g.entries[key] = e
		return e
	}
	g.pruneLocked(e, now)
	return e
}

func (g *LockoutGuard) failLocked(key string, e *lockoutEntry, now time.Time) int {
	e.failures = append(e.failures, now)
	count := len(e.failures)
	if count >= g.cfg.Threshold && e.lockedUntil.IsZero() {
		e.lockedUntil = now.Add(g.cfg.Duration)
		g.logger.Warn("lockout engaged", "key", key, "failures", count, "locked_until", e.lockedUntil)
	}
	return count
}

// pruneLocked drops failures older than the window and clears a served lock.
func (g *LockoutGuard) pruneLocked(e *lockoutEntry, now time.Time) {
	if !e.lockedUntil.IsZero() && !now.Before(e.lockedUntil) {
		e.lockedUntil = time.Time{}
		e.failures = nil
		return
	}
	cut := 0
	for cut < len(e.failures) && now.Sub(e.failures[cut]) > g.cfg.Window {
		cut++
	}
	if cut > 0 {
		e.failures = append(e.failures[:0], e.failures[cut:]...)
	}
}

func (g *LockoutGuard) lockedLocked(e *lockoutEntry, now time.Time) bool {
	return now.Before(e.lockedUntil) || len(e.failures) >= g.cfg.Threshold
}

func (g *LockoutGuard) resetLocked(key string) {
	e, ok := g.entries[key]
	if !ok {
		return
	}
	if e.pending == 0 {
		delete(g.entries, key)
		return
	}
	e.failures = nil
	e.lockedUntil = time.Time{}
}

func (g *LockoutGuard) snapshotLocked(key string, e *lockoutEntry) ports.LockoutState {
	st := ports.LockoutState{Key: key, Failures: append([]time.Time(nil), e.failures...)}
	if !e.lockedUntil.IsZero() {
		until := e.lockedUntil
		st.LockedUntil = &until
	}
	return st
}

func (g *LockoutGuard) persist(ctx context.Context, st ports.LockoutState) {
	if g.store == nil {
		return
	}
	if err := g.store.SaveLockout(ctx, st); err != nil {
		g.logger.WarnContext(ctx, "persist lockout failed", "key", st.Key, "error", err)
	}
}

func (g *LockoutGuard) forget(ctx context.Context, key string) {
	if g.store == nil {
		return
	}
	if err := g.store.DeleteLockout(ctx, key); err != nil {
		g.logger.WarnContext(ctx, "delete lockout failed", "key", key, "error", err)
	}
}
