package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/mmk-auth/internal/ports"
)

const (
	defaultLockoutPrefix = "mmk:lockout:"
	scanBatch            = 200
)

// LockoutStoreOptions configures LockoutStore.
type LockoutStoreOptions struct {
	Client redis.UniversalClient // Required
	Prefix string                // Optional, defaults to "mmk:lockout:"
	// Window is the failure window; a key lives at least this long after its
	// last write, longer if its lock runs past that.
	Window time.Duration
	Now    func() time.Time // Optional
}

// LockoutStore is a ports.LockoutStore backed by Redis string keys with TTLs,
// so stale counters expire without a sweeper.
type LockoutStore struct {
	client redis.UniversalClient
	prefix string
	window time.Duration
	now    func() time.Time
}

var _ ports.LockoutStore = (*LockoutStore)(nil)

type lockoutRecord struct {
	Failures    []time.Time `json:"failures"`
	LockedUntil *time.Time  `json:"locked_until,omitempty"`
}

// NewLockoutStore creates a Redis lockout store.
func NewLockoutStore(opts LockoutStoreOptions) (*LockoutStore, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if opts.Window <= 0 {
		return nil, errors.New("lockout window must be positive")
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultLockoutPrefix
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &LockoutStore{client: opts.Client, prefix: prefix, window: opts.Window, now: now}, nil
}

// SaveLockout writes the counter with a TTL covering both the window and any lock.
func (s *LockoutStore) SaveLockout(ctx context.Context, state ports.LockoutState) error {
	if strings.TrimSpace(state.Key) == "" {
		return errors.New("lockout key cannot be empty")
	}
	data, err := json.Marshal(lockoutRecord{Failures: state.Failures, LockedUntil: state.LockedUntil})
	if err != nil {
		return fmt.Errorf("marshal lockout: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+state.Key, data, s.ttlFor(state)).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *LockoutStore) ttlFor(state ports.LockoutState) time.Duration {
	ttl := s.window
	if state.LockedUntil != nil {
		ttl = max(ttl, state.LockedUntil.Sub(s.now()))
	}
	return ttl
}

// DeleteLockout removes one counter.
func (s *LockoutStore) DeleteLockout(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// LoadLockouts scans the prefix and returns every counter still stored.
// Keys that expire between SCAN and GET are skipped.
func (s *LockoutStore) LoadLockouts(ctx context.Context) ([]ports.LockoutState, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}

	out := make([]ports.LockoutState, 0, len(keys))
	for start := 0; start < len(keys); start += scanBatch {
		batch := keys[start:min(start+scanBatch, len(keys))]
		// pipelined GETs rather than MGET so cluster keys may span slots
		cmds := make([]*redis.StringCmd, len(batch))
		_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
			for i, k := range batch {
				cmds[i] = p.Get(ctx, k)
			}
			return nil
		})
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("redis get batch: %w", err)
		}
		for i, cmd := range cmds {
			raw, getErr := cmd.Bytes()
			if errors.Is(getErr, redis.Nil) {
				continue
			}
			if getErr != nil {
				return nil, fmt.Errorf("redis get %s: %w", batch[i], getErr)
			}
			var rec lockoutRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				return nil, fmt.Errorf("unmarshal lockout %s: %w", batch[i], err)
			}
			out = append(out, ports.LockoutState{
				Key:         strings.TrimPrefix(batch[i], s.prefix),
				Failures:    rec.Failures,
				LockedUntil: rec.LockedUntil,
			})
		}
	}
	return out, nil
}
