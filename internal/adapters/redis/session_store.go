// Package redis mirrors sessions and lockout counters in Redis so they
// survive a process restart and can be shared between workstations that
// point at the same server.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/target/mmk-auth/internal/domain/auth"
	"github.com/target/mmk-auth/internal/ports"
)

const defaultSessionPrefix = "mmk:session:"

// SessionStoreOptions configures SessionStore.
type SessionStoreOptions struct {
	Client redis.UniversalClient // Required
	Prefix string                // Optional, defaults to "mmk:session:"
	// IdleTimeout becomes the key TTL and is refreshed on every Save.
	IdleTimeout time.Duration
}

// SessionStore is a ports.SessionStore backed by Redis string keys.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ ports.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates a Redis session store.
func NewSessionStore(opts SessionStoreOptions) (*SessionStore, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if opts.IdleTimeout <= 0 {
		return nil, errors.New("session idle timeout must be positive")
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultSessionPrefix
	}
	return &SessionStore{client: opts.Client, prefix: prefix, ttl: opts.IdleTimeout}, nil
}

// Save writes the session and resets its TTL to the idle timeout.
func (s *SessionStore) Save(ctx context.Context, sess domainauth.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	// The per-identity set lets LockIdentity find sessions this process never saw.
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.prefix+sess.ID, data, s.ttl)
		if sess.IdentityID != "" {
			pipe.SAdd(ctx, s.identityKey(sess.IdentityID), sess.ID)
			pipe.Expire(ctx, s.identityKey(sess.IdentityID), s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *SessionStore) identityKey(identityID string) string {
	return s.prefix + "identity:" + identityID
}

// Get returns ports.ErrNotFound for missing or TTL-expired keys.
func (s *SessionStore) Get(ctx context.Context, id string) (domainauth.Session, error) {
	if id == "" {
		return domainauth.Session{}, ports.ErrNotFound
	}
	data, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return domainauth.Session{}, ports.ErrNotFound
	}
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("redis get: %w", err)
	}

	var sess domainauth.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return domainauth.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return sess, nil
}

// Delete removes the session. Deleting an absent id is not an error.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := s.client.Del(ctx, s.prefix+id).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// DeleteByIdentity removes every indexed session of identityID. Members whose
// key already expired are skipped.
func (s *SessionStore) DeleteByIdentity(ctx context.Context, identityID string) ([]domainauth.Session, error) {
	if identityID == "" {
		return nil, nil
	}
	setKey := s.identityKey(identityID)
	ids, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}

	removed := make([]domainauth.Session, 0, len(ids))
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		sess, getErr := s.Get(ctx, id)
		if errors.Is(getErr, ports.ErrNotFound) {
			continue
		}
		if getErr != nil {
			return nil, getErr
		}
		if sess.IdentityID != identityID {
			continue
		}
		removed = append(removed, sess)
		keys = append(keys, s.prefix+id)
	}
	keys = append(keys, setKey)

	// One DEL per key keeps every command on a single slot under Redis Cluster.
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Del(ctx, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis del: %w", err)
	}
	return removed, nil
}
