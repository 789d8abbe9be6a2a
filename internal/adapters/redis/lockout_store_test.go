package redis

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-auth/internal/ports"
	"github.com/target/mmk-auth/internal/testutil"
)

func TestLockoutStore_TTLCoversLock(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	store, err := NewLockoutStore(LockoutStoreOptions{
		Client: client,
		Window: 5 * time.Minute,
		Now:    func() time.Time { return now },
	})
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, store.ttlFor(ports.LockoutState{Key: "user:a"}))
	until := now.Add(time.Hour)
	assert.Equal(t, time.Hour, store.ttlFor(ports.LockoutState{Key: "user:a", LockedUntil: &until}))
	past := now.Add(-time.Hour)
	assert.Equal(t, 5*time.Minute, store.ttlFor(ports.LockoutState{Key: "user:a", LockedUntil: &past}))
}

func TestLockoutStore_RoundTrip(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store, err := NewLockoutStore(LockoutStoreOptions{Client: client, Window: time.Hour})
	require.NoError(t, err)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	until := now.Add(15 * time.Minute)
	require.NoError(t, store.SaveLockout(ctx, ports.LockoutState{Key: "user:alice", Failures: []time.Time{now}, LockedUntil: &until}))
	require.NoError(t, store.SaveLockout(ctx, ports.LockoutState{Key: "origin:ws-7", Failures: []time.Time{now, now}}))
	assert.Error(t, store.SaveLockout(ctx, ports.LockoutState{Key: " "}))

	states, err := store.LoadLockouts(ctx)
	require.NoError(t, err)
	require.Len(t, states, 2)
	sort.Slice(states, func(i, j int) bool { return states[i].Key < states[j].Key })
	assert.Equal(t, "origin:ws-7", states[0].Key)
	assert.Len(t, states[0].Failures, 2)
	assert.Nil(t, states[0].LockedUntil)
	require.NotNil(t, states[1].LockedUntil)
	assert.True(t, until.Equal(*states[1].LockedUntil))

	require.NoError(t, store.DeleteLockout(ctx, "user:alice"))
	states, err = store.LoadLockouts(ctx)
	require.NoError(t, err)
	assert.Len(t, states, 1)
}

func TestLockoutStore_LoadManyKeys(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store, err := NewLockoutStore(LockoutStoreOptions{Client: client, Window: time.Hour})
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < scanBatch+25; i++ {
		require.NoError(t, store.SaveLockout(ctx, ports.LockoutState{
			Key:      fmt.Sprintf("user:u%03d", i),
			Failures: []time.Time{time.Now()},
		}))
	}
	require.NoError(t, client.Set(ctx, "unrelated:key", "x", time.Minute).Err())

	states, err := store.LoadLockouts(ctx)
	require.NoError(t, err)
	assert.Len(t, states, scanBatch+25)
}
