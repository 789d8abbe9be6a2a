package core

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/mmk-auth/internal/mocks"
	memory "github.com/target/mmk-auth/internal/mocks/auth"
	"github.com/target/mmk-auth/internal/ports"
)

var testEpoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestGuard(t *testing.T, cfg LockoutConfig, store ports.LockoutStore) (*LockoutGuard, *memory.FakeClock) {
	t.Helper()
	clock := memory.NewFakeClock(testEpoch)
	return NewLockoutGuard(LockoutGuardOptions{Config: cfg, Clock: clock, Store: store}), clock
}

func TestNewLockoutGuard_Defaults(t *testing.T) {
	g := NewLockoutGuard(LockoutGuardOptions{})
	cfg := g.Config()
	assert.Equal(t, 5, cfg.Threshold)
	assert.Equal(t, 30*time.Minute, cfg.Window)
	assert.Equal(t, 30*time.Minute, cfg.Duration)
}

func TestLockoutGuard_ExactThreshold(t *testing.T) {
	g, clock := newTestGuard(t, LockoutConfig{Threshold: 5, Window: 30 * time.Minute, Duration: 30 * time.Minute}, nil)
	ctx := context.Background()
	key := IdentityKey("alice")

	for i := 1; i <= 4; i++ {
		assert.Equal(t, i, g.RecordFailure(ctx, key))
		assert.False(t, g.IsLocked(key), "locked after only %d failures", i)
		clock.Advance(time.Second)
	}

	assert.Equal(t, 5, g.RecordFailure(ctx, key))
	assert.True(t, g.IsLocked(key))

	until, ok := g.LockedUntil(key)
	require.True(t, ok)
	assert.Equal(t, clock.Now().Add(30*time.Minute), until)

	_, admitted := g.Admit(key)
	assert.False(t, admitted)

	clock.Advance(30*time.Minute - time.Second)
	assert.True(t, g.IsLocked(key), "still locked one second before expiry")

	clock.Advance(time.Second)
	assert.False(t, g.IsLocked(key))

	snap, ok := g.Snapshot(key)
	require.True(t, ok)
	assert.Empty(t, snap.Failures, "served lock clears the window")
	assert.Nil(t, snap.LockedUntil)
}

func TestLockoutGuard_WindowPrunesOldFailures(t *testing.T) {
	g, clock := newTestGuard(t, LockoutConfig{Threshold: 3, Window: 10 * time.Minute, Duration: time.Hour}, nil)
	ctx := context.Background()
	key := IdentityKey("bob")

	for i := 0; i < 6; i++ {
		assert.LessOrEqual(t, g.RecordFailure(ctx, key), 2)
		clock.Advance(6 * time.Minute)
	}
	assert.False(t, g.IsLocked(key))
}

func TestLockoutGuard_Reset(t *testing.T) {
	g, _ := newTestGuard(t, LockoutConfig{Threshold: 2}, nil)
	ctx := context.Background()
	key := IdentityKey("carol")

	g.RecordFailure(ctx, key)
	g.RecordFailure(ctx, key)
	require.True(t, g.IsLocked(key))

	g.Reset(ctx, key)
	assert.False(t, g.IsLocked(key))
	assert.Equal(t, 0, g.Len())

	g.Reset(ctx, "user:unknown")
}

func TestLockoutGuard_KeysNormalize(t *testing.T) {
	g, _ := newTestGuard(t, LockoutConfig{}, nil)
	assert.Equal(t, []string{"user:alice"}, g.Keys(" Alice ", "10.0.0.1"))

	withOrigin, _ := newTestGuard(t, LockoutConfig{TrackOrigin: true}, nil)
	assert.Equal(t, []string{"user:alice", "origin:10.0.0.1"}, withOrigin.Keys("alice", "10.0.0.1"))
	assert.Equal(t, []string{"user:alice"}, withOrigin.Keys("alice", " "))
}

func TestLockoutGuard_AdmitReservesSlots(t *testing.T) {
	g, _ := newTestGuard(t, LockoutConfig{Threshold: 3}, nil)
	key := IdentityKey("dave")

	var attempts []*Attempt
	for i := 0; i < 3; i++ {
		a, ok := g.Admit(key)
		require.True(t, ok)
		attempts = append(attempts, a)
	}
	_, ok := g.Admit(key)
	assert.False(t, ok, "all slots reserved")
	assert.False(t, g.IsLocked(key), "reservations alone do not lock")

	attempts[0].Release()
	a, ok := g.Admit(key)
	require.True(t, ok, "released slot is available again")
	a.Release()
	a.Release()
}

func TestLockoutGuard_AttemptOutcomes(t *testing.T) {
	g, _ := newTestGuard(t, LockoutConfig{Threshold: 3, TrackOrigin: true}, nil)
	ctx := context.Background()
	keys := g.Keys("erin", "kiosk-1")

	a, ok := g.Admit(keys...)
	require.True(t, ok)
	assert.Equal(t, 1, a.Fail(ctx))
	assert.Equal(t, 0, a.Fail(ctx), "second outcome on the same attempt is ignored")

	a, ok = g.Admit(keys...)
	require.True(t, ok)
	a.Succeed(ctx)

	_, userTracked := g.Snapshot(IdentityKey("erin"))
	assert.False(t, userTracked, "success clears the identity key")

	origin, ok := g.Snapshot(OriginKey("kiosk-1"))
	require.True(t, ok)
	assert.Len(t, origin.Failures, 1, "success keeps origin history")
}

func TestLockoutGuard_OriginLockBlocksOtherUsers(t *testing.T) {
	g, _ := newTestGuard(t, LockoutConfig{Threshold: 2, TrackOrigin: true}, nil)
	ctx := context.Background()

	for _, user := range []string{"u1", "u2"} {
		a, ok := g.Admit(g.Keys(user, "10.0.0.9")...)
		require.True(t, ok)
		a.Fail(ctx)
	}

	_, ok := g.Admit(g.Keys("u3", "10.0.0.9")...)
	assert.False(t, ok)
	_, ok = g.Admit(g.Keys("u3", "10.0.0.10")...)
	assert.True(t, ok)
}

func TestLockoutGuard_ConcurrentRecordFailure(t *testing.T) {
	g, _ := newTestGuard(t, LockoutConfig{Threshold: 5}, nil)
	ctx := context.Background()
	key := IdentityKey("frank")

	const n = 40
	seen := make([]int32, n+1)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			atomic.AddInt32(&seen[g.RecordFailure(ctx, key)], 1)
		}()
	}
	wg.Wait()

	for count := 1; count <= n; count++ {
		assert.Equal(t, int32(1), seen[count], "count %d observed more than once", count)
	}
	assert.True(t, g.IsLocked(key))
}

func TestLockoutGuard_ConcurrentAdmitNeverExceedsThreshold(t *testing.T) {
	g, _ := newTestGuard(t, LockoutConfig{Threshold: 5}, nil)
	ctx := context.Background()
	key := IdentityKey("grace")

	const n = 50
	var passed int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			a, ok := g.Admit(key)
			if !ok {
				return
			}
			atomic.AddInt32(&passed, 1)
			a.Fail(ctx)
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(5), passed)
	snap, ok := g.Snapshot(key)
	require.True(t, ok)
	assert.Len(t, snap.Failures, 5)
	assert.True(t, g.IsLocked(key))
}

func TestLockoutGuard_Sweep(t *testing.T) {
	g, clock := newTestGuard(t, LockoutConfig{Threshold: 5, Window: time.Minute}, nil)
	ctx := context.Background()

	g.RecordFailure(ctx, "user:a")
	clock.Advance(2 * time.Minute)
	g.RecordFailure(ctx, "user:b")

	a, ok := g.Admit("user:c")
	require.True(t, ok)

	assert.Equal(t, 1, g.Sweep(ctx), "only the stale entry is dropped")
	assert.Equal(t, 2, g.Len())
	a.Release()
}

func TestLockoutGuard_PersistsToStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockLockoutStore(ctrl)
	g, _ := newTestGuard(t, LockoutConfig{Threshold: 2}, store)
	ctx := context.Background()
	key := IdentityKey("heidi")

	store.EXPECT().SaveLockout(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, st ports.LockoutState) error {
			assert.Equal(t, key, st.Key)
			assert.Len(t, st.Failures, 1)
			assert.Nil(t, st.LockedUntil)
			return nil
		})
	g.RecordFailure(ctx, key)

	store.EXPECT().SaveLockout(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, st ports.LockoutState) error {
			assert.NotNil(t, st.LockedUntil)
			return memory.ErrUnavailable
		})
	assert.Equal(t, 2, g.RecordFailure(ctx, key))
	assert.True(t, g.IsLocked(key), "store failure does not change the decision")

	store.EXPECT().DeleteLockout(gomock.Any(), key).Return(nil)
	g.Reset(ctx, key)
}

func TestLockoutGuard_Restore(t *testing.T) {
	store := memory.NewMemoryLockoutStore()
	ctx := context.Background()
	until := testEpoch.Add(10 * time.Minute)
	require.NoError(t, store.SaveLockout(ctx, ports.LockoutState{Key: "user:ivan", Failures: []time.Time{testEpoch}, LockedUntil: &until}))
	require.NoError(t, store.SaveLockout(ctx, ports.LockoutState{Key: "user:stale", Failures: []time.Time{testEpoch.Add(-time.Hour)}}))

	g, _ := newTestGuard(t, LockoutConfig{Threshold: 5, Window: 30 * time.Minute}, store)
	require.NoError(t, g.Restore(ctx))

	assert.True(t, g.IsLocked("user:ivan"))
	_, ok := g.Snapshot("user:stale")
	assert.False(t, ok)
}

func TestLockoutGuard_RestoreWithoutStore(t *testing.T) {
	g, _ := newTestGuard(t, LockoutConfig{}, nil)
	require.NoError(t, g.Restore(context.Background()))
}
