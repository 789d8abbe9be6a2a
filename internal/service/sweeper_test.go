package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-auth/config"
	domainauth "github.com/target/mmk-auth/internal/domain/auth"
	"github.com/target/mmk-auth/internal/observability/metrics"
)

type fakeTables struct {
	mu     sync.Mutex
	sweeps int
	result SweepResult
}

func (f *fakeTables) Sweep(context.Context) SweepResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps++
	return f.result
}

func (f *fakeTables) Stats() metrics.LiveState {
	return metrics.LiveState{Sessions: 2, LockoutKeys: 1, PermissionsRev: 3}
}

func (f *fakeTables) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sweeps
}

type fakePruner struct {
	before time.Time
	n      int64
	err    error
}

func (p *fakePruner) PruneLockouts(_ context.Context, staleBefore time.Time) (int64, error) {
	p.before = staleBefore
	return p.n, p.err
}

type countingSink struct {
	mu     sync.Mutex
	counts map[string]int64
	tags   map[string]map[string]string
	gauges map[string]float64
}

func newCountingSink() *countingSink {
	return &countingSink{
		counts: map[string]int64{},
		tags:   map[string]map[string]string{},
		gauges: map[string]float64{},
	}
}

func (c *countingSink) Count(name string, value int64, tags map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[name] += value
	c.tags[name] = tags
}

func (c *countingSink) Gauge(name string, value float64, _ map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gauges[name] = value
}

func (c *countingSink) Timing(string, time.Duration, map[string]string) {}

func TestNewSweeperService(t *testing.T) {
	_, err := NewSweeperService(SweeperServiceOptions{Config: config.SweeperConfig{Interval: time.Minute}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LiveTables is required")

	_, err = NewSweeperService(SweeperServiceOptions{Tables: &fakeTables{}})
	require.Error(t, err)

	svc, err := NewSweeperService(SweeperServiceOptions{Tables: &fakeTables{}, Config: config.SweeperConfig{Interval: time.Minute}})
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestSweeperService_RunOnce(t *testing.T) {
	t.Run("sweeps tables and prunes the store", func(t *testing.T) {
		tables := &fakeTables{result: SweepResult{ExpiredSessions: 2, LockoutKeys: 1}}
		pruner := &fakePruner{n: 4}
		sink := newCountingSink()
		svc, err := NewSweeperService(SweeperServiceOptions{
			Tables:        tables,
			Pruner:        pruner,
			Config:        config.SweeperConfig{Interval: time.Minute},
			LockoutWindow: 30 * time.Minute,
			Metrics:       sink,
		})
		require.NoError(t, err)
		now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		svc.now = func() time.Time { return now }

		require.NoError(t, svc.RunOnce(context.Background()))

		assert.Equal(t, 1, tables.count())
		assert.Equal(t, now.Add(-30*time.Minute), pruner.before)
		assert.Equal(t, int64(4), sink.counts["sweeper.pruned_lockouts"])
		assert.Equal(t, metrics.ResultSuccess, sink.tags["sweeper.run"]["result"])
		assert.InDelta(t, 2, sink.gauges["session.live"], 0)
	})

	t.Run("prune failure is reported but tables are still swept", func(t *testing.T) {
		tables := &fakeTables{}
		sink := newCountingSink()
		svc, err := NewSweeperService(SweeperServiceOptions{
			Tables:        tables,
			Pruner:        &fakePruner{err: errors.New("db down")},
			Config:        config.SweeperConfig{Interval: time.Minute},
			LockoutWindow: time.Minute,
			Metrics:       sink,
		})
		require.NoError(t, err)

		err = svc.RunOnce(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "prune persisted lockouts")
		assert.Equal(t, 1, tables.count())
		assert.Equal(t, metrics.ResultError, sink.tags["sweeper.run"]["result"])
	})

	t.Run("skips pruning without a window", func(t *testing.T) {
		pruner := &fakePruner{}
		svc, err := NewSweeperService(SweeperServiceOptions{
			Tables: &fakeTables{},
			Pruner: pruner,
			Config: config.SweeperConfig{Interval: time.Minute},
		})
		require.NoError(t, err)

		require.NoError(t, svc.RunOnce(context.Background()))
		assert.True(t, pruner.before.IsZero())
	})
}

func TestSweeperService_RunStopsOnCancel(t *testing.T) {
	tables := &fakeTables{}
	svc, err := NewSweeperService(SweeperServiceOptions{
		Tables: tables,
		Config: config.SweeperConfig{Interval: 20 * time.Millisecond},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool { return tables.count() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestSweeperService_DrivesAuthService(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, nil, newIdentity(t, "alice", aliceSecret, domainauth.RoleAccountant))
	require.True(t, f.svc.Authenticate(ctx, "alice", aliceSecret, domainauth.ClientMetadata{}).Success)

	svc, err := NewSweeperService(SweeperServiceOptions{
		Tables: f.svc,
		Config: config.SweeperConfig{Interval: time.Minute},
	})
	require.NoError(t, err)

	f.clock.Advance(8*time.Hour + time.Minute)
	require.NoError(t, svc.RunOnce(ctx))
	assert.Equal(t, 0, f.svc.Stats().Sessions)
	assert.Contains(t, f.audit.Actions("alice"), domainauth.AuditSessionExpired)
}
