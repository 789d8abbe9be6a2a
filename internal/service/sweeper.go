package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/target/mmk-auth/config"
	obserrors "github.com/target/mmk-auth/internal/observability/errors"
	"github.com/target/mmk-auth/internal/observability/metrics"
	"github.com/target/mmk-auth/internal/observability/statsd"
)

// LiveTables is the part of AuthService the sweeper drives.
type LiveTables interface {
	Sweep(ctx context.Context) SweepResult
	Stats() metrics.LiveState
}

// LockoutPruner deletes persisted lockout rows that can no longer lock anyone.
type LockoutPruner interface {
	PruneLockouts(ctx context.Context, staleBefore time.Time) (int64, error)
}

// SweeperServiceOptions groups dependencies for SweeperService.
type SweeperServiceOptions struct {
	Tables LiveTables           // Required
	Pruner LockoutPruner        // Optional: persisted lockout cleanup
	Config config.SweeperConfig // Required
	// LockoutWindow bounds how old a persisted failure may be before it is pruned.
	LockoutWindow time.Duration
	Logger        *slog.Logger // Optional
	Metrics       statsd.Sink  // Optional
}

// SweeperService periodically expires idle sessions, drops stale lockout
// windows and publishes gauges for the live tables.
type SweeperService struct {
	tables  LiveTables
	pruner  LockoutPruner
	config  config.SweeperConfig
	window  time.Duration
	logger  *slog.Logger
	metrics statsd.Sink
	now     func() time.Time
}

// NewSweeperService constructs a new SweeperService.
func NewSweeperService(opts SweeperServiceOptions) (*SweeperService, error) {
	if opts.Tables == nil {
		return nil, errors.New("LiveTables is required")
	}
	if opts.Config.Interval <= 0 {
		return nil, errors.New("sweeper interval must be positive")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "sweeper_service")
	logger.Debug("SweeperService initialized", "interval", opts.Config.Interval, "prune_store", opts.Pruner != nil)

	return &SweeperService{
		tables:  opts.Tables,
		pruner:  opts.Pruner,
		config:  opts.Config,
		window:  opts.LockoutWindow,
		logger:  logger,
		metrics: opts.Metrics,
		now:     time.Now,
	}, nil
}

// Run sweeps at the configured interval until ctx is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *SweeperService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting sweeper service", "interval", s.config.Interval)

	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if err := s.RunOnce(ctx); err != nil {
		s.logSweepError(ctx, err, "initial sweep")
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "sweeper service stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logSweepError(ctx, err, "sweep")
			}
		}
	}
}

// waitWithJitter delays up to 10% of the interval so restarts do not align sweeps.
func (s *SweeperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter))) // #nosec G115 - bounded by maxJitter

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

// RunOnce performs a single sweep. The in-memory sweep and the store prune
// run concurrently; a failing prune does not stop the in-memory sweep.
func (s *SweeperService) RunOnce(ctx context.Context) error {
	start := time.Now()
	var (
		swept  SweepResult
		pruned int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		swept = s.tables.Sweep(gctx)
		return nil
	})
	if s.pruner != nil && s.window > 0 {
		g.Go(func() error {
			n, err := s.pruner.PruneLockouts(gctx, s.now().Add(-s.window))
			pruned = n
			if err != nil {
				return fmt.Errorf("prune persisted lockouts: %w", err)
			}
			return nil
		})
	}
	err := g.Wait()

	if swept.ExpiredSessions > 0 || swept.LockoutKeys > 0 || pruned > 0 {
		s.logger.InfoContext(ctx, "sweep completed",
			"expired_sessions", swept.ExpiredSessions,
			"lockout_keys", swept.LockoutKeys,
			"pruned_lockout_rows", pruned,
		)
	}
	s.emitMetrics(time.Since(start), pruned, err)
	return err
}

func (s *SweeperService) emitMetrics(elapsed time.Duration, pruned int64, err error) {
	if s.metrics == nil {
		return
	}
	metrics.EmitLiveState(s.metrics, s.tables.Stats())

	tags := map[string]string{"result": metrics.ResultSuccess}
	if err != nil {
		tags["result"] = metrics.ResultError
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}
	s.metrics.Count("sweeper.run", 1, tags)
	s.metrics.Timing("sweeper.duration", elapsed, metrics.CloneTags(tags))
	if pruned > 0 {
		s.metrics.Count("sweeper.pruned_lockouts", pruned, nil)
	}
}

func (s *SweeperService) logSweepError(ctx context.Context, err error, label string) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.logger.DebugContext(ctx, label+" interrupted", "error", err)
		return
	}
	s.logger.ErrorContext(ctx, label+" failed", "error", err)
}
