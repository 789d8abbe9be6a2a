package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const shutdownWaitTimeout = 10 * time.Second

// BackgroundTask is a long-running loop that returns nil once ctx is cancelled.
type BackgroundTask struct {
	Name string
	Run  func(context.Context) error
}

// RunUntilSignal runs every task until SIGINT/SIGTERM, ctx cancellation or
// the first task failure, then cancels the rest and waits for them.
func RunUntilSignal(ctx context.Context, logger *slog.Logger, tasks ...BackgroundTask) error {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	return runTasks(ctx, logger, tasks)
}

func runTasks(ctx context.Context, logger *slog.Logger, tasks []BackgroundTask) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(tasks))
	done := make([]chan struct{}, len(tasks))
	for i, task := range tasks {
		done[i] = make(chan struct{})
		go func(task BackgroundTask, done chan struct{}) {
			defer close(done)
			if err := task.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("%s failed: %w", task.Name, err)
			}
		}(task, done[i])
		logger.InfoContext(ctx, "background task started", "task", task.Name)
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down background tasks", "reason", context.Cause(ctx))
	case runErr = <-errCh:
		logger.Error("background task error", "error", runErr)
	}
	cancel()

	for i, task := range tasks {
		waitForTask(done[i], task.Name, logger)
	}
	return runErr
}

func waitForTask(done <-chan struct{}, name string, logger *slog.Logger) {
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
