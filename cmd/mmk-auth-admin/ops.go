package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/target/mmk-auth/internal/bootstrap"
)

const defaultMigrationTimeout = 5 * time.Minute

type migrateOptions struct {
	Timeout time.Duration
}

type sweepOptions struct {
	Once bool
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := migrateOptions{Timeout: defaultMigrationTimeout}
	fs.DurationVar(&opts.Timeout, "timeout", defaultMigrationTimeout, "Maximum duration to wait for migrations to complete")
	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}
	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(ctx, bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	cmdCtx.Logger.Info("running database migrations")
	if err := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); err != nil {
		return err
	}
	cmdCtx.Logger.Info("migrations completed successfully")
	return nil
}

func parseSweepFlags(args []string) (sweepOptions, error) {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts sweepOptions
	fs.BoolVar(&opts.Once, "once", false, "Run a single sweep and exit")
	if err := fs.Parse(args); err != nil {
		return sweepOptions{}, err
	}
	return opts, nil
}

// runSweep prunes persisted lockout rows. In-memory tables of this process
// are empty, so the value of a long-running sweep is the store prune.
func runSweep(cmdCtx *commandContext, args []string) error {
	opts, err := parseSweepFlags(args)
	if err != nil {
		return err
	}
	if !cmdCtx.Config.Sweeper.Enabled {
		return errors.New("sweeper is disabled (SWEEPER_ENABLED=false)")
	}

	return withAuthStack(cmdCtx, func(stack *bootstrap.AuthStack) error {
		if stack.Sweeper == nil {
			return errors.New("sweeper was not built")
		}
		if opts.Once {
			if err := stack.Sweeper.RunOnce(cmdCtx.Ctx); err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
			return writef(cmdCtx.Out, "sweep completed\n")
		}
		return bootstrap.RunUntilSignal(cmdCtx.Ctx, cmdCtx.Logger, bootstrap.BackgroundTask{
			Name: "sweeper",
			Run:  stack.Sweeper.Run,
		})
	})
}
