package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/target/mmk-auth/config"
	"github.com/target/mmk-auth/internal/bootstrap"
)

type infra struct {
	DB      *sql.DB
	Redis   redis.UniversalClient
	Metrics bootstrap.Metrics
}

type connectInfraOptions struct {
	Logger    *slog.Logger
	Config    *config.AppConfig
	WantRedis bool
}

// connectInfra opens Postgres and, when requested and configured, Redis.
// A Redis failure closes the database before returning.
func connectInfra(cmdCtx *commandContext, opts connectInfraOptions) (*infra, error) {
	db, err := bootstrap.ConnectDB(cmdCtx.Ctx, bootstrap.DatabaseConfig{DBConfig: opts.Config.Postgres, Logger: opts.Logger})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	out := &infra{DB: db}

	if opts.WantRedis && hasRedisConfig(&opts.Config.Redis) {
		client, err := bootstrap.ConnectRedis(cmdCtx.Ctx, bootstrap.DatabaseConfig{RedisConfig: opts.Config.Redis, Logger: opts.Logger})
		if err != nil {
			err = fmt.Errorf("connect redis: %w", err)
			if closeErr := db.Close(); closeErr != nil {
				err = errors.Join(err, fmt.Errorf("close db: %w", closeErr))
			}
			return nil, err
		}
		out.Redis = client
	}

	out.Metrics = bootstrap.BuildMetrics(opts.Logger, opts.Config.Observability.Metrics)
	return out, nil
}

func hasRedisConfig(cfg *config.RedisConfig) bool {
	if cfg == nil {
		return false
	}
	if cfg.UseSentinel {
		return len(cfg.SentinelNodes) > 0
	}
	return cfg.URI != ""
}

func (i *infra) Close() error {
	if i == nil {
		return nil
	}
	var closeErr error
	if err := i.Metrics.Close(); err != nil {
		closeErr = errors.Join(closeErr, fmt.Errorf("close metrics: %w", err))
	}
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close redis: %w", err))
		}
	}
	if i.DB != nil {
		if err := i.DB.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close db: %w", err))
		}
	}
	return closeErr
}

// withAuthStack connects the infrastructure the configured backends need,
// builds the auth core and tears everything down after fn returns.
func withAuthStack(cmdCtx *commandContext, fn func(stack *bootstrap.AuthStack) error) error {
	cfg := cmdCtx.Config
	in, err := connectInfra(cmdCtx, connectInfraOptions{
		Logger:    cmdCtx.Logger,
		Config:    &cfg,
		WantRedis: cfg.NeedsRedis(),
	})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := in.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("infra close failed", "error", closeErr)
		}
	}()

	stack, err := bootstrap.BuildAuthStack(cmdCtx.Ctx, bootstrap.AuthDeps{
		Config:  &cfg,
		DB:      in.DB,
		Redis:   in.Redis,
		Logger:  cmdCtx.Logger,
		Metrics: in.Metrics.Sink,
	})
	if err != nil {
		return err
	}
	defer stack.Auth.Close()
	return fn(stack)
}
