package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/target/mmk-auth/config"
	"github.com/target/mmk-auth/internal/adapters/authroles"
	redisadapter "github.com/target/mmk-auth/internal/adapters/redis"
	"github.com/target/mmk-auth/internal/data"
	"github.com/target/mmk-auth/internal/observability/statsd"
	"github.com/target/mmk-auth/internal/ports"
	"github.com/target/mmk-auth/internal/service"
)

// AuthDeps contains the connections and settings the auth core is built from.
type AuthDeps struct {
	Config  *config.AppConfig     // Required
	DB      *sql.DB               // Required: identities always live in Postgres
	Redis   redis.UniversalClient // Required when a redis backend is selected
	Logger  *slog.Logger
	Metrics statsd.Sink
	Clock   ports.Clock
}

// AuthStack is the wired auth core plus the repositories the admin tooling
// needs directly.
type AuthStack struct {
	Auth        *service.AuthService
	Sweeper     *service.SweeperService // nil when the sweeper is disabled
	Identities  *data.IdentityRepo
	Permissions *data.PermissionRepo
	Audit       *data.AuditRepo
	Lockouts    *data.LockoutRepo
}

// collaborators are the optional ports selected by configuration.
type collaborators struct {
	permissions ports.PermissionSource
	sessions    ports.SessionStore
	lockouts    ports.LockoutStore
	audit       ports.AuditSink
	pruner      service.LockoutPruner
}

// BuildAuthStack selects backends from cfg.Security, constructs the facade and
// runs its Init. The caller owns Close on the returned AuthService.
func BuildAuthStack(ctx context.Context, deps AuthDeps) (*AuthStack, error) {
	if deps.Config == nil {
		return nil, errors.New("config is required")
	}
	if deps.DB == nil {
		return nil, errors.New("database is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	stack := &AuthStack{
		Identities:  data.NewIdentityRepo(deps.DB),
		Permissions: data.NewPermissionRepo(deps.DB),
		Audit:       data.NewAuditRepo(deps.DB),
		Lockouts:    data.NewLockoutRepo(deps.DB),
	}

	c, err := selectCollaborators(deps, stack)
	if err != nil {
		return nil, err
	}

	sec := deps.Config.Security
	auth, err := service.NewAuthService(service.AuthServiceOptions{
		Identities:  stack.Identities,
		Permissions: c.permissions,
		Sessions:    c.sessions,
		Lockouts:    c.lockouts,
		Audit:       c.audit,
		Config:      sec,
		Clock:       deps.Clock,
		Logger:      logger,
		Metrics:     deps.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("build auth service: %w", err)
	}
	if err := auth.Init(ctx); err != nil {
		auth.Close()
		return nil, fmt.Errorf("init auth service: %w", err)
	}
	stack.Auth = auth

	if deps.Config.Sweeper.Enabled {
		sweeper, err := service.NewSweeperService(service.SweeperServiceOptions{
			Tables:        auth,
			Pruner:        c.pruner,
			Config:        deps.Config.Sweeper,
			LockoutWindow: sec.LockoutWindow,
			Logger:        logger,
			Metrics:       deps.Metrics,
		})
		if err != nil {
			auth.Close()
			return nil, fmt.Errorf("build sweeper: %w", err)
		}
		stack.Sweeper = sweeper
	}

	logger.InfoContext(ctx, "auth core ready",
		"permission_source", sec.PermissionSource,
		"session_backend", sec.SessionBackend,
		"lockout_backend", sec.LockoutBackend,
		"audit_to_database", sec.AuditToDatabase,
		"sweeper", stack.Sweeper != nil,
	)
	return stack, nil
}

// selectCollaborators only assigns interface fields from non-nil values so an
// unselected backend stays a nil interface.
func selectCollaborators(deps AuthDeps, stack *AuthStack) (collaborators, error) {
	sec := deps.Config.Security
	var c collaborators

	switch sec.PermissionSource {
	case config.PermissionSourceDatabase:
		c.permissions = stack.Permissions
	default:
		c.permissions = authroles.Default()
	}

	if sec.AuditToDatabase {
		c.audit = stack.Audit
	}

	needsRedis := sec.SessionBackend == config.BackendRedis || sec.LockoutBackend == config.BackendRedis
	if needsRedis && deps.Redis == nil {
		return c, errors.New("a redis backend is selected but no redis client was provided")
	}
	prefix := deps.Config.Redis.KeyPrefix

	if sec.SessionBackend == config.BackendRedis {
		store, err := redisadapter.NewSessionStore(redisadapter.SessionStoreOptions{
			Client:      deps.Redis,
			Prefix:      prefix + "session:",
			IdleTimeout: sec.IdleTimeout,
		})
		if err != nil {
			return c, fmt.Errorf("redis session store: %w", err)
		}
		c.sessions = store
	}

	switch sec.LockoutBackend {
	case config.BackendRedis:
		store, err := redisadapter.NewLockoutStore(redisadapter.LockoutStoreOptions{
			Client: deps.Redis,
			Prefix: prefix + "lockout:",
			Window: sec.LockoutWindow,
		})
		if err != nil {
			return c, fmt.Errorf("redis lockout store: %w", err)
		}
		c.lockouts = store
	case config.BackendPostgres:
		c.lockouts = stack.Lockouts
		c.pruner = stack.Lockouts
	}
	return c, nil
}
