package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/target/mmk-auth/config"
	"github.com/target/mmk-auth/internal/bootstrap"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	In     io.Reader
	Out    io.Writer
}

func main() {
	logger := bootstrap.InitLogger(os.Stderr, false)

	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}
	if err := bootstrap.ValidateConfig(&cfg); err != nil {
		logger.ErrorContext(context.Background(), "invalid config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration errors to shell scripts
	}
	if cfg.IsDev {
		logger = bootstrap.InitLogger(os.Stderr, true)
	}

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
		In:     os.Stdin,
		Out:    os.Stdout,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "Run database migrations",
			run:         runMigrations,
		},
		"create-user": {
			name:        "create-user",
			description: "Register an identity; the password is read from stdin",
			run:         runCreateUser,
		},
		"set-password": {
			name:        "set-password",
			description: "Replace an identity's password; the password is read from stdin",
			run:         runSetPassword,
		},
		"deactivate": {
			name:        "deactivate",
			description: "Deactivate an identity and end its sessions",
			run:         runDeactivate,
		},
		"unlock": {
			name:        "unlock",
			description: "Clear lockout counters and any administrative lock",
			run:         runUnlock,
		},
		"list-users": {
			name:        "list-users",
			description: "List registered identities",
			run:         runListUsers,
		},
		"check-permission": {
			name:        "check-permission",
			description: "Report whether a role holds module:action",
			run:         runCheckPermission,
		},
		"seed-permissions": {
			name:        "seed-permissions",
			description: "Replace the role_permissions table with the built-in matrix",
			run:         runSeedPermissions,
		},
		"grant": {
			name:        "grant",
			description: "Grant module:action to a role in the role_permissions table",
			run:         runGrant,
		},
		"revoke": {
			name:        "revoke",
			description: "Revoke module:action from a role in the role_permissions table",
			run:         runRevoke,
		},
		"audit": {
			name:        "audit",
			description: "Show recent audit events",
			run:         runAudit,
		},
		"sweep": {
			name:        "sweep",
			description: "Prune expired lockout records, once or until interrupted",
			run:         runSweep,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: mmk-auth-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(w, "  %-20s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}
