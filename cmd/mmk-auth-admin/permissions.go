package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/target/mmk-auth/config"
	"github.com/target/mmk-auth/internal/adapters/authroles"
	"github.com/target/mmk-auth/internal/bootstrap"
	"github.com/target/mmk-auth/internal/data"
	domainauth "github.com/target/mmk-auth/internal/domain/auth"
)

type ruleOptions struct {
	Role domainauth.Role
	Rule string
}

// parseRuleFlags reads -role and -capability. The capability accepts the
// "module:*" wildcard, expanded with the same rules as the built-in matrix.
func parseRuleFlags(name string, args []string) (ruleOptions, []domainauth.Capability, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var role string
	var opts ruleOptions
	fs.StringVar(&role, "role", "", "Role name (required)")
	fs.StringVar(&opts.Rule, "capability", "", "module:action or module:* (required)")
	if err := fs.Parse(args); err != nil {
		return ruleOptions{}, nil, err
	}
	if strings.TrimSpace(role) == "" || strings.TrimSpace(opts.Rule) == "" {
		return ruleOptions{}, nil, errors.New("--role and --capability are required")
	}
	parsed, err := domainauth.ParseRole(role)
	if err != nil {
		return ruleOptions{}, nil, fmt.Errorf("--role: %w", err)
	}
	opts.Role = parsed

	expanded, err := authroles.Expand(map[domainauth.Role][]string{parsed: {opts.Rule}})
	if err != nil {
		return ruleOptions{}, nil, fmt.Errorf("--capability: %w", err)
	}
	return opts, expanded[parsed].Sorted(), nil
}

func runCheckPermission(cmdCtx *commandContext, args []string) error {
	opts, caps, err := parseRuleFlags("check-permission", args)
	if err != nil {
		return err
	}
	return withAuthStack(cmdCtx, func(stack *bootstrap.AuthStack) error {
		for _, c := range caps {
			verdict := "denied"
			if stack.Auth.HasRolePermission(opts.Role, c.Module, c.Action) {
				verdict = "allowed"
			}
			if err := writef(cmdCtx.Out, "%s %s: %s\n", opts.Role, c, verdict); err != nil {
				return err
			}
		}
		return nil
	})
}

// withPermissionRepo only needs Postgres; the auth core is not built so an
// empty role_permissions table can be seeded.
func withPermissionRepo(cmdCtx *commandContext, fn func(repo *data.PermissionRepo) error) error {
	cfg := cmdCtx.Config
	in, err := connectInfra(cmdCtx, connectInfraOptions{Logger: cmdCtx.Logger, Config: &cfg})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := in.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("infra close failed", "error", closeErr)
		}
	}()
	return fn(data.NewPermissionRepo(in.DB))
}

func runSeedPermissions(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("seed-permissions", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	matrix, err := authroles.Expand(authroles.DefaultRules())
	if err != nil {
		return fmt.Errorf("expand built-in matrix: %w", err)
	}
	return withPermissionRepo(cmdCtx, func(repo *data.PermissionRepo) error {
		n, err := repo.ReplaceRolePermissions(cmdCtx.Ctx, matrix)
		if err != nil {
			return fmt.Errorf("replace role permissions: %w", err)
		}
		warnStaticSource(cmdCtx)
		return writef(cmdCtx.Out, "seeded %d grants across %d roles\n", n, len(matrix))
	})
}

func runGrant(cmdCtx *commandContext, args []string) error {
	opts, caps, err := parseRuleFlags("grant", args)
	if err != nil {
		return err
	}
	return withPermissionRepo(cmdCtx, func(repo *data.PermissionRepo) error {
		for _, c := range caps {
			if err := repo.Grant(cmdCtx.Ctx, opts.Role, c); err != nil {
				return fmt.Errorf("grant %s: %w", c, err)
			}
			if err := writef(cmdCtx.Out, "granted %s to %s\n", c, opts.Role); err != nil {
				return err
			}
		}
		warnStaticSource(cmdCtx)
		return nil
	})
}

func runRevoke(cmdCtx *commandContext, args []string) error {
	opts, caps, err := parseRuleFlags("revoke", args)
	if err != nil {
		return err
	}
	return withPermissionRepo(cmdCtx, func(repo *data.PermissionRepo) error {
		for _, c := range caps {
			removed, err := repo.Revoke(cmdCtx.Ctx, opts.Role, c)
			if err != nil {
				return fmt.Errorf("revoke %s: %w", c, err)
			}
			state := "revoked"
			if !removed {
				state = "not granted"
			}
			if err := writef(cmdCtx.Out, "%s %s: %s\n", opts.Role, c, state); err != nil {
				return err
			}
		}
		warnStaticSource(cmdCtx)
		return nil
	})
}

func warnStaticSource(cmdCtx *commandContext) {
	if cmdCtx.Config.Security.PermissionSource != config.PermissionSourceDatabase {
		cmdCtx.Logger.Warn("role_permissions changed but AUTH_PERMISSION_SOURCE is static; the table is not consulted")
	}
}
