package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/target/mmk-auth/internal/bootstrap"
	domainauth "github.com/target/mmk-auth/internal/domain/auth"
)

type userOptions struct {
	Username string
	Role     string
}

type listUsersOptions struct {
	Output outputOptions
}

// userView is the listing shape; it never carries credential material.
type userView struct {
	Username    string     `json:"username"`
	Role        string     `json:"role"`
	Active      bool       `json:"active"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toUserView(i domainauth.Identity) userView {
	return userView{
		Username:    i.Username,
		Role:        i.Role.String(),
		Active:      i.Active,
		LockedUntil: i.LockedUntil,
		CreatedAt:   i.CreatedAt,
		UpdatedAt:   i.UpdatedAt,
	}
}

func parseUserFlags(name string, args []string, withRole bool) (userOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts userOptions
	fs.StringVar(&opts.Username, "username", "", "Identity username (required)")
	if withRole {
		fs.StringVar(&opts.Role, "role", string(domainauth.RoleEmployee), "Role to assign")
	}
	if err := fs.Parse(args); err != nil {
		return userOptions{}, err
	}
	opts.Username = strings.TrimSpace(opts.Username)
	if opts.Username == "" {
		return userOptions{}, errors.New("--username is required")
	}
	return opts, nil
}

func runCreateUser(cmdCtx *commandContext, args []string) error {
	opts, err := parseUserFlags("create-user", args, true)
	if err != nil {
		return err
	}
	role, err := domainauth.ParseRole(opts.Role)
	if err != nil {
		return fmt.Errorf("--role: %w", err)
	}
	secret, err := readSecret(cmdCtx.In)
	if err != nil {
		return err
	}

	return withAuthStack(cmdCtx, func(stack *bootstrap.AuthStack) error {
		identity, err := stack.Auth.CreateIdentity(cmdCtx.Ctx, opts.Username, secret, role)
		if err != nil {
			return fmt.Errorf("create identity: %w", err)
		}
		return writef(cmdCtx.Out, "created %s (%s) id=%s\n", identity.Username, identity.Role, identity.ID)
	})
}

func runSetPassword(cmdCtx *commandContext, args []string) error {
	opts, err := parseUserFlags("set-password", args, false)
	if err != nil {
		return err
	}
	secret, err := readSecret(cmdCtx.In)
	if err != nil {
		return err
	}

	return withAuthStack(cmdCtx, func(stack *bootstrap.AuthStack) error {
		if err := stack.Auth.SetPassword(cmdCtx.Ctx, opts.Username, secret); err != nil {
			return fmt.Errorf("set password: %w", err)
		}
		return writef(cmdCtx.Out, "password replaced for %s\n", opts.Username)
	})
}

func runDeactivate(cmdCtx *commandContext, args []string) error {
	opts, err := parseUserFlags("deactivate", args, false)
	if err != nil {
		return err
	}
	return withAuthStack(cmdCtx, func(stack *bootstrap.AuthStack) error {
		if err := stack.Auth.Deactivate(cmdCtx.Ctx, opts.Username); err != nil {
			return fmt.Errorf("deactivate: %w", err)
		}
		return writef(cmdCtx.Out, "deactivated %s\n", opts.Username)
	})
}

func runUnlock(cmdCtx *commandContext, args []string) error {
	opts, err := parseUserFlags("unlock", args, false)
	if err != nil {
		return err
	}
	return withAuthStack(cmdCtx, func(stack *bootstrap.AuthStack) error {
		if err := stack.Auth.Unlock(cmdCtx.Ctx, opts.Username); err != nil {
			return fmt.Errorf("unlock: %w", err)
		}
		return writef(cmdCtx.Out, "unlocked %s\n", opts.Username)
	})
}

func parseListUsersFlags(args []string) (listUsersOptions, error) {
	fs := flag.NewFlagSet("list-users", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts listUsersOptions
	fs.BoolVar(&opts.Output.JSON, "json", false, "Print JSON instead of a table")
	fs.StringVar(&opts.Output.Query, "query", "", "JMESPath expression applied to the JSON output (implies --json)")
	if err := fs.Parse(args); err != nil {
		return listUsersOptions{}, err
	}
	if err := opts.Output.validate(); err != nil {
		return listUsersOptions{}, err
	}
	return opts, nil
}

func runListUsers(cmdCtx *commandContext, args []string) error {
	opts, err := parseListUsersFlags(args)
	if err != nil {
		return err
	}
	return withAuthStack(cmdCtx, func(stack *bootstrap.AuthStack) error {
		identities, err := stack.Identities.ListIdentities(cmdCtx.Ctx)
		if err != nil {
			return fmt.Errorf("list identities: %w", err)
		}
		views := make([]userView, 0, len(identities))
		for _, i := range identities {
			views = append(views, toUserView(i))
		}
		return printUsers(cmdCtx, views, opts.Output)
	})
}

func printUsers(cmdCtx *commandContext, views []userView, out outputOptions) error {
	if out.wantsJSON() {
		return writeJSON(cmdCtx.Out, views, out.Query)
	}
	if len(views) == 0 {
		return writef(cmdCtx.Out, "No identities registered.\n")
	}
	tw := tabwriter.NewWriter(cmdCtx.Out, 0, 0, 2, ' ', 0)
	if err := writef(tw, "USERNAME\tROLE\tACTIVE\tLOCKED UNTIL\tCREATED\n"); err != nil {
		return err
	}
	for _, v := range views {
		locked := "-"
		if v.LockedUntil != nil {
			locked = v.LockedUntil.UTC().Format(time.RFC3339)
		}
		if err := writef(tw, "%s\t%s\t%t\t%s\t%s\n",
			v.Username, v.Role, v.Active, locked, v.CreatedAt.UTC().Format(time.RFC3339)); err != nil {
			return err
		}
	}
	return tw.Flush()
}
