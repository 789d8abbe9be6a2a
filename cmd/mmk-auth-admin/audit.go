package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/target/mmk-auth/internal/data"
	domainauth "github.com/target/mmk-auth/internal/domain/auth"
)

type auditOptions struct {
	Username string
	Limit    int
	Output   outputOptions
}

func parseAuditFlags(args []string) (auditOptions, error) {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts auditOptions
	fs.StringVar(&opts.Username, "username", "", "Only events for this identity")
	fs.IntVar(&opts.Limit, "limit", 50, "Newest N events to show (max 1000)")
	fs.BoolVar(&opts.Output.JSON, "json", false, "Print JSON instead of a table")
	fs.StringVar(&opts.Output.Query, "query", "", "JMESPath expression applied to the JSON output (implies --json)")
	if err := fs.Parse(args); err != nil {
		return auditOptions{}, err
	}
	if opts.Limit <= 0 {
		return auditOptions{}, fmt.Errorf("--limit must be greater than zero")
	}
	if err := opts.Output.validate(); err != nil {
		return auditOptions{}, err
	}
	opts.Username = strings.TrimSpace(opts.Username)
	return opts, nil
}

// runAudit reads the persisted trail directly; it does not need the auth core.
func runAudit(cmdCtx *commandContext, args []string) error {
	opts, err := parseAuditFlags(args)
	if err != nil {
		return err
	}
	cfg := cmdCtx.Config
	if !cfg.Security.AuditToDatabase {
		cmdCtx.Logger.Warn("AUTH_AUDIT_TO_DATABASE is disabled; only previously persisted events are shown")
	}

	in, err := connectInfra(cmdCtx, connectInfraOptions{Logger: cmdCtx.Logger, Config: &cfg})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := in.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("infra close failed", "error", closeErr)
		}
	}()

	events, err := data.NewAuditRepo(in.DB).ListAuditEvents(cmdCtx.Ctx, data.AuditQuery{
		Username: opts.Username,
		Limit:    opts.Limit,
	})
	if err != nil {
		return fmt.Errorf("list audit events: %w", err)
	}
	return printAuditEvents(cmdCtx, events, opts.Output)
}

func printAuditEvents(cmdCtx *commandContext, events []domainauth.AuditEvent, out outputOptions) error {
	if out.wantsJSON() {
		if events == nil {
			events = []domainauth.AuditEvent{}
		}
		return writeJSON(cmdCtx.Out, events, out.Query)
	}
	if len(events) == 0 {
		return writef(cmdCtx.Out, "No audit events.\n")
	}
	tw := tabwriter.NewWriter(cmdCtx.Out, 0, 0, 2, ' ', 0)
	if err := writef(tw, "TIME\tUSERNAME\tACTION\tOUTCOME\tDETAIL\tORIGIN\n"); err != nil {
		return err
	}
	for _, e := range events {
		if err := writef(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.UTC().Format(time.RFC3339),
			dashIfEmpty(e.Username),
			e.Action,
			e.Outcome,
			dashIfEmpty(e.Detail),
			dashIfEmpty(e.Client.Origin),
		); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
