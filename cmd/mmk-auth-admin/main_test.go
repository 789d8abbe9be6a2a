package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-auth/config"
	domainauth "github.com/target/mmk-auth/internal/domain/auth"
)

func testContext(out io.Writer) *commandContext {
	return &commandContext{
		Ctx:    context.Background(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config: config.AppConfig{},
		Out:    out,
	}
}

func TestPrintUsageListsEveryCommand(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printUsage(&buf))

	out := buf.String()
	assert.Contains(t, out, "Usage: mmk-auth-admin <command> [flags]")
	for name := range commands() {
		assert.Contains(t, out, "  "+name)
	}
	assert.Less(t, strings.Index(out, "audit"), strings.Index(out, "unlock"))
}

func TestCommandsAreSelfNamed(t *testing.T) {
	for key, cmd := range commands() {
		assert.Equal(t, key, cmd.name)
		assert.NotNil(t, cmd.run, key)
		assert.NotEmpty(t, cmd.description, key)
	}
}

func TestReadSecret(t *testing.T) {
	secret, err := readSecret(strings.NewReader("Sn0wy-Peaks!\r\nignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "Sn0wy-Peaks!", secret)

	secret, err = readSecret(strings.NewReader("no-newline"))
	require.NoError(t, err)
	assert.Equal(t, "no-newline", secret)

	_, err = readSecret(strings.NewReader("\n"))
	require.Error(t, err)
	_, err = readSecret(nil)
	require.Error(t, err)
}

func TestParseUserFlags(t *testing.T) {
	opts, err := parseUserFlags("create-user", []string{"-username", " alice ", "-role", "accountant"}, true)
	require.NoError(t, err)
	assert.Equal(t, "alice", opts.Username)
	assert.Equal(t, "accountant", opts.Role)

	_, err = parseUserFlags("unlock", nil, false)
	require.Error(t, err)

	_, err = parseUserFlags("unlock", []string{"-username", "bob", "-role", "admin"}, false)
	require.Error(t, err, "unlock has no -role flag")
}

func TestParseRuleFlags(t *testing.T) {
	opts, caps, err := parseRuleFlags("grant", []string{"-role", "viewer", "-capability", "reports:export"})
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleViewer, opts.Role)
	assert.Equal(t, []domainauth.Capability{{Module: domainauth.ModuleReports, Action: domainauth.ActionExport}}, caps)

	_, caps, err = parseRuleFlags("grant", []string{"-role", "viewer", "-capability", "hr:*"})
	require.NoError(t, err)
	assert.Len(t, caps, len(domainauth.Actions()))

	_, _, err = parseRuleFlags("grant", []string{"-role", "owner", "-capability", "hr:view"})
	require.Error(t, err)
	_, _, err = parseRuleFlags("grant", []string{"-role", "viewer", "-capability", "payroll:view"})
	require.Error(t, err)
	_, _, err = parseRuleFlags("grant", []string{"-role", "viewer"})
	require.Error(t, err)
}

func TestParseAuditFlags(t *testing.T) {
	opts, err := parseAuditFlags([]string{"-username", "alice", "-query", "[?outcome=='failure'].action"})
	require.NoError(t, err)
	assert.Equal(t, 50, opts.Limit)
	assert.True(t, opts.Output.wantsJSON())

	_, err = parseAuditFlags([]string{"-limit", "0"})
	require.Error(t, err)
	_, err = parseAuditFlags([]string{"-query", "[?outcome=="})
	require.Error(t, err)
}

func TestParseMigrateFlags(t *testing.T) {
	opts, err := parseMigrateFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, defaultMigrationTimeout, opts.Timeout)

	_, err = parseMigrateFlags([]string{"-timeout", "0s"})
	require.Error(t, err)
}

func TestPrintAuditEvents_QueryFiltersJSON(t *testing.T) {
	ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	events := []domainauth.AuditEvent{
		{ID: "1", Timestamp: ts, Username: "alice", Action: domainauth.AuditLoginFailed, Outcome: domainauth.OutcomeFailure, Detail: domainauth.ReasonWrongSecret},
		{ID: "2", Timestamp: ts.Add(time.Second), Username: "alice", Action: domainauth.AuditLoginSuccess, Outcome: domainauth.OutcomeSuccess},
		{ID: "3", Timestamp: ts.Add(2 * time.Second), Username: "bob", Action: domainauth.AuditAccountLocked, Outcome: domainauth.OutcomeFailure},
	}

	var buf bytes.Buffer
	err := printAuditEvents(testContext(&buf), events, outputOptions{Query: "[?outcome=='failure'].username"})
	require.NoError(t, err)

	var got []string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, []string{"alice", "bob"}, got)
}

func TestPrintAuditEvents_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printAuditEvents(testContext(&buf), nil, outputOptions{}))
	assert.Equal(t, "No audit events.\n", buf.String())

	buf.Reset()
	require.NoError(t, printAuditEvents(testContext(&buf), nil, outputOptions{JSON: true}))
	assert.JSONEq(t, "[]", buf.String())

	buf.Reset()
	events := []domainauth.AuditEvent{{
		Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Action:    domainauth.AuditInvalidInput,
		Outcome:   domainauth.OutcomeFailure,
		Client:    domainauth.ClientMetadata{Origin: "ws-7"},
	}}
	require.NoError(t, printAuditEvents(testContext(&buf), events, outputOptions{}))
	out := buf.String()
	assert.Contains(t, out, "INVALID_INPUT")
	assert.Contains(t, out, "2026-03-01T09:00:00Z")
	assert.Contains(t, out, "ws-7")
}

func TestPrintUsers(t *testing.T) {
	locked := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	views := []userView{
		toUserView(domainauth.Identity{Username: "alice", Role: domainauth.RoleAccountant, Active: true}),
		toUserView(domainauth.Identity{Username: "bob", Role: domainauth.RoleViewer, LockedUntil: &locked}),
	}

	var buf bytes.Buffer
	require.NoError(t, printUsers(testContext(&buf), views, outputOptions{Query: "[?active].username | [0]"}))
	assert.JSONEq(t, `"alice"`, buf.String())

	buf.Reset()
	require.NoError(t, printUsers(testContext(&buf), views, outputOptions{JSON: true}))
	assert.NotContains(t, buf.String(), "digest")
	assert.Contains(t, buf.String(), `"locked_until": "2026-03-01T10:00:00Z"`)

	buf.Reset()
	require.NoError(t, printUsers(testContext(&buf), views, outputOptions{}))
	assert.Contains(t, buf.String(), "USERNAME")
	assert.Contains(t, buf.String(), "2026-03-01T10:00:00Z")
}

func TestHasRedisConfig(t *testing.T) {
	assert.False(t, hasRedisConfig(nil))
	assert.False(t, hasRedisConfig(&config.RedisConfig{}))
	assert.True(t, hasRedisConfig(&config.RedisConfig{URI: "localhost:6379"}))
	assert.False(t, hasRedisConfig(&config.RedisConfig{URI: "localhost:6379", UseSentinel: true}))
	assert.True(t, hasRedisConfig(&config.RedisConfig{UseSentinel: true, SentinelNodes: []string{"s1:26379"}}))
}

func TestInfraCloseNil(t *testing.T) {
	var in *infra
	require.NoError(t, in.Close())
}
