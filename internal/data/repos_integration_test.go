package data

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/mmk-auth/internal/domain/auth"
	apperrors "github.com/target/mmk-auth/internal/errors"
	"github.com/target/mmk-auth/internal/ports"
	"github.com/target/mmk-auth/internal/testutil"
)

func testIdentity(username string, role domainauth.Role) domainauth.Identity {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return domainauth.Identity{
		ID:       uuid.NewString(),
		Username: username,
		Credential: domainauth.Credential{
			Salt:       []byte("0123456789abcdef"),
			Digest:     []byte("digest-bytes-32-long-0123456789ab"),
			Iterations: 1000,
		},
		Role:      role,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestIdentityRepo_SaveAndLoad(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewIdentityRepo(db)

		alice := testIdentity("Alice", domainauth.RoleAccountant)
		require.NoError(t, repo.SaveIdentity(ctx, alice))

		got, err := repo.LoadIdentityByUsername(ctx, "  alice ")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, got.ID)
		assert.Equal(t, "Alice", got.Username)
		assert.Equal(t, alice.Credential, got.Credential)
		assert.Equal(t, domainauth.RoleAccountant, got.Role)
		assert.Nil(t, got.LockedUntil)

		until := time.Now().UTC().Add(15 * time.Minute).Truncate(time.Microsecond)
		alice.LockedUntil = &until
		alice.Active = false
		require.NoError(t, repo.SaveIdentity(ctx, alice))

		got, err = repo.LoadIdentityByUsername(ctx, "ALICE")
		require.NoError(t, err)
		assert.False(t, got.Active)
		require.NotNil(t, got.LockedUntil)
		assert.True(t, until.Equal(*got.LockedUntil))
	})
}

func TestIdentityRepo_NotFoundAndConflict(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewIdentityRepo(db)

		_, err := repo.LoadIdentityByUsername(ctx, "ghost")
		assert.ErrorIs(t, err, ports.ErrNotFound)

		_, err = repo.LoadIdentityByUsername(ctx, " ")
		assert.ErrorIs(t, err, ErrUsernameRequired)

		require.NoError(t, repo.SaveIdentity(ctx, testIdentity("bob", domainauth.RoleViewer)))
		err = repo.SaveIdentity(ctx, testIdentity("BOB", domainauth.RoleViewer))
		require.Error(t, err)
		var appErr *apperrors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, apperrors.ErrCodeConflict, appErr.Code)
	})
}

func TestIdentityRepo_List(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewIdentityRepo(db)
		require.NoError(t, repo.SaveIdentity(ctx, testIdentity("carol", domainauth.RoleManager)))
		require.NoError(t, repo.SaveIdentity(ctx, testIdentity("Bob", domainauth.RoleViewer)))

		list, err := repo.ListIdentities(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "Bob", list[0].Username)
		assert.Equal(t, "carol", list[1].Username)
	})
}

func TestIdentityRepo_NarrowUpdatesKeepOtherColumns(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewIdentityRepo(db)
		alice := testIdentity("alice", domainauth.RoleAccountant)
		require.NoError(t, repo.SaveIdentity(ctx, alice))
		at := time.Now().UTC().Truncate(time.Microsecond)

		// Deactivation lands while a login still holds the earlier copy.
		require.NoError(t, repo.SetActive(ctx, alice.ID, false, at))
		until := at.Add(15 * time.Minute)
		require.NoError(t, repo.SetLockedUntil(ctx, alice.ID, &until, at))

		got, err := repo.LoadIdentityByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.False(t, got.Active)
		require.NotNil(t, got.LockedUntil)
		assert.True(t, until.Equal(*got.LockedUntil))

		require.NoError(t, repo.SetLockedUntil(ctx, alice.ID, nil, at))
		got, err = repo.LoadIdentityByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Nil(t, got.LockedUntil)
		assert.False(t, got.Active)

		missing := uuid.NewString()
		assert.ErrorIs(t, repo.SetLockedUntil(ctx, missing, nil, at), ports.ErrNotFound)
		assert.ErrorIs(t, repo.SetActive(ctx, missing, true, at), ports.ErrNotFound)
	})
}

func TestIdentityRepo_UpdateCredentialConditional(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewIdentityRepo(db)
		alice := testIdentity("alice", domainauth.RoleAccountant)
		require.NoError(t, repo.SaveIdentity(ctx, alice))
		at := time.Now().UTC().Truncate(time.Microsecond)

		admin := domainauth.Credential{Salt: []byte("admin-salt-0000"), Digest: []byte("admin-digest"), Iterations: 2000}
		ok, err := repo.UpdateCredential(ctx, alice.ID, nil, admin, at)
		require.NoError(t, err)
		assert.True(t, ok)

		// A rehash computed from the original digest must not clobber the admin reset.
		rehash := domainauth.Credential{Salt: []byte("rehash-salt-000"), Digest: []byte("rehash-digest"), Iterations: 3000}
		ok, err = repo.UpdateCredential(ctx, alice.ID, alice.Credential.Digest, rehash, at)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := repo.LoadIdentityByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, admin, got.Credential)

		ok, err = repo.UpdateCredential(ctx, alice.ID, admin.Digest, rehash, at)
		require.NoError(t, err)
		assert.True(t, ok)

		_, err = repo.UpdateCredential(ctx, uuid.NewString(), nil, rehash, at)
		assert.ErrorIs(t, err, ports.ErrNotFound)
	})
}

func TestLockoutRepo_RoundTripAndPrune(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewLockoutRepo(db)
		now := time.Now().UTC().Truncate(time.Microsecond)
		locked := now.Add(10 * time.Minute)

		require.NoError(t, repo.SaveLockout(ctx, ports.LockoutState{
			Key:      "user:alice",
			Failures: []time.Time{now.Add(-time.Minute), now},
		}))
		require.NoError(t, repo.SaveLockout(ctx, ports.LockoutState{
			Key:         "user:bob",
			Failures:    []time.Time{now.Add(-2 * time.Hour)},
			LockedUntil: &locked,
		}))
		require.NoError(t, repo.SaveLockout(ctx, ports.LockoutState{
			Key:      "origin:ws-7",
			Failures: []time.Time{now.Add(-2 * time.Hour)},
		}))
		assert.ErrorIs(t, repo.SaveLockout(ctx, ports.LockoutState{}), ErrLockoutKeyRequired)

		states, err := repo.LoadLockouts(ctx)
		require.NoError(t, err)
		require.Len(t, states, 3)
		assert.Equal(t, "origin:ws-7", states[0].Key)
		assert.Equal(t, "user:alice", states[1].Key)
		assert.Len(t, states[1].Failures, 2)
		require.NotNil(t, states[2].LockedUntil)

		pruned, err := repo.PruneLockouts(ctx, now.Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), pruned, "only the stale, unlocked origin row goes")

		require.NoError(t, repo.DeleteLockout(ctx, "user:alice"))
		require.NoError(t, repo.DeleteLockout(ctx, "user:alice"))
		states, err = repo.LoadLockouts(ctx)
		require.NoError(t, err)
		require.Len(t, states, 1)
		assert.Equal(t, "user:bob", states[0].Key)
	})
}

func TestAuditRepo_AppendAndList(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewAuditRepo(db)
		base := time.Now().UTC().Truncate(time.Microsecond)

		for i, action := range []domainauth.AuditAction{
			domainauth.AuditLoginFailed, domainauth.AuditLoginFailed, domainauth.AuditLoginSuccess,
		} {
			require.NoError(t, repo.AppendAuditEvent(ctx, domainauth.AuditEvent{
				Timestamp: base.Add(time.Duration(i) * time.Second),
				Username:  "alice",
				Action:    action,
				Outcome:   domainauth.OutcomeFailure,
				Detail:    domainauth.ReasonWrongSecret,
				Client:    domainauth.ClientMetadata{Origin: "ws-12"},
			}))
		}
		require.NoError(t, repo.AppendAuditEvent(ctx, domainauth.AuditEvent{
			Username: "bob", Action: domainauth.AuditLoginSuccess, Outcome: domainauth.OutcomeSuccess,
		}))

		events, err := repo.ListAuditEvents(ctx, AuditQuery{Username: "ALICE"})
		require.NoError(t, err)
		require.Len(t, events, 3)
		assert.Equal(t, domainauth.AuditLoginSuccess, events[2].Action)
		assert.Equal(t, "ws-12", events[0].Client.Origin)
		assert.NotEmpty(t, events[0].ID)

		latest, err := repo.ListAuditEvents(ctx, AuditQuery{Limit: 2})
		require.NoError(t, err)
		require.Len(t, latest, 2)
		assert.Equal(t, "bob", latest[1].Username)

		err = repo.AppendAuditEvent(ctx, domainauth.AuditEvent{Action: "X", Outcome: "maybe"})
		var appErr *apperrors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, apperrors.ErrCodeValidation, appErr.Code)
	})
}

func TestPermissionRepo_ReplaceGrantRevoke(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewPermissionRepo(db)

		n, err := repo.ReplaceRolePermissions(ctx, domainauth.PermissionMap{
			domainauth.RoleAccountant: domainauth.NewCapabilitySet(
				domainauth.Capability{Module: domainauth.ModuleReports, Action: domainauth.ActionView},
				domainauth.Capability{Module: domainauth.ModulePurchasing, Action: domainauth.ActionApprove},
			),
			domainauth.RoleViewer: domainauth.NewCapabilitySet(
				domainauth.Capability{Module: domainauth.ModuleReports, Action: domainauth.ActionView},
			),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		m, err := repo.LoadRolePermissionMap(ctx)
		require.NoError(t, err)
		assert.True(t, m[domainauth.RoleAccountant].Has(domainauth.ModulePurchasing, domainauth.ActionApprove))
		assert.Len(t, m[domainauth.RoleViewer], 1)
		assert.NotContains(t, m, domainauth.RoleEmployee)

		hrView := domainauth.Capability{Module: domainauth.ModuleHR, Action: domainauth.ActionView}
		require.NoError(t, repo.Grant(ctx, domainauth.RoleEmployee, hrView))
		require.NoError(t, repo.Grant(ctx, domainauth.RoleEmployee, hrView))
		held, err := repo.Revoke(ctx, domainauth.RoleViewer, domainauth.Capability{Module: domainauth.ModuleReports, Action: domainauth.ActionView})
		require.NoError(t, err)
		assert.True(t, held)
		held, err = repo.Revoke(ctx, domainauth.RoleViewer, hrView)
		require.NoError(t, err)
		assert.False(t, held)

		m, err = repo.LoadRolePermissionMap(ctx)
		require.NoError(t, err)
		assert.True(t, m[domainauth.RoleEmployee].Has(domainauth.ModuleHR, domainauth.ActionView))
		assert.NotContains(t, m, domainauth.RoleViewer)

		_, err = repo.ReplaceRolePermissions(ctx, domainauth.PermissionMap{"owner": domainauth.NewCapabilitySet()})
		assert.Error(t, err)
	})
}
