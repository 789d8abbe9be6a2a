package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/target/mmk-auth/internal/data/pgxutil"
	domainauth "github.com/target/mmk-auth/internal/domain/auth"
	apperrors "github.com/target/mmk-auth/internal/errors"
	"github.com/target/mmk-auth/internal/ports"
)

// PermissionRepo stores the role to capability matrix.
type PermissionRepo struct {
	DB *sql.DB
}

// NewPermissionRepo creates a new PermissionRepo.
func NewPermissionRepo(db *sql.DB) *PermissionRepo {
	return &PermissionRepo{DB: db}
}

var _ ports.PermissionSource = (*PermissionRepo)(nil)

type permissionRow struct {
	Role   string `db:"role"`
	Module string `db:"module"`
	Action string `db:"action"`
}

// LoadRolePermissionMap reads the whole matrix. Roles without rows are
// absent from the result and therefore hold no capabilities.
func (r *PermissionRepo) LoadRolePermissionMap(ctx context.Context) (domainauth.PermissionMap, error) {
	var rows []permissionRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		res, err := conn.Query(ctx, `SELECT role, module, action FROM role_permissions`)
		if err != nil {
			return err
		}
		rows, err = pgx.CollectRows(res, pgx.RowToStructByName[permissionRow])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load role permissions: %w", apperrors.MapDBError(err))
	}

	out := make(domainauth.PermissionMap)
	for _, row := range rows {
		role, parseErr := domainauth.ParseRole(row.Role)
		if parseErr != nil {
			return nil, fmt.Errorf("load role permissions: %w", parseErr)
		}
		set, ok := out[role]
		if !ok {
			set = domainauth.NewCapabilitySet()
			out[role] = set
		}
		set[domainauth.Capability{Module: domainauth.Module(row.Module), Action: domainauth.Action(row.Action)}] = struct{}{}
	}
	return out, nil
}

// ReplaceRolePermissions swaps the whole matrix in one transaction so a
// concurrent reload never sees a half-written table.
func (r *PermissionRepo) ReplaceRolePermissions(ctx context.Context, m domainauth.PermissionMap) (int64, error) {
	var rows [][]any
	for role, set := range m {
		if !role.Valid() {
			return 0, fmt.Errorf("replace role permissions: unknown role %q", role)
		}
		for _, c := range set.Sorted() {
			rows = append(rows, []any{role.String(), string(c.Module), string(c.Action)})
		}
	}

	var copied int64
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{Isolation: sql.LevelSerializable},
		Fn: func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, `DELETE FROM role_permissions`); err != nil {
				return err
			}
			n, err := tx.CopyFrom(ctx,
				pgx.Identifier{"role_permissions"},
				[]string{"role", "module", "action"},
				pgx.CopyFromRows(rows),
			)
			copied = n
			return err
		},
	})
	if err != nil {
		return 0, fmt.Errorf("replace role permissions: %w", apperrors.MapDBError(err))
	}
	return copied, nil
}

// Grant adds one capability to a role. Granting twice is a no-op.
func (r *PermissionRepo) Grant(ctx context.Context, role domainauth.Role, c domainauth.Capability) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO role_permissions (role, module, action) VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`, role.String(), string(c.Module), string(c.Action))
	if err != nil {
		return fmt.Errorf("grant %s to %s: %w", c, role, apperrors.MapDBError(err))
	}
	return nil
}

// Revoke removes one capability from a role and reports whether it was held.
func (r *PermissionRepo) Revoke(ctx context.Context, role domainauth.Role, c domainauth.Capability) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`DELETE FROM role_permissions WHERE role = $1 AND module = $2 AND action = $3`,
		role.String(), string(c.Module), string(c.Action))
	if err != nil {
		return false, fmt.Errorf("revoke %s from %s: %w", c, role, apperrors.MapDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke rows affected: %w", err)
	}
	return n > 0, nil
}
