package data

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/target/mmk-auth/internal/data/pgxutil"
	apperrors "github.com/target/mmk-auth/internal/errors"
	"github.com/target/mmk-auth/internal/ports"
)

// LockoutRepo persists lockout counters so a restart does not clear them.
type LockoutRepo struct {
	DB *sql.DB
}

// NewLockoutRepo creates a new LockoutRepo.
func NewLockoutRepo(db *sql.DB) *LockoutRepo {
	return &LockoutRepo{DB: db}
}

var _ ports.LockoutStore = (*LockoutRepo)(nil)

type lockoutRow struct {
	Key         string      `db:"key"`
	Failures    []time.Time `db:"failures"`
	LockedUntil *time.Time  `db:"locked_until"`
}

// SaveLockout upserts the full counter state for one key.
func (r *LockoutRepo) SaveLockout(ctx context.Context, state ports.LockoutState) error {
	if strings.TrimSpace(state.Key) == "" {
		return ErrLockoutKeyRequired
	}
	failures := state.Failures
	if failures == nil {
		failures = []time.Time{}
	}

	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, `
			INSERT INTO lockouts (key, failures, locked_until, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (key) DO UPDATE SET
				failures = EXCLUDED.failures,
				locked_until = EXCLUDED.locked_until,
				updated_at = now()`,
			state.Key, failures, state.LockedUntil)
		return err
	})
	if err != nil {
		return fmt.Errorf("save lockout: %w", apperrors.MapDBError(err))
	}
	return nil
}

// DeleteLockout removes a key. Deleting an absent key is not an error.
func (r *LockoutRepo) DeleteLockout(ctx context.Context, key string) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM lockouts WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete lockout: %w", apperrors.MapDBError(err))
	}
	return nil
}

// LoadLockouts returns every persisted counter.
func (r *LockoutRepo) LoadLockouts(ctx context.Context) ([]ports.LockoutState, error) {
	var rows []lockoutRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		res, err := conn.Query(ctx, `SELECT key, failures, locked_until FROM lockouts ORDER BY key`)
		if err != nil {
			return err
		}
		rows, err = pgx.CollectRows(res, pgx.RowToStructByName[lockoutRow])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load lockouts: %w", apperrors.MapDBError(err))
	}

	out := make([]ports.LockoutState, 0, len(rows))
	for _, row := range rows {
		out = append(out, ports.LockoutState(row))
	}
	return out, nil
}

// PruneLockouts deletes rows whose failures all predate staleBefore and whose
// lock, if any, has already expired. It returns the number of rows removed.
func (r *LockoutRepo) PruneLockouts(ctx context.Context, staleBefore time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM lockouts
		WHERE (locked_until IS NULL OR locked_until <= now())
		  AND NOT EXISTS (SELECT 1 FROM unnest(failures) AS f WHERE f >= $1)`,
		staleBefore)
	if err != nil {
		return 0, fmt.Errorf("prune lockouts: %w", apperrors.MapDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune lockouts rows affected: %w", err)
	}
	return n, nil
}
