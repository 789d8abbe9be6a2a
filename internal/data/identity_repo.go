package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/target/mmk-auth/internal/data/pgxutil"
	domainauth "github.com/target/mmk-auth/internal/domain/auth"
	apperrors "github.com/target/mmk-auth/internal/errors"
	"github.com/target/mmk-auth/internal/ports"
)

// IdentityRepo stores identities and their credentials in Postgres.
type IdentityRepo struct {
	DB *sql.DB
}

// NewIdentityRepo creates a new IdentityRepo.
func NewIdentityRepo(db *sql.DB) *IdentityRepo {
	return &IdentityRepo{DB: db}
}

var _ ports.IdentityStore = (*IdentityRepo)(nil)

const identityColumns = `id::text, username, credential_salt, credential_digest, credential_iterations,
	role, active, locked_until, created_at, updated_at`

// identityRow mirrors the identities table for pgx.RowToStructByName.
type identityRow struct {
	ID                   string     `db:"id"`
	Username             string     `db:"username"`
	CredentialSalt       []byte     `db:"credential_salt"`
	CredentialDigest     []byte     `db:"credential_digest"`
	CredentialIterations int        `db:"credential_iterations"`
	Role                 string     `db:"role"`
	Active               bool       `db:"active"`
	LockedUntil          *time.Time `db:"locked_until"`
	CreatedAt            time.Time  `db:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at"`
}

func (r identityRow) toDomain() (domainauth.Identity, error) {
	role, err := domainauth.ParseRole(r.Role)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("identity %s: %w", r.ID, err)
	}
	return domainauth.Identity{
		ID:       r.ID,
		Username: r.Username,
		Credential: domainauth.Credential{
			Salt:       r.CredentialSalt,
			Digest:     r.CredentialDigest,
			Iterations: r.CredentialIterations,
		},
		Role:        role,
		Active:      r.Active,
		LockedUntil: r.LockedUntil,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}

// LoadIdentityByUsername matches the username case-insensitively and returns
// ports.ErrNotFound when no row matches.
func (r *IdentityRepo) LoadIdentityByUsername(ctx context.Context, username string) (domainauth.Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domainauth.Identity{}, ErrUsernameRequired
	}

	var row identityRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx,
			`SELECT `+identityColumns+` FROM identities WHERE lower(username) = lower($1)`, username)
		if err != nil {
			return err
		}
		row, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[identityRow])
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return domainauth.Identity{}, ports.ErrNotFound
	}
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("load identity: %w", apperrors.MapDBError(err))
	}
	return row.toDomain()
}

// SaveIdentity inserts or fully replaces the identity keyed by ID. A second
// identity with the same username (any case) is rejected as a conflict.
func (r *IdentityRepo) SaveIdentity(ctx context.Context, identity domainauth.Identity) error {
	if identity.ID == "" {
		return ErrIdentityIDRequired
	}
	if strings.TrimSpace(identity.Username) == "" {
		return ErrUsernameRequired
	}

	createdAt := identity.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := identity.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	const q = `
		INSERT INTO identities (id, username, credential_salt, credential_digest, credential_iterations,
			role, active, locked_until, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			credential_salt = EXCLUDED.credential_salt,
			credential_digest = EXCLUDED.credential_digest,
			credential_iterations = EXCLUDED.credential_iterations,
			role = EXCLUDED.role,
			active = EXCLUDED.active,
			locked_until = EXCLUDED.locked_until,
			updated_at = EXCLUDED.updated_at`

	_, err := r.DB.ExecContext(ctx, q,
		identity.ID,
		identity.Username,
		identity.Credential.Salt,
		identity.Credential.Digest,
		identity.Credential.Iterations,
		identity.Role.String(),
		identity.Active,
		identity.LockedUntil,
		createdAt,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("save identity: %w", apperrors.MapDBError(err))
	}
	return nil
}

// ListIdentities returns every identity ordered by username.
func (r *IdentityRepo) ListIdentities(ctx context.Context) ([]domainauth.Identity, error) {
	var rows []identityRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		res, err := conn.Query(ctx, `SELECT `+identityColumns+` FROM identities ORDER BY lower(username)`)
		if err != nil {
			return err
		}
		rows, err = pgx.CollectRows(res, pgx.RowToStructByName[identityRow])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", apperrors.MapDBError(err))
	}

	out := make([]domainauth.Identity, 0, len(rows))
	for _, row := range rows {
		identity, convErr := row.toDomain()
		if convErr != nil {
			return nil, convErr
		}
		out = append(out, identity)
	}
	return out, nil
}

// SetLockedUntil writes only locked_until. A nil until clears the lock.
func (r *IdentityRepo) SetLockedUntil(ctx context.Context, id string, until *time.Time, at time.Time) error {
	if id == "" {
		return ErrIdentityIDRequired
	}
	res, err := r.DB.ExecContext(ctx,
		`UPDATE identities SET locked_until = $2, updated_at = $3 WHERE id = $1`, id, until, at)
	if err != nil {
		return fmt.Errorf("set locked_until: %w", apperrors.MapDBError(err))
	}
	return requireOneRow(res)
}

// SetActive writes only the active flag.
func (r *IdentityRepo) SetActive(ctx context.Context, id string, active bool, at time.Time) error {
	if id == "" {
		return ErrIdentityIDRequired
	}
	res, err := r.DB.ExecContext(ctx,
		`UPDATE identities SET active = $2, updated_at = $3 WHERE id = $1`, id, active, at)
	if err != nil {
		return fmt.Errorf("set active: %w", apperrors.MapDBError(err))
	}
	return requireOneRow(res)
}

// UpdateCredential replaces the credential columns. When previous is non-nil
// the row is only touched while credential_digest still equals it; false
// means another writer changed the credential first.
func (r *IdentityRepo) UpdateCredential(
	ctx context.Context,
	id string,
	previous []byte,
	cred domainauth.Credential,
	at time.Time,
) (bool, error) {
	if id == "" {
		return false, ErrIdentityIDRequired
	}
	const q = `
		UPDATE identities SET
			credential_salt = $2,
			credential_digest = $3,
			credential_iterations = $4,
			updated_at = $5
		WHERE id = $1 AND ($6::bytea IS NULL OR credential_digest = $6::bytea)`

	res, err := r.DB.ExecContext(ctx, q, id, cred.Salt, cred.Digest, cred.Iterations, at, previous)
	if err != nil {
		return false, fmt.Errorf("update credential: %w", apperrors.MapDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update credential: %w", err)
	}
	if n == 0 && previous == nil {
		return false, ports.ErrNotFound
	}
	return n == 1, nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}
