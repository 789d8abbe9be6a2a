package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/target/mmk-auth/internal/data/pgxutil"
	domainauth "github.com/target/mmk-auth/internal/domain/auth"
	apperrors "github.com/target/mmk-auth/internal/errors"
	"github.com/target/mmk-auth/internal/ports"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

// AuditRepo is the append-only Postgres audit trail.
type AuditRepo struct {
	DB *sql.DB
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{DB: db}
}

var _ ports.AuditSink = (*AuditRepo)(nil)

// AuditQuery filters ListAuditEvents. An empty Username lists every identity.
type AuditQuery struct {
	Username string
	Limit    int
}

type auditRow struct {
	ID         string    `db:"id"`
	OccurredAt time.Time `db:"occurred_at"`
	Username   string    `db:"username"`
	Action     string    `db:"action"`
	Outcome    string    `db:"outcome"`
	Detail     string    `db:"detail"`
	Client     []byte    `db:"client"`
}

// AppendAuditEvent inserts one event. Events without an ID get a fresh one.
func (r *AuditRepo) AppendAuditEvent(ctx context.Context, event domainauth.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	client, err := json.Marshal(event.Client)
	if err != nil {
		return fmt.Errorf("marshal audit client: %w", err)
	}

	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO audit_events (id, occurred_at, username, action, outcome, detail, client)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)`,
		event.ID, event.Timestamp, event.Username, string(event.Action), string(event.Outcome), event.Detail, string(client))
	if err != nil {
		return fmt.Errorf("append audit event: %w", apperrors.MapDBError(err))
	}
	return nil
}

// ListAuditEvents returns the most recent events in insertion order.
func (r *AuditRepo) ListAuditEvents(ctx context.Context, q AuditQuery) ([]domainauth.AuditEvent, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	limit = min(limit, maxAuditLimit)

	var rows []auditRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		res, err := conn.Query(ctx, `
			SELECT id::text, occurred_at, username, action, outcome, detail, client
			FROM (
				SELECT * FROM audit_events
				WHERE $1 = '' OR lower(username) = lower($1)
				ORDER BY seq DESC
				LIMIT $2
			) recent
			ORDER BY seq ASC`, q.Username, limit)
		if err != nil {
			return err
		}
		rows, err = pgx.CollectRows(res, pgx.RowToStructByName[auditRow])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", apperrors.MapDBError(err))
	}

	out := make([]domainauth.AuditEvent, 0, len(rows))
	for _, row := range rows {
		event := domainauth.AuditEvent{
			ID:        row.ID,
			Timestamp: row.OccurredAt,
			Username:  row.Username,
			Action:    domainauth.AuditAction(row.Action),
			Outcome:   domainauth.AuditOutcome(row.Outcome),
			Detail:    row.Detail,
		}
		if len(row.Client) > 0 {
			if err := json.Unmarshal(row.Client, &event.Client); err != nil {
				return nil, fmt.Errorf("decode audit client %s: %w", row.ID, err)
			}
		}
		out = append(out, event)
	}
	return out, nil
}
