// Package history stores finished campaign sends in PostgreSQL.
//
// History is optional: the server only wires it when DATABASE_URL is set.
// Store implements core.CampaignRecorder.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/bulkmail/internal/core"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Schema creates the history table. It is safe to run on every start.
const Schema = `
CREATE TABLE IF NOT EXISTS campaign_history (
	id          UUID PRIMARY KEY,
	subject     TEXT NOT NULL,
	provider    TEXT NOT NULL,
	total       INTEGER NOT NULL,
	sent        INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	opens       INTEGER NOT NULL,
	status      TEXT NOT NULL,
	error       TEXT,
	session_id  TEXT,
	ip_address  TEXT,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS campaign_history_created_at_idx ON campaign_history (created_at DESC);
`

// MaxListLimit caps a single List call.
const MaxListLimit = 500

// Store reads and writes campaign_history.
type Store struct {
	db DBTX
}

// New creates a Store.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the table and index if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create campaign_history: %w", err)
	}
	return nil
}

// RecordCampaign inserts one send attempt.
func (s *Store) RecordCampaign(ctx context.Context, rec core.CampaignRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.Exec(ctx, `INSERT INTO campaign_history
		(id, subject, provider, total, sent, failed, opens, status, error, session_id, ip_address, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rec.ID, rec.Subject, rec.Provider,
		rec.Total, rec.Sent, rec.Failed, rec.Opens, rec.Status,
		toText(rec.Error), toText(rec.SessionID), toText(rec.IPAddress),
		rec.DurationMs, createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert campaign %s: %w", rec.ID, err)
	}
	return nil
}

// List returns the most recent campaigns, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]core.CampaignRecord, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}

	rows, err := s.db.Query(ctx, `SELECT id::text, subject, provider, total, sent, failed, opens,
		status, error, session_id, ip_address, duration_ms, created_at
		FROM campaign_history ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]core.CampaignRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Prune deletes campaigns older than retentionDays and returns how many went.
func (s *Store) Prune(ctx context.Context, retentionDays int) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM campaign_history WHERE created_at < now() - make_interval(days => $1)`,
		retentionDays,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanRecord(rows pgx.Rows) (core.CampaignRecord, error) {
	var (
		rec       core.CampaignRecord
		errText   pgtype.Text
		sessionID pgtype.Text
		ipAddress pgtype.Text
	)
	err := rows.Scan(
		&rec.ID, &rec.Subject, &rec.Provider,
		&rec.Total, &rec.Sent, &rec.Failed, &rec.Opens,
		&rec.Status, &errText, &sessionID, &ipAddress,
		&rec.DurationMs, &rec.CreatedAt,
	)
	if err != nil {
		return core.CampaignRecord{}, err
	}
	rec.Error = errText.String
	rec.SessionID = sessionID.String
	rec.IPAddress = ipAddress.String
	return rec, nil
}

func toText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
