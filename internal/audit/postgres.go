// Package audit persists a secret-free record of every dispatch attempt.
package audit

import (
	"context"
	"database/sql"
	"fmt"

	apperrors "finhub-workers/internal/common/errors"
	"finhub-workers/internal/transaction"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS dispatch_audit (
	id               UUID PRIMARY KEY,
	origin           TEXT NOT NULL DEFAULT '',
	transaction_type TEXT NOT NULL,
	operation        TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL,
	code             TEXT NOT NULL DEFAULT '',
	message          TEXT NOT NULL DEFAULT '',
	host             TEXT NOT NULL DEFAULT '',
	tenant           TEXT NOT NULL DEFAULT '',
	username         TEXT NOT NULL DEFAULT '',
	amount           TEXT NOT NULL DEFAULT '',
	currency         TEXT NOT NULL DEFAULT '',
	duration_ms      BIGINT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL
)`

const insertSQL = `
INSERT INTO dispatch_audit (
	id, origin, transaction_type, operation, status, code, message,
	host, tenant, username, amount, currency, duration_ms, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

// Recorder writes dispatch records to PostgreSQL.
type Recorder struct {
	db *sql.DB
}

var _ transaction.Auditor = (*Recorder)(nil)

func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// EnsureSchema creates the audit table if it does not exist.
func (r *Recorder) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create dispatch_audit: %w", err)
	}
	return nil
}

// RecordDispatch inserts one row. The record never carries the secret or the
// remote payload.
func (r *Recorder) RecordDispatch(ctx context.Context, rec transaction.DispatchRecord) error {
	_, err := r.db.ExecContext(ctx, insertSQL,
		rec.ID,
		rec.Origin,
		string(rec.TransactionType),
		rec.Operation,
		string(rec.Status),
		string(rec.Code),
		rec.Message,
		rec.Host,
		rec.Tenant,
		rec.User,
		rec.Amount,
		rec.Currency,
		rec.Duration.Milliseconds(),
		rec.CreatedAt,
	)
	if err != nil {
		return apperrors.NewAuditWriteFailedError(err)
	}
	return nil
}

// NopRecorder discards records when no audit database is configured.
type NopRecorder struct{}

func (NopRecorder) RecordDispatch(context.Context, transaction.DispatchRecord) error {
	return nil
}
