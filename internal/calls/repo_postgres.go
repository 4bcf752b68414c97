package calls

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"autodialer/pkg/utils"
)

// PostgresRepo stores call records in a single table.
//
// Expected schema:
//
//	CREATE TABLE calls (
//	    id               UUID PRIMARY KEY,
//	    phone_number     TEXT NOT NULL,
//	    status           TEXT NOT NULL DEFAULT 'pending',
//	    provider_call_id TEXT NOT NULL DEFAULT '',
//	    provider_status  TEXT NOT NULL DEFAULT '',
//	    duration_seconds INT  NOT NULL DEFAULT 0,
//	    error_message    TEXT NOT NULL DEFAULT '',
//	    called_at        TIMESTAMPTZ,
//	    created_at       TIMESTAMPTZ NOT NULL,
//	    updated_at       TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX calls_status_idx ON calls (status);
//	CREATE INDEX calls_provider_call_id_idx ON calls (provider_call_id);
//
// Per-record serialization: UpdateStatus locks the row with SELECT ... FOR
// UPDATE inside a transaction, re-checks the transition against the locked
// state, then writes. Concurrent dispatch and reconciliation updates for the
// same id therefore apply one at a time against a consistent row.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const callColumns = `id, phone_number, status, provider_call_id, provider_status, duration_seconds, error_message, called_at, created_at, updated_at`

func (r *PostgresRepo) Insert(ctx context.Context, rec CallRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO calls (`+callColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.PhoneNumber, rec.Status, rec.ProviderCallID, rec.ProviderStatus,
		rec.DurationSeconds, rec.ErrorMessage, rec.CalledAt, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("calls: insert: %w", err)
	}
	return nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (CallRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+callColumns+` FROM calls WHERE id = $1`, id)
	return scanCall(row)
}

func (r *PostgresRepo) GetByProviderCallID(ctx context.Context, providerCallID string) (CallRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+callColumns+` FROM calls WHERE provider_call_id = $1 LIMIT 1`, providerCallID)
	return scanCall(row)
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, id string, upd StatusUpdate, now time.Time) (CallRecord, error) {
	var out CallRecord
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+callColumns+` FROM calls WHERE id = $1 FOR UPDATE`, id)
		rec, err := scanCall(row)
		if err != nil {
			return err
		}

		applied, err := applyUpdate(rec, upd, now)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE calls
			SET status = $2,
			    provider_call_id = $3,
			    provider_status = $4,
			    duration_seconds = $5,
			    error_message = $6,
			    called_at = $7,
			    updated_at = $8
			WHERE id = $1`,
			applied.ID, applied.Status, applied.ProviderCallID, applied.ProviderStatus,
			applied.DurationSeconds, applied.ErrorMessage, applied.CalledAt, applied.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("calls: update: %w", err)
		}
		out = applied
		return nil
	})
	if err != nil {
		return CallRecord{}, err
	}
	return out, nil
}

func (r *PostgresRepo) ListPending(ctx context.Context, limit int) ([]CallRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+callColumns+` FROM calls
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2`, StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("calls: list pending: %w", err)
	}
	defer rows.Close()
	return scanCalls(rows)
}

func (r *PostgresRepo) ListInFlight(ctx context.Context) ([]CallRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+callColumns+` FROM calls
		WHERE status = $1 AND provider_call_id <> ''
		ORDER BY created_at ASC`, StatusCalling)
	if err != nil {
		return nil, fmt.Errorf("calls: list in flight: %w", err)
	}
	defer rows.Close()
	return scanCalls(rows)
}

func (r *PostgresRepo) ListRecent(ctx context.Context, limit int) ([]CallRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+callColumns+` FROM calls
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("calls: list recent: %w", err)
	}
	defer rows.Close()
	return scanCalls(rows)
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM calls WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("calls: delete: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) Stats(ctx context.Context) (Stats, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = $1),
			COUNT(*) FILTER (WHERE status = $2),
			COUNT(*) FILTER (WHERE status IN ($3, $4, $5)),
			COUNT(*) FILTER (WHERE status = $6)
		FROM calls`,
		StatusPending, StatusCompleted, StatusFailed, StatusNoAnswer, StatusBusy, StatusCalling)

	var s Stats
	if err := row.Scan(&s.Total, &s.Pending, &s.Completed, &s.Failed, &s.InProgress); err != nil {
		return Stats{}, fmt.Errorf("calls: stats: %w", err)
	}
	return s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (CallRecord, error) {
	var rec CallRecord
	var calledAt sql.NullTime
	err := row.Scan(
		&rec.ID, &rec.PhoneNumber, &rec.Status, &rec.ProviderCallID, &rec.ProviderStatus,
		&rec.DurationSeconds, &rec.ErrorMessage, &calledAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return CallRecord{}, ErrNotFound
	}
	if err != nil {
		return CallRecord{}, fmt.Errorf("calls: scan: %w", err)
	}
	if calledAt.Valid {
		t := calledAt.Time
		rec.CalledAt = &t
	}
	return rec, nil
}

func scanCalls(rows *sql.Rows) ([]CallRecord, error) {
	var out []CallRecord
	for rows.Next() {
		rec, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("calls: rows: %w", err)
	}
	return out, nil
}
