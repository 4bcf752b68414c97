package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresRepo appends run events to an insert-only table.
//
// Expected schema:
//
//	CREATE TABLE run_events (
//	    id         UUID PRIMARY KEY,
//	    type       TEXT NOT NULL,
//	    selected   INT  NOT NULL DEFAULT 0,
//	    succeeded  INT  NOT NULL DEFAULT 0,
//	    failed     INT  NOT NULL DEFAULT 0,
//	    message    TEXT NOT NULL DEFAULT '',
//	    created_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX run_events_created_at_idx ON run_events (created_at);
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e RunEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO run_events (id, type, selected, succeeded, failed, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.Type, e.Selected, e.Succeeded, e.Failed, e.Message, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: append: %w", err)
	}
	return nil
}
