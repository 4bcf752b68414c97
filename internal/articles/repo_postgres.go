package articles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresRepo stores generated articles.
//
// Expected schema:
//
//	CREATE TABLE articles (
//	    id         UUID PRIMARY KEY,
//	    title      TEXT NOT NULL,
//	    topic      TEXT NOT NULL DEFAULT '',
//	    content    TEXT NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL
//	);
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const articleColumns = `id, title, topic, content, created_at`

func (r *PostgresRepo) Insert(ctx context.Context, a Article) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO articles (`+articleColumns+`)
		VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.Title, a.Topic, a.Content, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("articles: insert: %w", err)
	}
	return nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Article, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = $1`, id)

	var a Article
	err := row.Scan(&a.ID, &a.Title, &a.Topic, &a.Content, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Article{}, ErrNotFound
	}
	if err != nil {
		return Article{}, fmt.Errorf("articles: scan: %w", err)
	}
	return a, nil
}

func (r *PostgresRepo) ListRecent(ctx context.Context, limit int) ([]Article, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+articleColumns+` FROM articles
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("articles: list recent: %w", err)
	}
	defer rows.Close()

	var out []Article
	for rows.Next() {
		var a Article
		if err := rows.Scan(&a.ID, &a.Title, &a.Topic, &a.Content, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("articles: scan: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("articles: rows: %w", err)
	}
	return out, nil
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("articles: delete: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
