package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlUtterances = `
CREATE TABLE IF NOT EXISTS utterances (
    id              BIGSERIAL    PRIMARY KEY,
    session_id      TEXT         NOT NULL,
    direction       TEXT         NOT NULL,
    source_text     TEXT         NOT NULL,
    translated_text TEXT         NOT NULL,
    source_lang     TEXT         NOT NULL,
    target_lang     TEXT         NOT NULL,
    created_at      TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_utterances_session_id
    ON utterances (session_id);

CREATE INDEX IF NOT EXISTS idx_utterances_created_at
    ON utterances (created_at);
`

// Postgres is the PostgreSQL-backed Store. All operations go through a single
// [pgxpool.Pool] and are safe for concurrent use.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// NewPostgres establishes a connection pool to the database at dsn and
// ensures the utterances table exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("history: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("history: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlUtterances); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Write appends an utterance.
func (p *Postgres) Write(ctx context.Context, u Utterance) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO utterances
		    (session_id, direction, source_text, translated_text, source_lang, target_lang, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.SessionID, u.Direction, u.SourceText, u.TranslatedText,
		u.SourceLang, u.TargetLang, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("history: insert utterance: %w", err)
	}
	return nil
}

// Recent returns up to limit utterances, newest first.
func (p *Postgres) Recent(ctx context.Context, sessionID string, limit int) ([]Utterance, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, session_id, direction, source_text, translated_text,
		       source_lang, target_lang, created_at
		FROM utterances`
	args := []any{}
	if sessionID != "" {
		query += ` WHERE session_id = $1`
		args = append(args, sessionID)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT %d`, limit)

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: query utterances: %w", err)
	}
	defer rows.Close()

	var out []Utterance
	for rows.Next() {
		var u Utterance
		if err := rows.Scan(&u.ID, &u.SessionID, &u.Direction, &u.SourceText,
			&u.TranslatedText, &u.SourceLang, &u.TargetLang, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("history: scan utterance: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate utterances: %w", err)
	}
	return out, nil
}

// Close releases all connections held by the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
