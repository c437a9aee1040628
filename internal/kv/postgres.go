package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL with pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	expires_at BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_kv_expires_at ON kv_entries(expires_at);
`

// NewPostgresStore connects to the database, verifies connectivity and
// ensures the schema exists.
func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	if url == "" {
		return nil, fmt.Errorf("kv: postgres URL is required")
	}

	bootCtx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
	defer cancel()

	pool, err := pgxpool.New(bootCtx, url)
	if err != nil {
		return nil, fmt.Errorf("kv: create postgres pool: %w", err)
	}
	if err := pool.Ping(bootCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("kv: ping postgres: %w", err)
	}
	if _, err := pool.Exec(bootCtx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("kv: initialize postgres schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	var expiresAt int64
	err := s.pool.QueryRow(ctx,
		`SELECT value, expires_at FROM kv_entries WHERE key = $1`, key,
	).Scan(&value, &expiresAt)
	if err == pgx.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv: postgres get: %w", err)
	}
	if expiresAt > 0 && expiresAt <= nowMillis() {
		_, _ = s.pool.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1`, key)
		return "", false, nil
	}
	return value, true, nil
}

func (s *PostgresStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO kv_entries (key, value, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		key, value, expiryMillis(ttl),
	)
	if err != nil {
		return fmt.Errorf("kv: postgres put: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1`, key); err != nil {
		return fmt.Errorf("kv: postgres delete: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, prefix string, limit int) ([]Entry, error) {
	query := `SELECT key, expires_at FROM kv_entries
		WHERE key LIKE $1 ESCAPE '\' AND (expires_at = 0 OR expires_at > $2)
		ORDER BY key`
	args := []any{escapeLike(prefix) + "%", nowMillis()}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("kv: postgres list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var key string
		var expiresAt int64
		if err := rows.Scan(&key, &expiresAt); err != nil {
			return nil, fmt.Errorf("kv: postgres list scan: %w", err)
		}
		e := Entry{Name: key}
		if expiresAt > 0 {
			e.Expiration = time.UnixMilli(expiresAt)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("kv: postgres list rows: %w", err)
	}
	return entries, nil
}

// Sweep removes all expired keys and returns how many were deleted.
func (s *PostgresStore) Sweep(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM kv_entries WHERE expires_at > 0 AND expires_at <= $1`, nowMillis())
	if err != nil {
		return 0, fmt.Errorf("kv: postgres sweep: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
