package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Postgres is a PostgreSQL-backed store with the same kv layout as SQLite.
type Postgres struct {
	db *sql.DB
}

// NewPostgres connects to dsn and creates the kv table if needed.
func NewPostgres(dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres store: database connection required (set storage.dsn or DATABASE_URL)")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres store: failed to connect: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres store: failed to create schema: %w", err)
	}

	return &Postgres{db: db}, nil
}

// Get retrieves the value stored at key.
func (p *Postgres) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := p.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = $1", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("postgres store: get %q failed: %w", key, err)
	}
	return value, true, nil
}

// Set stores value at key.
func (p *Postgres) Set(ctx context.Context, key, value string) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("postgres store: set %q failed: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (p *Postgres) Delete(ctx context.Context, key string) error {
	if _, err := p.db.ExecContext(ctx, "DELETE FROM kv WHERE key = $1", key); err != nil {
		return fmt.Errorf("postgres store: delete %q failed: %w", key, err)
	}
	return nil
}

// Keys lists keys starting with prefix.
func (p *Postgres) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx,
		"SELECT key FROM kv WHERE left(key, $1) = $2 ORDER BY key", len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list keys failed: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close releases the connection pool
func (p *Postgres) Close() error {
	return p.db.Close()
}
