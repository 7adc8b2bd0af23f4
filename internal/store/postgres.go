package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

const postgresKVTable = "focalize_kv"

// PostgresStore backs the sync scope with a shared Postgres table so
// replicated state follows the user across devices.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects to dsn and ensures the kv table exists.
func OpenPostgres(dsn string) (*PostgresStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres store: empty dsn")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
		    scope      TEXT NOT NULL,
		    key        TEXT NOT NULL,
		    value      BYTEA NOT NULL,
		    updated_at BIGINT NOT NULL,
		    PRIMARY KEY (scope, key)
		)`, postgresKVTable)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, scope Scope, key string) ([]byte, bool, error) {
	query := fmt.Sprintf("SELECT value FROM %s WHERE scope = $1 AND key = $2", postgresKVTable)
	var value []byte
	err := s.db.QueryRowContext(ctx, query, string(scope), key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set implements Store.
func (s *PostgresStore) Set(ctx context.Context, scope Scope, key string, value []byte) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (scope, key, value, updated_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (scope, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		postgresKVTable)
	_, err := s.db.ExecContext(ctx, query, string(scope), key, value, time.Now().UnixMilli())
	return err
}

// Delete implements Store.
func (s *PostgresStore) Delete(ctx context.Context, scope Scope, key string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE scope = $1 AND key = $2", postgresKVTable)
	_, err := s.db.ExecContext(ctx, query, string(scope), key)
	return err
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
