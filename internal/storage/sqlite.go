package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sets (
		set_key TEXT NOT NULL,
		member TEXT NOT NULL,
		PRIMARY KEY (set_key, member)
	)`,
	`CREATE TABLE IF NOT EXISTS hashes (
		hash_key TEXT NOT NULL,
		field TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (hash_key, field)
	)`,
	`CREATE TABLE IF NOT EXISTS seqs (
		name TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	)`,
}

// SQLiteStore is a single-file embedded store. Indexes share the hashes table
// with ordinary hashes.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "dbo.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps every caller on the same database, which matters for :memory:
	db.SetMaxOpenConns(1)

	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the configured database path.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) GetValue(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) SetValue(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv(key, value) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteValue(ctx context.Context, key string) error {
	return s.exec(ctx, `DELETE FROM kv WHERE key = ?`, key)
}

func (s *SQLiteStore) AddToSet(ctx context.Context, setKey string, member string) error {
	return s.exec(ctx, `INSERT OR IGNORE INTO sets(set_key, member) VALUES(?, ?)`, setKey, member)
}

func (s *SQLiteStore) RemoveFromSet(ctx context.Context, setKey string, member string) error {
	return s.exec(ctx, `DELETE FROM sets WHERE set_key = ? AND member = ?`, setKey, member)
}

func (s *SQLiteStore) SetContains(ctx context.Context, setKey string, member string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sets WHERE set_key = ? AND member = ?`, setKey, member).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("select set %s: %w", setKey, err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) SetMembers(ctx context.Context, setKey string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT member FROM sets WHERE set_key = ? ORDER BY member`, setKey)
	if err != nil {
		return nil, fmt.Errorf("select set %s: %w", setKey, err)
	}
	defer func() { _ = rows.Close() }()

	members := []string{}
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *SQLiteStore) HashGet(ctx context.Context, hashKey string, field string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM hashes WHERE hash_key = ? AND field = ?`, hashKey, field).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select hash %s: %w", hashKey, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) HashSet(ctx context.Context, hashKey string, field string, value string) error {
	return s.exec(ctx,
		`INSERT INTO hashes(hash_key, field, value) VALUES(?, ?, ?)
		 ON CONFLICT(hash_key, field) DO UPDATE SET value = excluded.value`,
		hashKey, field, value)
}

func (s *SQLiteStore) HashGetAll(ctx context.Context, hashKey string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT field, value FROM hashes WHERE hash_key = ?`, hashKey)
	if err != nil {
		return nil, fmt.Errorf("select hash %s: %w", hashKey, err)
	}
	defer func() { _ = rows.Close() }()

	vals := map[string]string{}
	for rows.Next() {
		var f, v string
		if err := rows.Scan(&f, &v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		vals[f] = v
	}
	return vals, rows.Err()
}

func (s *SQLiteStore) HashDelete(ctx context.Context, hashKey string, field string) error {
	return s.exec(ctx, `DELETE FROM hashes WHERE hash_key = ? AND field = ?`, hashKey, field)
}

func (s *SQLiteStore) NextValue(ctx context.Context, sequence string) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO seqs(name, value) VALUES(?, 1)
		 ON CONFLICT(name) DO UPDATE SET value = value + 1
		 RETURNING value`, sequence).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("incrementing %s: %w", sequence, err)
	}
	return v, nil
}

func (s *SQLiteStore) SetIndex(ctx context.Context, index string, value string, target string) error {
	return s.HashSet(ctx, index, value, target)
}

func (s *SQLiteStore) GetIndex(ctx context.Context, index string, value string) (string, bool, error) {
	return s.HashGet(ctx, index, value)
}

func (s *SQLiteStore) DeleteIndex(ctx context.Context, index string, value string) error {
	return s.HashDelete(ctx, index, value)
}

func (s *SQLiteStore) DeleteKey(ctx context.Context, key string) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range []string{
		`DELETE FROM kv WHERE key = ?`,
		`DELETE FROM sets WHERE set_key = ?`,
		`DELETE FROM hashes WHERE hash_key = ?`,
		`DELETE FROM seqs WHERE name = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, key); err != nil {
			return fmt.Errorf("deleting %s: %w", key, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) exec(ctx context.Context, query string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}
