package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/biocapture/internal/models"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists each collection as one row
type SQLiteStore struct {
	db    *sql.DB
	path  string
	quota int64
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const schema = `CREATE TABLE IF NOT EXISTS databases (
	name       TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

// OpenSQLite opens or creates the database file at path
func OpenSQLite(path string, quota int64) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path, quota: quota}, nil
}

func (s *SQLiteStore) LoadAll(ctx context.Context) (map[string][]models.CapturedDataSet, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, payload FROM databases`)
	if err != nil {
		return nil, fmt.Errorf("failed to query databases: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]models.CapturedDataSet)
	for rows.Next() {
		var name, payload string
		if err := rows.Scan(&name, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan database row: %w", err)
		}
		records, err := decode(name, []byte(payload))
		if err != nil {
			return nil, err
		}
		result[name] = records
	}
	return result, rows.Err()
}

func (s *SQLiteStore) Put(ctx context.Context, name string, records []models.CapturedDataSet) error {
	data, err := encode(records)
	if err != nil {
		return err
	}

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if err := s.checkQuota(ctx, tx, int64(len(data)), name, name); err != nil {
			return err
		}
		if err := upsert(ctx, tx, name, data); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func (s *SQLiteStore) Rename(ctx context.Context, from, to string, records []models.CapturedDataSet) error {
	data, err := encode(records)
	if err != nil {
		return err
	}

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if err := s.checkQuota(ctx, tx, int64(len(data)), from, to); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM databases WHERE name = ?`, from); err != nil {
			return fmt.Errorf("failed to remove database %q: %w", from, err)
		}
		if err := upsert(ctx, tx, to, data); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// checkQuota measures every stored payload except the two named rows
func (s *SQLiteStore) checkQuota(ctx context.Context, tx *sql.Tx, size int64, exclude1, exclude2 string) error {
	if s.quota <= 0 {
		return nil
	}
	var others int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(LENGTH(CAST(payload AS BLOB))), 0) FROM databases WHERE name NOT IN (?, ?)`,
		exclude1, exclude2,
	).Scan(&others); err != nil {
		return fmt.Errorf("failed to measure storage usage: %w", err)
	}
	if total := others + size; total > s.quota {
		return quotaError(total, s.quota)
	}
	return nil
}

func upsert(ctx context.Context, tx *sql.Tx, name string, data []byte) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO databases (name, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		name, string(data), time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("failed to write database %q: %w", name, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM databases WHERE name = ?`, name)
		return err
	})
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
