package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/hpungsan/qsyntax/internal/errors"
)

// GetValue returns the value stored under key.
// ok is false when the key has never been written.
func GetValue(ctx context.Context, db *sql.DB, key string) (value string, ok bool, err error) {
	err = db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if stderrors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.NewInternal(err)
	}
	return value, true, nil
}

// PutValue writes value under key, replacing any previous value.
func PutValue(ctx context.Context, db *sql.DB, key, value string) error {
	query := `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := db.ExecContext(ctx, query, key, value, time.Now().UnixMilli()); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// DeleteValue removes key. Deleting a missing key is not an error.
func DeleteValue(ctx context.Context, db *sql.DB, key string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// UpdatedAt returns the unix-millisecond time key was last written, or 0.
func UpdatedAt(ctx context.Context, db *sql.DB, key string) (int64, error) {
	var ts int64
	err := db.QueryRowContext(ctx, `SELECT updated_at FROM kv WHERE key = ?`, key).Scan(&ts)
	if stderrors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return ts, nil
}
