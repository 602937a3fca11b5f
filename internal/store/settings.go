package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/starford/feedwise/internal/apperr"
)

// RawSetting returns the stored JSON value of key, or nil when it is unset.
func (db *DB) RawSetting(ctx context.Context, key string) (json.RawMessage, error) {
	var raw string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Persistence("get setting", err)
	}
	return json.RawMessage(raw), nil
}

// GetSetting decodes the value of key into dst and reports whether it was set.
func (db *DB) GetSetting(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := db.RawSetting(ctx, key)
	if err != nil || raw == nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("store: decode setting %q: %w", key, err)
	}
	return true, nil
}

// SetSetting upserts a JSON-serializable value under key.
func (db *DB) SetSetting(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: encode setting %q: %w", key, err)
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value      = excluded.value,
			updated_at = excluded.updated_at
	`, key, string(data), db.now())
	if err != nil {
		return apperr.Persistence("set setting", err)
	}
	return nil
}
