package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
)

// GetSetting returns the value stored under key, or "" if it is unset.
func GetSetting(ctx context.Context, db *sql.DB, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting setting %s: %w", key, err)
	}
	return value, nil
}

// EnsureSetting stores candidate under key unless a value already exists and
// returns whichever value ended up stored. INSERT OR IGNORE followed by a read
// keeps concurrent first starts from disagreeing.
func EnsureSetting(ctx context.Context, db *sql.DB, key, candidate string) (string, error) {
	if _, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`, key, candidate,
	); err != nil {
		return "", fmt.Errorf("storing setting %s: %w", key, err)
	}

	value, err := GetSetting(ctx, db, key)
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", fmt.Errorf("setting %s is empty", key)
	}
	return value, nil
}

// GetJWTSecret returns the token signing key, generating one on first use.
func GetJWTSecret(ctx context.Context, db *sql.DB) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}
	return EnsureSetting(ctx, db, "jwt_secret", hex.EncodeToString(buf))
}
