package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
)

// Setting keys.
const (
	settingJWTSecret     = "jwt_secret"
	settingLedgerGenesis = "ledger_genesis"
)

// GetJWTSecret returns the token signing secret, generating it on first use.
func GetJWTSecret(ctx context.Context, db *sql.DB) (string, error) {
	return randomSetting(ctx, db, settingJWTSecret)
}

// GetLedgerGenesis returns the hash the audit ledger of this installation
// chains from, generating it on first use. Ledger entries copied from another
// database do not verify against it.
func GetLedgerGenesis(ctx context.Context, db *sql.DB) (string, error) {
	return randomSetting(ctx, db, settingLedgerGenesis)
}

// GetSetting returns the value stored under key, or "" if there is none.
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

// randomSetting returns the value under key. A missing value is set to 32
// random bytes in hex. INSERT OR IGNORE followed by a read keeps two
// processes starting at once from ending up with different values.
func randomSetting(ctx context.Context, db *sql.DB, key string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating %s: %w", key, err)
	}

	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`,
		key, hex.EncodeToString(buf),
	)
	if err != nil {
		return "", fmt.Errorf("storing %s: %w", key, err)
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
