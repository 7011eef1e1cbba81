package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    rank          TEXT NOT NULL DEFAULT '',
    name          TEXT NOT NULL DEFAULT '',
    role          TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'manager', 'user')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    revoked_by TEXT NOT NULL DEFAULT '',
    revoked_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS items (
    serial_number  TEXT PRIMARY KEY,
    name           TEXT NOT NULL,
    category       TEXT NOT NULL DEFAULT 'other'
                   CHECK (category IN ('weapon', 'communication', 'optics', 'crypto', 'other')),
    security_level TEXT NOT NULL DEFAULT 'routine'
                   CHECK (security_level IN ('routine', 'controlled', 'classified', 'secret', 'top-secret')),
    ledger_tracked INTEGER NOT NULL DEFAULT 0,
    image          BLOB,
    image_mime     TEXT,
    created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS transfers (
    id               TEXT PRIMARY KEY,
    name             TEXT NOT NULL,
    serial_number    TEXT NOT NULL,
    from_identity    TEXT NOT NULL,
    to_identity      TEXT NOT NULL,
    date             DATETIME NOT NULL,
    status           TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
    approved_date    DATETIME,
    rejected_date    DATETIME,
    rejection_reason TEXT
);

CREATE INDEX IF NOT EXISTS idx_transfers_serial ON transfers(serial_number);

CREATE TABLE IF NOT EXISTS ledger_entries (
    seq           INTEGER PRIMARY KEY,
    tx_id         TEXT NOT NULL UNIQUE,
    event_type    TEXT NOT NULL,
    serial_number TEXT NOT NULL,
    transfer_id   TEXT NOT NULL,
    payload       TEXT NOT NULL,
    actor         TEXT NOT NULL,
    prev_hash     TEXT NOT NULL,
    hash          TEXT NOT NULL,
    recorded_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_ledger_serial ON ledger_entries(serial_number);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
