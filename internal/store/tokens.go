package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RevokeToken puts a token's JTI on the revocation list until the token
// would have expired anyway. identity is the display identity that logged
// out, kept for the audit of who ended which session.
func RevokeToken(ctx context.Context, db *sql.DB, jti, identity string, expiresAt time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO revoked_tokens (jti, revoked_by, expires_at) VALUES (?, ?, ?)`,
		jti, identity, expiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

// PurgeRevokedTokens drops revocations of tokens that expired before now and
// returns how many were removed. Expired tokens fail validation on their own.
func PurgeRevokedTokens(ctx context.Context, db *sql.DB, now time.Time) (int64, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at < ?`, now.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("purging revoked tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting purged tokens: %w", err)
	}
	return n, nil
}

// IsTokenRevoked checks if a token's JTI has been revoked.
func IsTokenRevoked(ctx context.Context, db *sql.DB, jti string) (bool, error) {
	var revoked bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = ?)`, jti,
	).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("checking token revocation: %w", err)
	}
	return revoked, nil
}

// RevokedBy returns the identity that revoked jti, or "" if it is not revoked.
func RevokedBy(ctx context.Context, db *sql.DB, jti string) (string, error) {
	var identity string
	err := db.QueryRowContext(ctx,
		`SELECT revoked_by FROM revoked_tokens WHERE jti = ?`, jti,
	).Scan(&identity)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting token revocation: %w", err)
	}
	return identity, nil
}
