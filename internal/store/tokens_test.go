package store

import (
	"context"
	"testing"
	"time"

	"github.com/erazemk/handreceipt/internal/db"
)

func TestRevokeToken(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	revoked, err := IsTokenRevoked(ctx, database, "jti-doe")
	if err != nil {
		t.Fatalf("IsTokenRevoked: %v", err)
	}
	if revoked {
		t.Error("expected token not to be revoked")
	}

	if err := RevokeToken(ctx, database, "jti-doe", "CPT John Doe", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	// Logging out twice is not an error.
	if err := RevokeToken(ctx, database, "jti-doe", "CPT John Doe", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("second RevokeToken: %v", err)
	}

	revoked, err = IsTokenRevoked(ctx, database, "jti-doe")
	if err != nil {
		t.Fatalf("IsTokenRevoked: %v", err)
	}
	if !revoked {
		t.Error("expected token to be revoked")
	}

	by, err := RevokedBy(ctx, database, "jti-doe")
	if err != nil {
		t.Fatalf("RevokedBy: %v", err)
	}
	if by != "CPT John Doe" {
		t.Errorf("expected revoking identity 'CPT John Doe', got %q", by)
	}

	revoked, _ = IsTokenRevoked(ctx, database, "jti-martinez")
	if revoked {
		t.Error("expected a different token not to be revoked")
	}
	by, _ = RevokedBy(ctx, database, "jti-martinez")
	if by != "" {
		t.Errorf("expected no revoking identity, got %q", by)
	}
}

func TestPurgeRevokedTokens(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	now := time.Date(2023, 7, 15, 12, 0, 0, 0, time.UTC)

	RevokeToken(ctx, database, "expired", "SFC Martinez", now.Add(-time.Minute))
	RevokeToken(ctx, database, "live", "CPT John Doe", now.Add(time.Hour))

	n, err := PurgeRevokedTokens(ctx, database, now)
	if err != nil {
		t.Fatalf("PurgeRevokedTokens: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 purged revocation, got %d", n)
	}

	if revoked, _ := IsTokenRevoked(ctx, database, "expired"); revoked {
		t.Error("expired revocation should be gone")
	}
	if revoked, _ := IsTokenRevoked(ctx, database, "live"); !revoked {
		t.Error("live revocation should remain")
	}
}
