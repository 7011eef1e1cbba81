package main

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/erazemk/handreceipt/internal/store"
)

func TestLevelRouter(t *testing.T) {
	var out, errOut bytes.Buffer
	logger := slog.New(newLevelRouter(&out, &errOut)).With("component", "test")

	logger.Debug("hidden")
	logger.Info("approved")
	logger.Warn("ledger down")
	logger.Error("disk full")

	if strings.Contains(out.String(), "hidden") || strings.Contains(errOut.String(), "hidden") {
		t.Error("debug records should be dropped")
	}
	if !strings.Contains(out.String(), "approved") || !strings.Contains(out.String(), "ledger down") {
		t.Errorf("expected info and warn on stdout, got %q", out.String())
	}
	if strings.Contains(out.String(), "disk full") || !strings.Contains(errOut.String(), "disk full") {
		t.Errorf("expected error only on stderr, got stdout=%q stderr=%q", out.String(), errOut.String())
	}
	if !strings.Contains(errOut.String(), "component=test") {
		t.Errorf("expected attrs to be kept, got %q", errOut.String())
	}
}

func TestGeneratePassword(t *testing.T) {
	a, err := generatePassword(16)
	if err != nil {
		t.Fatalf("generatePassword: %v", err)
	}
	b, _ := generatePassword(16)
	if len(a) != 16 {
		t.Errorf("expected 16 characters, got %d", len(a))
	}
	if a == b {
		t.Error("expected different passwords")
	}
}

func TestInitDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "handreceipt.db")
	database, password, err := initDatabase(path, "Admin")
	if err != nil {
		t.Fatalf("initDatabase: %v", err)
	}
	defer database.Close()

	if password == "" {
		t.Error("expected a generated password")
	}
	user, err := store.GetUserByUsername(context.Background(), database, "Admin")
	if err != nil || user == nil {
		t.Fatalf("expected admin user, got %v (%v)", user, err)
	}
	if user.Role != "admin" || user.DisplayName() != "Admin" {
		t.Errorf("unexpected admin %+v", user)
	}
}
