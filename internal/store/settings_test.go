package store

import (
	"context"
	"testing"

	"github.com/erazemk/izposoja/internal/db"
)

func TestGetJWTSecret_GeneratesAndPersists(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	// First call should generate a secret.
	secret1, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if len(secret1) != 64 { // 32 bytes = 64 hex chars
		t.Fatalf("expected 64 hex chars, got %d", len(secret1))
	}

	// Second call should return the same secret.
	secret2, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if secret1 != secret2 {
		t.Fatalf("expected same secret, got %q and %q", secret1, secret2)
	}
}

func TestEnsureSettingKeepsFirstValue(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	missing, err := GetSetting(ctx, database, "greeting")
	if err != nil {
		t.Fatal(err)
	}
	if missing != "" {
		t.Errorf("expected empty value for missing setting, got %q", missing)
	}

	got, _ := EnsureSetting(ctx, database, "greeting", "hello")
	if got != "hello" {
		t.Errorf("expected hello, got %q", got)
	}
	got, _ = EnsureSetting(ctx, database, "greeting", "bye")
	if got != "hello" {
		t.Errorf("expected existing value to win, got %q", got)
	}
}
