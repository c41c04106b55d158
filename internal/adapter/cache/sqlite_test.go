package cache

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T, ttl time.Duration) *SQLite {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	db, err := NewSQLite(path, ttl, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLite_SetGet(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, 0)

	if _, ok, err := db.Get(ctx, testKey()); ok || err != nil {
		t.Fatalf("Get on empty: ok=%v err=%v", ok, err)
	}
	if err := db.Set(ctx, testKey(), "<p>persisted</p>"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := db.Get(ctx, testKey())
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got != "<p>persisted</p>" {
		t.Errorf("Get = %q", got)
	}
}

func TestSQLite_OverwriteReplaces(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, 0)

	if err := db.Set(ctx, testKey(), "old"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := db.Set(ctx, testKey(), "new"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, _ := db.Get(ctx, testKey())
	if !ok || got != "new" {
		t.Errorf("Get = %q (ok=%v), want new", got, ok)
	}
}

func TestSQLite_Clear(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, 0)

	if err := db.Set(ctx, testKey(), "doc"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := db.Clear(ctx, testKey()); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, _ := db.Get(ctx, testKey()); ok {
		t.Error("hit after Clear")
	}
}

func TestSQLite_ExpirySweep(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, time.Second)

	if err := db.Set(ctx, testKey(), "doc"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	// Expiry resolution is one second; wait past it.
	time.Sleep(1100 * time.Millisecond)

	if _, ok, _ := db.Get(ctx, testKey()); ok {
		t.Error("hit on expired entry")
	}
	n, err := db.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Errorf("Sweep = %d, want 1", n)
	}
}
