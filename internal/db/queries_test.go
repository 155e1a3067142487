package db

import (
	"context"
	"database/sql"
	"testing"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestGetValue_Missing(t *testing.T) {
	db := openTestDB(t)

	value, ok, err := GetValue(context.Background(), db, "chatHistory")
	if err != nil {
		t.Fatalf("GetValue() error = %v", err)
	}
	if ok {
		t.Errorf("ok = true, want false for missing key")
	}
	if value != "" {
		t.Errorf("value = %q, want empty", value)
	}
}

func TestPutAndGetValue(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := PutValue(ctx, db, "chatHistory", "[]"); err != nil {
		t.Fatalf("PutValue() error = %v", err)
	}

	value, ok, err := GetValue(ctx, db, "chatHistory")
	if err != nil {
		t.Fatalf("GetValue() error = %v", err)
	}
	if !ok || value != "[]" {
		t.Errorf("GetValue() = %q, %v; want [], true", value, ok)
	}

	ts, err := UpdatedAt(ctx, db, "chatHistory")
	if err != nil {
		t.Fatalf("UpdatedAt() error = %v", err)
	}
	if ts == 0 {
		t.Errorf("UpdatedAt() = 0, want timestamp")
	}
}

func TestPutValue_Overwrites(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := PutValue(ctx, db, "k", "first"); err != nil {
		t.Fatalf("PutValue() error = %v", err)
	}
	if err := PutValue(ctx, db, "k", "second"); err != nil {
		t.Fatalf("PutValue() error = %v", err)
	}

	value, _, err := GetValue(ctx, db, "k")
	if err != nil {
		t.Fatalf("GetValue() error = %v", err)
	}
	if value != "second" {
		t.Errorf("value = %q, want second", value)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM kv").Scan(&count); err != nil {
		t.Fatalf("count query error = %v", err)
	}
	if count != 1 {
		t.Errorf("row count = %d, want 1", count)
	}
}

func TestDeleteValue(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := PutValue(ctx, db, "k", "v"); err != nil {
		t.Fatalf("PutValue() error = %v", err)
	}
	if err := DeleteValue(ctx, db, "k"); err != nil {
		t.Fatalf("DeleteValue() error = %v", err)
	}
	if _, ok, _ := GetValue(ctx, db, "k"); ok {
		t.Errorf("key still present after delete")
	}

	// Missing key
	if err := DeleteValue(ctx, db, "never-written"); err != nil {
		t.Errorf("DeleteValue() on missing key error = %v", err)
	}
}
