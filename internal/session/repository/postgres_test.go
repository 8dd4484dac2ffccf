package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"session-gate/internal/db"
	"session-gate/internal/db/migrate"
	"session-gate/internal/storage"
)

func openTestDB(t *testing.T) *PostgresRepository {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	if err := migrate.Run(dsn, "up"); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("migrate: %v", err)
	}
	conn, err := db.Open(context.Background(), dsn)
	if err != nil {
		t.Skipf("database unavailable: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewPostgresRepository(conn)
}

func TestPostgresRepository_Lifecycle(t *testing.T) {
	r := openTestDB(t)
	ctx := context.Background()
	userID := time.Now().UnixNano() % 1_000_000_000
	hash := "test-" + time.Now().Format("150405.000000000")

	if err := r.Insert(ctx, newRow(hash, userID)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err := r.FindByHash(ctx, hash)
	if err != nil || got == nil {
		t.Fatalf("FindByHash = %+v, %v", got, err)
	}

	p := storage.NewPending()
	p.Stage(storage.Mutation{Table: Table, Column: ColSessionIDHash, Value: hash, Set: map[string]any{ColDataEncrypted: "beef"}})
	if n, err := p.Commit(ctx, r); err != nil || n != 1 {
		t.Fatalf("Commit = %d, %v", n, err)
	}

	if n, err := r.InvalidateUser(ctx, userID); err != nil || n != 1 {
		t.Fatalf("InvalidateUser = %d, %v", n, err)
	}
	if got, _ := r.FindByHash(ctx, hash); got != nil {
		t.Error("invalidated row must be absent")
	}
	rows, err := r.ListByUser(ctx, userID)
	if err != nil || len(rows) != 1 || rows[0].IsValid || rows[0].DataEncrypted != "beef" {
		t.Errorf("ListByUser = %+v, %v", rows, err)
	}
}
