package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"session-gate/internal/audit/domain"
	"session-gate/internal/db"
	"session-gate/internal/db/migrate"
)

func TestPostgresRepository_CreateAndList(t *testing.T) {
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
	defer conn.Close()

	r := NewPostgresRepository(conn)
	ctx := context.Background()
	userID := time.Now().UnixNano() % 1_000_000_000
	a := &domain.AuditLog{SessionID: "fp", UserID: userID, Action: domain.ActionHijackAttempt, IPAddress: "10.0.0.2", Timestamp: time.Now().UTC()}
	if err := r.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.ID == 0 {
		t.Error("Create should set ID")
	}
	rows, err := r.ListByUser(ctx, userID, 10, 0)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(rows) != 1 || rows[0].IPAddress != "10.0.0.2" {
		t.Errorf("ListByUser = %+v", rows)
	}
}
