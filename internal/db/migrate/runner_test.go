package migrate

import (
	"errors"
	"os"
	"testing"
)

func TestRun_EmptyDSN(t *testing.T) {
	if err := Run("", "up"); !errors.Is(err, ErrNoDSN) {
		t.Fatalf("Run with empty DSN err = %v, want ErrNoDSN", err)
	}
	if _, _, _, err := Version(""); !errors.Is(err, ErrNoDSN) {
		t.Fatalf("Version with empty DSN err = %v, want ErrNoDSN", err)
	}
}

func TestRun_InvalidDirection(t *testing.T) {
	testCases := []struct {
		name      string
		direction string
	}{
		{"empty", ""},
		{"invalid", "invalid"},
		{"upcase", "UP"},
		{"mixed", "Up"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := Run("postgres://localhost/test", tc.direction); err == nil {
				t.Errorf("Run with direction %q should return error", tc.direction)
			}
		})
	}
}

func TestRun_UpAndVersion(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	if err := Run(dsn, "up"); err != nil && !errors.Is(err, ErrNoChange) {
		t.Fatalf("Run up: %v", err)
	}
	v, dirty, ok, err := Version(dsn)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if !ok || dirty || v < 1 {
		t.Errorf("Version = %d dirty=%v ok=%v, want clean version >= 1", v, dirty, ok)
	}
}
