package storage

import (
	"context"
	"errors"
	"testing"
)

type mockApplier struct {
	table   string
	applied []Mutation
	matched map[string]int64
	err     error
}

func (m *mockApplier) Table() string { return m.table }

func (m *mockApplier) Apply(ctx context.Context, mu Mutation) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.applied = append(m.applied, mu)
	return m.matched[mu.Value], nil
}

func TestKey(t *testing.T) {
	if got := Key("sessions", "session_id_hash", "abc"); got != "sessions:session_id_hash:abc" {
		t.Errorf("Key = %q", got)
	}
}

func TestPending_StageMergesSameRow(t *testing.T) {
	p := NewPending()
	p.Stage(Mutation{Table: "sessions", Column: "session_id_hash", Value: "h1", Set: map[string]any{"is_valid": 1}})
	p.Stage(Mutation{Table: "sessions", Column: "session_id_hash", Value: "h1", Set: map[string]any{"is_valid": 0, "data_encrypted": "x"}})
	if p.Len() != 1 {
		t.Fatalf("Len = %d, want 1", p.Len())
	}
	a := &mockApplier{table: "sessions", matched: map[string]int64{"h1": 1}}
	n, err := p.Commit(context.Background(), a)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if n != 1 {
		t.Errorf("matched = %d, want 1", n)
	}
	if got := a.applied[0].Set["is_valid"]; got != 0 {
		t.Errorf("is_valid = %v, want later value 0", got)
	}
	if a.applied[0].Set["data_encrypted"] != "x" {
		t.Error("merged column missing")
	}
}

func TestPending_CommitOnlyApplierTable(t *testing.T) {
	p := NewPending()
	p.Stage(Mutation{Table: "sessions", Column: "session_id_hash", Value: "h1", Set: map[string]any{"is_valid": 0}})
	p.Stage(Mutation{Table: "users", Column: "id", Value: "7", Set: map[string]any{"status": "disabled"}})
	a := &mockApplier{table: "sessions"}
	if _, err := p.Commit(context.Background(), a); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(a.applied) != 1 {
		t.Fatalf("applied %d, want 1", len(a.applied))
	}
	if p.Len() != 1 {
		t.Errorf("Len = %d, want users mutation left staged", p.Len())
	}
}

func TestPending_CommitErrorStillDrains(t *testing.T) {
	p := NewPending()
	p.Stage(Mutation{Table: "sessions", Column: "session_id_hash", Value: "h1", Set: map[string]any{"is_valid": 0}})
	boom := errors.New("db down")
	_, err := p.Commit(context.Background(), &mockApplier{table: "sessions", err: boom})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if p.Len() != 0 {
		t.Error("failed mutations should not stay staged")
	}
}

func TestPending_Clear(t *testing.T) {
	p := NewPending()
	p.Stage(Mutation{Table: "sessions", Column: "session_id_hash", Value: "h1"})
	p.Clear()
	if p.Len() != 0 {
		t.Errorf("Len = %d after Clear", p.Len())
	}
}

func TestPendingFromContext(t *testing.T) {
	if _, ok := PendingFrom(context.Background()); ok {
		t.Error("empty context should have no pending")
	}
	p := NewPending()
	got, ok := PendingFrom(WithPending(context.Background(), p))
	if !ok || got != p {
		t.Error("PendingFrom should return the attached staging area")
	}
}
