package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"session-gate/internal/session/domain"
)

func TestStore_CopiesInAndOut(t *testing.T) {
	s := NewStore()
	sess := &domain.Session{SessionID: "id1", UserID: 1, RefreshToken: "secret"}
	s.Put(sess)
	sess.UserID = 2

	got, ok := s.Get("id1")
	if !ok || got.UserID != 1 {
		t.Fatalf("Get = %+v, %v", got, ok)
	}
	if got.RefreshToken != "" {
		t.Error("refresh token must not be cached")
	}
	got.UserID = 3
	again, _ := s.Get("id1")
	if again.UserID != 1 {
		t.Error("mutating a returned session must not change the cache")
	}
}

func TestStore_RemoveUserAndSweep(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	s := NewStore()
	s.Put(&domain.Session{SessionID: "a", UserID: 1, ExpiresAt: now.Add(time.Hour)})
	s.Put(&domain.Session{SessionID: "b", UserID: 1, ExpiresAt: now.Add(-time.Minute)})
	s.Put(&domain.Session{SessionID: "c", UserID: 2, ExpiresAt: now.Add(-time.Minute)})

	if removed := s.Sweep(now); len(removed) != 2 {
		t.Errorf("Sweep removed %d, want 2", len(removed))
	}
	if removed := s.RemoveUser(1); len(removed) != 1 || removed[0].SessionID != "a" {
		t.Errorf("RemoveUser = %+v", removed)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d", s.Len())
	}
	if _, ok := s.Remove("missing"); ok {
		t.Error("Remove of a missing id should report false")
	}
}

func TestStore_Replace(t *testing.T) {
	s := NewStore()
	if s.Replace(&domain.Session{SessionID: "a", UserID: 1}) {
		t.Error("Replace must not insert an uncached id")
	}
	s.Put(&domain.Session{SessionID: "a", UserID: 1})
	if !s.Replace(&domain.Session{SessionID: "a", UserID: 1, Data: "x", RefreshToken: "secret"}) {
		t.Fatal("Replace of a cached id should succeed")
	}
	got, _ := s.Get("a")
	if got.Data != "x" || got.RefreshToken != "" {
		t.Errorf("cached = %+v", got)
	}
	s.Remove("a")
	if s.Replace(&domain.Session{SessionID: "a", UserID: 1}) {
		t.Error("Replace after Remove must fail")
	}
}

func TestStore_Fill(t *testing.T) {
	testCases := []struct {
		name   string
		during func(s *Store)
		want   bool
	}{
		{"no eviction", func(*Store) {}, true},
		{"id removed", func(s *Store) { s.Remove("a") }, false},
		{"user revoked", func(s *Store) { s.RemoveUser(1) }, false},
		{"other user revoked", func(s *Store) { s.RemoveUser(2) }, true},
		{"other id removed", func(s *Store) { s.Remove("b") }, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewStore()
			since := s.BeginFill()
			tc.during(s)
			if got := s.EndFill(&domain.Session{SessionID: "a", UserID: 1}, since); got != tc.want {
				t.Errorf("EndFill = %v, want %v", got, tc.want)
			}
			if _, ok := s.Get("a"); ok != tc.want {
				t.Errorf("cached = %v, want %v", ok, tc.want)
			}
			if len(s.goneIDs) != 0 || len(s.revokedUser) != 0 {
				t.Error("tombstones must be dropped once no fill is in flight")
			}
		})
	}
}

func TestStore_FillOverlapping(t *testing.T) {
	s := NewStore()
	first := s.BeginFill()
	s.RemoveUser(1)
	second := s.BeginFill()

	if !s.EndFill(&domain.Session{SessionID: "b", UserID: 1}, second) {
		t.Error("a fill started after the revoke should cache")
	}
	if s.EndFill(&domain.Session{SessionID: "a", UserID: 1}, first) {
		t.Error("a fill started before the revoke must be refused")
	}
	if s.EndFill(nil, s.BeginFill()) {
		t.Error("EndFill(nil) caches nothing")
	}
}

func TestStore_Concurrent(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i%26))
			s.Put(&domain.Session{SessionID: id, UserID: int64(i)})
			s.Get(id)
			s.Remove(id)
		}(i)
	}
	wg.Wait()
}

type countingLimiter struct{ calls int }

func (c *countingLimiter) Sweep(now time.Time) int {
	c.calls++
	return 3
}

func TestSweeper_SweepOnce(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	_, _ = f.m.Create(ctx, 1, "10.0.0.1", "A")

	lim := &countingLimiter{}
	sw := NewSweeper(f.m, lim, 0, nil)
	if sw.interval != DefaultSweepInterval {
		t.Errorf("interval = %v", sw.interval)
	}
	sw.nowF = func() time.Time { return f.now.Add(2 * time.Hour) }

	sessions, limits := sw.SweepOnce(ctx)
	if sessions != 1 || limits != 3 || lim.calls != 1 {
		t.Errorf("SweepOnce = %d, %d (calls %d)", sessions, limits, lim.calls)
	}
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	f := newFixture(t, Config{})
	sw := NewSweeper(f.m, nil, time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
