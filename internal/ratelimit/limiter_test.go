package ratelimit

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter() (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := New(0, 0)
	l.nowF = clock.Now
	return l, clock
}

func TestLimiter_TripsAtFiveAttempts(t *testing.T) {
	l, _ := newTestLimiter()
	const ip = "203.0.113.5"
	for i := 0; i < DefaultMaxAttempts-1; i++ {
		l.RecordFailedAttempt(ip)
		if l.IsRateLimited(ip) {
			t.Fatalf("limited after %d attempts, want not limited", i+1)
		}
	}
	l.RecordFailedAttempt(ip)
	if !l.IsRateLimited(ip) {
		t.Fatal("want limited after 5 attempts")
	}
}

func TestLimiter_ResetsAfterWindow(t *testing.T) {
	l, clock := newTestLimiter()
	const ip = "203.0.113.5"
	for i := 0; i < 5; i++ {
		l.RecordFailedAttempt(ip)
		clock.Advance(2 * time.Second)
	}
	if !l.IsRateLimited(ip) {
		t.Fatal("want limited within the window")
	}
	clock.Advance(DefaultWindow)
	if l.IsRateLimited(ip) {
		t.Fatal("want not limited after the window elapsed")
	}
}

func TestLimiter_ClearFailedAttempts(t *testing.T) {
	l, clock := newTestLimiter()
	const ip = "203.0.113.5"
	for i := 0; i < 5; i++ {
		l.RecordFailedAttempt(ip)
	}
	clock.Advance(10 * time.Second)
	l.ClearFailedAttempts(ip)
	if l.IsRateLimited(ip) {
		t.Fatal("want not limited after clear")
	}
	l.ClearFailedAttempts("198.51.100.1")
	if l.IsRateLimited("198.51.100.1") {
		t.Fatal("unknown ip should not be limited")
	}
}

func TestLimiter_PerIP(t *testing.T) {
	l, _ := newTestLimiter()
	for i := 0; i < 5; i++ {
		l.RecordFailedAttempt("10.0.0.1")
	}
	if l.IsRateLimited("10.0.0.2") {
		t.Error("limit should not leak across IPs")
	}
}

func TestLimiter_Sweep(t *testing.T) {
	l, clock := newTestLimiter()
	l.RecordFailedAttempt("10.0.0.1")
	clock.Advance(30 * time.Second)
	l.RecordFailedAttempt("10.0.0.2")
	clock.Advance(31 * time.Second)

	if n := l.Sweep(clock.Now()); n != 1 {
		t.Errorf("Sweep removed %d, want 1", n)
	}
	if l.Len() != 1 {
		t.Errorf("Len = %d, want 1", l.Len())
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	l := New(1000, time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				l.RecordFailedAttempt("10.0.0.1")
				_ = l.IsRateLimited("10.0.0.1")
			}
		}()
	}
	wg.Wait()
	l.mu.Lock()
	got := l.entries["10.0.0.1"].attempts
	l.mu.Unlock()
	if got != 500 {
		t.Errorf("attempts = %d, want 500", got)
	}
}
