// Package ratelimit tracks failed authentication attempts per client IP in fixed windows.
package ratelimit

import (
	"sync"
	"time"
)

const (
	// DefaultMaxAttempts is the number of failures that blocks an IP for the rest of its window.
	DefaultMaxAttempts = 5
	// DefaultWindow is how long a window lasts before its counter resets.
	DefaultWindow = 60 * time.Second
)

type entry struct {
	attempts int
	resetAt  time.Time
}

// Limiter is an in-process per-IP failure counter. A block lasts until the window that
// produced it expires; there is no separate lockout duration.
type Limiter struct {
	mu          sync.Mutex
	entries     map[string]*entry
	maxAttempts int
	window      time.Duration
	nowF        func() time.Time
}

// New returns a Limiter. Non-positive arguments fall back to the defaults.
func New(maxAttempts int, window time.Duration) *Limiter {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		entries:     make(map[string]*entry),
		maxAttempts: maxAttempts,
		window:      window,
		nowF:        time.Now,
	}
}

// entryLocked returns the entry for ip, resetting it when its window has passed. Caller holds mu.
func (l *Limiter) entryLocked(ip string, now time.Time) *entry {
	e, ok := l.entries[ip]
	if !ok {
		e = &entry{}
		l.entries[ip] = e
	}
	if now.After(e.resetAt) {
		e.attempts = 0
		e.resetAt = now.Add(l.window)
	}
	return e
}

// IsRateLimited reports whether ip has reached the failure cap in its current window.
func (l *Limiter) IsRateLimited(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entryLocked(ip, l.nowF()).attempts >= l.maxAttempts
}

// RecordFailedAttempt counts one failure against ip.
func (l *Limiter) RecordFailedAttempt(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entryLocked(ip, l.nowF()).attempts++
}

// ClearFailedAttempts zeroes the counter for ip. The window end is left as is.
func (l *Limiter) ClearFailedAttempts(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[ip]; ok {
		e.attempts = 0
	}
}

// Sweep drops entries whose window ended before now and returns how many were removed.
// A dropped entry behaves exactly like a reset one on next use.
func (l *Limiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for ip, e := range l.entries {
		if now.After(e.resetAt) {
			delete(l.entries, ip)
			n++
		}
	}
	return n
}

// Len returns the number of tracked IPs.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
