package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultSweepInterval is used when NewSweeper gets a non-positive interval.
const DefaultSweepInterval = 5 * time.Minute

// LimiterSweeper evicts rate-limit entries whose window has passed.
type LimiterSweeper interface {
	Sweep(now time.Time) int
}

// Sweeper periodically evicts expired sessions from the manager's cache and stale limiter entries.
type Sweeper struct {
	manager  *Manager
	limiter  LimiterSweeper
	interval time.Duration
	logger   *zap.Logger
	nowF     func() time.Time
}

// NewSweeper returns a Sweeper. limiter may be nil.
func NewSweeper(manager *Manager, limiter LimiterSweeper, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{manager: manager, limiter: limiter, interval: interval, logger: logger, nowF: time.Now}
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs one pass and returns the sessions and limiter entries evicted.
func (s *Sweeper) SweepOnce(ctx context.Context) (sessions, limits int) {
	now := s.nowF().UTC()
	sessions = s.manager.SweepExpired(ctx, now)
	if s.limiter != nil {
		limits = s.limiter.Sweep(now)
	}
	if sessions > 0 || limits > 0 {
		s.logger.Debug("sweep", zap.Int("sessions", sessions), zap.Int("rate_limits", limits))
	}
	return sessions, limits
}
