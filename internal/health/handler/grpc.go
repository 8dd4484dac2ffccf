// Package handler reports readiness over the standard gRPC health service and an HTTP probe.
package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported alongside the overall "" entry.
const ServiceName = "session-gate"

const checkTimeout = 2 * time.Second

// Pinger checks the database. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker checks the policy engine.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Checker runs the readiness checks and mirrors the result into a grpc health server.
// Nil dependencies are skipped, so a memory-backed process is always ready.
type Checker struct {
	pinger Pinger
	policy PolicyChecker
	server *health.Server
	logger *zap.Logger
}

// NewChecker returns a Checker. pinger, policy and logger may be nil.
func NewChecker(pinger Pinger, policy PolicyChecker, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{pinger: pinger, policy: policy, server: health.NewServer(), logger: logger}
}

// Server is the grpc health service to register.
func (c *Checker) Server() *health.Server {
	return c.server
}

// Check runs every configured check and returns the first failure.
func (c *Checker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if c.pinger != nil {
		if err := c.pinger.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if c.policy != nil {
		if err := c.policy.HealthCheck(ctx); err != nil {
			return fmt.Errorf("policy: %w", err)
		}
	}
	return nil
}

// Update runs Check and publishes SERVING or NOT_SERVING.
func (c *Checker) Update(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	if err := c.Check(ctx); err != nil {
		c.logger.Warn("health: not ready", zap.Error(err))
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	c.server.SetServingStatus("", st)
	c.server.SetServingStatus(ServiceName, st)
	return st
}

// Run updates the status every interval until ctx is done, then marks the service NOT_SERVING.
func (c *Checker) Run(ctx context.Context, interval time.Duration) {
	c.Update(ctx)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			c.server.Shutdown()
			return
		case <-t.C:
			c.Update(ctx)
		}
	}
}

// ServeHTTP is the HTTP readiness probe: 200 when ready, 503 otherwise.
func (c *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := c.Check(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"NOT_SERVING"}` + "\n"))
		return
	}
	_, _ = w.Write([]byte(`{"status":"SERVING"}` + "\n"))
}
