package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// mockPinger implements Pinger for tests.
type mockPinger struct {
	pingErr error
}

func (m *mockPinger) PingContext(context.Context) error {
	return m.pingErr
}

// mockPolicyChecker implements PolicyChecker for tests.
type mockPolicyChecker struct {
	healthErr error
}

func (m *mockPolicyChecker) HealthCheck(context.Context) error {
	return m.healthErr
}

func TestChecker_Update(t *testing.T) {
	testCases := []struct {
		name   string
		pinger Pinger
		policy PolicyChecker
		want   healthpb.HealthCheckResponse_ServingStatus
	}{
		{"no dependencies", nil, nil, healthpb.HealthCheckResponse_SERVING},
		{"all healthy", &mockPinger{}, &mockPolicyChecker{}, healthpb.HealthCheckResponse_SERVING},
		{"database down", &mockPinger{pingErr: errors.New("connection refused")}, &mockPolicyChecker{}, healthpb.HealthCheckResponse_NOT_SERVING},
		{"policy broken", &mockPinger{}, &mockPolicyChecker{healthErr: errors.New("no result")}, healthpb.HealthCheckResponse_NOT_SERVING},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewChecker(tc.pinger, tc.policy, nil)
			if got := c.Update(context.Background()); got != tc.want {
				t.Fatalf("Update = %v, want %v", got, tc.want)
			}
			for _, svc := range []string{"", ServiceName} {
				resp, err := c.Server().Check(context.Background(), &healthpb.HealthCheckRequest{Service: svc})
				if err != nil {
					t.Fatalf("Check(%q): %v", svc, err)
				}
				if resp.GetStatus() != tc.want {
					t.Errorf("Check(%q) = %v, want %v", svc, resp.GetStatus(), tc.want)
				}
			}
		})
	}
}

func TestChecker_CheckWrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	c := NewChecker(&mockPinger{pingErr: cause}, nil, nil)
	if err := c.Check(context.Background()); !errors.Is(err, cause) {
		t.Errorf("Check = %v, want wrapped %v", err, cause)
	}
}

func TestChecker_ServeHTTP(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker(nil, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthy code = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	NewChecker(&mockPinger{pingErr: errors.New("down")}, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy code = %d", rec.Code)
	}
}

func TestChecker_RunShutsDownOnCancel(t *testing.T) {
	c := NewChecker(nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, 50*time.Millisecond)
		close(done)
	}()
	cancel()
	<-done
	resp, err := c.Server().Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatal(err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status after shutdown = %v", resp.GetStatus())
	}
}
