package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	healthhandler "session-gate/internal/health/handler"
	"session-gate/internal/server/interceptors"
)

// skipLogMethods are RPCs polled by load balancers; logging them is noise.
var skipLogMethods = map[string]bool{
	healthpb.Health_Check_FullMethodName: true,
	healthpb.Health_Watch_FullMethodName: true,
}

// NewGRPCServer returns a gRPC server instrumented with otelgrpc and the logging interceptor,
// with every service registered.
func NewGRPCServer(checker *healthhandler.Checker, logger *zap.Logger) *grpc.Server {
	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(interceptors.LoggingUnary(logger, skipLogMethods)),
	)
	RegisterServices(s, checker)
	return s
}

// RegisterServices registers the gRPC services with s.
//
//   - grpc.health.v1.Health → internal/health/handler
func RegisterServices(s grpc.ServiceRegistrar, checker *healthhandler.Checker) {
	if checker == nil {
		checker = healthhandler.NewChecker(nil, nil, nil)
	}
	healthpb.RegisterHealthServer(s, checker.Server())
}
