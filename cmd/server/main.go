package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"session-gate/internal/audit"
	audithandler "session-gate/internal/audit/handler"
	"session-gate/internal/audit/producer"
	auditrepo "session-gate/internal/audit/repository"
	"session-gate/internal/auth"
	authhandler "session-gate/internal/auth/handler"
	"session-gate/internal/config"
	"session-gate/internal/db"
	healthhandler "session-gate/internal/health/handler"
	"session-gate/internal/logger"
	"session-gate/internal/policy/engine"
	"session-gate/internal/ratelimit"
	"session-gate/internal/security"
	"session-gate/internal/server"
	"session-gate/internal/session"
	sessionhandler "session-gate/internal/session/handler"
	sessionrepo "session-gate/internal/session/repository"
	"session-gate/internal/telemetry"
	otelsetup "session-gate/internal/telemetry/otel"
	"session-gate/internal/user"
	userrepo "session-gate/internal/user/repository"
)

const (
	healthInterval  = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.OTLPInsecure, zl)
	if err != nil {
		zl.Fatal("otel", zap.Error(err))
	}
	providers.SetGlobal()
	metrics, err := telemetry.NewSessionMetrics(providers.MeterProvider)
	if err != nil {
		zl.Fatal("metrics", zap.Error(err))
	}

	key, err := encryptionKey(cfg, zl)
	if err != nil {
		zl.Fatal("session encryption key", zap.Error(err))
	}
	cipher, err := security.NewPayloadCipher(key)
	if err != nil {
		zl.Fatal("payload cipher", zap.Error(err))
	}

	var (
		conn     *sql.DB
		users    userrepo.Repository
		sessions sessionrepo.Repository
		audits   auditrepo.Repository
	)
	if cfg.DatabaseURL != "" {
		conn, err = db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			zl.Fatal("db", zap.Error(err))
		}
		defer conn.Close()
		users = userrepo.NewPostgresRepository(conn)
		sessions = sessionrepo.NewPostgresRepository(conn)
		audits = auditrepo.NewPostgresRepository(conn)
	} else {
		zl.Warn("DATABASE_URL not set; using in-memory repositories")
		users = userrepo.NewMemoryRepository()
		sessions = sessionrepo.NewMemoryRepository()
		audits = auditrepo.NewMemoryRepository()
	}
	hasher := security.NewHasher(cfg.BcryptCost)
	if conn == nil && cfg.SeedAdminPassword != "" {
		if _, err := user.EnsureAdmin(ctx, users, hasher, cfg.SeedAdminUsername, cfg.SeedAdminPassword); err != nil {
			zl.Fatal("bootstrap admin", zap.Error(err))
		}
		zl.Info("in-memory admin created", zap.String("username", cfg.SeedAdminUsername))
	}

	publishers := []audit.Publisher{otelsetup.NewAuditSink(providers.LoggerProvider)}
	kafkaPub := producer.NewKafkaPublisher(cfg.KafkaBrokersList(), cfg.AuditKafkaTopic, zl)
	if kafkaPub != nil {
		publishers = append(publishers, kafkaPub)
	}
	auditor := audit.NewLogger(audits, cfg.AuditQueueSize, zl, publishers...)

	limiter := ratelimit.New(cfg.RateLimitMaxAttempts, cfg.RateLimitWindow())
	store := session.NewStore()
	manager := session.NewManager(store, sessions, limiter, auditor, cipher, session.Config{
		SessionTTL: cfg.SessionTTL(),
		RefreshTTL: cfg.RefreshTTL(),
		Metrics:    metrics,
		Logger:     zl,
	})
	if err := metrics.ObserveActive(manager.ActiveCount); err != nil {
		zl.Warn("active session gauge", zap.Error(err))
	}

	authz, err := engine.NewOPAAuthorizer(ctx)
	if err != nil {
		zl.Fatal("policy", zap.Error(err))
	}
	cookies := auth.NewCookieManager(cfg.CookieDomain, cfg.CookieSecure, cfg.SessionTTL(), cfg.RefreshTTL())
	gate := auth.NewGate(manager, users, auditor, limiter, authz, hasher, cookies, metrics, zl)

	var pinger healthhandler.Pinger
	if conn != nil {
		pinger = conn
	}
	checker := healthhandler.NewChecker(pinger, authz, zl)

	router := server.NewRouter(server.Deps{
		Gate:     gate,
		Auth:     authhandler.NewHandler(gate, users, hasher, zl),
		Sessions: sessionhandler.NewHandler(gate),
		Audit:    audithandler.NewHandler(audits, zl),
		Health:   checker,
		Logger:   zl,
	})
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		zl.Fatal("listen grpc", zap.Error(err))
	}
	grpcSrv := server.NewGRPCServer(checker, zl)

	go session.NewSweeper(manager, limiter, cfg.SweepInterval(), zl).Run(ctx)
	go checker.Run(ctx, healthInterval)

	go func() {
		zl.Info("gRPC health server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcSrv.Serve(lis); err != nil {
			zl.Error("grpc serve", zap.Error(err))
		}
	}()
	go func() {
		zl.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("http serve", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		zl.Warn("http shutdown", zap.Error(err))
	}
	grpcSrv.GracefulStop()

	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := kafkaPub.Close(); err != nil {
		zl.Warn("kafka close", zap.Error(err))
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		zl.Warn("otel shutdown", zap.Error(err))
	}
	zl.Info("stopped")
}

// encryptionKey loads SESSION_ENCRYPTION_KEY. Outside production a missing key is replaced by a random
// one, so payloads do not survive a restart.
func encryptionKey(cfg *config.Config, zl *zap.Logger) ([]byte, error) {
	if cfg.SessionEncryptionKey != "" || cfg.IsProduction() {
		return security.LoadKey(cfg.SessionEncryptionKey)
	}
	zl.Warn("SESSION_ENCRYPTION_KEY not set; using an ephemeral key")
	hexKey, err := security.GenerateRandomBytes(security.PayloadKeySize)
	if err != nil {
		return nil, err
	}
	return security.LoadKey(hexKey)
}
