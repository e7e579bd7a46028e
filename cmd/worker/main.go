// Worker prunes expired login codes, expired sessions and idle rate limit counters on an interval.
// Set RETENTION_INTERVAL (default 1h) and RETENTION_AGE (default 720h).
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"adhoc-admin/backend/internal/config"
	"adhoc-admin/backend/internal/db"
	"adhoc-admin/backend/internal/logger"
	"adhoc-admin/backend/internal/otp"
	otprepo "adhoc-admin/backend/internal/otp/repository"
	"adhoc-admin/backend/internal/ratelimit"
	"adhoc-admin/backend/internal/retention"
	"adhoc-admin/backend/internal/session"
	sessionrepo "adhoc-admin/backend/internal/session/repository"
	userrepo "adhoc-admin/backend/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(logger.Config{Level: cfg.LogLevel, Dev: cfg.LogDev})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		zl.Fatal("worker: database", zap.Error(err))
	}
	defer conn.Close()

	codes := otp.NewEngine(otprepo.NewPostgresRepository(conn), cfg.OTPPepper)
	sessions := session.NewManager(sessionrepo.NewPostgresRepository(conn), userrepo.NewPostgresRepository(conn),
		cfg.SessionSecret, cfg.SessionTTL(), cfg.IsProduction(), zl)

	jobs := []retention.Job{
		{Name: "otp_codes", Prune: codes.PruneExpired},
		{Name: "sessions", Prune: sessions.PruneExpired},
	}
	// Redis counters expire on their own; only the Postgres store keeps idle rows.
	if cfg.RateLimitStore == "postgres" {
		jobs = append(jobs, retention.Job{Name: "rate_limits", Prune: ratelimit.NewPostgresStore(conn).PruneIdle})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zl.Info("worker: starting retention",
		zap.Duration("interval", cfg.RetentionInterval()),
		zap.Duration("age", cfg.RetentionAge()))
	retention.NewPruner(cfg.RetentionAge(), zl, jobs...).Run(ctx, cfg.RetentionInterval())
	zl.Info("worker: stopped")
}
