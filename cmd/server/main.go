// server runs the admin and public HTTP API.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"adhoc-admin/backend/internal/audit"
	audithandler "adhoc-admin/backend/internal/audit/handler"
	auditrepo "adhoc-admin/backend/internal/audit/repository"
	"adhoc-admin/backend/internal/blob"
	"adhoc-admin/backend/internal/config"
	contacthandler "adhoc-admin/backend/internal/contact/handler"
	contactservice "adhoc-admin/backend/internal/contact/service"
	"adhoc-admin/backend/internal/db"
	"adhoc-admin/backend/internal/devotp"
	devotphandler "adhoc-admin/backend/internal/devotp/handler"
	healthhandler "adhoc-admin/backend/internal/health/handler"
	identityhandler "adhoc-admin/backend/internal/identity/handler"
	identityservice "adhoc-admin/backend/internal/identity/service"
	"adhoc-admin/backend/internal/logger"
	"adhoc-admin/backend/internal/mail"
	"adhoc-admin/backend/internal/otp"
	otprepo "adhoc-admin/backend/internal/otp/repository"
	policyengine "adhoc-admin/backend/internal/policy/engine"
	projecthandler "adhoc-admin/backend/internal/project/handler"
	projectrepo "adhoc-admin/backend/internal/project/repository"
	projectservice "adhoc-admin/backend/internal/project/service"
	"adhoc-admin/backend/internal/ratelimit"
	"adhoc-admin/backend/internal/security"
	"adhoc-admin/backend/internal/server"
	"adhoc-admin/backend/internal/server/middleware"
	"adhoc-admin/backend/internal/session"
	sessionrepo "adhoc-admin/backend/internal/session/repository"
	"adhoc-admin/backend/internal/telemetry"
	telemetryotel "adhoc-admin/backend/internal/telemetry/otel"
	userhandler "adhoc-admin/backend/internal/user/handler"
	userrepo "adhoc-admin/backend/internal/user/repository"
	userservice "adhoc-admin/backend/internal/user/service"
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
	zap.ReplaceGlobals(zl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		zl.Fatal("otel providers", zap.Error(err))
	}
	providers.SetGlobal()
	metrics, err := telemetryotel.NewAuthMetrics(providers.MeterProvider)
	if err != nil {
		zl.Fatal("auth metrics", zap.Error(err))
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		zl.Fatal("database", zap.Error(err))
	}
	defer conn.Close()

	var sinks []audit.Sink
	var asyncSink *telemetry.AsyncSink
	if cfg.OTLPEndpoint != "" {
		asyncSink = telemetry.NewAsyncSink(telemetryotel.NewAuditEmitter(providers.LoggerProvider))
		sinks = append(sinks, asyncSink)
	}
	auditRepo := auditrepo.NewPostgresRepository(conn)
	auditLogger := audit.NewLogger(auditRepo, middleware.ClientIPFromContext, zl, sinks...)

	var limiterStore ratelimit.Store
	switch cfg.RateLimitStore {
	case "redis":
		client, err := ratelimit.NewRedisClient(cfg.RedisURL)
		if err != nil {
			zl.Fatal("redis", zap.Error(err))
		}
		defer client.Close()
		limiterStore = ratelimit.NewRedisStore(client)
	default:
		limiterStore = ratelimit.NewPostgresStore(conn)
	}
	limiter := ratelimit.NewLimiter(limiterStore, cfg.DisableRateLimits)

	policy, err := policyengine.NewOPAEvaluatorFromFile(ctx, cfg.AdminPolicyPath)
	if err != nil {
		zl.Fatal("admin policy", zap.Error(err))
	}

	var sender mail.Sender
	if cfg.MailConfigured() {
		s, err := mail.NewSMTPSender(mail.SMTPConfig{
			Host:           cfg.EmailHost,
			Port:           cfg.EmailPort,
			Username:       cfg.EmailUser,
			Password:       cfg.EmailPass,
			From:           cfg.MailFrom(),
			SendsPerMinute: cfg.MailSendsPerMinute,
		})
		if err != nil {
			zl.Fatal("smtp", zap.Error(err))
		}
		sender = s
	} else {
		zl.Warn("EMAIL_* not configured; login codes and contact mail are disabled")
	}

	var devStore *devotp.MemoryStore
	if cfg.DevOTPCapture {
		devStore = devotp.NewMemoryStore()
		zl.Warn("DEV_OTP_CAPTURE is on; login codes are served at /dev/otp instead of mailed")
	}

	hasher := security.NewHasher(uint32(cfg.Argon2MemoryKiB), uint32(cfg.Argon2Iterations), uint8(cfg.Argon2Parallelism))
	users := userrepo.NewPostgresRepository(conn)
	sessions := session.NewManager(sessionrepo.NewPostgresRepository(conn), users, cfg.SessionSecret, cfg.SessionTTL(), cfg.IsProduction(), zl)
	codes := otp.NewEngine(otprepo.NewPostgresRepository(conn), cfg.OTPPepper)
	userSvc := userservice.NewUserService(users, hasher, sessions, policy, zl)

	deps := identityservice.Deps{
		Users:     users,
		Bootstrap: userSvc,
		Hasher:    hasher,
		Codes:     codes,
		Sessions:  sessions,
		Limiter:   limiter,
		Mailer:    sender,
		Audit:     auditLogger,
		Metrics:   metrics,
		Logger:    zl,
	}
	if devStore != nil {
		deps.DevOTP = devStore
	}
	auth := identityservice.NewAuthService(identityservice.Config{
		OTPPepper:          cfg.OTPPepper,
		SessionSecret:      cfg.SessionSecret,
		MailConfigured:     sender != nil,
		DevOTPCapture:      cfg.DevOTPCapture,
		SuperAdminEmail:    cfg.SuperAdminEmail,
		SuperAdminPassword: cfg.SuperAdminPassword,
	}, deps)

	var blobs blob.Store
	if cfg.BlobConfigured() {
		s3, err := blob.NewS3Store(ctx, blob.S3Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Region:    cfg.MinioRegion,
		})
		if err != nil {
			zl.Fatal("blob store", zap.Error(err))
		}
		blobs = s3
	} else {
		zl.Warn("MINIO_* not configured; image routes will answer with a configuration error")
	}
	projects := projectservice.NewProjectService(projectrepo.NewPostgresRepository(conn), blobs, zl)

	contactSvc := contactservice.NewContactService(sender, cfg.ContactRecipient(), zl)

	proxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		zl.Fatal("trusted proxies", zap.Error(err))
	}
	if len(proxies) == 0 {
		zl.Info("TRUSTED_PROXIES not set; client IPs come from the peer address only")
	}

	rd := server.Deps{
		Logger:               zl,
		Sessions:             sessions,
		Audit:                auditLogger,
		Health:               healthhandler.NewHandler(conn, policy, zl),
		Auth:                 identityhandler.NewHandler(auth, sessions),
		Users:                userhandler.NewHandler(userSvc),
		Projects:             projecthandler.NewHandler(projects),
		Public:               projecthandler.NewPublicHandler(projects),
		Contact:              contacthandler.NewHandler(contactSvc),
		AuditLogs:            audithandler.NewHandler(auditRepo),
		CORSOrigins:          cfg.CORSOriginList(),
		TrustedProxies:       proxies,
		ContactRatePerMinute: cfg.ContactRatePerMinute,
		ServiceName:          cfg.ServiceName,
	}
	if devStore != nil {
		rd.DevOTP = devotphandler.NewHandler(devStore)
	}

	if err := server.Serve(ctx, cfg.HTTPAddr, server.NewRouter(rd), zl); err != nil {
		zl.Error("server", zap.Error(err))
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), telemetry.ShutdownDrainDuration)
	defer cancel()
	if err := asyncSink.Drain(drainCtx); err != nil {
		zl.Warn("audit sink drain", zap.Error(err))
	}
	if err := providers.Shutdown(drainCtx); err != nil {
		zl.Warn("otel shutdown", zap.Error(err))
	}
}
