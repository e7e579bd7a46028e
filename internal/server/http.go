// Package server builds the HTTP router and runs it with graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"adhoc-admin/backend/internal/audit"
	audithandler "adhoc-admin/backend/internal/audit/handler"
	contacthandler "adhoc-admin/backend/internal/contact/handler"
	devotphandler "adhoc-admin/backend/internal/devotp/handler"
	healthhandler "adhoc-admin/backend/internal/health/handler"
	identityhandler "adhoc-admin/backend/internal/identity/handler"
	"adhoc-admin/backend/internal/logger"
	projecthandler "adhoc-admin/backend/internal/project/handler"
	"adhoc-admin/backend/internal/server/middleware"
	userhandler "adhoc-admin/backend/internal/user/handler"
)

const (
	// publicImageRatePerMinute caps image fetches per client IP on the public site.
	publicImageRatePerMinute = 600
	defaultContactRate       = 5
	shutdownTimeout          = 20 * time.Second
)

// Deps holds the handlers and middleware dependencies mounted by NewRouter.
// DevOTP is nil unless dev OTP capture is on; the /dev/otp route is then absent.
type Deps struct {
	Logger   *zap.Logger
	Sessions middleware.SessionResolver
	Audit    audit.AuditLogger

	Health    *healthhandler.Handler
	Auth      *identityhandler.Handler
	Users     *userhandler.Handler
	Projects  *projecthandler.Handler
	Public    *projecthandler.PublicHandler
	Contact   *contacthandler.Handler
	AuditLogs *audithandler.Handler
	DevOTP    *devotphandler.Handler

	// CORSOrigins are the origins allowed on /api/public and /api/contact. Empty means same-origin only.
	CORSOrigins []string
	// TrustedProxies are the peers whose forwarding headers decide the client IP.
	TrustedProxies       []netip.Prefix
	ContactRatePerMinute int
	// ServiceName names the otelhttp server spans.
	ServiceName string
}

// NewRouter mounts every route on a chi router and wraps it with OpenTelemetry instrumentation.
//
// Route map:
//   - /healthz, /readyz                         → internal/health/handler
//   - /api/admin/login|verify|logout            → internal/identity/handler
//   - /api/admin/me, /api/admin/users           → internal/user/handler
//   - /api/admin/projects/..., /storage/...     → internal/project/handler
//   - /api/admin/audit                          → internal/audit/handler
//   - /api/public/..., /api/project-images      → internal/project/handler (PublicHandler)
//   - /api/contact                              → internal/contact/handler
//   - /dev/otp                                  → internal/devotp/handler
func NewRouter(d Deps) http.Handler {
	log := logger.OrNop(d.Logger)
	auditLog := d.Audit
	if auditLog == nil {
		auditLog = audit.Nop{}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientIPCapture(d.TrustedProxies))
	r.Use(middleware.AccessLog(log))
	r.Use(chimw.Recoverer)
	if len(d.CORSOrigins) > 0 {
		// Mounted at the root so preflights reach it before chi's method matching.
		r.Use(publicCORS(d.CORSOrigins))
	}

	if d.Health != nil {
		r.Get("/healthz", d.Health.Live)
		r.Get("/readyz", d.Health.Ready)
	}

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(noStore)
		if d.Auth != nil {
			r.Post("/login", d.Auth.Login)
			r.Post("/verify", d.Auth.Verify)
			r.With(middleware.OptionalAuthenticate(d.Sessions)).Post("/logout", d.Auth.Logout)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(d.Sessions))
			r.Use(middleware.Audit(auditLog))

			if d.Users != nil {
				r.Get("/me", d.Users.Me)
				r.Get("/users", d.Users.List)
				r.Post("/users", d.Users.Create)
				r.Patch("/users", d.Users.ResetPassword)
				r.Delete("/users", d.Users.Delete)
			}
			if d.Projects != nil {
				r.Get("/projects", d.Projects.List)
				r.Post("/projects", d.Projects.Create)
				r.Get("/projects/{id}", d.Projects.Get)
				r.Put("/projects/{id}", d.Projects.Update)
				r.Delete("/projects/{id}", d.Projects.Delete)
				r.Get("/projects/{id}/images", d.Projects.ListImages)
				r.Post("/projects/{id}/images", d.Projects.RegisterImage)
				r.Put("/projects/{id}/images", d.Projects.ReorderImages)
				r.Get("/projects/{id}/images/{imageId}", d.Projects.GetImage)
				r.Put("/projects/{id}/images/{imageId}", d.Projects.UploadImage)
				r.Delete("/projects/{id}/images/{imageId}", d.Projects.DeleteImage)
				r.Post("/storage/presign-upload", d.Projects.PresignUpload)
			}
			if d.AuditLogs != nil {
				r.Get("/audit", d.AuditLogs.List)
			}
		})
	})

	r.Group(func(r chi.Router) {
		if d.Public != nil {
			r.Get("/api/public/projects", d.Public.Projects)
			r.With(limitByClientIP(publicImageRatePerMinute)).
				Get("/api/public/project-images/{imageId}", d.Public.Image)
			r.Get("/api/project-images", d.Public.FolderImages)
		}
		if d.Contact != nil {
			rate := d.ContactRatePerMinute
			if rate <= 0 {
				rate = defaultContactRate
			}
			r.With(limitByClientIP(rate)).Post("/api/contact", d.Contact.Submit)
		}
	})

	if d.DevOTP != nil {
		r.Get("/dev/otp", d.DevOTP.GetOTP)
	}

	name := d.ServiceName
	if name == "" {
		name = "adhoc-admin"
	}
	return otelhttp.NewHandler(r, name)
}

// limitByClientIP caps requests per minute per client IP as resolved by ClientIPCapture.
func limitByClientIP(perMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return middleware.ClientIPFromContext(r.Context()), nil
		}),
	)
}

// publicCORS applies the allowed origins to the public site API only. Admin routes stay same-origin.
func publicCORS(origins []string) func(http.Handler) http.Handler {
	c := cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With"},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	})
	return func(next http.Handler) http.Handler {
		withCORS := c(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path) {
				withCORS.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isPublicPath(p string) bool {
	return strings.HasPrefix(p, "/api/public/") || p == "/api/project-images" || p == "/api/contact"
}

// noStore keeps admin responses out of shared caches. Image handlers set their own Cache-Control.
func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// Serve runs h on addr until ctx is done, then drains in-flight requests for up to shutdownTimeout.
func Serve(ctx context.Context, addr string, h http.Handler, log *zap.Logger) error {
	log = logger.OrNop(log)
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info("shutdown signal received, draining connections")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	log.Info("http server stopped")
	return nil
}
