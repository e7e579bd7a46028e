package middleware

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"adhoc-admin/backend/internal/audit"
)

// Audit records one audit entry after each mutating admin request made by an authenticated principal.
// Reads (GET, HEAD, OPTIONS) are skipped. Writing is best-effort and never changes the response.
func Audit(logger audit.AuditLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			p, ok := GetPrincipal(r.Context())
			if !ok || logger == nil {
				return
			}
			pattern := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if rp := rctx.RoutePattern(); rp != "" {
					pattern = rp
				}
			}
			ar := audit.ParseRoute(r.Method, pattern)
			logger.LogEvent(r.Context(), p.UserID, ar.Action, ar.Resource, "status="+strconv.Itoa(statusOf(ww)))
		})
	}
}

func statusOf(ww chimw.WrapResponseWriter) int {
	if s := ww.Status(); s != 0 {
		return s
	}
	return http.StatusOK
}
