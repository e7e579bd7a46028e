package middleware

import (
	"context"
	"net/http"

	"adhoc-admin/backend/internal/platform/apperr"
	"adhoc-admin/backend/internal/platform/respond"
	"adhoc-admin/backend/internal/session"
)

// SessionResolver maps a raw session token to its session and owner.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*session.Resolved, error)
}

// Authenticate resolves the admin_session cookie and stores the principal in the request context.
// Requests without a live session get 401 {ok:false, error:"Unauthorized"}; a store failure gets 503.
func Authenticate(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := session.TokenFromRequest(r)
			if token == "" {
				respond.Fail(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			res, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				respond.Error(w, apperr.Unavailable("Database unavailable", err))
				return
			}
			if res == nil {
				respond.Fail(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principalOf(res))))
		})
	}
}

// OptionalAuthenticate attaches the principal when the cookie resolves and otherwise passes the request
// through untouched. Used by logout, which must answer 200 whatever the session state.
func OptionalAuthenticate(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := session.TokenFromRequest(r); token != "" {
				if res, err := resolver.Resolve(r.Context(), token); err == nil && res != nil {
					r = r.WithContext(WithPrincipal(r.Context(), principalOf(res)))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func principalOf(res *session.Resolved) Principal {
	return Principal{
		UserID:    res.User.ID,
		Email:     res.User.Email,
		Role:      res.User.Role,
		SessionID: res.Session.ID,
	}
}
