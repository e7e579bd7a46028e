// Package handler serves liveness and readiness probes.
package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"adhoc-admin/backend/internal/logger"
	"adhoc-admin/backend/internal/platform/respond"
)

// checkTimeout bounds each readiness dependency check.
const checkTimeout = 2 * time.Second

// Pinger checks database connectivity (e.g. *sqlx.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker checks that the policy engine can evaluate (e.g. the OPA evaluator).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler serves /healthz and /readyz.
type Handler struct {
	db     Pinger
	policy PolicyChecker
	log    *zap.Logger
}

// NewHandler returns a health handler. Nil dependencies are skipped by Ready.
func NewHandler(db Pinger, policy PolicyChecker, log *zap.Logger) *Handler {
	return &Handler{db: db, policy: policy, log: logger.OrNop(log)}
}

// Live handles GET /healthz. It only reports that the process serves requests.
func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	respond.OK(w, http.StatusOK, map[string]any{"status": "ok"})
}

// Ready handles GET /readyz: 200 when every dependency answers, 503 with per-check status otherwise.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	healthy := true

	if h.db != nil {
		if err := h.run(r.Context(), h.db.PingContext); err != nil {
			h.log.Warn("readiness: database ping failed", zap.Error(err))
			checks["database"] = "unavailable"
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	}
	if h.policy != nil {
		if err := h.run(r.Context(), h.policy.HealthCheck); err != nil {
			h.log.Warn("readiness: policy engine check failed", zap.Error(err))
			checks["policy"] = "unavailable"
			healthy = false
		} else {
			checks["policy"] = "ok"
		}
	}

	if !healthy {
		respond.JSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "status": "degraded", "checks": checks})
		return
	}
	respond.OK(w, http.StatusOK, map[string]any{"status": "ok", "checks": checks})
}

func (h *Handler) run(ctx context.Context, check func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	return check(ctx)
}
