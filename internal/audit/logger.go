package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"adhoc-admin/backend/internal/audit/domain"
	auditrepo "adhoc-admin/backend/internal/audit/repository"
	"adhoc-admin/backend/internal/logger"
)

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event with explicit action/resource. Used by auth and session code paths.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID, action, resource, metadata string)
}

// Sink receives every audit entry after it is built, whether or not persisting it succeeded.
type Sink interface {
	Emit(ctx context.Context, entry *domain.AuditLog)
}

// Logger implements AuditLogger using the audit repository, an optional IP extractor and any number of sinks.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	sinks       []Sink
	log         *zap.Logger
	now         func() time.Time
}

// NewLogger returns an AuditLogger that persists to repo and uses ipExtractor for client IP.
// ipExtractor may be nil; then IP is recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor, log *zap.Logger, sinks ...Sink) *Logger {
	return &Logger{
		repo:        repo,
		ipExtractor: ipExtractor,
		sinks:       sinks,
		log:         logger.OrNop(log),
		now:         time.Now,
	}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, userID, action, resource, metadata string) {
	if l == nil || (l.repo == nil && len(l.sinks) == 0) {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		if v := l.ipExtractor(ctx); v != "" {
			ip = v
		}
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: l.now().UTC(),
	}
	if l.repo != nil {
		if err := l.repo.Create(ctx, entry); err != nil {
			l.log.Warn("audit: failed to log event",
				zap.String("action", action), zap.String("resource", resource), zap.Error(err))
		}
	}
	for _, s := range l.sinks {
		s.Emit(ctx, entry)
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) LogEvent(context.Context, string, string, string, string) {}
