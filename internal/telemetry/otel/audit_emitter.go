package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"adhoc-admin/backend/internal/audit"
	"adhoc-admin/backend/internal/audit/domain"
)

const auditScope = "adhoc-admin.audit"

// RecordEmitter is the part of an OTel log.Logger the audit emitter needs.
type RecordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewAuditEmitter returns an audit.Sink that sends entries as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op sink.
func NewAuditEmitter(provider *sdklog.LoggerProvider) audit.Sink {
	if provider == nil {
		return noopSink{}
	}
	return NewAuditEmitterWithLogger(provider.Logger(auditScope))
}

// NewAuditEmitterWithLogger returns an audit.Sink that writes to l.
func NewAuditEmitterWithLogger(l RecordEmitter) audit.Sink {
	if l == nil {
		return noopSink{}
	}
	return &auditEmitter{logger: l}
}

type noopSink struct{}

func (noopSink) Emit(context.Context, *domain.AuditLog) {}

type auditEmitter struct {
	logger RecordEmitter
}

// Emit converts the audit entry to an OTel log record. Empty fields are not added as attributes.
func (e *auditEmitter) Emit(ctx context.Context, entry *domain.AuditLog) {
	if entry == nil {
		return
	}
	rec := otellog.Record{}
	ts := entry.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetEventName("audit." + entry.Action)
	if entry.Metadata != "" {
		rec.SetBody(otellog.StringValue(entry.Metadata))
	}
	for _, kv := range []struct{ k, v string }{
		{"audit.id", entry.ID},
		{"user_id", entry.UserID},
		{"action", entry.Action},
		{"resource", entry.Resource},
		{"client.address", entry.IP},
	} {
		if kv.v != "" {
			rec.AddAttributes(otellog.String(kv.k, kv.v))
		}
	}
	e.logger.Emit(ctx, rec)
}
