// Package telemetry holds helpers shared by the exporters in telemetry/otel.
package telemetry

import (
	"context"
	"sync"
	"time"

	"adhoc-admin/backend/internal/audit"
	"adhoc-admin/backend/internal/audit/domain"
)

// emitTimeout is the max time allowed for a single async emit. Used by AsyncSink and by ShutdownDrainDuration.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after the HTTP server stops before shutting down OTel providers,
// so in-flight async emits have time to complete. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// AsyncSink forwards audit entries to an inner sink on a goroutine so request handlers are not blocked.
// The goroutine uses context.Background() with emitTimeout so request cancellation does not abort an in-flight emit.
type AsyncSink struct {
	inner audit.Sink
	wg    sync.WaitGroup
}

// NewAsyncSink wraps inner. A nil inner yields a sink that drops everything.
func NewAsyncSink(inner audit.Sink) *AsyncSink {
	return &AsyncSink{inner: inner}
}

// Emit dispatches entry and returns immediately. entry may be nil; then nothing is started.
func (s *AsyncSink) Emit(_ context.Context, entry *domain.AuditLog) {
	if s == nil || s.inner == nil || entry == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		s.inner.Emit(emitCtx, entry)
	}()
}

// Drain waits for in-flight emits or until ctx is done, whichever comes first.
func (s *AsyncSink) Drain(ctx context.Context) error {
	if s == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
