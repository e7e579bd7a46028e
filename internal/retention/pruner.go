// Package retention deletes rows that outlived their usefulness: consumed or expired OTP codes,
// expired sessions and idle rate-limit counters.
package retention

import (
	"context"
	"time"

	"go.uber.org/zap"

	"adhoc-admin/backend/internal/logger"
)

// PruneFunc deletes rows older than before and reports how many went.
type PruneFunc func(ctx context.Context, before time.Time) (int64, error)

// Job is one named pruning step.
type Job struct {
	Name  string
	Prune PruneFunc
}

// Pruner runs every job with cutoff now - age.
type Pruner struct {
	jobs []Job
	age  time.Duration
	log  *zap.Logger
	now  func() time.Time
}

// NewPruner returns a pruner that keeps rows for age past their expiry.
func NewPruner(age time.Duration, log *zap.Logger, jobs ...Job) *Pruner {
	return &Pruner{jobs: jobs, age: age, log: logger.OrNop(log), now: time.Now}
}

// RunOnce runs each job once. A failing job is logged and does not stop the others.
// Returns the number of rows deleted per job name; failed jobs are absent.
func (p *Pruner) RunOnce(ctx context.Context) map[string]int64 {
	cutoff := p.now().Add(-p.age)
	out := make(map[string]int64, len(p.jobs))
	for _, job := range p.jobs {
		if ctx.Err() != nil {
			break
		}
		n, err := job.Prune(ctx, cutoff)
		if err != nil {
			p.log.Error("retention job failed", zap.String("job", job.Name), zap.Error(err))
			continue
		}
		out[job.Name] = n
		p.log.Info("retention job done", zap.String("job", job.Name), zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
	}
	return out
}

// Run calls RunOnce immediately and then every interval until ctx is done.
func (p *Pruner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		p.RunOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
