package retention

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu      sync.Mutex
	cutoffs []time.Time
	n       int64
	err     error
}

func (r *recorder) prune(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cutoffs = append(r.cutoffs, before)
	return r.n, r.err
}

func (r *recorder) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cutoffs)
}

func TestRunOnce_CutoffAndCounts(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	otps := &recorder{n: 4}
	sessions := &recorder{n: 2}
	p := NewPruner(48*time.Hour, nil, Job{"otp", otps.prune}, Job{"sessions", sessions.prune})
	p.now = func() time.Time { return now }

	got := p.RunOnce(context.Background())
	if got["otp"] != 4 || got["sessions"] != 2 {
		t.Errorf("RunOnce = %v", got)
	}
	want := now.Add(-48 * time.Hour)
	if !otps.cutoffs[0].Equal(want) || !sessions.cutoffs[0].Equal(want) {
		t.Errorf("cutoffs = %v / %v, want %v", otps.cutoffs, sessions.cutoffs, want)
	}
}

func TestRunOnce_FailureDoesNotStopOthers(t *testing.T) {
	bad := &recorder{err: errors.New("connection refused")}
	good := &recorder{n: 1}
	p := NewPruner(time.Hour, nil, Job{"bad", bad.prune}, Job{"good", good.prune})

	got := p.RunOnce(context.Background())
	if _, ok := got["bad"]; ok {
		t.Error("failed job should be absent from the result")
	}
	if got["good"] != 1 {
		t.Errorf("good = %d, want 1", got["good"])
	}
}

func TestRunOnce_CancelledContext(t *testing.T) {
	r := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	NewPruner(time.Hour, nil, Job{"otp", r.prune}).RunOnce(ctx)
	if r.calls() != 0 {
		t.Error("no job should run after cancellation")
	}
}

func TestRun_TicksUntilCancelled(t *testing.T) {
	r := &recorder{}
	p := NewPruner(time.Hour, nil, Job{"otp", r.prune})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for r.calls() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d runs before deadline", r.calls())
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
