// Package ratelimit implements a fixed-window counter with an explicit block period,
// keyed by caller-supplied strings and persisted in a shared store so every server
// process sees the same counts.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// Rule is one throttle: at most Limit hits per Window, after which the key is
// blocked for Block.
type Rule struct {
	Window time.Duration
	Limit  int
	Block  time.Duration
}

// Result is the outcome of one check. BlockedUntil is set only on denial.
type Result struct {
	Allowed      bool
	BlockedUntil *time.Time
}

// Counter is the persisted state for one key.
type Counter struct {
	Key          string     `db:"key"`
	WindowStart  time.Time  `db:"window_start"`
	Count        int        `db:"count"`
	BlockedUntil *time.Time `db:"blocked_until"`
}

// Store applies one hit for key atomically and reports the result. Implementations
// must serialize concurrent hits on the same key.
type Store interface {
	Hit(ctx context.Context, key string, rule Rule, now time.Time) (Result, error)
}

// ErrEmptyKey is returned when Check is called without a key.
var ErrEmptyKey = errors.New("ratelimit: empty key")

// Step advances c by one hit at now. It returns the next counter state, the result,
// and whether the state changed (a denial while blocked leaves it untouched).
func Step(c Counter, rule Rule, now time.Time) (Counter, Result, bool) {
	if c.BlockedUntil != nil && c.BlockedUntil.After(now) {
		until := *c.BlockedUntil
		return c, Result{Allowed: false, BlockedUntil: &until}, false
	}
	if c.WindowStart.Before(now.Add(-rule.Window)) {
		next := Counter{Key: c.Key, WindowStart: now, Count: 1}
		return next, Result{Allowed: true}, true
	}
	next := c
	next.Count = c.Count + 1
	if next.Count > rule.Limit {
		until := now.Add(rule.Block)
		next.BlockedUntil = &until
		return next, Result{Allowed: false, BlockedUntil: &until}, true
	}
	return next, Result{Allowed: true}, true
}

// Limiter checks keys against rules using a Store.
type Limiter struct {
	store    Store
	disabled bool
	now      func() time.Time
}

// NewLimiter returns a Limiter backed by store. When disabled is true every check is
// allowed without touching the store.
func NewLimiter(store Store, disabled bool) *Limiter {
	return &Limiter{store: store, disabled: disabled, now: time.Now}
}

// WithClock replaces the limiter's time source. Used by tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Disabled reports whether the limiter is bypassed.
func (l *Limiter) Disabled() bool {
	return l.disabled
}

// Check records one hit for key and reports whether it is allowed. Store errors are
// returned as-is; callers treat them as a dependency failure and deny.
func (l *Limiter) Check(ctx context.Context, key string, rule Rule) (Result, error) {
	if l.disabled {
		return Result{Allowed: true}, nil
	}
	if key == "" {
		return Result{}, ErrEmptyKey
	}
	return l.store.Hit(ctx, key, rule, l.now().UTC())
}
