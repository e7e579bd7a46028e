package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "adhoc-admin.auth"

// Outcomes recorded on the auth counters.
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeThrottled   = "throttled"
	OutcomeCooldown    = "cooldown"
	OutcomeMailFailure = "mail_failure"
	OutcomeConfig      = "config_error"
	OutcomeError       = "error"
)

// AuthMetrics counts login, verify and logout outcomes plus rate limiter denials.
type AuthMetrics struct {
	logins      metric.Int64Counter
	verifies    metric.Int64Counter
	logouts     metric.Int64Counter
	rateLimited metric.Int64Counter
}

// NewAuthMetrics registers the auth counters on mp. A nil mp uses a no-op provider.
func NewAuthMetrics(mp metric.MeterProvider) (*AuthMetrics, error) {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	m := mp.Meter(meterName)
	logins, err := m.Int64Counter("auth.login.attempts",
		metric.WithDescription("Password step attempts by outcome"))
	if err != nil {
		return nil, err
	}
	verifies, err := m.Int64Counter("auth.verify.attempts",
		metric.WithDescription("Code verification attempts by outcome"))
	if err != nil {
		return nil, err
	}
	logouts, err := m.Int64Counter("auth.logouts", metric.WithDescription("Logout requests"))
	if err != nil {
		return nil, err
	}
	rateLimited, err := m.Int64Counter("auth.rate_limited",
		metric.WithDescription("Requests denied by the rate limiter, by rule"))
	if err != nil {
		return nil, err
	}
	return &AuthMetrics{logins: logins, verifies: verifies, logouts: logouts, rateLimited: rateLimited}, nil
}

// NopAuthMetrics returns counters that record nothing.
func NopAuthMetrics() *AuthMetrics {
	m, _ := NewAuthMetrics(nil)
	return m
}

func (a *AuthMetrics) Login(ctx context.Context, outcome string) {
	if a == nil {
		return
	}
	a.logins.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (a *AuthMetrics) Verify(ctx context.Context, outcome string) {
	if a == nil {
		return
	}
	a.verifies.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (a *AuthMetrics) Logout(ctx context.Context) {
	if a == nil {
		return
	}
	a.logouts.Add(ctx, 1)
}

// RateLimited counts a denial for the named rule (login_ip, login_email, verify).
func (a *AuthMetrics) RateLimited(ctx context.Context, rule string) {
	if a == nil {
		return
	}
	a.rateLimited.Add(ctx, 1, metric.WithAttributes(attribute.String("rule", rule)))
}
