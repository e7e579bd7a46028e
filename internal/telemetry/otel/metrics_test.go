package otel

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Sum[int64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	out := make(map[string]metricdata.Sum[int64])
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				out[m.Name] = sum
			}
		}
	}
	return out
}

func valueFor(sum metricdata.Sum[int64], key, val string) int64 {
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == val {
			return dp.Value
		}
	}
	return 0
}

func TestAuthMetrics_Counts(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	m, err := NewAuthMetrics(mp)
	if err != nil {
		t.Fatalf("NewAuthMetrics: %v", err)
	}
	ctx := context.Background()
	m.Login(ctx, OutcomeSuccess)
	m.Login(ctx, OutcomeFailure)
	m.Login(ctx, OutcomeFailure)
	m.Verify(ctx, OutcomeSuccess)
	m.Logout(ctx)
	m.RateLimited(ctx, "login_ip")

	got := collect(t, reader)
	if v := valueFor(got["auth.login.attempts"], "outcome", OutcomeFailure); v != 2 {
		t.Errorf("login failures = %d, want 2", v)
	}
	if v := valueFor(got["auth.login.attempts"], "outcome", OutcomeSuccess); v != 1 {
		t.Errorf("login successes = %d, want 1", v)
	}
	if v := valueFor(got["auth.verify.attempts"], "outcome", OutcomeSuccess); v != 1 {
		t.Errorf("verify successes = %d, want 1", v)
	}
	if v := valueFor(got["auth.rate_limited"], "rule", "login_ip"); v != 1 {
		t.Errorf("rate limited = %d, want 1", v)
	}
	if dps := got["auth.logouts"].DataPoints; len(dps) != 1 || dps[0].Value != 1 {
		t.Errorf("logouts = %+v, want one point of 1", dps)
	}
}

func TestAuthMetrics_NilSafe(t *testing.T) {
	var m *AuthMetrics
	ctx := context.Background()
	m.Login(ctx, OutcomeSuccess)
	m.Verify(ctx, OutcomeSuccess)
	m.Logout(ctx)
	m.RateLimited(ctx, "verify")

	NopAuthMetrics().Login(ctx, OutcomeFailure)
}
