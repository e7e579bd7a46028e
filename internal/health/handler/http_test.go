package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// mockPinger implements Pinger for tests.
type mockPinger struct {
	pingErr error
}

func (m *mockPinger) PingContext(context.Context) error {
	return m.pingErr
}

// mockPolicyChecker implements PolicyChecker for tests.
type mockPolicyChecker struct {
	healthErr error
}

func (m *mockPolicyChecker) HealthCheck(context.Context) error {
	return m.healthErr
}

func ready(t *testing.T, h *Handler) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rec.Code, body
}

func TestLive(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(&mockPinger{pingErr: errors.New("down")}, nil, nil).Live(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 even with the database down", rec.Code)
	}
}

func TestReady_NilDependencies(t *testing.T) {
	code, body := ready(t, NewHandler(nil, nil, nil))
	if code != http.StatusOK {
		t.Errorf("status = %d, want 200", code)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v", body["status"])
	}
}

func TestReady_AllHealthy(t *testing.T) {
	code, body := ready(t, NewHandler(&mockPinger{}, &mockPolicyChecker{}, nil))
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	checks := body["checks"].(map[string]any)
	if checks["database"] != "ok" || checks["policy"] != "ok" {
		t.Errorf("checks = %v", checks)
	}
}

func TestReady_PingerFailure(t *testing.T) {
	code, body := ready(t, NewHandler(&mockPinger{pingErr: errors.New("connection refused")}, &mockPolicyChecker{}, nil))
	if code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", code)
	}
	if body["ok"] != false || body["status"] != "degraded" {
		t.Errorf("body = %v", body)
	}
	if body["checks"].(map[string]any)["database"] != "unavailable" {
		t.Errorf("checks = %v", body["checks"])
	}
}

func TestReady_PolicyFailure(t *testing.T) {
	code, body := ready(t, NewHandler(&mockPinger{}, &mockPolicyChecker{healthErr: errors.New("eval failed")}, nil))
	if code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", code)
	}
	if body["checks"].(map[string]any)["policy"] != "unavailable" {
		t.Errorf("checks = %v", body["checks"])
	}
}
