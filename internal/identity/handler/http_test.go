package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"adhoc-admin/backend/internal/identity/service"
	"adhoc-admin/backend/internal/platform/apperr"
	"adhoc-admin/backend/internal/server/middleware"
	"adhoc-admin/backend/internal/session"
)

type fakeAuth struct {
	loginIn   service.LoginInput
	verifyIn  service.VerifyInput
	loginRes  *service.LoginResult
	issued    *session.Issued
	err       error
	logoutTok string
}

func (f *fakeAuth) Login(_ context.Context, in service.LoginInput) (*service.LoginResult, error) {
	f.loginIn = in
	if f.err != nil {
		return nil, f.err
	}
	return f.loginRes, nil
}

func (f *fakeAuth) Verify(_ context.Context, in service.VerifyInput) (*session.Issued, error) {
	f.verifyIn = in
	if f.err != nil {
		return nil, f.err
	}
	return f.issued, nil
}

func (f *fakeAuth) Logout(_ context.Context, _ string, token string) {
	f.logoutTok = token
}

func newManager() *session.Manager {
	return session.NewManager(nil, nil, "secret", 14*24*time.Hour, true, nil)
}

func body(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return m
}

func TestLogin_OK(t *testing.T) {
	auth := &fakeAuth{loginRes: &service.LoginResult{}}
	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(`{"email":"a@b.co","password":"pw"}`))
	req = req.WithContext(middleware.WithClientIP(req.Context(), "203.0.113.9"))
	req.Header.Set("User-Agent", "ua")
	rec := httptest.NewRecorder()
	NewHandler(auth, newManager()).Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if auth.loginIn.Email != "a@b.co" || auth.loginIn.Password != "pw" || auth.loginIn.IP != "203.0.113.9" || auth.loginIn.UserAgent != "ua" {
		t.Errorf("input = %+v", auth.loginIn)
	}
	if b := body(t, rec); b["ok"] != true {
		t.Errorf("body = %v", b)
	}
}

func TestLogin_Cooldown(t *testing.T) {
	auth := &fakeAuth{loginRes: &service.LoginResult{Message: service.CooldownMessage}}
	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(`{"email":"a@b.co","password":"pw"}`))
	rec := httptest.NewRecorder()
	NewHandler(auth, newManager()).Login(rec, req)
	b := body(t, rec)
	if rec.Code != http.StatusOK || b["ok"] != true || b["message"] != service.CooldownMessage {
		t.Errorf("status = %d, body = %v", rec.Code, b)
	}
}

func TestLogin_MalformedPassedThrough(t *testing.T) {
	auth := &fakeAuth{err: apperr.Validation("Invalid request.")}
	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(`{`))
	rec := httptest.NewRecorder()
	NewHandler(auth, newManager()).Login(rec, req)
	if !auth.loginIn.Malformed {
		t.Error("Malformed should be set")
	}
	b := body(t, rec)
	if rec.Code != http.StatusBadRequest || b["error"] != "Invalid request." {
		t.Errorf("status = %d, body = %v", rec.Code, b)
	}
}

func TestLogin_NonStringFieldsReadAsEmpty(t *testing.T) {
	auth := &fakeAuth{err: apperr.Validation("Email and password are required.")}
	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(`{"email":123,"password":"x"}`))
	rec := httptest.NewRecorder()
	NewHandler(auth, newManager()).Login(rec, req)

	if auth.loginIn.Malformed {
		t.Error("a well-formed body with a numeric email must not be flagged malformed")
	}
	if auth.loginIn.Email != "" || auth.loginIn.Password != "x" {
		t.Errorf("input = %+v, want empty email and password x", auth.loginIn)
	}
	b := body(t, rec)
	if rec.Code != http.StatusBadRequest || b["error"] != "Email and password are required." {
		t.Errorf("status = %d, body = %v", rec.Code, b)
	}
}

func TestVerify_NonStringFieldsReadAsEmpty(t *testing.T) {
	auth := &fakeAuth{err: apperr.Authentication("")}
	req := httptest.NewRequest(http.MethodPost, "/api/admin/verify", strings.NewReader(`{"email":"a@b.co","otp":123456}`))
	rec := httptest.NewRecorder()
	NewHandler(auth, newManager()).Verify(rec, req)

	if auth.verifyIn.Malformed {
		t.Error("a well-formed body with a numeric otp must not be flagged malformed")
	}
	if auth.verifyIn.Email != "a@b.co" || auth.verifyIn.OTP != "" {
		t.Errorf("input = %+v, want email a@b.co and empty otp", auth.verifyIn)
	}
}

func TestLogin_ClientIPFromContext(t *testing.T) {
	auth := &fakeAuth{loginRes: &service.LoginResult{}}
	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(`{"email":"a@b.co","password":"pw"}`))
	req.RemoteAddr = "203.0.113.7:5555"
	req.Header.Set("X-Forwarded-For", "10.0.0.9")
	req = req.WithContext(middleware.WithClientIP(req.Context(), "203.0.113.7"))
	NewHandler(auth, newManager()).Login(httptest.NewRecorder(), req)
	if auth.loginIn.IP != "203.0.113.7" {
		t.Errorf("IP = %q, want the captured 203.0.113.7", auth.loginIn.IP)
	}
}

func TestLogin_Throttled(t *testing.T) {
	auth := &fakeAuth{err: apperr.Throttled()}
	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	NewHandler(auth, newManager()).Login(rec, req)
	b := body(t, rec)
	if rec.Code != http.StatusTooManyRequests || b["error"] != "Too many attempts. Try again later." {
		t.Errorf("status = %d, body = %v", rec.Code, b)
	}
}

func TestVerify_SetsCookie(t *testing.T) {
	auth := &fakeAuth{issued: &session.Issued{Token: "raw", SessionID: "s1", ExpiresAt: time.Now().Add(time.Hour)}}
	req := httptest.NewRequest(http.MethodPost, "/api/admin/verify", strings.NewReader(`{"email":"a@b.co","otp":"123456"}`))
	rec := httptest.NewRecorder()
	NewHandler(auth, newManager()).Verify(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if auth.verifyIn.OTP != "123456" {
		t.Errorf("input = %+v", auth.verifyIn)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies = %v", cookies)
	}
	c := cookies[0]
	if c.Name != session.CookieName || c.Value != "raw" || !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode || c.Path != "/" {
		t.Errorf("cookie = %+v", c)
	}
}

func TestVerify_FailureIsBare401(t *testing.T) {
	auth := &fakeAuth{err: apperr.Authentication("")}
	req := httptest.NewRequest(http.MethodPost, "/api/admin/verify", strings.NewReader(`{"email":"a@b.co","otp":"000000"}`))
	rec := httptest.NewRecorder()
	NewHandler(auth, newManager()).Verify(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	b := body(t, rec)
	if b["ok"] != false {
		t.Errorf("body = %v", b)
	}
	if _, ok := b["error"]; ok {
		t.Errorf("error should be omitted, body = %v", b)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("no cookie on failure")
	}
}

func TestLogout(t *testing.T) {
	auth := &fakeAuth{}
	req := httptest.NewRequest(http.MethodPost, "/api/admin/logout", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "raw"})
	rec := httptest.NewRecorder()
	NewHandler(auth, newManager()).Logout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if auth.logoutTok != "raw" {
		t.Errorf("revoked token = %q", auth.logoutTok)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Errorf("cookie should be cleared: %v", cookies)
	}
}
