// Package service runs the two-step admin login (password, then emailed code) and logout.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"adhoc-admin/backend/internal/audit"
	"adhoc-admin/backend/internal/db"
	"adhoc-admin/backend/internal/devotp"
	"adhoc-admin/backend/internal/logger"
	"adhoc-admin/backend/internal/mail"
	"adhoc-admin/backend/internal/otp"
	"adhoc-admin/backend/internal/platform/apperr"
	"adhoc-admin/backend/internal/ratelimit"
	"adhoc-admin/backend/internal/security"
	"adhoc-admin/backend/internal/session"
	telemetryotel "adhoc-admin/backend/internal/telemetry/otel"
	userdomain "adhoc-admin/backend/internal/user/domain"
)

const (
	// FailureDelay is the minimum pause before answering a failed credential check.
	FailureDelay = 150 * time.Millisecond

	codeTTL      = 10 * time.Minute
	codeCooldown = 60 * time.Second
	codeLength   = 6

	mailSubject = "Your ADHOC Admin verification code"
)

// Client-visible messages. The credential failures are identical across causes.
const (
	msgPepperMissing  = "Server is missing OTP_PEPPER. Add it to .env.local and rebuild."
	msgSecretMissing  = "Server is missing AUTH_SESSION_SECRET. Add it to .env.local and rebuild."
	msgMailMissing    = "Email is not configured (missing EMAIL_*). Add it to .env.local and rebuild."
	msgBootstrapPair  = "SUPER_ADMIN_EMAIL and SUPER_ADMIN_PASSWORD must both be set."
	msgBootstrapFail  = "Failed to prepare the super admin account."
	msgBootstrapEmail = "SUPER_ADMIN_EMAIL is invalid."
	msgInvalidRequest = "Invalid request."
	msgRequired       = "Email and password are required."
	msgInvalidLogin   = "Invalid email or password."
	msgIssueFailed    = "Unable to issue a verification code. Try again."
	msgSendFailed     = "Failed to send verification code. Try again."
	msgDatabaseDown   = "Database unavailable"

	// CooldownMessage is returned with ok:true when a code was sent less than a minute ago.
	CooldownMessage = "A verification code was already sent recently. Please check your email."
)

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByEmail(ctx context.Context, email string) (*userdomain.AdminUser, error)
	SetLastLogin(ctx context.Context, id string, at time.Time) error
}

// SuperAdminBootstrapper makes the configured super admin account exist.
type SuperAdminBootstrapper interface {
	EnsureSuperAdmin(ctx context.Context, email, password string) (*userdomain.AdminUser, bool, error)
}

// PasswordHasher verifies admin passwords.
type PasswordHasher interface {
	Hash(password []byte) (string, error)
	Compare(encoded string, password []byte) error
}

// CodeIssuer is the OTP engine surface used by login.
type CodeIssuer interface {
	Issue(ctx context.Context, req otp.IssueRequest) (otp.IssueResult, error)
	Verify(ctx context.Context, userID, purpose, code string) (bool, error)
	Invalidate(ctx context.Context, otpID string) error
}

// SessionIssuer is the session manager surface used by verify and logout.
type SessionIssuer interface {
	Issue(ctx context.Context, userID string, meta session.Meta) (*session.Issued, error)
	Revoke(ctx context.Context, token string) error
}

// Limiter checks one throttle rule.
type Limiter interface {
	Check(ctx context.Context, key string, rule ratelimit.Rule) (ratelimit.Result, error)
}

// Config holds the secrets and switches the flow depends on. Missing secrets fail per request.
type Config struct {
	OTPPepper          string
	SessionSecret      string
	MailConfigured     bool
	DevOTPCapture      bool
	SuperAdminEmail    string
	SuperAdminPassword string
}

// Deps are the collaborators of AuthService. Bootstrap, DevOTP, Audit and Metrics may be nil.
type Deps struct {
	Users     UserRepo
	Bootstrap SuperAdminBootstrapper
	Hasher    PasswordHasher
	Codes     CodeIssuer
	Sessions  SessionIssuer
	Limiter   Limiter
	Mailer    mail.Sender
	DevOTP    devotp.Store
	Audit     audit.AuditLogger
	Metrics   *telemetryotel.AuthMetrics
	Logger    *zap.Logger
}

// LoginInput is one password submission. Malformed is set by the transport when the body did not decode.
type LoginInput struct {
	Email     string
	Password  string
	IP        string
	UserAgent string
	Malformed bool
}

// LoginResult is a successful password step. Message is set when no new code was sent (cooldown).
type LoginResult struct {
	Message string
}

// VerifyInput is one code submission.
type VerifyInput struct {
	Email     string
	OTP       string
	IP        string
	UserAgent string
	Malformed bool
}

// AuthService implements the password step, the code step and logout.
type AuthService struct {
	cfg Config
	d   Deps
	log *zap.Logger
	now func() time.Time
	// sleep waits d or until ctx is done.
	sleep func(ctx context.Context, d time.Duration)

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService returns an AuthService.
func NewAuthService(cfg Config, d Deps) *AuthService {
	if d.Audit == nil {
		d.Audit = audit.Nop{}
	}
	return &AuthService{
		cfg:   cfg,
		d:     d,
		log:   logger.OrNop(d.Logger),
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// Login checks the password and, on success, emails a fresh login code.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if s.cfg.OTPPepper == "" {
		s.d.Metrics.Login(ctx, telemetryotel.OutcomeConfig)
		return nil, apperr.Configuration(msgPepperMissing)
	}
	if !s.cfg.MailConfigured && !s.cfg.DevOTPCapture {
		s.d.Metrics.Login(ctx, telemetryotel.OutcomeConfig)
		return nil, apperr.Configuration(msgMailMissing)
	}

	if err := s.limit(ctx, ratelimit.LoginIPKey(in.IP), ratelimit.LoginByIP, "login_ip"); err != nil {
		s.loginDenied(ctx, err, "rule=login_ip")
		return nil, err
	}
	if in.Malformed {
		s.d.Metrics.Login(ctx, telemetryotel.OutcomeFailure)
		return nil, apperr.Validation(msgInvalidRequest)
	}
	email := userdomain.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		s.d.Metrics.Login(ctx, telemetryotel.OutcomeFailure)
		return nil, apperr.Validation(msgRequired)
	}

	if err := s.bootstrapSuperAdmin(ctx, email); err != nil {
		s.d.Metrics.Login(ctx, telemetryotel.OutcomeConfig)
		return nil, err
	}

	if err := s.limit(ctx, ratelimit.LoginEmailKey(email), ratelimit.LoginByEmail, "login_email"); err != nil {
		s.loginDenied(ctx, err, "rule=login_email")
		return nil, err
	}

	u, err := s.d.Users.GetByEmail(ctx, email)
	if err != nil {
		s.d.Metrics.Login(ctx, telemetryotel.OutcomeError)
		return nil, storeError(err)
	}
	if !u.CanSignIn() {
		s.burnDummyCompare(in.Password)
		return nil, s.loginFailed(ctx, "", "unknown_or_disabled")
	}
	if err := s.d.Hasher.Compare(u.PasswordHash, []byte(in.Password)); err != nil {
		if !errors.Is(err, security.ErrMismatchedHashAndPassword) {
			s.log.Warn("stored password hash unreadable", zap.String("user_id", u.ID), zap.Error(err))
		}
		return nil, s.loginFailed(ctx, u.ID, "bad_password")
	}

	issued, err := s.d.Codes.Issue(ctx, otp.IssueRequest{
		UserID:   u.ID,
		Purpose:  otp.PurposeAdminLogin,
		TTL:      codeTTL,
		Cooldown: codeCooldown,
		Meta:     otp.Meta{IP: in.IP, UserAgent: in.UserAgent},
	})
	if err != nil {
		s.d.Metrics.Login(ctx, telemetryotel.OutcomeError)
		if errors.Is(err, otp.ErrPepperMissing) {
			return nil, apperr.Configuration(msgPepperMissing)
		}
		if db.IsUnavailable(err) {
			return nil, apperr.Unavailable(msgDatabaseDown, err)
		}
		return nil, apperr.Internal(msgIssueFailed, err)
	}
	if !issued.Sent {
		if issued.Reason == otp.ReasonCooldown {
			s.d.Audit.LogEvent(ctx, u.ID, audit.ActionOTPCooldown, audit.ResourceAuthentication, "")
			s.d.Metrics.Login(ctx, telemetryotel.OutcomeCooldown)
			return &LoginResult{Message: CooldownMessage}, nil
		}
		s.d.Metrics.Login(ctx, telemetryotel.OutcomeError)
		return nil, apperr.Internal(msgIssueFailed, errors.New(string(issued.Reason)))
	}

	if err := s.deliver(ctx, u.Email, issued); err != nil {
		if ierr := s.d.Codes.Invalidate(ctx, issued.OTPID); ierr != nil {
			s.log.Warn("invalidate undelivered code failed", zap.String("user_id", u.ID), zap.Error(ierr))
		}
		s.d.Audit.LogEvent(ctx, u.ID, audit.ActionOTPDeliveryFailed, audit.ResourceAuthentication, "")
		s.d.Metrics.Login(ctx, telemetryotel.OutcomeMailFailure)
		return nil, apperr.BadGateway(msgSendFailed, err)
	}

	s.d.Audit.LogEvent(ctx, u.ID, audit.ActionOTPSent, audit.ResourceAuthentication, "")
	s.d.Metrics.Login(ctx, telemetryotel.OutcomeSuccess)
	return &LoginResult{}, nil
}

// Verify checks a login code and, on success, opens a session. Every credential failure is a bare 401.
func (s *AuthService) Verify(ctx context.Context, in VerifyInput) (*session.Issued, error) {
	if s.cfg.OTPPepper == "" {
		s.d.Metrics.Verify(ctx, telemetryotel.OutcomeConfig)
		return nil, apperr.Configuration(msgPepperMissing)
	}
	if s.cfg.SessionSecret == "" {
		s.d.Metrics.Verify(ctx, telemetryotel.OutcomeConfig)
		return nil, apperr.Configuration(msgSecretMissing)
	}

	email := userdomain.NormalizeEmail(in.Email)
	if in.Malformed || email == "" || len(in.OTP) != codeLength {
		s.d.Metrics.Verify(ctx, telemetryotel.OutcomeFailure)
		return nil, apperr.Authentication("")
	}

	if err := s.limit(ctx, ratelimit.VerifyKey(in.IP, email), ratelimit.VerifyByIPEmail, "verify"); err != nil {
		if apperr.IsKind(err, apperr.KindThrottled) {
			s.d.Audit.LogEvent(ctx, "", audit.ActionVerifyThrottled, audit.ResourceAuthentication, "")
			s.d.Metrics.Verify(ctx, telemetryotel.OutcomeThrottled)
		} else {
			s.d.Metrics.Verify(ctx, telemetryotel.OutcomeError)
		}
		return nil, err
	}

	u, err := s.d.Users.GetByEmail(ctx, email)
	if err != nil {
		s.d.Metrics.Verify(ctx, telemetryotel.OutcomeError)
		return nil, storeError(err)
	}
	if u == nil || !u.IsActive {
		s.sleep(ctx, FailureDelay)
		s.d.Audit.LogEvent(ctx, "", audit.ActionVerifyFailure, audit.ResourceAuthentication, "reason=unknown_or_disabled")
		s.d.Metrics.Verify(ctx, telemetryotel.OutcomeFailure)
		return nil, apperr.Authentication("")
	}

	ok, err := s.d.Codes.Verify(ctx, u.ID, otp.PurposeAdminLogin, in.OTP)
	if err != nil {
		s.d.Metrics.Verify(ctx, telemetryotel.OutcomeError)
		if errors.Is(err, otp.ErrPepperMissing) {
			return nil, apperr.Configuration(msgPepperMissing)
		}
		return nil, storeError(err)
	}
	if !ok {
		s.d.Audit.LogEvent(ctx, u.ID, audit.ActionVerifyFailure, audit.ResourceAuthentication, "reason=code")
		s.d.Metrics.Verify(ctx, telemetryotel.OutcomeFailure)
		return nil, apperr.Authentication("")
	}

	if err := s.d.Users.SetLastLogin(ctx, u.ID, s.now().UTC()); err != nil {
		s.log.Warn("last login update failed", zap.String("user_id", u.ID), zap.Error(err))
	}
	issued, err := s.d.Sessions.Issue(ctx, u.ID, session.Meta{IP: in.IP, UserAgent: in.UserAgent})
	if err != nil {
		s.d.Metrics.Verify(ctx, telemetryotel.OutcomeError)
		if errors.Is(err, session.ErrSecretMissing) {
			return nil, apperr.Configuration(msgSecretMissing)
		}
		return nil, storeError(err)
	}
	if s.d.DevOTP != nil {
		s.d.DevOTP.Delete(ctx, email)
	}
	s.d.Audit.LogEvent(ctx, u.ID, audit.ActionLogin, audit.ResourceSession, "session_id="+issued.SessionID)
	s.d.Metrics.Verify(ctx, telemetryotel.OutcomeSuccess)
	return issued, nil
}

// Logout revokes the session behind token. It never fails from the caller's point of view;
// store errors are logged.
func (s *AuthService) Logout(ctx context.Context, userID, token string) {
	if err := s.d.Sessions.Revoke(ctx, token); err != nil {
		s.log.Warn("session revoke failed", zap.Error(err))
	}
	s.d.Audit.LogEvent(ctx, userID, audit.ActionLogout, audit.ResourceSession, "")
	s.d.Metrics.Logout(ctx)
}

// limit applies one rule. A store failure fails closed as 503.
func (s *AuthService) limit(ctx context.Context, key string, rule ratelimit.Rule, name string) error {
	res, err := s.d.Limiter.Check(ctx, key, rule)
	if err != nil {
		return apperr.Unavailable(msgDatabaseDown, err)
	}
	if !res.Allowed {
		s.d.Metrics.RateLimited(ctx, name)
		return apperr.Throttled()
	}
	return nil
}

func (s *AuthService) loginDenied(ctx context.Context, err error, metadata string) {
	if apperr.IsKind(err, apperr.KindThrottled) {
		s.d.Audit.LogEvent(ctx, "", audit.ActionLoginThrottled, audit.ResourceAuthentication, metadata)
		s.d.Metrics.Login(ctx, telemetryotel.OutcomeThrottled)
		return
	}
	s.d.Metrics.Login(ctx, telemetryotel.OutcomeError)
}

func (s *AuthService) loginFailed(ctx context.Context, userID, reason string) error {
	s.sleep(ctx, FailureDelay)
	s.d.Audit.LogEvent(ctx, userID, audit.ActionLoginFailure, audit.ResourceAuthentication, "reason="+reason)
	s.d.Metrics.Login(ctx, telemetryotel.OutcomeFailure)
	return apperr.Authentication(msgInvalidLogin)
}

// bootstrapSuperAdmin runs only when the submitted email is the configured super admin.
func (s *AuthService) bootstrapSuperAdmin(ctx context.Context, email string) error {
	cfgEmail, cfgPassword := s.cfg.SuperAdminEmail, s.cfg.SuperAdminPassword
	if cfgEmail == "" && cfgPassword == "" {
		return nil
	}
	if cfgEmail == "" || cfgPassword == "" {
		return apperr.Configuration(msgBootstrapPair)
	}
	superEmail := userdomain.NormalizeEmail(cfgEmail)
	if superEmail == "" {
		return apperr.Configuration(msgBootstrapEmail)
	}
	if s.d.Bootstrap == nil || superEmail != email {
		return nil
	}
	u, changed, err := s.d.Bootstrap.EnsureSuperAdmin(ctx, email, cfgPassword)
	if err != nil {
		if db.IsUnavailable(err) {
			return apperr.Unavailable(msgDatabaseDown, err)
		}
		return apperr.Internal(msgBootstrapFail, err)
	}
	if changed {
		s.d.Audit.LogEvent(ctx, u.ID, audit.ActionSuperAdminBootstrap, audit.ResourceAdminUser, "")
	}
	return nil
}

// deliver hands the raw code to the dev capture store or the mailer.
func (s *AuthService) deliver(ctx context.Context, to string, issued otp.IssueResult) error {
	if s.cfg.DevOTPCapture && s.d.DevOTP != nil {
		s.d.DevOTP.Put(ctx, to, issued.Code, issued.ExpiresAt)
		s.log.Info("login code captured for dev retrieval", zap.String("email", to))
		return nil
	}
	if s.d.Mailer == nil {
		return mail.ErrNotConfigured
	}
	return s.d.Mailer.Send(ctx, mail.Message{
		To:      to,
		Subject: mailSubject,
		Text:    "Your verification code is: " + issued.Code + "\n\nThis code expires in 10 minutes.",
	})
}

// burnDummyCompare spends a password verification on a throwaway hash so unknown accounts
// cost the same as a wrong password.
func (s *AuthService) burnDummyCompare(password string) {
	s.dummyOnce.Do(func() {
		seed, err := security.RandomToken(16)
		if err != nil {
			return
		}
		if h, err := s.d.Hasher.Hash([]byte(seed)); err == nil {
			s.dummyHash = h
		}
	})
	if s.dummyHash != "" {
		_ = s.d.Hasher.Compare(s.dummyHash, []byte(password))
	}
}

func storeError(err error) error {
	if db.IsUnavailable(err) {
		return apperr.Unavailable(msgDatabaseDown, err)
	}
	return apperr.Internal("Server error", err)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
