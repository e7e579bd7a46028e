// Package otp issues and verifies single-use 6-digit email codes bound to a
// (user, purpose) pair. At most one code per pair is active at a time.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"adhoc-admin/backend/internal/otp/domain"
	"adhoc-admin/backend/internal/otp/repository"
	"adhoc-admin/backend/internal/security"
)

const (
	// PurposeAdminLogin tags codes sent during the admin password + code login.
	PurposeAdminLogin = "admin_login"

	// DefaultMaxAttempts is how many wrong guesses a code tolerates.
	DefaultMaxAttempts = 5

	codeDigits = 6
	rowIDBytes = 16
)

var codeSpace = big.NewInt(1_000_000)

// ErrPepperMissing is returned when the server has no OTP pepper configured.
var ErrPepperMissing = errors.New("otp: OTP_PEPPER is not configured")

// Reason explains why Issue did not send a code.
type Reason string

const ReasonCooldown Reason = "cooldown"

// Meta is request context recorded on the code for audit.
type Meta struct {
	IP        string
	UserAgent string
}

// IssueRequest parameterizes Issue.
type IssueRequest struct {
	UserID   string
	Purpose  string
	TTL      time.Duration
	Cooldown time.Duration
	Meta     Meta
}

// IssueResult is the outcome of Issue. Code is the raw code and must only be
// delivered to the user, never stored or logged.
type IssueResult struct {
	Sent      bool
	Reason    Reason
	Code      string
	OTPID     string
	ExpiresAt time.Time
}

// Engine issues and verifies codes.
type Engine struct {
	repo   repository.Repository
	pepper string
	now    func() time.Time
	newID  func() (string, error)
}

// NewEngine returns an Engine that stores codes in repo, keyed-hashed with pepper.
func NewEngine(repo repository.Repository, pepper string) *Engine {
	return &Engine{
		repo:   repo,
		pepper: pepper,
		now:    time.Now,
		newID:  func() (string, error) { return security.RandomToken(rowIDBytes) },
	}
}

// WithClock replaces the engine's time source. Used by tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// GenerateCode returns a uniformly random 6-digit code; leading zeros are kept.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

// hashCode binds a code to its owner, purpose and row so a stored hash is useless
// for any other row.
func hashCode(pepper, code, userID, purpose, rowID string) string {
	return security.KeyedHash(pepper, code+":"+userID+":"+purpose+":"+rowID)
}

// Issue consumes any active code for the pair, then either reports a cooldown
// (when the latest code was sent less than Cooldown ago) or creates a new code.
func (e *Engine) Issue(ctx context.Context, req IssueRequest) (IssueResult, error) {
	if e.pepper == "" {
		return IssueResult{}, ErrPepperMissing
	}
	now := e.now().UTC()

	if _, err := e.repo.ConsumeActive(ctx, req.UserID, req.Purpose, now); err != nil {
		return IssueResult{}, fmt.Errorf("otp: consume active: %w", err)
	}

	latest, err := e.repo.Latest(ctx, req.UserID, req.Purpose)
	if err != nil {
		return IssueResult{}, fmt.Errorf("otp: latest: %w", err)
	}
	if latest != nil && now.Sub(latest.SentAt()) < req.Cooldown {
		return IssueResult{Sent: false, Reason: ReasonCooldown}, nil
	}

	code, err := GenerateCode()
	if err != nil {
		return IssueResult{}, fmt.Errorf("otp: generate: %w", err)
	}
	id, err := e.newID()
	if err != nil {
		return IssueResult{}, fmt.Errorf("otp: id: %w", err)
	}

	sentAt := now
	row := &domain.EmailOTP{
		ID:          id,
		UserID:      req.UserID,
		Purpose:     req.Purpose,
		CodeHash:    hashCode(e.pepper, code, req.UserID, req.Purpose, id),
		ExpiresAt:   now.Add(req.TTL),
		MaxAttempts: DefaultMaxAttempts,
		SendCount:   1,
		LastSentAt:  &sentAt,
		IP:          req.Meta.IP,
		UserAgent:   req.Meta.UserAgent,
		CreatedAt:   now,
	}
	if err := e.repo.Create(ctx, row); err != nil {
		return IssueResult{}, fmt.Errorf("otp: create: %w", err)
	}
	return IssueResult{Sent: true, Code: code, OTPID: id, ExpiresAt: row.ExpiresAt}, nil
}

// Verify checks code against the active challenge for the pair. It returns false for
// every kind of failure (none issued, expired, exhausted, wrong code, lost race) so
// callers cannot tell them apart. A wrong code counts against the attempt limit.
func (e *Engine) Verify(ctx context.Context, userID, purpose, code string) (bool, error) {
	if e.pepper == "" {
		return false, ErrPepperMissing
	}
	now := e.now().UTC()

	active, err := e.repo.FindActive(ctx, userID, purpose, now)
	if err != nil {
		return false, fmt.Errorf("otp: find active: %w", err)
	}
	if active == nil {
		return false, nil
	}

	expected := hashCode(e.pepper, code, userID, purpose, active.ID)
	if !security.ConstantTimeEqualHex(expected, active.CodeHash) {
		if err := e.repo.IncrementAttempts(ctx, active.ID); err != nil {
			return false, fmt.Errorf("otp: increment attempts: %w", err)
		}
		return false, nil
	}

	ok, err := e.repo.Consume(ctx, active.ID, now)
	if err != nil {
		return false, fmt.Errorf("otp: consume: %w", err)
	}
	return ok, nil
}

// Invalidate consumes a specific code, e.g. one that could not be delivered.
func (e *Engine) Invalidate(ctx context.Context, otpID string) error {
	return e.repo.Invalidate(ctx, otpID, e.now().UTC())
}

// PruneExpired deletes codes that expired before the cutoff.
func (e *Engine) PruneExpired(ctx context.Context, before time.Time) (int64, error) {
	return e.repo.DeleteExpiredBefore(ctx, before)
}
