package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"adhoc-admin/backend/internal/db"
	"adhoc-admin/backend/internal/logger"
	"adhoc-admin/backend/internal/platform/apperr"
	policyengine "adhoc-admin/backend/internal/policy/engine"
	"adhoc-admin/backend/internal/user/domain"
)

// MinPasswordLength applies to passwords set through the admin API and CLI.
const MinPasswordLength = 12

// Sentinel errors for operator paths (CLI); the HTTP paths return apperr values.
var (
	ErrEmailExists  = errors.New("email already exists")
	ErrUserNotFound = errors.New("user not found")
	ErrWeakPassword = errors.New("password must be at least 12 characters")
)

// UserRepo is the persistence needed by the service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*domain.AdminUser, error)
	GetByEmail(ctx context.Context, email string) (*domain.AdminUser, error)
	List(ctx context.Context) ([]*domain.AdminUser, error)
	Create(ctx context.Context, u *domain.AdminUser) error
	UpsertSuperAdmin(ctx context.Context, u *domain.AdminUser) (*domain.AdminUser, error)
	UpsertAdmin(ctx context.Context, u *domain.AdminUser) (*domain.AdminUser, error)
	SetPasswordHash(ctx context.Context, id, hash string) error
	SetRole(ctx context.Context, id string, role domain.Role) error
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) (bool, error)
}

// PasswordHasher hashes and verifies admin passwords.
type PasswordHasher interface {
	Hash(password []byte) (string, error)
	Compare(encoded string, password []byte) error
}

// SessionRevoker ends every session of a user.
type SessionRevoker interface {
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
}

// Actor is the signed-in admin performing a management action.
type Actor struct {
	ID   string
	Role domain.Role
}

// UserService manages admin accounts. HTTP-facing methods are authorized through the policy evaluator;
// operator methods (Upsert, SetRole, SetActive, EnsureSuperAdmin) are not.
type UserService struct {
	repo     UserRepo
	hasher   PasswordHasher
	sessions SessionRevoker
	policy   policyengine.Evaluator
	log      *zap.Logger
	now      func() time.Time
}

// NewUserService returns a UserService. sessions may be nil (CLI without a session store).
func NewUserService(repo UserRepo, hasher PasswordHasher, sessions SessionRevoker, policy policyengine.Evaluator, log *zap.Logger) *UserService {
	return &UserService{
		repo:     repo,
		hasher:   hasher,
		sessions: sessions,
		policy:   policy,
		log:      logger.OrNop(log),
		now:      time.Now,
	}
}

// List returns every admin account, super admins first.
func (s *UserService) List(ctx context.Context, actor Actor) ([]*domain.AdminUser, error) {
	if err := s.authorize(ctx, actor, policyengine.ActionList, nil); err != nil {
		return nil, err
	}
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, storeError("Failed to load admins", err)
	}
	return users, nil
}

// Create adds an active, MFA-enabled ADMIN account.
func (s *UserService) Create(ctx context.Context, actor Actor, email, password string) (*domain.AdminUser, error) {
	if err := s.authorize(ctx, actor, policyengine.ActionCreate, nil); err != nil {
		return nil, err
	}
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.Validation("Email and password are required")
	}
	if len(password) < MinPasswordLength {
		return nil, apperr.Validation("Password must be at least 12 characters")
	}
	hash, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, apperr.Internal("Failed to create admin", err)
	}
	now := s.now().UTC()
	u := &domain.AdminUser{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		IsActive:     true,
		MFAEnabled:   true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := u.Validate(); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apperr.Conflict("Email already exists")
		}
		return nil, storeError("Failed to create admin", err)
	}
	s.log.Info("admin created", zap.String("user_id", u.ID), zap.String("email", u.Email), zap.String("by", actor.ID))
	return u, nil
}

// ResetPassword replaces the target's password and ends the target's sessions.
func (s *UserService) ResetPassword(ctx context.Context, actor Actor, id, password string) error {
	if strings.TrimSpace(id) == "" || password == "" {
		return apperr.Validation("Id and password are required")
	}
	if len(password) < MinPasswordLength {
		return apperr.Validation("Password must be at least 12 characters")
	}
	target, err := s.target(ctx, actor, policyengine.ActionResetPassword, id)
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return apperr.Internal("Failed to reset password", err)
	}
	if err := s.repo.SetPasswordHash(ctx, target.ID, hash); err != nil {
		return storeError("Failed to reset password", err)
	}
	s.revokeSessions(ctx, target.ID)
	s.log.Info("admin password reset", zap.String("user_id", target.ID), zap.String("by", actor.ID))
	return nil
}

// Delete removes a regular admin. Super admins and the actor's own account are refused by policy.
func (s *UserService) Delete(ctx context.Context, actor Actor, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperr.Validation("Id is required")
	}
	target, err := s.target(ctx, actor, policyengine.ActionDelete, id)
	if err != nil {
		return err
	}
	ok, err := s.repo.Delete(ctx, target.ID)
	if err != nil {
		return storeError("Failed to delete admin", err)
	}
	if !ok {
		return apperr.NotFound("User not found")
	}
	s.log.Info("admin deleted", zap.String("user_id", target.ID), zap.String("by", actor.ID))
	return nil
}

// EnsureSuperAdmin makes the configured bootstrap account exist as an active super admin with the
// configured password. changed is false when the stored account already matched and nothing was written.
func (s *UserService) EnsureSuperAdmin(ctx context.Context, email, password string) (u *domain.AdminUser, changed bool, err error) {
	email = domain.NormalizeEmail(email)
	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, false, err
	}
	if existing != nil && existing.IsSuperAdmin() && existing.CanSignIn() &&
		s.hasher.Compare(existing.PasswordHash, []byte(password)) == nil {
		return existing, false, nil
	}
	hash, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, false, err
	}
	now := s.now().UTC()
	u, err = s.repo.UpsertSuperAdmin(ctx, &domain.AdminUser{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, false, err
	}
	s.log.Info("super admin bootstrapped", zap.String("user_id", u.ID), zap.String("email", u.Email))
	return u, true, nil
}

// Upsert creates or updates an account by email as active and MFA-enabled. An existing account keeps its role.
func (s *UserService) Upsert(ctx context.Context, email, password string, role domain.Role) (*domain.AdminUser, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, errors.New("email is required")
	}
	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}
	if role == "" {
		role = domain.RoleAdmin
	}
	if _, err := domain.ParseRole(string(role)); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	return s.repo.UpsertAdmin(ctx, &domain.AdminUser{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		UpdatedAt:    s.now().UTC(),
	})
}

// SetRole changes the role of the account with the given email.
func (s *UserService) SetRole(ctx context.Context, email string, role domain.Role) (*domain.AdminUser, error) {
	u, err := s.byEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetRole(ctx, u.ID, role); err != nil {
		return nil, err
	}
	u.Role = role
	return u, nil
}

// SetActive activates or deactivates the account with the given email. Deactivation ends its sessions.
func (s *UserService) SetActive(ctx context.Context, email string, active bool) (*domain.AdminUser, error) {
	u, err := s.byEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetActive(ctx, u.ID, active); err != nil {
		return nil, err
	}
	u.IsActive = active
	if !active {
		s.revokeSessions(ctx, u.ID)
	}
	return u, nil
}

func (s *UserService) byEmail(ctx context.Context, email string) (*domain.AdminUser, error) {
	u, err := s.repo.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// target loads the user with id and authorizes action against it.
func (s *UserService) target(ctx context.Context, actor Actor, action policyengine.Action, id string) (*domain.AdminUser, error) {
	if err := s.authorize(ctx, actor, policyengine.ActionList, nil); err != nil {
		return nil, err
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("Failed to load admin", err)
	}
	if u == nil {
		return nil, apperr.NotFound("User not found")
	}
	if err := s.authorize(ctx, actor, action, &policyengine.Subject{ID: u.ID, Role: string(u.Role)}); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserService) authorize(ctx context.Context, actor Actor, action policyengine.Action, target *policyengine.Subject) error {
	if s.policy == nil {
		return apperr.Configuration("Authorization policy is not configured")
	}
	d, err := s.policy.Authorize(ctx, policyengine.Input{
		Actor:  policyengine.Subject{ID: actor.ID, Role: string(actor.Role)},
		Action: action,
		Target: target,
	})
	if err != nil {
		return apperr.Internal("Server error", err)
	}
	if !d.Allow {
		return apperr.Authorization(denialMessage(d.Reason))
	}
	return nil
}

func denialMessage(reason string) string {
	switch reason {
	case "cannot modify a super admin":
		return "Super admin accounts cannot be modified"
	case "cannot modify your own account":
		return "You cannot modify your own account"
	default:
		return "Forbidden"
	}
}

func (s *UserService) revokeSessions(ctx context.Context, userID string) {
	if s.sessions == nil {
		return
	}
	if _, err := s.sessions.RevokeAllForUser(ctx, userID); err != nil {
		s.log.Warn("revoke sessions failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func storeError(msg string, err error) error {
	if db.IsUnavailable(err) {
		return apperr.Unavailable("Database unavailable", err)
	}
	return apperr.Internal(msg, err)
}
