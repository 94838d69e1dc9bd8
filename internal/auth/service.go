package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/Evildoersudo/back-end/internal/infrastructure/config"
)

// Reset codes are six decimal digits and expire after ten minutes.
const (
	resetCodeSpace = 1_000_000
	resetCodeTTL   = 600 * time.Second
)

// Service implements account operations: login, registration, password
// reset and the bootstrap admin.
//
// Login is deliberately restricted to the configured admin account's
// username or email. Registration still creates full accounts so the
// dorm can hand out credentials later, but only the admin identity can
// sign in.
type Service struct {
	users UserRepository
	admin config.AdminConfig

	// now is injectable for tests.
	now func() time.Time
}

// NewService creates a Service over the given repository.
func NewService(users UserRepository, admin config.AdminConfig) *Service {
	return &Service{users: users, admin: admin, now: time.Now}
}

// SetClock overrides the wall clock. Tests only.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) adminUsername() string {
	if u := strings.TrimSpace(s.admin.Username); u != "" {
		return u
	}
	return "admin"
}

func (s *Service) adminEmail() string {
	if e := strings.ToLower(strings.TrimSpace(s.admin.Email)); e != "" {
		return e
	}
	return "admin@dorm.local"
}

// Login authenticates an account identifier and password. Identifiers
// other than the admin username or email fail with
// ErrInvalidCredentials without a database hit.
func (s *Service) Login(ctx context.Context, account, password string) (*User, error) {
	normalized := strings.TrimSpace(account)
	if normalized != s.adminUsername() && normalized != s.adminEmail() {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(ctx, s.adminUsername())
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !VerifyPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	user.UpdatedAt = s.now().Unix()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Register creates a new account. Every account gets the admin role;
// there is no lesser tier in this system.
func (s *Service) Register(ctx context.Context, username, email, password string) (*User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, ErrUsernameExists
	}
	taken, err := s.users.EmailTaken(ctx, email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailExists
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := s.now().Unix()
	user := &User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateResetCode issues a six-digit password reset code for the
// account and stores its hash with a ten-minute expiry. The plaintext
// code is returned for delivery to the user.
func (s *Service) CreateResetCode(ctx context.Context, account string) (*User, string, error) {
	user, err := s.users.FindByAccount(ctx, account)
	if err != nil {
		return nil, "", err
	}

	n, err := rand.Int(rand.Reader, big.NewInt(resetCodeSpace))
	if err != nil {
		return nil, "", fmt.Errorf("generating reset code: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64())

	hash, err := HashPassword(code)
	if err != nil {
		return nil, "", err
	}

	now := s.now()
	user.ResetCodeHash = hash
	user.ResetExpiresAt = now.Add(resetCodeTTL).Unix()
	user.UpdatedAt = now.Unix()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, "", err
	}
	return user, code, nil
}

// ResetPassword redeems a reset code and sets a new password. The code
// is single-use: redemption clears it.
func (s *Service) ResetPassword(ctx context.Context, account, code, newPassword string) error {
	user, err := s.users.FindByAccount(ctx, account)
	if err != nil {
		return ErrResetCodeInvalid
	}

	now := s.now().Unix()
	if user.ResetExpiresAt < now {
		return ErrResetCodeInvalid
	}
	if user.ResetCodeHash == "" || !VerifyPassword(code, user.ResetCodeHash) {
		return ErrResetCodeInvalid
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	user.PasswordHash = hash
	user.ResetCodeHash = ""
	user.ResetExpiresAt = 0
	user.UpdatedAt = now
	return s.users.Update(ctx, user)
}

// EnsureDefaultAdmin creates the configured admin account on first
// start, or re-syncs its email, password and role when the
// configuration changed.
func (s *Service) EnsureDefaultAdmin(ctx context.Context) error {
	username := s.adminUsername()
	email := s.adminEmail()
	password := s.admin.Password

	now := s.now().Unix()
	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		hash, err := HashPassword(password)
		if err != nil {
			return err
		}
		return s.users.Create(ctx, &User{
			Username:     username,
			Email:        email,
			PasswordHash: hash,
			Role:         RoleAdmin,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	if err != nil {
		return err
	}

	changed := false
	if user.Email != email {
		user.Email = email
		changed = true
	}
	if !VerifyPassword(password, user.PasswordHash) {
		hash, err := HashPassword(password)
		if err != nil {
			return err
		}
		user.PasswordHash = hash
		changed = true
	}
	if user.Role != RoleAdmin {
		user.Role = RoleAdmin
		changed = true
	}
	if !changed {
		return nil
	}
	user.UpdatedAt = now
	return s.users.Update(ctx, user)
}
