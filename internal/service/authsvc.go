package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"Verdantwebserver/internal/auth"
	"Verdantwebserver/internal/domain"
)

type UsersStore interface {
	CreateUser(ctx context.Context, email, name, passwordHash, verifyTokenHash string) (domain.User, error)
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error)
	GetUserByIDWithPassword(ctx context.Context, id string) (domain.UserWithPassword, error)
	GetUserByResetTokenHash(ctx context.Context, tokenHash string) (domain.UserWithPassword, error)
	GetUserByVerifyTokenHash(ctx context.Context, tokenHash string) (domain.User, error)
	SetFailedLogin(ctx context.Context, userID string, count int, lockedUntil *time.Time) error
	RecordLogin(ctx context.Context, userID string, when time.Time) error
	// SetPasswordHash replaces the hash and clears any pending reset
	// token pair in the same write.
	SetPasswordHash(ctx context.Context, userID, passwordHash string) error
	SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	ClearResetToken(ctx context.Context, userID string) error
	MarkEmailVerified(ctx context.Context, userID string) error
}

// AuthService is the user-facing credential and token manager. Admin
// accounts go through AdminAuthService, which layers sessions, audit,
// and permissions on the same flow.
type AuthService struct {
	Users         UsersStore
	Tokens        *auth.TokenIssuer
	Mail          Mailer
	Lockout       auth.LockoutPolicy
	ResetTokenTTL time.Duration
	Now           func() time.Time
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *AuthService) resetTTL() time.Duration {
	if s.ResetTokenTTL > 0 {
		return s.ResetTokenTTL
	}
	return 10 * time.Minute
}

// Signup creates the account, stores an email-verification token hash,
// mails the verification link, and logs the new user straight in. A
// failed verification mail never rolls back the account.
func (s *AuthService) Signup(ctx context.Context, emailAddr, name, password, verifyBaseURL string) (domain.User, string, error) {
	emailAddr = strings.TrimSpace(strings.ToLower(emailAddr))
	name = strings.TrimSpace(name)

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", err
	}

	rawVerify, verifyHash, err := newSecretToken()
	if err != nil {
		return domain.User{}, "", err
	}

	u, err := s.Users.CreateUser(ctx, emailAddr, name, passwordHash, verifyHash)
	if err != nil {
		return domain.User{}, "", err
	}

	if s.Mail != nil {
		// Best effort: the account already exists, the client can ask
		// for the link again later.
		_ = s.Mail.SendEmailVerification(emailAddr, tokenLink(verifyBaseURL, rawVerify))
	}

	token, err := s.Tokens.Issue(u.ID, domain.KindUser)
	if err != nil {
		return domain.User{}, "", err
	}
	return u, token, nil
}

func (s *AuthService) Login(ctx context.Context, emailAddr, password string) (domain.User, string, error) {
	emailAddr = strings.TrimSpace(strings.ToLower(emailAddr))
	now := s.now()

	u, err := s.Users.GetUserByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, "", domain.ErrInvalidCredentials
		}
		return domain.User{}, "", err
	}

	if domain.Locked(u.LockedUntil, now) {
		return domain.User{}, "", domain.ErrAccountLocked
	}

	ok, err := auth.VerifyPassword(u.PasswordHash, password)
	if err != nil {
		return domain.User{}, "", err
	}
	if !ok {
		count, lockedUntil := s.Lockout.OnFailure(u.FailedLoginCount, now)
		_ = s.Users.SetFailedLogin(ctx, u.ID, count, lockedUntil)
		return domain.User{}, "", domain.ErrInvalidCredentials
	}

	// Deactivation is reported only after the password checks out, so a
	// wrong-password probe cannot tell a disabled account apart.
	if !u.IsActive {
		return domain.User{}, "", domain.ErrAccountDeactivated
	}

	if err := s.Users.RecordLogin(ctx, u.ID, now); err != nil {
		return domain.User{}, "", err
	}

	token, err := s.Tokens.Issue(u.ID, domain.KindUser)
	if err != nil {
		return domain.User{}, "", err
	}

	u.FailedLoginCount = 0
	u.LastLoginAt = &now
	return u.User, token, nil
}

// Principal re-fetches the token holder and applies the account-state
// checks that pure token verification cannot cover.
func (s *AuthService) Principal(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrAccountGone
		}
		return domain.User{}, err
	}
	if !u.IsActive {
		return domain.User{}, domain.ErrAccountDeactivated
	}
	if domain.Locked(u.LockedUntil, s.now()) {
		return domain.User{}, domain.ErrAccountLocked
	}
	return u, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) (string, error) {
	u, err := s.Users.GetUserByIDWithPassword(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrAccountGone
		}
		return "", err
	}

	ok, err := auth.VerifyPassword(u.PasswordHash, currentPassword)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrInvalidCredentials
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return "", err
	}
	if err := s.Users.SetPasswordHash(ctx, userID, hash); err != nil {
		return "", err
	}

	return s.Tokens.Issue(userID, domain.KindUser)
}

// RequestPasswordReset stores a reset-token hash with a short expiry and
// mails the plaintext secret. Delivery failure clears the stored pair so
// no pending reset the user never received is left behind.
func (s *AuthService) RequestPasswordReset(ctx context.Context, emailAddr, resetBaseURL string) error {
	emailAddr = strings.TrimSpace(strings.ToLower(emailAddr))

	u, err := s.Users.GetUserByEmail(ctx, emailAddr)
	if err != nil {
		return err
	}
	if !u.IsActive {
		return domain.ErrNotFound
	}

	raw, tokenHash, err := newSecretToken()
	if err != nil {
		return err
	}
	if err := s.Users.SetResetToken(ctx, u.ID, tokenHash, s.now().Add(s.resetTTL())); err != nil {
		return err
	}

	if err := s.Mail.SendPasswordReset(emailAddr, tokenLink(resetBaseURL, raw)); err != nil {
		_ = s.Users.ClearResetToken(ctx, u.ID)
		return domain.ErrDeliveryFailed
	}
	return nil
}

// ResetPassword consumes a reset token exactly once: the new password is
// hashed in and the token pair cleared in the same write, and a fresh
// bearer token is issued so reset doubles as login.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken, newPassword string) (domain.User, string, error) {
	u, err := s.Users.GetUserByResetTokenHash(ctx, hashSecretToken(rawToken))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, "", domain.ErrResetTokenInvalid
		}
		return domain.User{}, "", err
	}
	if u.PasswordResetExpiresAt == nil || u.PasswordResetExpiresAt.Before(s.now()) {
		return domain.User{}, "", domain.ErrResetTokenInvalid
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return domain.User{}, "", err
	}
	if err := s.Users.SetPasswordHash(ctx, u.ID, hash); err != nil {
		return domain.User{}, "", err
	}

	token, err := s.Tokens.Issue(u.ID, domain.KindUser)
	if err != nil {
		return domain.User{}, "", err
	}
	u.PasswordResetExpiresAt = nil
	return u.User, token, nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, rawToken string) error {
	u, err := s.Users.GetUserByVerifyTokenHash(ctx, hashSecretToken(rawToken))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrVerifyTokenInvalid
		}
		return err
	}
	return s.Users.MarkEmailVerified(ctx, u.ID)
}
