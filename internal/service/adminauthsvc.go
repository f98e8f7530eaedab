package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"

	"Verdantwebserver/internal/auth"
	"Verdantwebserver/internal/domain"
)

type AdminsStore interface {
	CreateAdmin(ctx context.Context, admin domain.Admin, passwordHash string) (domain.Admin, error)
	GetAdminByID(ctx context.Context, id string) (domain.Admin, error)
	GetAdminByIDWithPassword(ctx context.Context, id string) (domain.AdminWithPassword, error)
	// GetAdminByLogin resolves either the email or the uppercase admin id.
	GetAdminByLogin(ctx context.Context, login string) (domain.AdminWithPassword, error)
	GetAdminByResetTokenHash(ctx context.Context, tokenHash string) (domain.AdminWithPassword, error)
	SetFailedLogin(ctx context.Context, adminID string, count int, lockedUntil *time.Time) error
	// RecordLogin resets the failure counter, stamps the login time,
	// appends the session record, and writes the audit entry in one
	// transaction.
	RecordLogin(ctx context.Context, adminID string, when time.Time, sess domain.Session, act domain.Activity) error
	// SetPasswordHash replaces the hash, clears any pending reset token
	// pair, and writes the audit entry in one transaction.
	SetPasswordHash(ctx context.Context, adminID, passwordHash string, act domain.Activity) error
	SetResetToken(ctx context.Context, adminID, tokenHash string, expiresAt time.Time) error
	ClearResetToken(ctx context.Context, adminID string) error
	AppendActivity(ctx context.Context, act domain.Activity) error
	ListActivity(ctx context.Context, adminID string) ([]domain.Activity, error)
	ListSessions(ctx context.Context, adminID string) ([]domain.Session, error)
	// TouchSession bumps last_activity_at on a matching active session.
	TouchSession(ctx context.Context, adminID, sessionID string, when time.Time) error
	// TerminateSession deactivates a matching active session and writes
	// the audit entry together; it reports whether a session matched.
	TerminateSession(ctx context.Context, adminID, sessionID string, when time.Time, act domain.Activity) (bool, error)
	GetTwoFactorSecret(ctx context.Context, adminID string) (string, error)
	SetTwoFactor(ctx context.Context, adminID, secret string, enabled bool, act domain.Activity) error
	ListAdmins(ctx context.Context) ([]domain.Admin, error)
	// SetAdminActive flips the active flag and writes the audit entry
	// in one transaction.
	SetAdminActive(ctx context.Context, adminID string, active bool, act domain.Activity) error
}

// RequestContext is the client snapshot captured on security-relevant
// admin actions.
type RequestContext struct {
	SessionID string
	IP        string
	UserAgent string
}

// AdminAuthService drives the admin variant of the credential flow:
// same lockout and reset semantics as AuthService, plus per-login
// session records, an append-only activity log, and an optional TOTP
// second factor.
type AdminAuthService struct {
	Admins        AdminsStore
	Tokens        *auth.TokenIssuer
	Mail          Mailer
	Lockout       auth.LockoutPolicy
	ResetTokenTTL time.Duration
	TOTPIssuer    string
	Now           func() time.Time
}

func (s *AdminAuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *AdminAuthService) resetTTL() time.Duration {
	if s.ResetTokenTTL > 0 {
		return s.ResetTokenTTL
	}
	return 10 * time.Minute
}

// NormalizeLogin folds an admin login to its lookup form: emails are
// lowercased, admin ids upper-cased. Anything with an @ is an email.
func NormalizeLogin(login string) string {
	login = strings.TrimSpace(login)
	if strings.Contains(login, "@") {
		return strings.ToLower(login)
	}
	return strings.ToUpper(login)
}

func (s *AdminAuthService) Login(ctx context.Context, login, password, totpCode string, rc RequestContext) (domain.Admin, string, error) {
	now := s.now()

	a, err := s.Admins.GetAdminByLogin(ctx, NormalizeLogin(login))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Admin{}, "", domain.ErrInvalidCredentials
		}
		return domain.Admin{}, "", err
	}

	if domain.Locked(a.LockedUntil, now) {
		return domain.Admin{}, "", domain.ErrAccountLocked
	}

	ok, err := auth.VerifyPassword(a.PasswordHash, password)
	if err != nil {
		return domain.Admin{}, "", err
	}
	if !ok {
		count, lockedUntil := s.Lockout.OnFailure(a.FailedLoginCount, now)
		_ = s.Admins.SetFailedLogin(ctx, a.ID, count, lockedUntil)
		return domain.Admin{}, "", domain.ErrInvalidCredentials
	}

	if !a.IsActive {
		return domain.Admin{}, "", domain.ErrAccountDeactivated
	}

	if a.TwoFactorEnabled {
		if totpCode == "" {
			return domain.Admin{}, "", domain.ErrTwoFactorRequired
		}
		secret, err := s.Admins.GetTwoFactorSecret(ctx, a.ID)
		if err != nil {
			return domain.Admin{}, "", err
		}
		if !totp.Validate(totpCode, secret) {
			return domain.Admin{}, "", domain.ErrTwoFactorInvalid
		}
	}

	sessionID := strings.TrimSpace(rc.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	sess := domain.Session{
		ID:             uuid.NewString(),
		AdminID:        a.ID,
		SessionID:      sessionID,
		IsActive:       true,
		IP:             rc.IP,
		UserAgent:      rc.UserAgent,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	act := s.activity(a.ID, domain.ActivityLogin, "auth", "logged in", rc, now)
	if err := s.Admins.RecordLogin(ctx, a.ID, now, sess, act); err != nil {
		return domain.Admin{}, "", err
	}

	token, err := s.Tokens.Issue(a.ID, domain.KindAdmin)
	if err != nil {
		return domain.Admin{}, "", err
	}

	a.FailedLoginCount = 0
	a.LastLoginAt = &now
	return a.Admin, token, nil
}

func (s *AdminAuthService) Logout(ctx context.Context, adminID string, rc RequestContext) error {
	now := s.now()
	if sid := strings.TrimSpace(rc.SessionID); sid != "" {
		act := s.activity(adminID, domain.ActivityLogout, "auth", "logged out", rc, now)
		if _, err := s.Admins.TerminateSession(ctx, adminID, sid, now, act); err != nil {
			return err
		}
		return nil
	}
	return s.Admins.AppendActivity(ctx, s.activity(adminID, domain.ActivityLogout, "auth", "logged out", rc, now))
}

// Principal re-fetches the token holder, applies account-state checks,
// and opportunistically bumps the correlated session. The bump never
// fails the request.
func (s *AdminAuthService) Principal(ctx context.Context, adminID, sessionID string) (domain.Admin, error) {
	a, err := s.Admins.GetAdminByID(ctx, adminID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Admin{}, domain.ErrAccountGone
		}
		return domain.Admin{}, err
	}
	if !a.IsActive {
		return domain.Admin{}, domain.ErrAccountDeactivated
	}
	if domain.Locked(a.LockedUntil, s.now()) {
		return domain.Admin{}, domain.ErrAccountLocked
	}

	if sid := strings.TrimSpace(sessionID); sid != "" {
		_ = s.Admins.TouchSession(ctx, adminID, sid, s.now())
	}
	return a, nil
}

func (s *AdminAuthService) Sessions(ctx context.Context, adminID string) ([]domain.Session, error) {
	return s.Admins.ListSessions(ctx, adminID)
}

// TerminateSession deactivates one of the caller's own sessions by its
// correlation id. Unknown ids report ErrNotFound.
func (s *AdminAuthService) TerminateSession(ctx context.Context, adminID, sessionID string, rc RequestContext) error {
	now := s.now()
	act := s.activity(adminID, domain.ActivitySessionTerminate, "security",
		fmt.Sprintf("terminated session %s", sessionID), rc, now)
	matched, err := s.Admins.TerminateSession(ctx, adminID, sessionID, now, act)
	if err != nil {
		return err
	}
	if !matched {
		return domain.ErrNotFound
	}
	return nil
}

func (s *AdminAuthService) Activity(ctx context.Context, adminID string) ([]domain.Activity, error) {
	return s.Admins.ListActivity(ctx, adminID)
}

func (s *AdminAuthService) ChangePassword(ctx context.Context, adminID, currentPassword, newPassword string, rc RequestContext) (string, error) {
	a, err := s.Admins.GetAdminByIDWithPassword(ctx, adminID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrAccountGone
		}
		return "", err
	}

	ok, err := auth.VerifyPassword(a.PasswordHash, currentPassword)
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
	act := s.activity(adminID, domain.ActivityPasswordChange, "security", "changed password", rc, s.now())
	if err := s.Admins.SetPasswordHash(ctx, adminID, hash, act); err != nil {
		return "", err
	}

	return s.Tokens.Issue(adminID, domain.KindAdmin)
}

func (s *AdminAuthService) RequestPasswordReset(ctx context.Context, login, resetBaseURL string, rc RequestContext) error {
	a, err := s.Admins.GetAdminByLogin(ctx, NormalizeLogin(login))
	if err != nil {
		return err
	}
	if !a.IsActive {
		return domain.ErrNotFound
	}

	raw, tokenHash, err := newSecretToken()
	if err != nil {
		return err
	}
	now := s.now()
	if err := s.Admins.SetResetToken(ctx, a.ID, tokenHash, now.Add(s.resetTTL())); err != nil {
		return err
	}

	if err := s.Mail.SendPasswordReset(a.Email, tokenLink(resetBaseURL, raw)); err != nil {
		_ = s.Admins.ClearResetToken(ctx, a.ID)
		return domain.ErrDeliveryFailed
	}

	// The audit trail should note the request even though the primary
	// write already succeeded; failure here must not undo the reset.
	_ = s.Admins.AppendActivity(ctx, s.activity(a.ID, domain.ActivityResetRequest, "security", "requested password reset", rc, now))
	return nil
}

func (s *AdminAuthService) ResetPassword(ctx context.Context, rawToken, newPassword string, rc RequestContext) (domain.Admin, string, error) {
	a, err := s.Admins.GetAdminByResetTokenHash(ctx, hashSecretToken(rawToken))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Admin{}, "", domain.ErrResetTokenInvalid
		}
		return domain.Admin{}, "", err
	}
	if a.PasswordResetExpiresAt == nil || a.PasswordResetExpiresAt.Before(s.now()) {
		return domain.Admin{}, "", domain.ErrResetTokenInvalid
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return domain.Admin{}, "", err
	}
	act := s.activity(a.ID, domain.ActivityPasswordReset, "security", "reset password via email token", rc, s.now())
	if err := s.Admins.SetPasswordHash(ctx, a.ID, hash, act); err != nil {
		return domain.Admin{}, "", err
	}

	token, err := s.Tokens.Issue(a.ID, domain.KindAdmin)
	if err != nil {
		return domain.Admin{}, "", err
	}
	a.PasswordResetExpiresAt = nil
	return a.Admin, token, nil
}

// EnableTwoFactor provisions a TOTP secret in a pending state; the
// secret only counts once ActivateTwoFactor sees a valid code.
func (s *AdminAuthService) EnableTwoFactor(ctx context.Context, adminID string, rc RequestContext) (string, string, error) {
	a, err := s.Admins.GetAdminByID(ctx, adminID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", "", domain.ErrAccountGone
		}
		return "", "", err
	}

	issuer := s.TOTPIssuer
	if issuer == "" {
		issuer = "Verdant"
	}
	key, err := totp.Generate(totp.GenerateOpts{Issuer: issuer, AccountName: a.Email})
	if err != nil {
		return "", "", fmt.Errorf("generate totp key: %w", err)
	}

	act := s.activity(adminID, domain.ActivityTwoFactorEnable, "security", "provisioned two-factor secret", rc, s.now())
	if err := s.Admins.SetTwoFactor(ctx, adminID, key.Secret(), false, act); err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

func (s *AdminAuthService) ActivateTwoFactor(ctx context.Context, adminID, code string, rc RequestContext) error {
	secret, err := s.Admins.GetTwoFactorSecret(ctx, adminID)
	if err != nil {
		return err
	}
	if secret == "" || !totp.Validate(code, secret) {
		return domain.ErrTwoFactorInvalid
	}
	act := s.activity(adminID, domain.ActivityTwoFactorEnable, "security", "enabled two-factor authentication", rc, s.now())
	return s.Admins.SetTwoFactor(ctx, adminID, secret, true, act)
}

func (s *AdminAuthService) DisableTwoFactor(ctx context.Context, adminID, code string, rc RequestContext) error {
	secret, err := s.Admins.GetTwoFactorSecret(ctx, adminID)
	if err != nil {
		return err
	}
	if secret != "" && !totp.Validate(code, secret) {
		return domain.ErrTwoFactorInvalid
	}
	act := s.activity(adminID, domain.ActivityTwoFactorDisable, "security", "disabled two-factor authentication", rc, s.now())
	return s.Admins.SetTwoFactor(ctx, adminID, "", false, act)
}

func (s *AdminAuthService) ListAdmins(ctx context.Context) ([]domain.Admin, error) {
	return s.Admins.ListAdmins(ctx)
}

// SetAdminActive deactivates or reactivates another admin account. The
// audit entry lands on the actor, naming the target.
func (s *AdminAuthService) SetAdminActive(ctx context.Context, actorID, targetID string, active bool, rc RequestContext) error {
	if _, err := s.Admins.GetAdminByID(ctx, targetID); err != nil {
		return err
	}

	action, verb := domain.ActivityAccountDeactivate, "deactivated"
	if active {
		action, verb = domain.ActivityAccountReactivate, "reactivated"
	}
	act := s.activity(actorID, action, "security",
		fmt.Sprintf("%s admin account %s", verb, targetID), rc, s.now())
	return s.Admins.SetAdminActive(ctx, targetID, active, act)
}

func (s *AdminAuthService) activity(adminID string, action domain.ActivityAction, category, description string, rc RequestContext, when time.Time) domain.Activity {
	return domain.Activity{
		ID:          uuid.NewString(),
		AdminID:     adminID,
		Action:      action,
		Category:    category,
		Description: description,
		IP:          rc.IP,
		UserAgent:   rc.UserAgent,
		CreatedAt:   when,
	}
}
