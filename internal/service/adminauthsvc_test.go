package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"

	"Verdantwebserver/internal/auth"
	"Verdantwebserver/internal/domain"
)

type stubAdminsStore struct {
	t *testing.T

	createAdminFunc         func(context.Context, domain.Admin, string) (domain.Admin, error)
	getAdminByIDFunc        func(context.Context, string) (domain.Admin, error)
	getByIDWithPasswordFunc func(context.Context, string) (domain.AdminWithPassword, error)
	getAdminByLoginFunc     func(context.Context, string) (domain.AdminWithPassword, error)
	getByResetTokenFunc     func(context.Context, string) (domain.AdminWithPassword, error)
	setFailedLoginFunc      func(context.Context, string, int, *time.Time) error
	recordLoginFunc         func(context.Context, string, time.Time, domain.Session, domain.Activity) error
	setPasswordHashFunc     func(context.Context, string, string, domain.Activity) error
	setResetTokenFunc       func(context.Context, string, string, time.Time) error
	clearResetTokenFunc     func(context.Context, string) error
	appendActivityFunc      func(context.Context, domain.Activity) error
	listActivityFunc        func(context.Context, string) ([]domain.Activity, error)
	listSessionsFunc        func(context.Context, string) ([]domain.Session, error)
	touchSessionFunc        func(context.Context, string, string, time.Time) error
	terminateSessionFunc    func(context.Context, string, string, time.Time, domain.Activity) (bool, error)
	getTwoFactorSecretFunc  func(context.Context, string) (string, error)
	setTwoFactorFunc        func(context.Context, string, string, bool, domain.Activity) error
	listAdminsFunc          func(context.Context) ([]domain.Admin, error)
	setAdminActiveFunc      func(context.Context, string, bool, domain.Activity) error
}

func (s *stubAdminsStore) CreateAdmin(ctx context.Context, admin domain.Admin, passwordHash string) (domain.Admin, error) {
	if s.createAdminFunc != nil {
		return s.createAdminFunc(ctx, admin, passwordHash)
	}
	s.t.Fatalf("CreateAdmin called unexpectedly")
	return domain.Admin{}, errors.New("unexpected call")
}

func (s *stubAdminsStore) GetAdminByID(ctx context.Context, id string) (domain.Admin, error) {
	if s.getAdminByIDFunc != nil {
		return s.getAdminByIDFunc(ctx, id)
	}
	s.t.Fatalf("GetAdminByID called unexpectedly")
	return domain.Admin{}, errors.New("unexpected call")
}

func (s *stubAdminsStore) GetAdminByIDWithPassword(ctx context.Context, id string) (domain.AdminWithPassword, error) {
	if s.getByIDWithPasswordFunc != nil {
		return s.getByIDWithPasswordFunc(ctx, id)
	}
	s.t.Fatalf("GetAdminByIDWithPassword called unexpectedly")
	return domain.AdminWithPassword{}, errors.New("unexpected call")
}

func (s *stubAdminsStore) GetAdminByLogin(ctx context.Context, login string) (domain.AdminWithPassword, error) {
	if s.getAdminByLoginFunc != nil {
		return s.getAdminByLoginFunc(ctx, login)
	}
	s.t.Fatalf("GetAdminByLogin called unexpectedly")
	return domain.AdminWithPassword{}, errors.New("unexpected call")
}

func (s *stubAdminsStore) GetAdminByResetTokenHash(ctx context.Context, tokenHash string) (domain.AdminWithPassword, error) {
	if s.getByResetTokenFunc != nil {
		return s.getByResetTokenFunc(ctx, tokenHash)
	}
	s.t.Fatalf("GetAdminByResetTokenHash called unexpectedly")
	return domain.AdminWithPassword{}, errors.New("unexpected call")
}

func (s *stubAdminsStore) SetFailedLogin(ctx context.Context, adminID string, count int, lockedUntil *time.Time) error {
	if s.setFailedLoginFunc != nil {
		return s.setFailedLoginFunc(ctx, adminID, count, lockedUntil)
	}
	s.t.Fatalf("SetFailedLogin called unexpectedly")
	return errors.New("unexpected call")
}

func (s *stubAdminsStore) RecordLogin(ctx context.Context, adminID string, when time.Time, sess domain.Session, act domain.Activity) error {
	if s.recordLoginFunc != nil {
		return s.recordLoginFunc(ctx, adminID, when, sess, act)
	}
	s.t.Fatalf("RecordLogin called unexpectedly")
	return errors.New("unexpected call")
}

func (s *stubAdminsStore) SetPasswordHash(ctx context.Context, adminID, passwordHash string, act domain.Activity) error {
	if s.setPasswordHashFunc != nil {
		return s.setPasswordHashFunc(ctx, adminID, passwordHash, act)
	}
	s.t.Fatalf("SetPasswordHash called unexpectedly")
	return errors.New("unexpected call")
}

func (s *stubAdminsStore) SetResetToken(ctx context.Context, adminID, tokenHash string, expiresAt time.Time) error {
	if s.setResetTokenFunc != nil {
		return s.setResetTokenFunc(ctx, adminID, tokenHash, expiresAt)
	}
	s.t.Fatalf("SetResetToken called unexpectedly")
	return errors.New("unexpected call")
}

func (s *stubAdminsStore) ClearResetToken(ctx context.Context, adminID string) error {
	if s.clearResetTokenFunc != nil {
		return s.clearResetTokenFunc(ctx, adminID)
	}
	s.t.Fatalf("ClearResetToken called unexpectedly")
	return errors.New("unexpected call")
}

func (s *stubAdminsStore) AppendActivity(ctx context.Context, act domain.Activity) error {
	if s.appendActivityFunc != nil {
		return s.appendActivityFunc(ctx, act)
	}
	s.t.Fatalf("AppendActivity called unexpectedly")
	return errors.New("unexpected call")
}

func (s *stubAdminsStore) ListActivity(ctx context.Context, adminID string) ([]domain.Activity, error) {
	if s.listActivityFunc != nil {
		return s.listActivityFunc(ctx, adminID)
	}
	s.t.Fatalf("ListActivity called unexpectedly")
	return nil, errors.New("unexpected call")
}

func (s *stubAdminsStore) ListSessions(ctx context.Context, adminID string) ([]domain.Session, error) {
	if s.listSessionsFunc != nil {
		return s.listSessionsFunc(ctx, adminID)
	}
	s.t.Fatalf("ListSessions called unexpectedly")
	return nil, errors.New("unexpected call")
}

func (s *stubAdminsStore) TouchSession(ctx context.Context, adminID, sessionID string, when time.Time) error {
	if s.touchSessionFunc != nil {
		return s.touchSessionFunc(ctx, adminID, sessionID, when)
	}
	s.t.Fatalf("TouchSession called unexpectedly")
	return errors.New("unexpected call")
}

func (s *stubAdminsStore) TerminateSession(ctx context.Context, adminID, sessionID string, when time.Time, act domain.Activity) (bool, error) {
	if s.terminateSessionFunc != nil {
		return s.terminateSessionFunc(ctx, adminID, sessionID, when, act)
	}
	s.t.Fatalf("TerminateSession called unexpectedly")
	return false, errors.New("unexpected call")
}

func (s *stubAdminsStore) GetTwoFactorSecret(ctx context.Context, adminID string) (string, error) {
	if s.getTwoFactorSecretFunc != nil {
		return s.getTwoFactorSecretFunc(ctx, adminID)
	}
	s.t.Fatalf("GetTwoFactorSecret called unexpectedly")
	return "", errors.New("unexpected call")
}

func (s *stubAdminsStore) SetTwoFactor(ctx context.Context, adminID, secret string, enabled bool, act domain.Activity) error {
	if s.setTwoFactorFunc != nil {
		return s.setTwoFactorFunc(ctx, adminID, secret, enabled, act)
	}
	s.t.Fatalf("SetTwoFactor called unexpectedly")
	return errors.New("unexpected call")
}

func (s *stubAdminsStore) ListAdmins(ctx context.Context) ([]domain.Admin, error) {
	if s.listAdminsFunc != nil {
		return s.listAdminsFunc(ctx)
	}
	s.t.Fatalf("ListAdmins called unexpectedly")
	return nil, errors.New("unexpected call")
}

func (s *stubAdminsStore) SetAdminActive(ctx context.Context, adminID string, active bool, act domain.Activity) error {
	if s.setAdminActiveFunc != nil {
		return s.setAdminActiveFunc(ctx, adminID, active, act)
	}
	s.t.Fatalf("SetAdminActive called unexpectedly")
	return errors.New("unexpected call")
}

func TestNormalizeLogin(t *testing.T) {
	cases := map[string]string{
		" Clerk@Example.COM ": "clerk@example.com",
		"admin001":            "ADMIN001",
		" adm-7 ":             "ADM-7",
	}
	for in, want := range cases {
		if got := NormalizeLogin(in); got != want {
			t.Fatalf("NormalizeLogin(%q): got %q, want %q", in, got, want)
		}
	}
}

func TestAdminAuthServiceLoginAppendsSession(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	hash := mustHash(t, "hunter2hunter2")

	var gotSess domain.Session
	var gotAct domain.Activity
	admins := &stubAdminsStore{
		t: t,
		getAdminByLoginFunc: func(_ context.Context, login string) (domain.AdminWithPassword, error) {
			if login != "ADMIN001" {
				t.Fatalf("unexpected login lookup: %s", login)
			}
			return domain.AdminWithPassword{
				Admin:        domain.Admin{ID: "admin-1", AdminID: "ADMIN001", IsActive: true},
				PasswordHash: hash,
			}, nil
		},
		recordLoginFunc: func(_ context.Context, adminID string, when time.Time, sess domain.Session, act domain.Activity) error {
			if adminID != "admin-1" || !when.Equal(now) {
				t.Fatalf("unexpected RecordLogin: %s %s", adminID, when)
			}
			gotSess, gotAct = sess, act
			return nil
		},
	}

	svc := &AdminAuthService{
		Admins:  admins,
		Tokens:  testIssuer(),
		Lockout: auth.DefaultLockoutPolicy(),
		Now:     func() time.Time { return now },
	}

	rc := RequestContext{SessionID: "sess-abc", IP: "1.2.3.4", UserAgent: "unit-test"}
	a, token, err := svc.Login(context.Background(), "admin001", "hunter2hunter2", "", rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID != "admin-1" || token == "" {
		t.Fatalf("unexpected login result: %+v %q", a, token)
	}

	if gotSess.SessionID != "sess-abc" || !gotSess.IsActive {
		t.Fatalf("unexpected session: %+v", gotSess)
	}
	if gotSess.IP != "1.2.3.4" || gotSess.UserAgent != "unit-test" {
		t.Fatalf("unexpected session client info: %+v", gotSess)
	}
	if gotAct.Action != domain.ActivityLogin || gotAct.AdminID != "admin-1" {
		t.Fatalf("unexpected activity: %+v", gotAct)
	}
}

func TestAdminAuthServiceLoginGeneratesSessionID(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	hash := mustHash(t, "hunter2hunter2")

	var gotSess domain.Session
	admins := &stubAdminsStore{
		t: t,
		getAdminByLoginFunc: func(_ context.Context, _ string) (domain.AdminWithPassword, error) {
			return domain.AdminWithPassword{
				Admin:        domain.Admin{ID: "admin-1", IsActive: true},
				PasswordHash: hash,
			}, nil
		},
		recordLoginFunc: func(_ context.Context, _ string, _ time.Time, sess domain.Session, _ domain.Activity) error {
			gotSess = sess
			return nil
		},
	}

	svc := &AdminAuthService{
		Admins:  admins,
		Tokens:  testIssuer(),
		Lockout: auth.DefaultLockoutPolicy(),
		Now:     func() time.Time { return now },
	}

	// No client session id: the login still gets its own session record.
	if _, _, err := svc.Login(context.Background(), "ADMIN001", "hunter2hunter2", "", RequestContext{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotSess.SessionID == "" {
		t.Fatalf("expected a generated session id")
	}
}

func TestAdminAuthServiceLoginTwoFactor(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	hash := mustHash(t, "hunter2hunter2")
	const secret = "JBSWY3DPEHPK3PXP"

	admins := &stubAdminsStore{
		t: t,
		getAdminByLoginFunc: func(_ context.Context, _ string) (domain.AdminWithPassword, error) {
			return domain.AdminWithPassword{
				Admin:        domain.Admin{ID: "admin-1", IsActive: true, TwoFactorEnabled: true},
				PasswordHash: hash,
			}, nil
		},
		getTwoFactorSecretFunc: func(_ context.Context, _ string) (string, error) {
			return secret, nil
		},
		recordLoginFunc: func(_ context.Context, _ string, _ time.Time, _ domain.Session, _ domain.Activity) error {
			return nil
		},
	}

	svc := &AdminAuthService{
		Admins:  admins,
		Tokens:  testIssuer(),
		Lockout: auth.DefaultLockoutPolicy(),
		Now:     func() time.Time { return now },
	}

	_, _, err := svc.Login(context.Background(), "ADMIN001", "hunter2hunter2", "", RequestContext{})
	if !errors.Is(err, domain.ErrTwoFactorRequired) {
		t.Fatalf("expected ErrTwoFactorRequired, got %v", err)
	}

	// Wrong-length codes can never validate.
	_, _, err = svc.Login(context.Background(), "ADMIN001", "hunter2hunter2", "12345", RequestContext{})
	if !errors.Is(err, domain.ErrTwoFactorInvalid) {
		t.Fatalf("expected ErrTwoFactorInvalid, got %v", err)
	}

	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "ADMIN001", "hunter2hunter2", code, RequestContext{}); err != nil {
		t.Fatalf("unexpected error with valid code: %v", err)
	}
}

func TestAdminAuthServiceLoginLockout(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	hash := mustHash(t, "hunter2hunter2")

	var gotCount int
	var gotLocked *time.Time
	admins := &stubAdminsStore{
		t: t,
		getAdminByLoginFunc: func(_ context.Context, _ string) (domain.AdminWithPassword, error) {
			return domain.AdminWithPassword{
				Admin:        domain.Admin{ID: "admin-1", IsActive: true, FailedLoginCount: 4},
				PasswordHash: hash,
			}, nil
		},
		setFailedLoginFunc: func(_ context.Context, _ string, count int, lockedUntil *time.Time) error {
			gotCount, gotLocked = count, lockedUntil
			return nil
		},
	}

	svc := &AdminAuthService{
		Admins:  admins,
		Tokens:  testIssuer(),
		Lockout: auth.DefaultLockoutPolicy(),
		Now:     func() time.Time { return now },
	}

	_, _, err := svc.Login(context.Background(), "ADMIN001", "wrong", "", RequestContext{})
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if gotCount != 0 || gotLocked == nil || !gotLocked.Equal(now.Add(2*time.Hour)) {
		t.Fatalf("expected lock at threshold, got count=%d locked=%v", gotCount, gotLocked)
	}
}

func TestAdminAuthServiceTerminateSession(t *testing.T) {
	admins := &stubAdminsStore{
		t: t,
		terminateSessionFunc: func(_ context.Context, adminID, sessionID string, _ time.Time, act domain.Activity) (bool, error) {
			if adminID != "admin-1" {
				t.Fatalf("unexpected admin id: %s", adminID)
			}
			if act.Action != domain.ActivitySessionTerminate {
				t.Fatalf("unexpected activity action: %s", act.Action)
			}
			return sessionID == "sess-known", nil
		},
	}

	svc := &AdminAuthService{Admins: admins, Tokens: testIssuer()}

	if err := svc.TerminateSession(context.Background(), "admin-1", "sess-known", RequestContext{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := svc.TerminateSession(context.Background(), "admin-1", "sess-unknown", RequestContext{})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAdminAuthServicePrincipalTouchesSession(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	touched := ""
	admins := &stubAdminsStore{
		t: t,
		getAdminByIDFunc: func(_ context.Context, id string) (domain.Admin, error) {
			return domain.Admin{ID: id, IsActive: true}, nil
		},
		touchSessionFunc: func(_ context.Context, _, sessionID string, _ time.Time) error {
			touched = sessionID
			return errors.New("db busy") // the bump is best-effort
		},
	}

	svc := &AdminAuthService{Admins: admins, Tokens: testIssuer(), Now: func() time.Time { return now }}

	a, err := svc.Principal(context.Background(), "admin-1", "sess-abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID != "admin-1" || touched != "sess-abc" {
		t.Fatalf("unexpected principal result: %+v touched=%q", a, touched)
	}

	// Without a session header nothing is touched.
	touched = ""
	if _, err := svc.Principal(context.Background(), "admin-1", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if touched != "" {
		t.Fatalf("expected no touch without a session id")
	}
}

func TestAdminAuthServiceResetPasswordDeliveryFailure(t *testing.T) {
	cleared := false
	admins := &stubAdminsStore{
		t: t,
		getAdminByLoginFunc: func(_ context.Context, _ string) (domain.AdminWithPassword, error) {
			return domain.AdminWithPassword{
				Admin: domain.Admin{ID: "admin-1", Email: "clerk@example.com", IsActive: true},
			}, nil
		},
		setResetTokenFunc: func(_ context.Context, _, _ string, _ time.Time) error { return nil },
		clearResetTokenFunc: func(_ context.Context, adminID string) error {
			cleared = adminID == "admin-1"
			return nil
		},
	}
	mail := &stubMailer{
		resetFunc: func(_, _ string) error { return errors.New("smtp: timeout") },
	}

	svc := &AdminAuthService{Admins: admins, Tokens: testIssuer(), Mail: mail}

	err := svc.RequestPasswordReset(context.Background(), "ADMIN001", "https://shop.example.com/admin/reset", RequestContext{})
	if !errors.Is(err, domain.ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}
	if !cleared {
		t.Fatalf("expected the stored token pair to be cleared")
	}
}

func TestAdminAuthServiceSetAdminActive(t *testing.T) {
	var gotTarget string
	var gotActive bool
	var gotAct domain.Activity
	admins := &stubAdminsStore{
		t: t,
		getAdminByIDFunc: func(_ context.Context, id string) (domain.Admin, error) {
			if id == "missing" {
				return domain.Admin{}, domain.ErrNotFound
			}
			return domain.Admin{ID: id, IsActive: true}, nil
		},
		setAdminActiveFunc: func(_ context.Context, adminID string, active bool, act domain.Activity) error {
			gotTarget, gotActive, gotAct = adminID, active, act
			return nil
		},
	}

	svc := &AdminAuthService{Admins: admins, Tokens: testIssuer()}

	if err := svc.SetAdminActive(context.Background(), "actor-1", "target-1", false, RequestContext{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotTarget != "target-1" || gotActive {
		t.Fatalf("unexpected write: %s %v", gotTarget, gotActive)
	}
	// The audit entry lands on the actor, not the target.
	if gotAct.AdminID != "actor-1" || gotAct.Action != domain.ActivityAccountDeactivate {
		t.Fatalf("unexpected activity: %+v", gotAct)
	}

	err := svc.SetAdminActive(context.Background(), "actor-1", "missing", false, RequestContext{})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
