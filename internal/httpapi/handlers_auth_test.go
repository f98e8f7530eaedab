package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"Verdantwebserver/internal/auth"
	"Verdantwebserver/internal/domain"
	"Verdantwebserver/internal/service"
)

type stubUsersStore struct {
	t *testing.T

	createUserFunc              func(context.Context, string, string, string, string) (domain.User, error)
	getUserByIDFunc             func(context.Context, string) (domain.User, error)
	getUserByEmailFunc          func(context.Context, string) (domain.UserWithPassword, error)
	getUserByIDWithPasswordFunc func(context.Context, string) (domain.UserWithPassword, error)
	getUserByResetTokenFunc     func(context.Context, string) (domain.UserWithPassword, error)
	getUserByVerifyTokenFunc    func(context.Context, string) (domain.User, error)
	setFailedLoginFunc          func(context.Context, string, int, *time.Time) error
	recordLoginFunc             func(context.Context, string, time.Time) error
	setPasswordHashFunc         func(context.Context, string, string) error
	setResetTokenFunc           func(context.Context, string, string, time.Time) error
	clearResetTokenFunc         func(context.Context, string) error
	markEmailVerifiedFunc       func(context.Context, string) error
}

func (s *stubUsersStore) CreateUser(ctx context.Context, email, name, passwordHash, verifyTokenHash string) (domain.User, error) {
	if s.createUserFunc != nil {
		return s.createUserFunc(ctx, email, name, passwordHash, verifyTokenHash)
	}
	s.t.Fatalf("CreateUser called unexpectedly")
	return domain.User{}, errors.New("unexpected call")
}

func (s *stubUsersStore) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	if s.getUserByIDFunc != nil {
		return s.getUserByIDFunc(ctx, id)
	}
	s.t.Fatalf("GetUserByID called unexpectedly")
	return domain.User{}, errors.New("unexpected call")
}

func (s *stubUsersStore) GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error) {
	if s.getUserByEmailFunc != nil {
		return s.getUserByEmailFunc(ctx, email)
	}
	s.t.Fatalf("GetUserByEmail called unexpectedly")
	return domain.UserWithPassword{}, errors.New("unexpected call")
}

func (s *stubUsersStore) GetUserByIDWithPassword(ctx context.Context, id string) (domain.UserWithPassword, error) {
	if s.getUserByIDWithPasswordFunc != nil {
		return s.getUserByIDWithPasswordFunc(ctx, id)
	}
	s.t.Fatalf("GetUserByIDWithPassword called unexpectedly")
	return domain.UserWithPassword{}, errors.New("unexpected call")
}

func (s *stubUsersStore) GetUserByResetTokenHash(ctx context.Context, tokenHash string) (domain.UserWithPassword, error) {
	if s.getUserByResetTokenFunc != nil {
		return s.getUserByResetTokenFunc(ctx, tokenHash)
	}
	s.t.Fatalf("GetUserByResetTokenHash called unexpectedly")
	return domain.UserWithPassword{}, errors.New("unexpected call")
}

func (s *stubUsersStore) GetUserByVerifyTokenHash(ctx context.Context, tokenHash string) (domain.User, error) {
	if s.getUserByVerifyTokenFunc != nil {
		return s.getUserByVerifyTokenFunc(ctx, tokenHash)
	}
	s.t.Fatalf("GetUserByVerifyTokenHash called unexpectedly")
	return domain.User{}, errors.New("unexpected call")
}

func (s *stubUsersStore) SetFailedLogin(ctx context.Context, userID string, count int, lockedUntil *time.Time) error {
	if s.setFailedLoginFunc != nil {
		return s.setFailedLoginFunc(ctx, userID, count, lockedUntil)
	}
	s.t.Fatalf("SetFailedLogin called unexpectedly")
	return errors.New("unexpected call")
}

func (s *stubUsersStore) RecordLogin(ctx context.Context, userID string, when time.Time) error {
	if s.recordLoginFunc != nil {
		return s.recordLoginFunc(ctx, userID, when)
	}
	s.t.Fatalf("RecordLogin called unexpectedly")
	return errors.New("unexpected call")
}

func (s *stubUsersStore) SetPasswordHash(ctx context.Context, userID, passwordHash string) error {
	if s.setPasswordHashFunc != nil {
		return s.setPasswordHashFunc(ctx, userID, passwordHash)
	}
	s.t.Fatalf("SetPasswordHash called unexpectedly")
	return errors.New("unexpected call")
}

func (s *stubUsersStore) SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	if s.setResetTokenFunc != nil {
		return s.setResetTokenFunc(ctx, userID, tokenHash, expiresAt)
	}
	s.t.Fatalf("SetResetToken called unexpectedly")
	return errors.New("unexpected call")
}

func (s *stubUsersStore) ClearResetToken(ctx context.Context, userID string) error {
	if s.clearResetTokenFunc != nil {
		return s.clearResetTokenFunc(ctx, userID)
	}
	s.t.Fatalf("ClearResetToken called unexpectedly")
	return errors.New("unexpected call")
}

func (s *stubUsersStore) MarkEmailVerified(ctx context.Context, userID string) error {
	if s.markEmailVerifiedFunc != nil {
		return s.markEmailVerifiedFunc(ctx, userID)
	}
	s.t.Fatalf("MarkEmailVerified called unexpectedly")
	return errors.New("unexpected call")
}

func newTestRouter(t *testing.T, users *stubUsersStore) (http.Handler, *auth.TokenIssuer) {
	t.Helper()
	issuer := auth.NewTokenIssuer([]byte("test-signing-key-0123456789abcdef"), time.Hour)
	svc := &service.AuthService{
		Users:   users,
		Tokens:  issuer,
		Lockout: auth.DefaultLockoutPolicy(),
	}
	return NewRouter(RouterOpts{Auth: svc, Tokens: issuer}), issuer
}

func decodeErrorCode(t *testing.T, body string) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, body)
	}
	return envelope.Error.Code
}

func TestHandleSignup(t *testing.T) {
	users := &stubUsersStore{
		t: t,
		createUserFunc: func(_ context.Context, email, name, passwordHash, verifyTokenHash string) (domain.User, error) {
			if email != "fern@example.com" || name != "Fern" {
				t.Fatalf("unexpected create args: %s %s", email, name)
			}
			if passwordHash == "" || verifyTokenHash == "" {
				t.Fatalf("expected password and verify-token hashes")
			}
			return domain.User{ID: "user-1", Email: email, Name: name, IsActive: true}, nil
		},
	}
	h, _ := newTestRouter(t, users)

	body := `{"email":" Fern@Example.COM ","name":" Fern ","password":"hunter2hunter2","passwordConfirm":"hunter2hunter2"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/signup", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
		User  struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token == "" || resp.User.ID != "user-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if strings.Contains(rec.Body.String(), "passwordHash") {
		t.Fatalf("response leaks password hash")
	}

	cookie := findCookie(t, rec, auth.UserCookieName)
	if cookie.Value != resp.Token || !cookie.HttpOnly {
		t.Fatalf("unexpected auth cookie: %+v", cookie)
	}
}

func TestHandleSignupValidation(t *testing.T) {
	h, _ := newTestRouter(t, &stubUsersStore{t: t})

	cases := map[string]struct {
		body string
		code string
	}{
		"bad email":     {`{"email":"nope","password":"hunter2hunter2","passwordConfirm":"hunter2hunter2"}`, "validation_error"},
		"shortpassword": {`{"email":"a@b.com","password":"short","passwordConfirm":"short"}`, "validation_error"},
		"mismatch":      {`{"email":"a@b.com","password":"hunter2hunter2","passwordConfirm":"different-pass"}`, "password_mismatch"},
		"unknown field": {`{"email":"a@b.com","password":"hunter2hunter2","passwordConfirm":"hunter2hunter2","admin":true}`, "bad_json"},
	}

	for name, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/signup", strings.NewReader(tc.body))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status got %d", name, rec.Code)
		}
		if got := decodeErrorCode(t, rec.Body.String()); got != tc.code {
			t.Fatalf("%s: error code got %q, want %q", name, got, tc.code)
		}
	}
}

func TestHandleLoginInvalidCredentials(t *testing.T) {
	users := &stubUsersStore{
		t: t,
		getUserByEmailFunc: func(_ context.Context, _ string) (domain.UserWithPassword, error) {
			return domain.UserWithPassword{}, domain.ErrNotFound
		},
	}
	h, _ := newTestRouter(t, users)

	body := `{"email":"nobody@example.com","password":"whatever1"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d", rec.Code)
	}
	if got := decodeErrorCode(t, rec.Body.String()); got != "invalid_credentials" {
		t.Fatalf("error code: got %q", got)
	}
}

func TestHandleLoginLockedAccount(t *testing.T) {
	lockedUntil := time.Now().Add(time.Hour)
	users := &stubUsersStore{
		t: t,
		getUserByEmailFunc: func(_ context.Context, _ string) (domain.UserWithPassword, error) {
			return domain.UserWithPassword{
				User: domain.User{ID: "user-1", IsActive: true, LockedUntil: &lockedUntil},
			}, nil
		},
	}
	h, _ := newTestRouter(t, users)

	body := `{"email":"fern@example.com","password":"whatever1"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusLocked {
		t.Fatalf("status: got %d, want 423", rec.Code)
	}
	if got := decodeErrorCode(t, rec.Body.String()); got != "account_locked" {
		t.Fatalf("error code: got %q", got)
	}
}

func TestHandleMeAuth(t *testing.T) {
	users := &stubUsersStore{
		t: t,
		getUserByIDFunc: func(_ context.Context, id string) (domain.User, error) {
			return domain.User{ID: id, Email: "fern@example.com", IsActive: true}, nil
		},
	}
	h, issuer := newTestRouter(t, users)

	token, err := issuer.Issue("user-1", domain.KindUser)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Authorization header.
	req := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("header auth: status got %d, body %s", rec.Code, rec.Body.String())
	}

	// Cookie fallback.
	req = httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
	req.AddCookie(&http.Cookie{Name: auth.UserCookieName, Value: token})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("cookie auth: status got %d", rec.Code)
	}

	// No credential at all.
	req = httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: status got %d", rec.Code)
	}
}

func TestHandleMeRejectsAdminToken(t *testing.T) {
	h, issuer := newTestRouter(t, &stubUsersStore{t: t})

	token, err := issuer.Issue("admin-1", domain.KindAdmin)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d", rec.Code)
	}
	if got := decodeErrorCode(t, rec.Body.String()); got != "wrong_token_kind" {
		t.Fatalf("error code: got %q", got)
	}
}

func TestHandleLogoutExpiresCookie(t *testing.T) {
	h, _ := newTestRouter(t, &stubUsersStore{t: t})

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/logout", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status: got %d", rec.Code)
	}
	cookie := findCookie(t, rec, auth.UserCookieName)
	if cookie.Value == "" || cookie.MaxAge > 10 {
		t.Fatalf("expected overwritten short-lived cookie, got %+v", cookie)
	}
}

func TestHandleForgotPasswordHidesUnknownEmail(t *testing.T) {
	users := &stubUsersStore{
		t: t,
		getUserByEmailFunc: func(_ context.Context, _ string) (domain.UserWithPassword, error) {
			return domain.UserWithPassword{}, domain.ErrNotFound
		},
	}
	h, _ := newTestRouter(t, users)

	body := `{"email":"nobody@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/forgot-password", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want 204 for unknown email", rec.Code)
	}
}

func findCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %q not set", name)
	return nil
}
