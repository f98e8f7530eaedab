package httpapi

import (
	"net/http"
	"strings"
	"time"

	"Verdantwebserver/internal/auth"
	"Verdantwebserver/internal/domain"
)

type userResponse struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	EmailVerified bool       `json:"emailVerified"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastLoginAt   *time.Time `json:"lastLoginAt,omitempty"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
		LastLoginAt:   u.LastLoginAt,
	}
}

func (a *api) writeAuthenticated(w http.ResponseWriter, r *http.Request, status int, u domain.User, token string) {
	auth.SetTokenCookie(w, domain.KindUser, token, a.tokens.TTL, a.cookieSecure || auth.RequestIsHTTPS(r))
	WriteJSON(w, status, struct {
		Token string       `json:"token"`
		User  userResponse `json:"user"`
	}{Token: token, User: toUserResponse(u)})
}

type signupRequest struct {
	Email           string `json:"email"`
	Name            string `json:"name"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

func (a *api) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)

	fields := map[string]string{}
	if !validEmail(req.Email) {
		fields["email"] = "must be a valid email"
	}
	if !validPassword(req.Password) {
		fields["password"] = "must be 8-72 characters"
	}
	if len(fields) > 0 {
		WriteDomainError(w, domain.NewValidationError(fields))
		return
	}
	if req.Password != req.PasswordConfirm {
		WriteDomainError(w, domain.ErrPasswordMismatch)
		return
	}

	u, token, err := a.authSvc.Signup(r.Context(), req.Email, req.Name, req.Password, a.frontendLink(r, "/verify-email"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	a.writeAuthenticated(w, r, http.StatusCreated, u, token)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	req.Email = normalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"email": "required", "password": "required"}))
		return
	}

	now := time.Now()
	ip := ClientIP(r)
	if !a.loginLimiter.Allow("ip:"+ip, now) || !a.loginLimiter.Allow("email:"+req.Email, now) {
		WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
		return
	}

	u, token, err := a.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	a.writeAuthenticated(w, r, http.StatusOK, u, token)
}

func (a *api) handleLogout(w http.ResponseWriter, r *http.Request) {
	// Bearer tokens are stateless for users; logout is a cookie
	// overwrite with a near-immediate expiry.
	auth.ExpireTokenCookie(w, domain.KindUser, a.cookieSecure || auth.RequestIsHTTPS(r))
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}
	WriteJSON(w, http.StatusOK, toUserResponse(u))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

func (a *api) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req changePasswordRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	if req.CurrentPassword == "" || !validPassword(req.Password) {
		WriteDomainError(w, domain.NewValidationError(map[string]string{
			"currentPassword": "required",
			"password":        "must be 8-72 characters",
		}))
		return
	}
	if req.Password != req.PasswordConfirm {
		WriteDomainError(w, domain.ErrPasswordMismatch)
		return
	}

	token, err := a.authSvc.ChangePassword(r.Context(), u.ID, req.CurrentPassword, req.Password)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	a.writeAuthenticated(w, r, http.StatusOK, u, token)
}
