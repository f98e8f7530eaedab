package adminapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"Verdantwebserver/internal/auth"
	"Verdantwebserver/internal/domain"
	"Verdantwebserver/internal/httpapi"
	"Verdantwebserver/internal/service"
)

type adminResponse struct {
	ID               string              `json:"id"`
	Email            string              `json:"email"`
	AdminID          string              `json:"adminId"`
	Name             string              `json:"name"`
	Role             domain.AdminRole    `json:"role"`
	Permissions      map[string][]string `json:"permissions,omitempty"`
	TwoFactorEnabled bool                `json:"twoFactorEnabled"`
	CreatedAt        time.Time           `json:"createdAt"`
	LastLoginAt      *time.Time          `json:"lastLoginAt,omitempty"`
}

func toAdminResponse(a domain.Admin) adminResponse {
	return adminResponse{
		ID:               a.ID,
		Email:            a.Email,
		AdminID:          a.AdminID,
		Name:             a.Name,
		Role:             a.Role,
		Permissions:      a.Permissions,
		TwoFactorEnabled: a.TwoFactorEnabled,
		CreatedAt:        a.CreatedAt,
		LastLoginAt:      a.LastLoginAt,
	}
}

func (a *api) writeAuthenticated(w http.ResponseWriter, r *http.Request, status int, admin domain.Admin, token string) {
	auth.SetTokenCookie(w, domain.KindAdmin, token, a.tokens.TTL, a.cookieSecure || auth.RequestIsHTTPS(r))
	httpapi.WriteJSON(w, status, struct {
		Token string        `json:"token"`
		Admin adminResponse `json:"admin"`
	}{Token: token, Admin: toAdminResponse(admin)})
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	TOTPCode string `json:"totpCode,omitempty"`
}

func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpapi.DecodeJSON(w, r, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	req.Login = strings.TrimSpace(req.Login)
	if req.Login == "" || req.Password == "" {
		httpapi.WriteDomainError(w, domain.NewValidationError(map[string]string{"login": "required", "password": "required"}))
		return
	}

	now := time.Now()
	ip := httpapi.ClientIP(r)
	if !a.loginLimiter.Allow("ip:"+ip, now) || !a.loginLimiter.Allow("login:"+service.NormalizeLogin(req.Login), now) {
		httpapi.WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
		return
	}

	admin, token, err := a.adminSvc.Login(r.Context(), req.Login, req.Password, req.TOTPCode, requestContext(r))
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}

	a.writeAuthenticated(w, r, http.StatusOK, admin, token)
}

func (a *api) handleLogout(w http.ResponseWriter, r *http.Request) {
	admin, ok := CurrentAdmin(r.Context())
	if !ok {
		httpapi.WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	if err := a.adminSvc.Logout(r.Context(), admin.ID, requestContext(r)); err != nil {
		a.logger.Error("admin logout", "err", err)
	}
	auth.ExpireTokenCookie(w, domain.KindAdmin, a.cookieSecure || auth.RequestIsHTTPS(r))
	w.WriteHeader(http.StatusNoContent)
}

type forgotPasswordRequest struct {
	Login string `json:"login"`
}

func (a *api) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := httpapi.DecodeJSON(w, r, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	req.Login = strings.TrimSpace(req.Login)
	if req.Login == "" {
		httpapi.WriteDomainError(w, domain.NewValidationError(map[string]string{"login": "required"}))
		return
	}

	now := time.Now()
	ip := httpapi.ClientIP(r)
	if !a.loginLimiter.Allow("forgot:ip:"+ip, now) || !a.loginLimiter.Allow("forgot:login:"+service.NormalizeLogin(req.Login), now) {
		httpapi.WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
		return
	}

	err := a.adminSvc.RequestPasswordReset(r.Context(), req.Login, a.frontendLink(r, "/admin/reset-password"), requestContext(r))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if errors.Is(err, domain.ErrDeliveryFailed) {
			a.logger.Error("send admin reset email failed", "err", err)
		}
		httpapi.WriteDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type resetPasswordRequest struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

func (a *api) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := httpapi.DecodeJSON(w, r, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" || len(req.Password) < 8 {
		httpapi.WriteDomainError(w, domain.NewValidationError(map[string]string{
			"token":    "required",
			"password": "must be at least 8 characters",
		}))
		return
	}
	if req.Password != req.PasswordConfirm {
		httpapi.WriteDomainError(w, domain.ErrPasswordMismatch)
		return
	}

	admin, token, err := a.adminSvc.ResetPassword(r.Context(), req.Token, req.Password, requestContext(r))
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}

	a.writeAuthenticated(w, r, http.StatusOK, admin, token)
}

// frontendLink builds an absolute link into the admin app for emailed
// tokens, preferring the configured public URL over request sniffing.
func (a *api) frontendLink(r *http.Request, path string) string {
	if a.publicURL != nil {
		u := *a.publicURL
		u.Path = path
		return u.String()
	}
	scheme := "http"
	if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}
	return fmt.Sprintf("%s://%s%s", scheme, r.Host, path)
}
