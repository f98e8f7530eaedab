package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"Verdantwebserver/internal/domain"
)

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (a *api) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	email := normalizeEmail(req.Email)
	if !validEmail(email) {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"email": "must be a valid email"}))
		return
	}

	now := time.Now()
	ip := ClientIP(r)
	if !a.loginLimiter.Allow("forgot:ip:"+ip, now) || !a.loginLimiter.Allow("forgot:email:"+email, now) {
		WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
		return
	}

	err := a.authSvc.RequestPasswordReset(r.Context(), email, a.frontendLink(r, "/reset-password"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// No account enumeration on the public endpoint.
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if errors.Is(err, domain.ErrDeliveryFailed) {
			a.logger.Error("send reset email failed", "err", err)
		}
		WriteDomainError(w, err)
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
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" || !validPassword(req.Password) {
		WriteDomainError(w, domain.NewValidationError(map[string]string{
			"token":    "required",
			"password": "must be 8-72 characters",
		}))
		return
	}
	if req.Password != req.PasswordConfirm {
		WriteDomainError(w, domain.ErrPasswordMismatch)
		return
	}

	u, token, err := a.authSvc.ResetPassword(r.Context(), req.Token, req.Password)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	a.writeAuthenticated(w, r, http.StatusOK, u, token)
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

func (a *api) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"token": "required"}))
		return
	}

	if err := a.authSvc.VerifyEmail(r.Context(), strings.TrimSpace(req.Token)); err != nil {
		WriteDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// frontendLink builds an absolute link into the web app for emailed
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
