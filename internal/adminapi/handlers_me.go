package adminapi

import (
	"net/http"
	"time"

	"Verdantwebserver/internal/auth"
	"Verdantwebserver/internal/domain"
	"Verdantwebserver/internal/httpapi"
)

func (a *api) handleMe(w http.ResponseWriter, r *http.Request) {
	admin, ok := CurrentAdmin(r.Context())
	if !ok {
		httpapi.WriteDomainError(w, domain.ErrUnauthorized)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toAdminResponse(admin))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	PasswordConfirm string `json:"passwordConfirm"`
}

func (a *api) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	admin, ok := CurrentAdmin(r.Context())
	if !ok {
		httpapi.WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req changePasswordRequest
	if err := httpapi.DecodeJSON(w, r, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	if req.CurrentPassword == "" || len(req.NewPassword) < 8 {
		httpapi.WriteDomainError(w, domain.NewValidationError(map[string]string{
			"currentPassword": "required",
			"newPassword":     "must be at least 8 characters",
		}))
		return
	}
	if req.NewPassword != req.PasswordConfirm {
		httpapi.WriteDomainError(w, domain.ErrPasswordMismatch)
		return
	}

	token, err := a.adminSvc.ChangePassword(r.Context(), admin.ID, req.CurrentPassword, req.NewPassword, requestContext(r))
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}

	auth.SetTokenCookie(w, domain.KindAdmin, token, a.tokens.TTL, a.cookieSecure || auth.RequestIsHTTPS(r))
	httpapi.WriteJSON(w, http.StatusOK, struct {
		Token string `json:"token"`
	}{Token: token})
}

type sessionResponse struct {
	SessionID      string    `json:"sessionId"`
	IsActive       bool      `json:"isActive"`
	IP             string    `json:"ip,omitempty"`
	UserAgent      string    `json:"userAgent,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
}

func (a *api) handleSessions(w http.ResponseWriter, r *http.Request) {
	admin, ok := CurrentAdmin(r.Context())
	if !ok {
		httpapi.WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	sessions, err := a.adminSvc.Sessions(r.Context(), admin.ID)
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}

	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionResponse{
			SessionID:      s.SessionID,
			IsActive:       s.IsActive,
			IP:             s.IP,
			UserAgent:      s.UserAgent,
			CreatedAt:      s.CreatedAt,
			LastActivityAt: s.LastActivityAt,
		})
	}
	httpapi.WriteJSON(w, http.StatusOK, struct {
		Sessions []sessionResponse `json:"sessions"`
	}{Sessions: out})
}

func (a *api) handleTerminateSession(w http.ResponseWriter, r *http.Request) {
	admin, ok := CurrentAdmin(r.Context())
	if !ok {
		httpapi.WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	sessionID := r.PathValue("sessionId")
	if sessionID == "" {
		httpapi.WriteDomainError(w, domain.NewValidationError(map[string]string{"sessionId": "required"}))
		return
	}

	if err := a.adminSvc.TerminateSession(r.Context(), admin.ID, sessionID, requestContext(r)); err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type activityResponse struct {
	ID          string    `json:"id"`
	Action      string    `json:"action"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description,omitempty"`
	IP          string    `json:"ip,omitempty"`
	UserAgent   string    `json:"userAgent,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (a *api) handleActivity(w http.ResponseWriter, r *http.Request) {
	admin, ok := CurrentAdmin(r.Context())
	if !ok {
		httpapi.WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	entries, err := a.adminSvc.Activity(r.Context(), admin.ID)
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}

	out := make([]activityResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, activityResponse{
			ID:          e.ID,
			Action:      string(e.Action),
			Category:    e.Category,
			Description: e.Description,
			IP:          e.IP,
			UserAgent:   e.UserAgent,
			CreatedAt:   e.CreatedAt,
		})
	}
	httpapi.WriteJSON(w, http.StatusOK, struct {
		Activity []activityResponse `json:"activity"`
	}{Activity: out})
}

func (a *api) handleTwoFactorEnable(w http.ResponseWriter, r *http.Request) {
	admin, ok := CurrentAdmin(r.Context())
	if !ok {
		httpapi.WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	secret, otpauthURL, err := a.adminSvc.EnableTwoFactor(r.Context(), admin.ID, requestContext(r))
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, struct {
		Secret     string `json:"secret"`
		OTPAuthURL string `json:"otpauthUrl"`
	}{Secret: secret, OTPAuthURL: otpauthURL})
}

type twoFactorCodeRequest struct {
	Code string `json:"code"`
}

func (a *api) handleTwoFactorActivate(w http.ResponseWriter, r *http.Request) {
	admin, ok := CurrentAdmin(r.Context())
	if !ok {
		httpapi.WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req twoFactorCodeRequest
	if err := httpapi.DecodeJSON(w, r, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	if req.Code == "" {
		httpapi.WriteDomainError(w, domain.NewValidationError(map[string]string{"code": "required"}))
		return
	}

	if err := a.adminSvc.ActivateTwoFactor(r.Context(), admin.ID, req.Code, requestContext(r)); err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleTwoFactorDisable(w http.ResponseWriter, r *http.Request) {
	admin, ok := CurrentAdmin(r.Context())
	if !ok {
		httpapi.WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req twoFactorCodeRequest
	if err := httpapi.DecodeJSON(w, r, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	if err := a.adminSvc.DisableTwoFactor(r.Context(), admin.ID, req.Code, requestContext(r)); err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
