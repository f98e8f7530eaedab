package adminapi

import (
	"net/http"

	"Verdantwebserver/internal/domain"
	"Verdantwebserver/internal/httpapi"
)

func (a *api) handleListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := a.adminSvc.ListAdmins(r.Context())
	if err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}

	out := make([]adminResponse, 0, len(admins))
	for _, ad := range admins {
		out = append(out, toAdminResponse(ad))
	}
	httpapi.WriteJSON(w, http.StatusOK, struct {
		Admins []adminResponse `json:"admins"`
	}{Admins: out})
}

type setAdminActiveRequest struct {
	IsActive bool `json:"isActive"`
}

func (a *api) handleSetAdminActive(w http.ResponseWriter, r *http.Request) {
	actor, ok := CurrentAdmin(r.Context())
	if !ok {
		httpapi.WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	targetID := r.PathValue("id")
	if targetID == "" {
		httpapi.WriteDomainError(w, domain.NewValidationError(map[string]string{"id": "required"}))
		return
	}

	var req setAdminActiveRequest
	if err := httpapi.DecodeJSON(w, r, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	if err := a.adminSvc.SetAdminActive(r.Context(), actor.ID, targetID, req.IsActive, requestContext(r)); err != nil {
		httpapi.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
