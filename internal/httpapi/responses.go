package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"Verdantwebserver/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: message}})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteDomainError maps the error taxonomy onto HTTP statuses. The
// credential failures stay deliberately vague; state errors (locked,
// deactivated) are specific since they do not leak account existence
// beyond what the caller already proved.
func WriteDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		WriteError(w, http.StatusBadRequest, "validation_error", "invalid request")
	case errors.Is(err, domain.ErrPasswordMismatch):
		WriteError(w, http.StatusBadRequest, "password_mismatch", "passwords do not match")
	case errors.Is(err, domain.ErrResetTokenInvalid):
		WriteError(w, http.StatusBadRequest, "reset_token_invalid", "reset token is invalid or has expired")
	case errors.Is(err, domain.ErrVerifyTokenInvalid):
		WriteError(w, http.StatusBadRequest, "verify_token_invalid", "verification token is invalid")
	case errors.Is(err, domain.ErrTwoFactorRequired):
		WriteError(w, http.StatusUnauthorized, "two_factor_required", "a two-factor code is required")
	case errors.Is(err, domain.ErrTwoFactorInvalid):
		WriteError(w, http.StatusUnauthorized, "two_factor_invalid", "two-factor code is invalid")
	case errors.Is(err, domain.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid login or password")
	case errors.Is(err, domain.ErrInvalidToken):
		WriteError(w, http.StatusUnauthorized, "invalid_token", "token is invalid or has expired")
	case errors.Is(err, domain.ErrWrongTokenKind):
		WriteError(w, http.StatusUnauthorized, "wrong_token_kind", "token is not valid for this resource")
	case errors.Is(err, domain.ErrAccountGone):
		WriteError(w, http.StatusUnauthorized, "account_gone", "account no longer exists")
	case errors.Is(err, domain.ErrAccountDeactivated):
		WriteError(w, http.StatusUnauthorized, "account_deactivated", "account has been deactivated")
	case errors.Is(err, domain.ErrUnauthorized):
		WriteError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
	case errors.Is(err, domain.ErrAccountLocked):
		WriteError(w, http.StatusLocked, "account_locked", "account is temporarily locked, try again later")
	case errors.Is(err, domain.ErrForbidden):
		WriteError(w, http.StatusForbidden, "forbidden", "forbidden")
	case errors.Is(err, domain.ErrEmailTaken):
		WriteError(w, http.StatusConflict, "email_taken", "email already taken")
	case errors.Is(err, domain.ErrAdminIDTaken):
		WriteError(w, http.StatusConflict, "admin_id_taken", "admin id already taken")
	case errors.Is(err, domain.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, domain.ErrDeliveryFailed):
		WriteError(w, http.StatusInternalServerError, "delivery_failed", "failed to send email")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
