package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidToken       = errors.New("invalid_token")
	ErrWrongTokenKind     = errors.New("wrong_token_kind")
	ErrAccountGone        = errors.New("account_gone")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not_found")
	ErrEmailTaken         = errors.New("email_taken")
	ErrAdminIDTaken       = errors.New("admin_id_taken")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrAccountLocked      = errors.New("account_locked")
	ErrAccountDeactivated = errors.New("account_deactivated")
	ErrPasswordMismatch   = errors.New("password_mismatch")
	ErrResetTokenInvalid  = errors.New("reset_token_invalid")
	ErrVerifyTokenInvalid = errors.New("verify_token_invalid")
	ErrTwoFactorRequired  = errors.New("two_factor_required")
	ErrTwoFactorInvalid   = errors.New("two_factor_invalid")
	ErrDeliveryFailed     = errors.New("delivery_failed")
	ErrValidation         = errors.New("validation")
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(fields map[string]string) error {
	return &ValidationError{Fields: fields}
}
