package httpapi

import (
	"context"
	"net/http"
	"strings"

	"Verdantwebserver/internal/auth"
	"Verdantwebserver/internal/domain"
)

type authCtxKey int

const authUserKey authCtxKey = iota

// BearerToken pulls the credential off the Authorization header, falling
// back to the kind-specific cookie.
func BearerToken(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}

func (a *api) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := BearerToken(r, auth.UserCookieName)
		if raw == "" {
			WriteDomainError(w, domain.ErrUnauthorized)
			return
		}

		accountID, kind, err := a.tokens.Verify(raw)
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		if kind != domain.KindUser {
			WriteDomainError(w, domain.ErrWrongTokenKind)
			return
		}

		u, err := a.authSvc.Principal(r.Context(), accountID)
		if err != nil {
			WriteDomainError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), authUserKey, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func CurrentUser(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(authUserKey).(domain.User)
	return u, ok
}
