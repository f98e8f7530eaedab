package adminapi

import (
	"context"
	"net/http"

	"Verdantwebserver/internal/auth"
	"Verdantwebserver/internal/domain"
	"Verdantwebserver/internal/httpapi"
	"Verdantwebserver/internal/service"
)

type authCtxKey int

const authAdminKey authCtxKey = iota

// SessionHeader carries the client's session correlation id. It is
// optional; requests without it simply skip the freshness bump.
const SessionHeader = "session-id"

func (a *api) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := httpapi.BearerToken(r, auth.AdminCookieName)
		if raw == "" {
			httpapi.WriteDomainError(w, domain.ErrUnauthorized)
			return
		}

		accountID, kind, err := a.tokens.Verify(raw)
		if err != nil {
			httpapi.WriteDomainError(w, err)
			return
		}
		if kind != domain.KindAdmin {
			httpapi.WriteDomainError(w, domain.ErrWrongTokenKind)
			return
		}

		admin, err := a.adminSvc.Principal(r.Context(), accountID, r.Header.Get(SessionHeader))
		if err != nil {
			httpapi.WriteDomainError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), authAdminKey, admin)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func CurrentAdmin(ctx context.Context) (domain.Admin, bool) {
	admin, ok := ctx.Value(authAdminKey).(domain.Admin)
	return admin, ok
}

// requireRole gates a route on a closed role set; super-admin bypasses.
// Runs only behind requireAuth.
func requireRole(next http.HandlerFunc, roles ...domain.AdminRole) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, ok := CurrentAdmin(r.Context())
		if !ok {
			httpapi.WriteDomainError(w, domain.ErrUnauthorized)
			return
		}
		if !auth.RoleAllowed(admin, roles...) {
			httpapi.WriteDomainError(w, domain.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	}
}

// requirePermission gates a route on a permission list with OR
// semantics; any one grant passes, and super-admin always passes.
func requirePermission(next http.HandlerFunc, perms ...auth.Permission) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, ok := CurrentAdmin(r.Context())
		if !ok {
			httpapi.WriteDomainError(w, domain.ErrUnauthorized)
			return
		}
		if !auth.AdminAllowed(admin, perms...) {
			httpapi.WriteDomainError(w, domain.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	}
}

func requestContext(r *http.Request) service.RequestContext {
	return service.RequestContext{
		SessionID: r.Header.Get(SessionHeader),
		IP:        httpapi.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}
