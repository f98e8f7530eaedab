package adminapi

import (
	"log/slog"
	"net/http"
	"net/url"

	"Verdantwebserver/internal/auth"
	"Verdantwebserver/internal/domain"
	"Verdantwebserver/internal/httpapi"
	"Verdantwebserver/internal/service"
)

type Opts struct {
	Logger *slog.Logger
	IsProd bool

	Admin        *service.AdminAuthService
	Tokens       *auth.TokenIssuer
	CookieSecure bool
	PublicURL    *url.URL
}

func New(opts Opts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	api := &api{
		logger:       logger,
		adminSvc:     opts.Admin,
		tokens:       opts.Tokens,
		cookieSecure: opts.CookieSecure,
		publicURL:    opts.PublicURL,
		loginLimiter: httpapi.NewLoginLimiter(),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /admin/v1/auth/login", api.handleLogin)
	mux.HandleFunc("POST /admin/v1/auth/logout", api.requireAuth(api.handleLogout))
	mux.HandleFunc("POST /admin/v1/auth/forgot-password", api.handleForgotPassword)
	mux.HandleFunc("POST /admin/v1/auth/reset-password", api.handleResetPassword)

	mux.HandleFunc("GET /admin/v1/me", api.requireAuth(api.handleMe))
	mux.HandleFunc("PATCH /admin/v1/me/password", api.requireAuth(api.handleChangePassword))
	mux.HandleFunc("GET /admin/v1/me/sessions", api.requireAuth(api.handleSessions))
	mux.HandleFunc("DELETE /admin/v1/me/sessions/{sessionId}", api.requireAuth(api.handleTerminateSession))
	mux.HandleFunc("GET /admin/v1/me/activity", api.requireAuth(api.handleActivity))

	mux.HandleFunc("POST /admin/v1/me/2fa/enable", api.requireAuth(api.handleTwoFactorEnable))
	mux.HandleFunc("POST /admin/v1/me/2fa/activate", api.requireAuth(api.handleTwoFactorActivate))
	mux.HandleFunc("POST /admin/v1/me/2fa/disable", api.requireAuth(api.handleTwoFactorDisable))

	mux.HandleFunc("GET /admin/v1/admins",
		api.requireAuth(requirePermission(api.handleListAdmins,
			auth.MustParsePermission("admins:view"))))
	mux.HandleFunc("PATCH /admin/v1/admins/{id}/active",
		api.requireAuth(requireRole(requirePermission(api.handleSetAdminActive,
			auth.MustParsePermission("admins:edit")),
			domain.RoleAdmin)))

	var h http.Handler = mux
	h = httpapi.RequestLogger(logger)(h)
	h = httpapi.RequestID()(h)
	h = httpapi.Recoverer(logger, opts.IsProd)(h)
	return h
}

type api struct {
	logger *slog.Logger

	adminSvc     *service.AdminAuthService
	tokens       *auth.TokenIssuer
	cookieSecure bool
	publicURL    *url.URL

	loginLimiter *httpapi.LoginLimiter
}
