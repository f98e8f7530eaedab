package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"Verdantwebserver/internal/auth"
	"Verdantwebserver/internal/service"
)

type RouterOpts struct {
	Logger *slog.Logger
	IsProd bool

	DBPing func(context.Context) error

	Auth         *service.AuthService
	Tokens       *auth.TokenIssuer
	CookieSecure bool
	PublicURL    *url.URL
}

func NewRouter(opts RouterOpts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	api := &api{
		logger:       logger,
		isProd:       opts.IsProd,
		dbPing:       opts.DBPing,
		authSvc:      opts.Auth,
		tokens:       opts.Tokens,
		cookieSecure: opts.CookieSecure,
		publicURL:    opts.PublicURL,
		loginLimiter: NewLoginLimiter(),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", api.handleHealthz)

	if api.authSvc == nil {
		mux.HandleFunc("POST /v1/auth/signup", handleNotImplemented)
		mux.HandleFunc("POST /v1/auth/login", handleNotImplemented)
		mux.HandleFunc("POST /v1/auth/logout", handleNotImplemented)
		mux.HandleFunc("POST /v1/auth/forgot-password", handleNotImplemented)
		mux.HandleFunc("POST /v1/auth/reset-password", handleNotImplemented)
		mux.HandleFunc("POST /v1/auth/verify-email", handleNotImplemented)
		mux.HandleFunc("GET /v1/users/me", handleNotImplemented)
		mux.HandleFunc("PATCH /v1/users/me/password", handleNotImplemented)
	} else {
		mux.HandleFunc("POST /v1/auth/signup", api.handleSignup)
		mux.HandleFunc("POST /v1/auth/login", api.handleLogin)
		mux.HandleFunc("POST /v1/auth/logout", api.handleLogout)
		mux.HandleFunc("POST /v1/auth/forgot-password", api.handleForgotPassword)
		mux.HandleFunc("POST /v1/auth/reset-password", api.handleResetPassword)
		mux.HandleFunc("POST /v1/auth/verify-email", api.handleVerifyEmail)

		mux.HandleFunc("GET /v1/users/me", api.requireAuth(api.handleMe))
		mux.HandleFunc("PATCH /v1/users/me/password", api.requireAuth(api.handleChangePassword))
	}

	var h http.Handler = mux
	h = RequestLogger(logger)(h)
	h = RequestID()(h)
	h = Recoverer(logger, opts.IsProd)(h)
	return h
}

type api struct {
	logger *slog.Logger
	isProd bool

	dbPing func(context.Context) error

	authSvc      *service.AuthService
	tokens       *auth.TokenIssuer
	cookieSecure bool
	publicURL    *url.URL

	loginLimiter *LoginLimiter
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if a.dbPing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()
		if err := a.dbPing(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db down"))
			return
		}
	}

	_, _ = w.Write([]byte("ok"))
}

func handleNotImplemented(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotImplemented, "not_implemented", "not implemented")
}
