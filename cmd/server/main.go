package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/joho/godotenv"

	"Verdantwebserver/internal/adminapi"
	"Verdantwebserver/internal/auth"
	"Verdantwebserver/internal/config"
	"Verdantwebserver/internal/domain"
	"Verdantwebserver/internal/email"
	"Verdantwebserver/internal/httpapi"
	"Verdantwebserver/internal/service"
	"Verdantwebserver/internal/store/postgres"
)

func main() {
	// .env is a dev convenience only; missing file is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)

	tokens := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.TokenTTL)
	lockout := auth.LockoutPolicy{
		Threshold:    cfg.LockoutThreshold,
		LockDuration: cfg.LockoutDuration,
	}

	var mail service.Mailer
	if cfg.SMTPConfigured() {
		mail = &service.EmailService{Sender: &email.Sender{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			FromName: cfg.SMTPFromName,
			From:     cfg.SMTPFrom,
			TLSMode:  cfg.SMTPTLSMode,
		}}
	} else {
		logger.Info("smtp not configured, outbound email disabled")
		mail = disabledMailer{logger: logger}
	}

	var (
		authSvc  *service.AuthService
		adminSvc *service.AdminAuthService
		dbPing   func(context.Context) error
	)

	if cfg.DBDSN != "" {
		pgPool, err := postgres.Open(context.Background(), cfg.DBDSN)
		if err != nil {
			logger.Error("db open failed", "err", err)
			os.Exit(1)
		}
		defer pgPool.Close()

		users := postgres.NewUsersStore(pgPool)
		admins := postgres.NewAdminsStore(pgPool)

		if err := bootstrapAdmin(context.Background(), logger, admins, cfg); err != nil {
			logger.Error("bootstrap admin failed", "err", err)
			os.Exit(1)
		}

		authSvc = &service.AuthService{
			Users:         users,
			Tokens:        tokens,
			Mail:          mail,
			Lockout:       lockout,
			ResetTokenTTL: cfg.ResetTokenTTL,
		}
		adminSvc = &service.AdminAuthService{
			Admins:        admins,
			Tokens:        tokens,
			Mail:          mail,
			Lockout:       lockout,
			ResetTokenTTL: cfg.ResetTokenTTL,
			TOTPIssuer:    "Verdant",
		}
		dbPing = pgPool.Ping
	}

	apiRouter := httpapi.NewRouter(httpapi.RouterOpts{
		Logger:       logger,
		IsProd:       cfg.IsProd(),
		DBPing:       dbPing,
		Auth:         authSvc,
		Tokens:       tokens,
		CookieSecure: cfg.CookieSecure(),
		PublicURL:    cfg.PublicURL,
	})

	root := http.NewServeMux()
	root.Handle("/", apiRouter)

	if adminSvc != nil {
		adminRouter := adminapi.New(adminapi.Opts{
			Logger:       logger,
			IsProd:       cfg.IsProd(),
			Admin:        adminSvc,
			Tokens:       tokens,
			CookieSecure: cfg.CookieSecure(),
			PublicURL:    cfg.PublicURL,
		})
		root.Handle("/admin/", adminRouter)
	} else {
		logger.Info("admin api disabled", "db_enabled", cfg.DBDSN != "")
		root.HandleFunc("/admin/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("admin api disabled: set APP_DB_DSN (and restart the server)\n"))
		})
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           root,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "env", cfg.Env, "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}
}

// bootstrapAdmin seeds a super-admin on first boot so a fresh deploy
// has someone who can sign in. A no-op unless the bootstrap password
// is set, and idempotent once the account exists.
func bootstrapAdmin(ctx context.Context, logger *slog.Logger, admins *postgres.AdminsStore, cfg config.Config) error {
	if cfg.AdminBootstrapPassword == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.AdminBootstrapPassword) < 12 {
		return errors.New("APP_ADMIN_BOOTSTRAP_PASSWORD: must be at least 12 characters")
	}

	_, err := admins.GetAdminByLogin(ctx, cfg.AdminBootstrapEmail)
	if err == nil {
		logger.Info("admin bootstrap: account already exists", "email", cfg.AdminBootstrapEmail)
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("admin bootstrap: lookup admin: %w", err)
	}

	hash, err := auth.HashPassword(cfg.AdminBootstrapPassword)
	if err != nil {
		return fmt.Errorf("admin bootstrap: hash password: %w", err)
	}

	_, err = admins.CreateAdmin(ctx, domain.Admin{
		Email:   cfg.AdminBootstrapEmail,
		AdminID: cfg.AdminBootstrapAdminID,
		Name:    cfg.AdminBootstrapName,
		Role:    domain.RoleSuperAdmin,
	}, hash)
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) || errors.Is(err, domain.ErrAdminIDTaken) {
			logger.Info("admin bootstrap: account already exists", "email", cfg.AdminBootstrapEmail)
			return nil
		}
		return fmt.Errorf("admin bootstrap: create admin: %w", err)
	}

	logger.Info("admin bootstrap: created super-admin", "email", cfg.AdminBootstrapEmail)
	return nil
}

// disabledMailer stands in when SMTP is not configured. Every send
// fails with ErrDeliveryFailed so callers run their cleanup paths.
type disabledMailer struct {
	logger *slog.Logger
}

func (m disabledMailer) SendPasswordReset(toEmail, resetURL string) error {
	m.logger.Warn("email disabled, dropping password reset", "to", toEmail)
	return domain.ErrDeliveryFailed
}

func (m disabledMailer) SendEmailVerification(toEmail, verifyURL string) error {
	m.logger.Warn("email disabled, dropping verification email", "to", toEmail)
	return domain.ErrDeliveryFailed
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
