package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env       string
	Addr      string
	PublicURL *url.URL
	DBDSN     string
	LogLevel  string

	JWTSecret string
	TokenTTL  time.Duration

	LockoutThreshold int
	LockoutDuration  time.Duration

	ResetTokenTTL time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	SMTPTLSMode  string

	AdminBootstrapEmail    string
	AdminBootstrapAdminID  string
	AdminBootstrapName     string
	AdminBootstrapPassword string
}

func Load() (Config, error) {
	return LoadFromEnv(os.Getenv)
}

func LoadFromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Env:          getenv("APP_ENV"),
		Addr:         getenv("APP_ADDR"),
		DBDSN:        getenv("APP_DB_DSN"),
		LogLevel:     getenv("APP_LOG_LEVEL"),
		JWTSecret:    getenv("APP_JWT_SECRET"),
		SMTPHost:     getenv("APP_SMTP_HOST"),
		SMTPUsername: getenv("APP_SMTP_USERNAME"),
		SMTPPassword: getenv("APP_SMTP_PASSWORD"),
		SMTPFrom:     strings.TrimSpace(strings.ToLower(getenv("APP_SMTP_FROM"))),
		SMTPFromName: strings.TrimSpace(getenv("APP_SMTP_FROM_NAME")),
		SMTPTLSMode:  getenv("APP_SMTP_TLS_MODE"),
	}

	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}

	switch cfg.Env {
	case "dev", "prod", "test":
	default:
		return Config{}, errors.New("APP_ENV: must be one of dev, test, prod")
	}

	publicURLRaw := getenv("APP_PUBLIC_URL")
	if publicURLRaw != "" {
		parsed, err := url.Parse(publicURLRaw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_PUBLIC_URL: %w", err)
		}
		if !parsed.IsAbs() || parsed.Host == "" {
			return Config{}, errors.New("APP_PUBLIC_URL: must be an absolute URL")
		}
		switch parsed.Scheme {
		case "http", "https":
		default:
			return Config{}, errors.New("APP_PUBLIC_URL: scheme must be http or https")
		}
		cfg.PublicURL = parsed
	}

	var err error
	cfg.TokenTTL, err = durationEnv(getenv, "APP_TOKEN_TTL", 90*24*time.Hour)
	if err != nil {
		return Config{}, err
	}
	cfg.LockoutDuration, err = durationEnv(getenv, "APP_LOCKOUT_DURATION", 2*time.Hour)
	if err != nil {
		return Config{}, err
	}
	cfg.ResetTokenTTL, err = durationEnv(getenv, "APP_RESET_TOKEN_TTL", 10*time.Minute)
	if err != nil {
		return Config{}, err
	}

	thresholdRaw := getenv("APP_LOCKOUT_THRESHOLD")
	if thresholdRaw == "" {
		cfg.LockoutThreshold = 5
	} else {
		n, err := strconv.Atoi(thresholdRaw)
		if err != nil || n <= 0 {
			return Config{}, errors.New("APP_LOCKOUT_THRESHOLD: must be a positive integer")
		}
		cfg.LockoutThreshold = n
	}

	portRaw := getenv("APP_SMTP_PORT")
	if portRaw == "" {
		cfg.SMTPPort = 587
	} else {
		n, err := strconv.Atoi(portRaw)
		if err != nil || n <= 0 || n > 65535 {
			return Config{}, errors.New("APP_SMTP_PORT: must be a valid port")
		}
		cfg.SMTPPort = n
	}

	cfg.AdminBootstrapEmail = strings.TrimSpace(strings.ToLower(getenv("APP_ADMIN_BOOTSTRAP_EMAIL")))
	cfg.AdminBootstrapAdminID = strings.TrimSpace(strings.ToUpper(getenv("APP_ADMIN_BOOTSTRAP_ADMIN_ID")))
	cfg.AdminBootstrapName = strings.TrimSpace(getenv("APP_ADMIN_BOOTSTRAP_NAME"))
	cfg.AdminBootstrapPassword = getenv("APP_ADMIN_BOOTSTRAP_PASSWORD")

	if cfg.AdminBootstrapPassword != "" && cfg.AdminBootstrapEmail == "" {
		return Config{}, errors.New("APP_ADMIN_BOOTSTRAP_EMAIL: required when APP_ADMIN_BOOTSTRAP_PASSWORD is set")
	}
	if cfg.AdminBootstrapPassword != "" && cfg.AdminBootstrapAdminID == "" {
		cfg.AdminBootstrapAdminID = "ADMIN001"
	}
	if cfg.AdminBootstrapPassword != "" && cfg.AdminBootstrapName == "" {
		cfg.AdminBootstrapName = "Administrator"
	}

	if cfg.IsProd() {
		if cfg.PublicURL == nil {
			return Config{}, errors.New("APP_PUBLIC_URL: required in prod")
		}
		if cfg.DBDSN == "" {
			return Config{}, errors.New("APP_DB_DSN: required in prod")
		}
		if len(cfg.JWTSecret) < 32 {
			return Config{}, errors.New("APP_JWT_SECRET: must be at least 32 bytes in prod")
		}
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("APP_JWT_SECRET: required")
	}

	return cfg, nil
}

func (c Config) IsProd() bool { return c.Env == "prod" }

func (c Config) CookieSecure() bool {
	if c.PublicURL != nil {
		return c.PublicURL.Scheme == "https"
	}
	return c.IsProd()
}

func (c Config) SMTPConfigured() bool { return c.SMTPHost != "" && c.SMTPFrom != "" }

func durationEnv(getenv func(string) string, key string, fallback time.Duration) (time.Duration, error) {
	raw := getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be > 0", key)
	}
	return d, nil
}
