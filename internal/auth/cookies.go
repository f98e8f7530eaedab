package auth

import (
	"net/http"
	"time"

	"Verdantwebserver/internal/domain"
)

const (
	UserCookieName  = "userJwt"
	AdminCookieName = "adminJwt"

	// Logout replaces the cookie with a short-lived value instead of
	// deleting it outright, matching the client contract.
	logoutCookieTTL = 10 * time.Second
)

func CookieName(kind domain.AccountKind) string {
	if kind == domain.KindAdmin {
		return AdminCookieName
	}
	return UserCookieName
}

func SetTokenCookie(w http.ResponseWriter, kind domain.AccountKind, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName(kind),
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
	})
}

func ExpireTokenCookie(w http.ResponseWriter, kind domain.AccountKind, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName(kind),
		Value:    "loggedout",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(logoutCookieTTL.Seconds()),
		Expires:  time.Now().Add(logoutCookieTTL),
	})
}

// RequestIsHTTPS detects TLS either directly or via a proxy header.
func RequestIsHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return r.Header.Get("X-Forwarded-Proto") == "https"
}
