package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"Verdantwebserver/internal/domain"
)

// TokenIssuer mints and verifies the signed bearer tokens carried by
// clients. Verification is purely cryptographic; account-state checks
// happen after the token holder is re-fetched from the store.
type TokenIssuer struct {
	SigningKey []byte
	TTL        time.Duration
	Now        func() time.Time
}

type tokenClaims struct {
	Kind domain.AccountKind `json:"kind"`
	jwt.RegisteredClaims
}

func NewTokenIssuer(signingKey []byte, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 90 * 24 * time.Hour
	}
	return &TokenIssuer{SigningKey: signingKey, TTL: ttl}
}

func (t *TokenIssuer) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

func (t *TokenIssuer) Issue(accountID string, kind domain.AccountKind) (string, error) {
	now := t.now()
	claims := tokenClaims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.TTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.SigningKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the embedded account id
// and kind. Any malformed, expired, or mis-signed token maps to
// domain.ErrInvalidToken.
func (t *TokenIssuer) Verify(raw string) (string, domain.AccountKind, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(token *jwt.Token) (any, error) {
			return t.SigningKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return "", "", domain.ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", "", domain.ErrInvalidToken
	}
	switch claims.Kind {
	case domain.KindUser, domain.KindAdmin:
	default:
		return "", "", domain.ErrInvalidToken
	}
	return claims.Subject, claims.Kind, nil
}
