package security

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gridwire/meshcore/internal/infrastructure/config"
)

// ErrMissingToken means no bearer token was presented on a protected route.
var ErrMissingToken = errors.New("security: missing bearer token")

// ErrInvalidToken means the presented token failed signature or claim
// validation.
var ErrInvalidToken = errors.New("security: invalid token")

// Claims is the JWT payload issued for an authenticated admin session.
type Claims struct {
	Subject string `json:"sub"`
	Role    string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and validates admin API bearer tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer builds a TokenIssuer from the admin API's JWT settings.
func NewTokenIssuer(cfg config.JWTConfig) *TokenIssuer {
	ttl := time.Duration(cfg.AccessTokenTTL) * time.Minute
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &TokenIssuer{secret: []byte(cfg.Secret), ttl: ttl}
}

// Issue signs a token for subject/role, valid for the issuer's configured TTL.
func (i *TokenIssuer) Issue(subject, role string) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(i.ttl)
	claims := Claims{
		Subject: subject,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate parses and verifies a bearer token string, returning its claims.
func (i *TokenIssuer) Validate(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// contextKey is a private type so values stored by this package never
// collide with keys set by other packages.
type contextKey string

const claimsContextKey contextKey = "security.claims"

// ClaimsFromContext returns the claims attached by Middleware, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	return claims, ok
}

// Middleware validates the Authorization: Bearer <token> header on every
// request, rejecting the request with 401 if it is missing or invalid,
// and otherwise attaching the parsed Claims to the request context.
func (i *TokenIssuer) Middleware(onUnauthorized func(http.ResponseWriter, string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				onUnauthorized(w, ErrMissingToken.Error())
				return
			}
			claims, err := i.Validate(raw)
			if err != nil {
				onUnauthorized(w, err.Error())
				return
			}
			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
