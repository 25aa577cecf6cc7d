// Package middleware provides the HTTP middleware chain: auth gates,
// rate limiting and metrics instrumentation.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"

	"github.com/yangsenessa/univoice-dapp/internal/httputil"
	"github.com/yangsenessa/univoice-dapp/pkg/logger"
)

// Caller roles. Controllers manage configuration and the canister
// directory; the frontend performs user-facing updates.
const (
	RoleController = "controller"
	RoleFrontend   = "frontend"
)

// Claims are the token claims callers authenticate with.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type contextKey string

const claimsKey contextKey = "auth_claims"

// Auth validates HMAC-signed bearer tokens.
type Auth struct {
	secret []byte
	log    *logger.Logger
}

// NewAuth creates an Auth over a shared signing secret.
func NewAuth(secret []byte, log *logger.Logger) *Auth {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	return &Auth{secret: secret, log: log}
}

// RequireRole gates a route on a valid token carrying one of the given
// roles. Failures are rejected before any store access.
func (a *Auth) RequireRole(roles ...string) mux.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := a.parseBearer(r)
			if err != nil {
				a.log.WithError(err).Warn("token validation failed")
				httputil.Unauthorized(w, err.Error())
				return
			}
			if !allowed[claims.Role] {
				httputil.Forbidden(w, fmt.Sprintf("role %q not permitted", claims.Role))
				return
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

func (a *Auth) parseBearer(r *http.Request) (*Claims, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, fmt.Errorf("missing Authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, fmt.Errorf("invalid Authorization header format")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

func withClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// GetClaims returns the authenticated claims, if any.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok
}

// GetUserID returns the authenticated caller id, or empty.
func GetUserID(ctx context.Context) string {
	if claims, ok := GetClaims(ctx); ok {
		return claims.UserID
	}
	return ""
}
