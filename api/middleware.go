/*
middleware.go - Bearer token authentication

PURPOSE:
  Every /api route runs on behalf of one tenant and one acting user. Both
  come from an HS256 JWT issued by the identity provider and are turned into
  a generic.Scope stored in the request context.

CLAIMS:
  tenant  Tenant (entity) the caller works in
  sub     Acting user id
  role    "employee", "manager" or "admin"; admin routes require "admin"

SEE ALSO:
  - server.go: Route groups using Authenticate and RequireRole
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/warp/timesheet-engine/generic"
)

type contextKey string

const claimsContextKey contextKey = "claims"

const (
	RoleEmployee = "employee"
	RoleManager  = "manager"
	RoleAdmin    = "admin"
)

type Claims struct {
	Tenant string `json:"tenant"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Scope is the operation context the claims grant.
func (c *Claims) Scope() generic.Scope {
	return generic.Scope{Tenant: generic.TenantID(c.Tenant), Actor: generic.UserID(c.Subject)}
}

// Authenticator signs and validates tokens with a shared secret.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// GenerateToken is used by tests and by `timesheetctl token`.
func (a *Authenticator) GenerateToken(tenant generic.TenantID, user generic.UserID, role string, expiration time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Tenant: string(tenant),
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(user),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *Authenticator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	if claims.Tenant == "" || claims.Subject == "" {
		return nil, errors.New("token lacks tenant or subject")
	}
	return claims, nil
}

// Authenticate rejects requests without a valid bearer token.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var tokenString string
		if parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2); len(parts) == 2 && parts[0] == "Bearer" {
			tokenString = parts[1]
		}
		if tokenString == "" {
			writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
			return
		}

		claims, err := a.ValidateToken(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token", err)
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
				return
			}
			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "Forbidden", fmt.Errorf("role %q not allowed", claims.Role))
		})
	}
}

func ClaimsFromContext(ctx context.Context) *Claims {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	if !ok {
		return nil
	}
	return claims
}

func scopeFrom(r *http.Request) generic.Scope {
	if claims := ClaimsFromContext(r.Context()); claims != nil {
		return claims.Scope()
	}
	return generic.Scope{}
}
