// Package auth provides JWT-based authentication for ekaya-reports.
// It validates tokens using JWKS endpoints and exposes the principal and the
// cookie session to report parameter resolution through the request context.
package auth

import (
	"context"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing JWT claims.
	ClaimsKey contextKey = "claims"
	// TokenKey is the context key for storing the raw JWT token string.
	TokenKey contextKey = "token"
	// SessionValuesKey is the context key for the request's session values.
	SessionValuesKey contextKey = "session_values"
)

// Claims represents the JWT claims of a report viewer.
// It embeds RegisteredClaims for standard JWT fields (sub, iss, exp, etc.)
// and adds the principal attributes reports may reference.
type Claims struct {
	jwt.RegisteredClaims
	TenantID string   `json:"tid,omitempty"`    // Tenant the principal belongs to
	Email    string   `json:"email,omitempty"`  // User email address
	Name     string   `json:"name,omitempty"`   // Display name
	Region   string   `json:"region,omitempty"` // Region the principal is served from
	Roles    []string `json:"roles,omitempty"`  // User roles
}

// Property returns a named principal attribute. Unknown names and empty values
// report false.
func (c *Claims) Property(name string) (any, bool) {
	if c == nil {
		return nil, false
	}

	var v string
	switch strings.ToLower(name) {
	case "id", "sub", "subject":
		v = c.Subject
	case "email":
		v = c.Email
	case "name":
		v = c.Name
	case "tenant_id", "tenant", "tid":
		v = c.TenantID
	case "region":
		v = c.Region
	case "roles":
		if len(c.Roles) == 0 {
			return nil, false
		}
		return strings.Join(c.Roles, ","), true
	default:
		return nil, false
	}

	if v == "" {
		return nil, false
	}
	return v, true
}

// WithClaims returns a context carrying claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// GetClaims retrieves JWT claims from the request context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// GetToken retrieves the raw JWT token string from the request context.
// Returns empty string and false if token is not present.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}
