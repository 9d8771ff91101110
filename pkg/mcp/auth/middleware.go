// Package mcpauth guards the MCP endpoint with RFC 6750 bearer challenges,
// which MCP clients use to start their OAuth flow.
package mcpauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-reports/pkg/auth"
)

// Realm is advertised in every challenge.
const Realm = "ekaya-reports"

// Middleware authenticates MCP requests.
type Middleware struct {
	authService   auth.AuthService
	requireTenant bool
	logger        *zap.Logger
}

// NewMiddleware creates the MCP guard. With requireTenant, tokens without a
// tenant claim get 403 insufficient_scope, matching auth.require_tenant on the
// HTTP API.
func NewMiddleware(authService auth.AuthService, requireTenant bool, logger *zap.Logger) *Middleware {
	return &Middleware{
		authService:   authService,
		requireTenant: requireTenant,
		logger:        logger.Named("mcp_auth"),
	}
}

// RequireAuth puts the caller's claims and token in the context, so report
// tools resolve @tenant and @user references for the caller.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, token, err := m.authService.ValidateRequest(r)
		switch {
		case errors.Is(err, auth.ErrMissingAuthorization):
			// RFC 6750 3.1: no error code when the request carried no credentials.
			challenge(w, http.StatusUnauthorized, "", "")
			return
		case err != nil:
			m.logger.Debug("MCP token rejected", zap.String("path", r.URL.Path), zap.Error(err))
			challenge(w, http.StatusUnauthorized, "invalid_token", "The access token is invalid or expired")
			return
		}

		ctx := auth.WithClaims(r.Context(), claims)
		ctx = context.WithValue(ctx, auth.TokenKey, token)

		if m.requireTenant && auth.GetTenantIDFromContext(ctx) == "" {
			m.logger.Warn("MCP token without tenant rejected", zap.String("subject", claims.Subject))
			challenge(w, http.StatusForbidden, "insufficient_scope", "A tenant-scoped token is required")
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func challenge(w http.ResponseWriter, status int, code, description string) {
	value := fmt.Sprintf("Bearer realm=%q", Realm)
	if code != "" {
		value += fmt.Sprintf(", error=%q, error_description=%q", code, description)
	}
	w.Header().Set("WWW-Authenticate", value)
	w.WriteHeader(status)
}
