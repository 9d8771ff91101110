package auth

import (
	"context"
)

// GetUserIDFromContext extracts the user ID from JWT claims in the context.
// Returns empty string if not authenticated or claims are missing.
func GetUserIDFromContext(ctx context.Context) string {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return ""
	}
	return claims.Subject
}

// GetTenantIDFromContext extracts the tenant ID from JWT claims in the context.
// Returns empty string if not authenticated or the token carries no tenant.
func GetTenantIDFromContext(ctx context.Context) string {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return ""
	}
	return claims.TenantID
}

// WithSessionValues returns a context carrying a snapshot of the session values.
// Only string keys are kept.
func WithSessionValues(ctx context.Context, values map[any]any) context.Context {
	snapshot := make(map[string]any, len(values))
	for k, v := range values {
		if key, ok := k.(string); ok {
			snapshot[key] = v
		}
	}
	return context.WithValue(ctx, SessionValuesKey, snapshot)
}

// GetSessionValues returns the session values attached by the session middleware.
func GetSessionValues(ctx context.Context) (map[string]any, bool) {
	values, ok := ctx.Value(SessionValuesKey).(map[string]any)
	return values, ok
}

// GetSessionValue returns one session value.
func GetSessionValue(ctx context.Context, key string) (any, bool) {
	values, ok := GetSessionValues(ctx)
	if !ok {
		return nil, false
	}
	v, ok := values[key]
	return v, ok
}
