package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-reports/pkg/auth"
	"github.com/ekaya-inc/ekaya-reports/pkg/models"
)

// referenceSigil marks a parameter spec that is resolved from request context.
const referenceSigil = "@"

// referenceKind is the closed set of reference tags a parameter map may use.
type referenceKind int

const (
	referenceUnknown referenceKind = iota
	referenceTenant                // @tenant
	referenceSession               // @session:<key>
	referenceUser                  // @user:<property>
)

func (k referenceKind) String() string {
	switch k {
	case referenceTenant:
		return "tenant"
	case referenceSession:
		return "session"
	case referenceUser:
		return "user"
	default:
		return "unknown"
	}
}

// reference is a parsed reference tag.
type reference struct {
	kind referenceKind
	arg  string
}

// parseReference splits a tag such as "@session:region" into kind and argument.
// The caller has already checked the sigil.
func parseReference(tag string) reference {
	body := strings.TrimPrefix(tag, referenceSigil)
	name, arg, hasArg := strings.Cut(body, ":")

	switch {
	case name == "tenant" && !hasArg:
		return reference{kind: referenceTenant}
	case name == "session" && hasArg && arg != "":
		return reference{kind: referenceSession, arg: arg}
	case name == "user" && hasArg && arg != "":
		return reference{kind: referenceUser, arg: arg}
	default:
		return reference{kind: referenceUnknown, arg: body}
	}
}

// ParameterResolver turns a report's parameter map into bind values using the
// principal and session of the current request.
type ParameterResolver struct {
	logger *zap.Logger
}

func NewParameterResolver(logger *zap.Logger) *ParameterResolver {
	return &ParameterResolver{logger: logger.Named("parameter_resolver")}
}

// Resolve returns one value per declared parameter, in declaration order.
// Literals are copied verbatim. References that cannot be satisfied resolve to nil,
// so a tenant-scoped report run without a tenant matches nothing rather than
// everything.
func (r *ParameterResolver) Resolve(ctx context.Context, params models.ParameterMap) map[string]any {
	resolved := make(map[string]any, len(params))
	for _, p := range params {
		tag, ok := p.Spec.(string)
		if !ok || !strings.HasPrefix(tag, referenceSigil) {
			resolved[p.Name] = p.Spec
			continue
		}
		resolved[p.Name] = r.resolveReference(ctx, p.Name, parseReference(tag))
	}
	return resolved
}

func (r *ParameterResolver) resolveReference(ctx context.Context, param string, ref reference) any {
	switch ref.kind {
	case referenceTenant:
		return resolveTenant(ctx)
	case referenceSession:
		return resolveSession(ctx, ref.arg)
	case referenceUser:
		return resolveUser(ctx, ref.arg)
	default:
		r.logger.Debug("Unknown parameter reference; binding NULL",
			zap.String("param", param),
			zap.String("reference", ref.arg))
		return nil
	}
}

func resolveTenant(ctx context.Context) any {
	if tenantID := auth.GetTenantIDFromContext(ctx); tenantID != "" {
		return tenantID
	}
	return nil
}

func resolveSession(ctx context.Context, key string) any {
	v, ok := auth.GetSessionValue(ctx, key)
	if !ok {
		return nil
	}
	return v
}

func resolveUser(ctx context.Context, property string) any {
	claims, ok := auth.GetClaims(ctx)
	if !ok {
		return nil
	}
	v, ok := claims.Property(property)
	if !ok {
		return nil
	}
	return v
}
