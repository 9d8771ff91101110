package audit

import (
	"context"

	"github.com/google/uuid"
)

type requestInfoKey struct{}

// RequestInfo identifies the HTTP request an event belongs to.
type RequestInfo struct {
	ID       uuid.UUID
	ClientIP string
}

// WithRequestInfo attaches request identity to ctx. The request logging
// middleware sets it for every HTTP request.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// GetRequestInfo returns the request identity, or the zero value outside HTTP.
func GetRequestInfo(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info
}
