package core

import "context"

type contextKey string

const (
	ctxKeyIPAddress contextKey = "ingest_ip"
	ctxKeyUserAgent contextKey = "ingest_ua"
	ctxKeyOwner     contextKey = "ingest_owner"
)

// AnonymousOwner owns ingestions made without an authenticated identity.
const AnonymousOwner = "anonymous"

// ContextWithIPAddress adds the client IP address recorded with ingestions.
func ContextWithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyIPAddress, ip)
}

// ContextWithUserAgent adds the client User-Agent recorded with ingestions.
func ContextWithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, ctxKeyUserAgent, ua)
}

// ContextWithOwner adds the authenticated owner of the request.
func ContextWithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ctxKeyOwner, owner)
}

// GetIPAddressFromContext extracts IP address from context.
func GetIPAddressFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyIPAddress).(string); ok {
		return v
	}
	return ""
}

// GetUserAgentFromContext extracts User-Agent from context.
func GetUserAgentFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyUserAgent).(string); ok {
		return v
	}
	return ""
}

// GetOwnerFromContext returns the request owner, or AnonymousOwner.
func GetOwnerFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyOwner).(string); ok && v != "" {
		return v
	}
	return AnonymousOwner
}
