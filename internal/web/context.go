package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/ingest/internal/core"
)

// WithRequestMetadata adds the client IP and User-Agent recorded with
// ingestions. RemoteAddr has already been resolved by TrustedRealIP.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	ctx = core.ContextWithIPAddress(ctx, ip)
	ctx = core.ContextWithUserAgent(ctx, r.Header.Get("User-Agent"))
	return ctx
}
