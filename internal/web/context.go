package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/bulkmail/internal/core"
)

// WithRequestMetadata adds the client IP to ctx for campaign history.
// The session id is already attached by the session middleware.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithIPAddress(ctx, clientIP(r))
}

// clientIP returns the host part of RemoteAddr, already rewritten by
// TrustedRealIP for trusted proxies.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
