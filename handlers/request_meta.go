package handlers

import (
	"net"
	"net/http"
	"strings"

	"github.com/petroflow/billing-control-plane/middleware"
	"github.com/petroflow/billing-control-plane/services/evaluation"
)

// requestMeta extracts audit metadata from the request.
func requestMeta(r *http.Request) evaluation.RequestMeta {
	return evaluation.RequestMeta{
		RequestID: middleware.GetRequestIDFromContext(r.Context()),
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the socket
// peer address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.Index(fwd, ","); idx >= 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
