package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"proofdeck/internal/audit"
	"proofdeck/internal/platform/privacy"
)

type clientIPKey struct{}
type userAgentKey struct{}

// ClientMetadata extracts the client IP and User-Agent and stores them in
// the request context. X-Forwarded-For wins over X-Real-IP, which wins over
// RemoteAddr.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = context.WithValue(ctx, clientIPKey{}, getClientIP(r))
		ctx = context.WithValue(ctx, userAgentKey{}, r.Header.Get("User-Agent"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClientIP retrieves the client IP from the context.
func GetClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// GetUserAgent retrieves the User-Agent from the context.
func GetUserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(userAgentKey{}).(string); ok {
		return ua
	}
	return ""
}

// Requester derives an audit-safe display string for the calling client
// ("Chrome on macOS from 203.0.113.0") and attaches it to the context for
// Emit call sites. The IP is anonymized before it can reach an audit trail.
func Requester(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		display := describeClient(GetUserAgent(ctx))
		if ip := privacy.AnonymizeIP(GetClientIP(ctx)); ip != "unknown" && ip != "invalid" {
			display += " from " + ip
		}
		next.ServeHTTP(w, r.WithContext(audit.WithRequester(ctx, display)))
	})
}

// describeClient renders a User-Agent as "Browser on OS". Non-browser
// clients fall back to the first product token.
func describeClient(userAgentString string) string {
	if userAgentString == "" {
		return "unknown client"
	}
	ua := useragent.New(userAgentString)
	browser, _ := ua.Browser()
	os := ua.OS()
	if browser == "" || os == "" {
		if token, _, ok := strings.Cut(userAgentString, " "); ok && token != "" {
			return token
		}
		return userAgentString
	}
	return browser + " on " + os
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := xff
		if before, _, ok := strings.Cut(xff, ","); ok {
			first = before
		}
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return stripPort(r.RemoteAddr)
}

// stripPort removes the port from a RemoteAddr, preserving IPv6 brackets.
func stripPort(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}
	if strings.HasPrefix(remoteAddr, "[") {
		if idx := strings.LastIndex(remoteAddr, "]:"); idx != -1 {
			return remoteAddr[:idx+1]
		}
		return remoteAddr
	}
	if idx := strings.LastIndex(remoteAddr, ":"); idx != -1 {
		return remoteAddr[:idx]
	}
	return remoteAddr
}
