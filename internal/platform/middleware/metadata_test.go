package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"proofdeck/internal/audit"
)

func TestGetClientIPPrecedence(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{"remote addr only", "203.0.113.9:41234", "", "", "203.0.113.9"},
		{"x-forwarded-for wins", "203.0.113.9:41234", "198.51.100.7", "192.0.2.1", "198.51.100.7"},
		{"first hop of forwarded chain", "203.0.113.9:41234", "198.51.100.7, 10.0.0.1", "", "198.51.100.7"},
		{"x-real-ip fallback", "203.0.113.9:41234", "", "192.0.2.1", "192.0.2.1"},
		{"ipv6 remote addr keeps brackets", "[::1]:8080", "", "", "[::1]"},
		{"remote addr without port", "203.0.113.9", "", "", "203.0.113.9"},
		{"empty remote addr", "", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}

func TestClientMetadataPopulatesContext(t *testing.T) {
	var gotIP, gotUA string
	handler := ClientMetadata(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		gotIP = GetClientIP(r.Context())
		gotUA = GetUserAgent(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:41234"
	req.Header.Set("User-Agent", "curl/8.5.0")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "203.0.113.9", gotIP)
	assert.Equal(t, "curl/8.5.0", gotUA)
}

func TestRequesterAnonymizesIP(t *testing.T) {
	var requester string
	stack := ClientMetadata(Requester(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		requester = audit.RequesterFromContext(r.Context())
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.47:41234"
	req.Header.Set("User-Agent",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	stack.ServeHTTP(httptest.NewRecorder(), req)

	assert.Contains(t, requester, "Chrome on")
	assert.Contains(t, requester, "203.0.113.0")
	assert.NotContains(t, requester, "203.0.113.47")
}

func TestRequesterFallsBackForNonBrowserClients(t *testing.T) {
	var requester string
	stack := ClientMetadata(Requester(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		requester = audit.RequesterFromContext(r.Context())
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:9000"
	req.Header.Set("User-Agent", "deckctl/1.0 (demo)")
	stack.ServeHTTP(httptest.NewRecorder(), req)

	assert.Contains(t, requester, "deckctl/1.0")
	assert.Contains(t, requester, "198.51.100.0")
}
