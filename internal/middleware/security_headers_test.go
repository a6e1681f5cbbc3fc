package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func serveWithHeaders(env string, req *http.Request) *httptest.ResponseRecorder {
	handler := SecurityHeaders(SecurityHeadersConfig{Env: env})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestSecurityHeaders_Always(t *testing.T) {
	w := serveWithHeaders("development", httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil))

	tests := []struct {
		header   string
		expected string
	}{
		{"X-Frame-Options", "DENY"},
		{"X-Content-Type-Options", "nosniff"},
		{"Referrer-Policy", "no-referrer"},
		{"Cross-Origin-Opener-Policy", "same-origin"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, w.Header().Get(tt.header), tt.header)
	}
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "frame-ancestors 'none'")
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestSecurityHeaders_HSTSOnlyOverTLSInProduction(t *testing.T) {
	plain := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, serveWithHeaders("production", plain).Header().Get("Strict-Transport-Security"))

	forwarded := httptest.NewRequest(http.MethodGet, "/", nil)
	forwarded.Header.Set("X-Forwarded-Proto", "https")
	assert.Contains(t, serveWithHeaders("production", forwarded).Header().Get("Strict-Transport-Security"), "max-age=31536000")

	devTLS := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)
	assert.Empty(t, serveWithHeaders("development", devTLS).Header().Get("Strict-Transport-Security"))
}
