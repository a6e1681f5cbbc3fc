package http_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkghttp "github.com/BradenHooton/tajnur-auth/pkg/http"
)

func TestClientIP_DirectConnection_IgnoresHeaders(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.10:54321"
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	req.Header.Set("X-Real-IP", "192.168.1.1")

	res := pkghttp.NewIPResolver([]string{"10.0.0.0/8", "172.16.0.0/12", "127.0.0.1"})

	assert.Equal(t, "203.0.113.10", res.ClientIP(req))
}

func TestClientIP_TrustedProxy(t *testing.T) {
	tests := []struct {
		name    string
		trusted []string
		remote  string
		xff     string
		xri     string
		want    string
	}{
		{"xff first entry", []string{"10.0.0.0/8"}, "10.0.0.5:1234", "203.0.113.42, 203.0.113.43, 10.0.0.5", "", "203.0.113.42"},
		{"skips garbage in xff", []string{"10.0.0.0/8"}, "10.0.0.5:1234", "unknown, 203.0.113.42", "", "203.0.113.42"},
		{"falls back to x-real-ip", []string{"10.0.0.0/8"}, "10.0.0.5:1234", "", "203.0.113.9", "203.0.113.9"},
		{"bare address entry", []string{"10.0.0.5"}, "10.0.0.5:1234", "203.0.113.42", "", "203.0.113.42"},
		{"ipv6 proxy", []string{"::1/128"}, "[::1]:1234", "2001:db8::1", "", "2001:db8::1"},
		{"no headers", []string{"10.0.0.0/8"}, "10.0.0.5:1234", "", "", "10.0.0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}

			assert.Equal(t, tt.want, pkghttp.NewIPResolver(tt.trusted).ClientIP(req))
		})
	}
}

func TestClientIP_NilAndEmptyResolvers(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.10:54321"
	req.Header.Set("X-Forwarded-For", "1.2.3.4")

	var nilResolver *pkghttp.IPResolver
	assert.Equal(t, "203.0.113.10", nilResolver.ClientIP(req))
	assert.Equal(t, "203.0.113.10", pkghttp.NewIPResolver(nil).ClientIP(req))
	assert.Equal(t, "203.0.113.10", pkghttp.NewIPResolver([]string{"invalid-cidr"}).ClientIP(req))
}

func TestClientIP_RemoteAddrWithoutPort(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.10"

	assert.Equal(t, "203.0.113.10", pkghttp.NewIPResolver(nil).ClientIP(req))
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Username string `json:"username"`
	}

	t.Run("valid", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"username":"alice"}`))
		var b body
		require.NoError(t, pkghttp.DecodeJSON(httptest.NewRecorder(), req, &b))
		assert.Equal(t, "alice", b.Username)
	})

	t.Run("empty", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(""))
		var b body
		assert.Error(t, pkghttp.DecodeJSON(httptest.NewRecorder(), req, &b))
	})

	t.Run("malformed", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"username":`))
		var b body
		assert.Error(t, pkghttp.DecodeJSON(httptest.NewRecorder(), req, &b))
	})

	t.Run("trailing object", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"username":"a"}{"username":"b"}`))
		var b body
		assert.Error(t, pkghttp.DecodeJSON(httptest.NewRecorder(), req, &b))
	})

	t.Run("oversized", func(t *testing.T) {
		big := `{"username":"` + strings.Repeat("a", pkghttp.MaxJSONBodyBytes) + `"}`
		req := httptest.NewRequest("POST", "/", strings.NewReader(big))
		var b body
		assert.Error(t, pkghttp.DecodeJSON(httptest.NewRecorder(), req, &b))
	})
}
