package handlers_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/tajnur-auth/internal/auth"
	"github.com/BradenHooton/tajnur-auth/internal/handlers"
	"github.com/BradenHooton/tajnur-auth/internal/metrics"
	"github.com/BradenHooton/tajnur-auth/internal/models"
	"github.com/BradenHooton/tajnur-auth/internal/services"
	pkghttp "github.com/BradenHooton/tajnur-auth/pkg/http"
)

var testCookies = auth.CookieConfig{Name: "tajnur_session", SameSite: "strict"}

const testSessionID = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

func newTestHandler(svc handlers.AuthServiceInterface) *handlers.AuthHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return handlers.NewAuthHandler(svc, testCookies, time.Hour, pkghttp.NewIPResolver(nil), metrics.New(), logger)
}

func anonymousSession() *models.Session {
	return &models.Session{ID: testSessionID}
}

func TestLogin_Success(t *testing.T) {
	var got services.LoginInput
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, sess *models.Session, in services.LoginInput) (*services.LoginResult, error) {
			got = in
			return &services.LoginResult{
				Identity:  models.Identity{UserID: "u-alice", Username: "alice", Role: models.RoleStaff},
				CSRFToken: "tok-123",
			}, nil
		},
	}

	req := handlers.NewTestRequest(t, "POST", "/api/auth/login", map[string]string{
		"username": "alice",
		"password": "secret1",
	})
	req.RemoteAddr = "192.0.2.10:5000"
	req.Header.Set("User-Agent", "test-agent")
	req = handlers.WithSession(req, anonymousSession())

	w := httptest.NewRecorder()
	newTestHandler(mockAuth).Login(w, req)

	var resp handlers.LoginResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "Login successful", resp.Message)
	assert.Equal(t, "alice", resp.User)
	assert.Equal(t, models.RoleStaff, resp.Role)
	assert.False(t, resp.IsAdmin)
	assert.Equal(t, "tok-123", resp.CSRFToken)

	assert.Equal(t, "192.0.2.10", got.SourceAddress)
	assert.Equal(t, "test-agent", got.UserAgent)
	assert.Nil(t, got.CSRFToken, "no token sent")

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "tajnur_session", cookies[0].Name)
	assert.Equal(t, testSessionID, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 3600, cookies[0].MaxAge)
}

func TestLogin_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"invalid input", fmt.Errorf("%w: username: too short", models.ErrInvalidInput), 400, pkghttp.CodeInvalidInput, "Invalid username or password format"},
		{"unauthorized", models.ErrUnauthorized, 401, pkghttp.CodeUnauthorized, "Invalid credentials"},
		{"csrf", models.ErrForbidden, 403, pkghttp.CodeForbidden, "Invalid CSRF token"},
		{"rate limited", models.ErrRateLimited, 429, pkghttp.CodeRateLimited, "Too many failed attempts. Please try again later."},
		{"infrastructure", fmt.Errorf("%w: dial tcp: refused", models.ErrInfrastructure), 503, pkghttp.CodeInfrastructure, "Service temporarily unavailable"},
		{"unexpected", errors.New("boom"), 503, pkghttp.CodeInfrastructure, "Service temporarily unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockAuth := &handlers.MockAuthService{
				LoginFunc: func(ctx context.Context, sess *models.Session, in services.LoginInput) (*services.LoginResult, error) {
					return nil, tt.err
				},
			}
			req := handlers.NewTestRequest(t, "POST", "/api/auth/login", map[string]string{
				"username": "alice",
				"password": "secret1",
			})
			req = handlers.WithSession(req, anonymousSession())

			w := httptest.NewRecorder()
			newTestHandler(mockAuth).Login(w, req)

			handlers.AssertErrorResponse(t, w, tt.status, tt.code)
			assert.Contains(t, w.Body.String(), tt.message)
			assert.NotContains(t, w.Body.String(), "refused", "internal detail never reaches the client")
			assert.Empty(t, w.Result().Cookies())
		})
	}
}

func TestLogin_MalformedBody(t *testing.T) {
	for _, body := range []string{"", "{", `{"username":"alice"}{"x":1}`} {
		mockAuth := &handlers.MockAuthService{
			LoginFunc: func(ctx context.Context, sess *models.Session, in services.LoginInput) (*services.LoginResult, error) {
				t.Fatal("service must not be called")
				return nil, nil
			},
		}
		req := httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(body))
		req = handlers.WithSession(req, anonymousSession())

		w := httptest.NewRecorder()
		newTestHandler(mockAuth).Login(w, req)

		handlers.AssertErrorResponse(t, w, 400, pkghttp.CodeInvalidInput)
	}
}

func TestLogin_CSRFTokenSources(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		header *string
		want   *string
	}{
		{"none", `{"username":"alice","password":"secret1"}`, nil, nil},
		{"body", `{"username":"alice","password":"secret1","csrf_token":"from-body"}`, nil, strPtr("from-body")},
		{"header", `{"username":"alice","password":"secret1"}`, strPtr("from-header"), strPtr("from-header")},
		{"body wins", `{"username":"alice","password":"secret1","csrf_token":"from-body"}`, strPtr("from-header"), strPtr("from-body")},
		{"empty body value is presented", `{"username":"alice","password":"secret1","csrf_token":""}`, nil, strPtr("")},
		{"empty header is presented", `{"username":"alice","password":"secret1"}`, strPtr(""), strPtr("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *string
			mockAuth := &handlers.MockAuthService{
				LoginFunc: func(ctx context.Context, sess *models.Session, in services.LoginInput) (*services.LoginResult, error) {
					got = in.CSRFToken
					return nil, models.ErrUnauthorized
				},
			}
			req := httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(tt.body))
			if tt.header != nil {
				req.Header.Set(handlers.CSRFHeader, *tt.header)
			}
			req = handlers.WithSession(req, anonymousSession())

			newTestHandler(mockAuth).Login(httptest.NewRecorder(), req)

			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestLogin_NoSessionIsUnavailable(t *testing.T) {
	req := handlers.NewTestRequest(t, "POST", "/api/auth/login", map[string]string{"username": "alice", "password": "secret1"})
	w := httptest.NewRecorder()
	newTestHandler(&handlers.MockAuthService{}).Login(w, req)

	handlers.AssertErrorResponse(t, w, 503, pkghttp.CodeInfrastructure)
}

func TestLogout_AlwaysSucceeds(t *testing.T) {
	for _, logoutErr := range []error{nil, fmt.Errorf("%w: redis down", models.ErrInfrastructure)} {
		mockAuth := &handlers.MockAuthService{
			LogoutFunc: func(ctx context.Context, sess *models.Session, sourceAddress string) error {
				return logoutErr
			},
		}
		req := handlers.WithSession(httptest.NewRequest("POST", "/api/auth/logout", nil), anonymousSession())

		w := httptest.NewRecorder()
		newTestHandler(mockAuth).Logout(w, req)

		var resp handlers.MessageResponse
		handlers.AssertJSONResponse(t, w, 200, &resp)
		assert.True(t, resp.Success)
		assert.Equal(t, "Logged out successfully", resp.Message)

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, -1, cookies[0].MaxAge)
	}
}

func TestVerify_Anonymous(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		VerifyFunc: func(ctx context.Context, sess *models.Session) (*services.VerifyResult, error) {
			return &services.VerifyResult{Authenticated: false, CSRFToken: "fresh-token"}, nil
		},
	}
	req := handlers.WithSession(httptest.NewRequest("GET", "/api/auth/verify", nil), anonymousSession())

	w := httptest.NewRecorder()
	newTestHandler(mockAuth).Verify(w, req)

	var resp map[string]any
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, false, resp["authenticated"])
	assert.Equal(t, "fresh-token", resp["csrf_token"])
	assert.NotContains(t, resp, "user")
	assert.NotContains(t, resp, "role")
	assert.NotContains(t, resp, "is_admin")
}

func TestVerify_Authenticated(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		VerifyFunc: func(ctx context.Context, sess *models.Session) (*services.VerifyResult, error) {
			return &services.VerifyResult{
				Authenticated: true,
				Identity:      &models.Identity{UserID: "u-1", Username: "boss", Role: models.RoleAdmin, IsAdmin: true},
				CSRFToken:     "tok",
			}, nil
		},
	}
	req := handlers.WithSession(httptest.NewRequest("GET", "/api/auth/verify", nil), anonymousSession())

	w := httptest.NewRecorder()
	newTestHandler(mockAuth).Verify(w, req)

	var resp map[string]any
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, true, resp["authenticated"])
	assert.Equal(t, "boss", resp["user"])
	assert.Equal(t, "admin", resp["role"])
	assert.Equal(t, true, resp["is_admin"])
}

func TestVerify_StoreFailure(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		VerifyFunc: func(ctx context.Context, sess *models.Session) (*services.VerifyResult, error) {
			return nil, models.ErrInfrastructure
		},
	}
	req := handlers.WithSession(httptest.NewRequest("GET", "/api/auth/verify", nil), anonymousSession())

	w := httptest.NewRecorder()
	newTestHandler(mockAuth).Verify(w, req)

	handlers.AssertErrorResponse(t, w, 503, pkghttp.CodeInfrastructure)
}

func TestCSRF(t *testing.T) {
	req := handlers.WithSession(httptest.NewRequest("GET", "/api/auth/csrf", nil), anonymousSession())

	w := httptest.NewRecorder()
	newTestHandler(&handlers.MockAuthService{}).CSRF(w, req)

	var resp handlers.CSRFResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "csrf-token", resp.CSRFToken)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestHealth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := handlers.NewHealthHandler(map[string]handlers.Pinger{
		"database": &handlers.MockPinger{},
		"sessions": &handlers.MockPinger{},
	}, logger)
	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest("GET", "/health", nil))

	var resp handlers.HealthResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "ok", resp.Status)

	h = handlers.NewHealthHandler(map[string]handlers.Pinger{
		"database": &handlers.MockPinger{},
		"sessions": &handlers.MockPinger{PingFunc: func(ctx context.Context) error { return errors.New("down") }},
	}, logger)
	w = httptest.NewRecorder()
	h.Health(w, httptest.NewRequest("GET", "/health", nil))

	handlers.AssertJSONResponse(t, w, 503, &resp)
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "unavailable", resp.Checks["sessions"])
	assert.Equal(t, "ok", resp.Checks["database"])
}

func strPtr(s string) *string { return &s }
