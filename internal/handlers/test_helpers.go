package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BradenHooton/tajnur-auth/internal/auth"
	"github.com/BradenHooton/tajnur-auth/internal/models"
	"github.com/BradenHooton/tajnur-auth/internal/services"
	pkghttp "github.com/BradenHooton/tajnur-auth/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithSession puts sess in the request context the way SessionMiddleware does
func WithSession(req *http.Request, sess *models.Session) *http.Request {
	ctx := context.WithValue(req.Context(), auth.SessionContextKey, sess)
	return req.WithContext(ctx)
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.False(t, resp.Success)
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc  func(ctx context.Context, sess *models.Session, in services.LoginInput) (*services.LoginResult, error)
	LogoutFunc func(ctx context.Context, sess *models.Session, sourceAddress string) error
	VerifyFunc func(ctx context.Context, sess *models.Session) (*services.VerifyResult, error)
	CSRFFunc   func(ctx context.Context, sess *models.Session) (string, error)
}

func (m *MockAuthService) Login(ctx context.Context, sess *models.Session, in services.LoginInput) (*services.LoginResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, sess, in)
}

func (m *MockAuthService) Logout(ctx context.Context, sess *models.Session, sourceAddress string) error {
	if m.LogoutFunc == nil {
		return nil
	}
	return m.LogoutFunc(ctx, sess, sourceAddress)
}

func (m *MockAuthService) Verify(ctx context.Context, sess *models.Session) (*services.VerifyResult, error) {
	if m.VerifyFunc == nil {
		return &services.VerifyResult{CSRFToken: "csrf-token"}, nil
	}
	return m.VerifyFunc(ctx, sess)
}

func (m *MockAuthService) CSRF(ctx context.Context, sess *models.Session) (string, error) {
	if m.CSRFFunc == nil {
		return "csrf-token", nil
	}
	return m.CSRFFunc(ctx, sess)
}

// MockPinger implements Pinger for testing
type MockPinger struct {
	PingFunc func(ctx context.Context) error
}

func (m *MockPinger) Ping(ctx context.Context) error {
	if m.PingFunc == nil {
		return nil
	}
	return m.PingFunc(ctx)
}
