package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/BradenHooton/tajnur-auth/internal/auth"
	"github.com/BradenHooton/tajnur-auth/internal/metrics"
	"github.com/BradenHooton/tajnur-auth/internal/models"
	"github.com/BradenHooton/tajnur-auth/internal/services"
	pkghttp "github.com/BradenHooton/tajnur-auth/pkg/http"
)

// CSRFHeader is the request header that may carry the anti-forgery token
const CSRFHeader = "X-CSRF-Token"

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, sess *models.Session, in services.LoginInput) (*services.LoginResult, error)
	Logout(ctx context.Context, sess *models.Session, sourceAddress string) error
	Verify(ctx context.Context, sess *models.Session) (*services.VerifyResult, error)
	CSRF(ctx context.Context, sess *models.Session) (string, error)
}

// AuthHandler handles the /api/auth endpoints
type AuthHandler struct {
	service    AuthServiceInterface
	cookies    auth.CookieConfig
	sessionTTL time.Duration
	resolver   *pkghttp.IPResolver
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewAuthHandler creates a new AuthHandler. sessionTTL is the lifetime
// given to the session cookie after login.
func NewAuthHandler(
	service AuthServiceInterface,
	cookies auth.CookieConfig,
	sessionTTL time.Duration,
	resolver *pkghttp.IPResolver,
	m *metrics.Metrics,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		service:    service,
		cookies:    cookies,
		sessionTTL: sessionTTL,
		resolver:   resolver,
		metrics:    m,
		logger:     logger,
	}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Username  string  `json:"username"`
	Password  string  `json:"password"`
	CSRFToken *string `json:"csrf_token,omitempty"`
}

// LoginResponse is returned on a successful login
type LoginResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	User      string `json:"user"`
	Role      string `json:"role"`
	IsAdmin   bool   `json:"is_admin"`
	CSRFToken string `json:"csrf_token"`
}

// VerifyResponse describes the caller's session
type VerifyResponse struct {
	Success       bool   `json:"success"`
	Authenticated bool   `json:"authenticated"`
	User          string `json:"user,omitempty"`
	Role          string `json:"role,omitempty"`
	IsAdmin       *bool  `json:"is_admin,omitempty"`
	CSRFToken     string `json:"csrf_token"`
}

// CSRFResponse carries the session's anti-forgery token
type CSRFResponse struct {
	Success   bool   `json:"success"`
	CSRFToken string `json:"csrf_token"`
}

// MessageResponse is a bare success message
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}

	var req LoginRequest
	if err := pkghttp.DecodeJSON(w, r, &req); err != nil {
		h.metrics.LoginOutcome(metrics.OutcomeInvalidInput)
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	in := services.LoginInput{
		Username:      req.Username,
		Password:      req.Password,
		CSRFToken:     presentedCSRFToken(r, req.CSRFToken),
		SourceAddress: h.resolver.ClientIP(r),
		UserAgent:     r.UserAgent(),
	}

	result, err := h.service.Login(r.Context(), sess, in)
	if err != nil {
		h.writeLoginError(w, r, err)
		return
	}

	h.metrics.LoginOutcome(metrics.OutcomeSuccess)

	// refresh the cookie so its lifetime matches the new binding
	auth.SetSessionCookie(w, sess.ID, h.sessionTTL, h.cookies)

	pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{
		Success:   true,
		Message:   "Login successful",
		User:      result.Identity.Username,
		Role:      result.Identity.Role,
		IsAdmin:   result.Identity.IsAdmin,
		CSRFToken: result.CSRFToken,
	})
}

func (h *AuthHandler) writeLoginError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		h.metrics.LoginOutcome(metrics.OutcomeInvalidInput)
		pkghttp.WriteBadRequest(w, "Invalid username or password format")
	case errors.Is(err, models.ErrForbidden):
		h.metrics.LoginOutcome(metrics.OutcomeForbidden)
		pkghttp.WriteForbidden(w, "Invalid CSRF token")
	case errors.Is(err, models.ErrRateLimited):
		h.metrics.LoginOutcome(metrics.OutcomeRateLimited)
		pkghttp.WriteTooManyRequests(w, "Too many failed attempts. Please try again later.")
	case errors.Is(err, models.ErrUnauthorized):
		h.metrics.LoginOutcome(metrics.OutcomeUnauthorized)
		pkghttp.WriteUnauthorized(w, "Invalid credentials")
	default:
		h.metrics.LoginOutcome(metrics.OutcomeInfrastructure)
		h.logger.Error("login failed on infrastructure",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Any("error", err),
		)
		pkghttp.WriteServiceUnavailable(w)
	}
}

// Logout handles POST /api/auth/logout. It always reports success; a store
// failure is logged and the cookie is cleared regardless.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sess := auth.SessionFromContext(r.Context()); sess != nil {
		if err := h.service.Logout(r.Context(), sess, h.resolver.ClientIP(r)); err != nil {
			h.logger.Error("failed to destroy session",
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.Any("error", err),
			)
		}
	}

	auth.ClearSessionCookie(w, h.cookies)
	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{
		Success: true,
		Message: "Logged out successfully",
	})
}

// Verify handles GET /api/auth/verify
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}

	result, err := h.service.Verify(r.Context(), sess)
	if err != nil {
		h.logger.Error("verify failed",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Any("error", err),
		)
		pkghttp.WriteServiceUnavailable(w)
		return
	}

	resp := VerifyResponse{
		Success:       true,
		Authenticated: result.Authenticated,
		CSRFToken:     result.CSRFToken,
	}
	if result.Authenticated && result.Identity != nil {
		isAdmin := result.Identity.IsAdmin
		resp.User = result.Identity.Username
		resp.Role = result.Identity.Role
		resp.IsAdmin = &isAdmin
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// CSRF handles GET /api/auth/csrf
func (h *AuthHandler) CSRF(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}

	token, err := h.service.CSRF(r.Context(), sess)
	if err != nil {
		h.logger.Error("csrf issue failed",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Any("error", err),
		)
		pkghttp.WriteServiceUnavailable(w)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, CSRFResponse{Success: true, CSRFToken: token})
}

// session returns the request's session or writes 503 when the session
// middleware did not run.
func (h *AuthHandler) session(w http.ResponseWriter, r *http.Request) *models.Session {
	sess := auth.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("no session in request context",
			slog.String("request_id", middleware.GetReqID(r.Context())))
		pkghttp.WriteServiceUnavailable(w)
	}
	return sess
}

// presentedCSRFToken prefers the body field and falls back to the header.
// nil means the client sent neither.
func presentedCSRFToken(r *http.Request, fromBody *string) *string {
	if fromBody != nil {
		return fromBody
	}
	if values, ok := r.Header[http.CanonicalHeaderKey(CSRFHeader)]; ok && len(values) > 0 {
		token := values[0]
		return &token
	}
	return nil
}
