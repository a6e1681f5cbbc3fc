package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/tajnur-auth/internal/auth"
	"github.com/BradenHooton/tajnur-auth/internal/models"
	pkgauth "github.com/BradenHooton/tajnur-auth/pkg/auth"
	pkglogger "github.com/BradenHooton/tajnur-auth/pkg/logger"
)

// CredentialStore is the login side of the users table
type CredentialStore interface {
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	RecordLoginOutcome(ctx context.Context, username, sourceAddress, userAgent string, success bool) error
	MarkLocked(ctx context.Context, username string, until time.Time) error
}

// LoginLimiter decides admission and tracks failures
type LoginLimiter interface {
	Admit(ctx context.Context, username, sourceAddress string) (bool, time.Duration, error)
	RecordFailure(ctx context.Context, username, sourceAddress string) (bool, time.Time, error)
	RecordSuccess(ctx context.Context, username string) error
}

// LoginInput is one login request. CSRFToken is nil when the caller did
// not send one; a present-but-empty token is checked and rejected.
type LoginInput struct {
	Username      string
	Password      string
	CSRFToken     *string
	SourceAddress string
	UserAgent     string
}

// LoginResult is returned on a successful login
type LoginResult struct {
	Identity  models.Identity
	CSRFToken string
}

// VerifyResult describes the caller's session. Identity is nil unless
// Authenticated is true.
type VerifyResult struct {
	Authenticated bool
	Identity      *models.Identity
	CSRFToken     string
}

// AuthService orchestrates login, logout, verify and CSRF issuance over a
// caller-supplied session.
type AuthService struct {
	creds       CredentialStore
	limiter     LoginLimiter
	sessions    *auth.SessionManager
	csrf        *auth.CSRFTokenManager
	timing      *auth.TimingDelay
	notifier    LockoutNotifier
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

func NewAuthService(
	creds CredentialStore,
	limiter LoginLimiter,
	sessions *auth.SessionManager,
	csrf *auth.CSRFTokenManager,
	timing *auth.TimingDelay,
	notifier LockoutNotifier,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	return &AuthService{
		creds:       creds,
		limiter:     limiter,
		sessions:    sessions,
		csrf:        csrf,
		timing:      timing,
		notifier:    notifier,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Login authenticates in.Username/in.Password and binds the identity to sess.
// Checks run in order: input bounds, CSRF, admission, credentials. The
// first three never touch the credential store.
func (s *AuthService) Login(ctx context.Context, sess *models.Session, in LoginInput) (*LoginResult, error) {
	start := time.Now()

	username := NormalizeUsername(in.Username)
	if err := validateStruct(loginCredentials{Username: username, Password: in.Password}); err != nil {
		s.logger.Info("login rejected: invalid input", slog.String("error", err.Error()))
		return nil, err
	}

	if in.CSRFToken != nil && !s.csrf.Validate(sess, *in.CSRFToken) {
		s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventCSRFRejected,
			Username:      username,
			IPAddress:     in.SourceAddress,
			UserAgent:     in.UserAgent,
			FailureReason: "csrf_mismatch",
		})
		return nil, models.ErrForbidden
	}

	allowed, _, err := s.limiter.Admit(ctx, username, in.SourceAddress)
	if err != nil {
		s.logger.Error("rate limiter unavailable", slog.Any("error", err))
		return nil, err
	}
	if !allowed {
		s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventLoginRateLimited,
			Username:      username,
			IPAddress:     in.SourceAddress,
			UserAgent:     in.UserAgent,
			FailureReason: "rate_limited",
		})
		return nil, models.ErrRateLimited
	}

	account, err := s.creds.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("credential store lookup failed", slog.Any("error", err))
			return nil, infrastructure(err)
		}
		pkgauth.BurnCompare(in.Password)
		return nil, s.failLogin(ctx, start, nil, username, in, "unknown_or_inactive")
	}

	if err := pkgauth.ComparePassword(account.PasswordHash, in.Password); err != nil {
		return nil, s.failLogin(ctx, start, account, username, in, "invalid_password")
	}

	if err := s.limiter.RecordSuccess(ctx, username); err != nil {
		s.logger.Error("failed to clear login failures", slog.Any("error", err))
		return nil, err
	}
	if err := s.creds.RecordLoginOutcome(ctx, username, in.SourceAddress, in.UserAgent, true); err != nil {
		s.logger.Error("failed to record login success", slog.Any("error", err))
		return nil, infrastructure(err)
	}

	identity := account.Identity()
	if err := s.sessions.Commit(ctx, sess, identity); err != nil {
		s.logger.Error("failed to commit session", slog.Any("error", err))
		return nil, err
	}

	token, err := s.csrf.Issue(ctx, sess)
	if err != nil {
		s.logger.Error("failed to issue csrf token", slog.Any("error", err))
		return nil, err
	}

	s.timing.WaitFrom(ctx, start, true)

	s.logger.Info("user logged in", slog.String("user_id", account.ID))
	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventLoginSuccess,
		UserID:    account.ID,
		Username:  username,
		IPAddress: in.SourceAddress,
		UserAgent: in.UserAgent,
		Success:   true,
	})

	return &LoginResult{Identity: identity, CSRFToken: token}, nil
}

// failLogin records a credential failure and returns ErrUnauthorized once
// the uniform delay has elapsed. account is nil when no active account
// matched. A store failure while recording wins over ErrUnauthorized.
func (s *AuthService) failLogin(ctx context.Context, start time.Time, account *models.Account, username string, in LoginInput, reason string) error {
	reachedLimit, until, err := s.limiter.RecordFailure(ctx, username, in.SourceAddress)
	if err != nil {
		s.logger.Error("failed to record login failure", slog.Any("error", err))
		return err
	}
	if err := s.creds.RecordLoginOutcome(ctx, username, in.SourceAddress, in.UserAgent, false); err != nil {
		s.logger.Error("failed to append login attempt", slog.Any("error", err))
		return infrastructure(err)
	}

	event := pkglogger.AuditEvent{
		EventType:     pkglogger.EventLoginFailure,
		Username:      username,
		IPAddress:     in.SourceAddress,
		UserAgent:     in.UserAgent,
		FailureReason: reason,
	}
	if account != nil {
		event.UserID = account.ID
	}
	s.auditLogger.LogAuthAttempt(ctx, event)

	if reachedLimit && account != nil {
		s.onLockout(ctx, account, in.SourceAddress, until)
	}

	s.timing.WaitFrom(ctx, start, false)
	return models.ErrUnauthorized
}

// onLockout runs side effects for an account whose window just filled.
// None of them affect the response.
func (s *AuthService) onLockout(ctx context.Context, account *models.Account, sourceAddress string, until time.Time) {
	if err := s.creds.MarkLocked(ctx, account.Username, until); err != nil {
		s.logger.Warn("failed to stamp locked_until", slog.Any("error", err))
	}

	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType:     pkglogger.EventAccountLocked,
		UserID:        account.ID,
		Username:      account.Username,
		IPAddress:     sourceAddress,
		FailureReason: "failure_window_full",
		Metadata:      map[string]string{"until": until.UTC().Format(time.RFC3339)},
	})

	if s.notifier != nil {
		s.notifier.NotifyLockout(account, sourceAddress, until)
	}
}

// Logout destroys sess. Calling it on an anonymous or already destroyed
// session is not an error.
func (s *AuthService) Logout(ctx context.Context, sess *models.Session, sourceAddress string) error {
	if sess.Identity != nil {
		s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
			EventType: pkglogger.EventLogout,
			UserID:    sess.Identity.UserID,
			Username:  sess.Identity.Username,
			IPAddress: sourceAddress,
			Success:   true,
		})
	}
	return s.sessions.Destroy(ctx, sess)
}

// Verify reports the session state, issuing a CSRF token if none exists yet.
func (s *AuthService) Verify(ctx context.Context, sess *models.Session) (*VerifyResult, error) {
	ok, err := s.sessions.Verify(ctx, sess)
	if err != nil {
		return nil, err
	}

	token, err := s.csrf.Issue(ctx, sess)
	if err != nil {
		return nil, err
	}

	res := &VerifyResult{Authenticated: ok, CSRFToken: token}
	if ok {
		id := *sess.Identity
		res.Identity = &id
	}
	return res, nil
}

// CSRF returns the session's anti-forgery token, minting one if needed
func (s *AuthService) CSRF(ctx context.Context, sess *models.Session) (string, error) {
	return s.csrf.Issue(ctx, sess)
}

func infrastructure(err error) error {
	if errors.Is(err, models.ErrInfrastructure) {
		return err
	}
	return fmt.Errorf("%w: %v", models.ErrInfrastructure, err)
}
