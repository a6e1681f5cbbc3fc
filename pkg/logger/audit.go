package logger

import (
	"context"
	"log/slog"
	"time"
)

// Audit event types
const (
	EventLoginSuccess     = "login_success"
	EventLoginFailure     = "login_failure"
	EventLoginRateLimited = "login_rate_limited"
	EventCSRFRejected     = "csrf_rejected"
	EventLogout           = "logout"
	EventAccountLocked    = "account_locked"
	EventAccountCreated   = "account_created"
	EventAccountStatus    = "account_status_changed"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	Username      string
	UserID        string
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger writes audit records through slog. Outside development,
// usernames are masked before they reach the log.
type AuditLogger struct {
	logger *slog.Logger
	env    string
}

func NewAuditLogger(logger *slog.Logger, env string) *AuditLogger {
	return &AuditLogger{
		logger: logger,
		env:    env,
	}
}

// LogAuthAttempt logs login, logout and CSRF outcomes
func (al *AuditLogger) LogAuthAttempt(ctx context.Context, event AuditEvent) {
	al.log(ctx, "auth", event)
}

// LogAccountAction logs provisioning actions taken out-of-band
func (al *AuditLogger) LogAccountAction(ctx context.Context, event AuditEvent) {
	event.Success = true
	al.log(ctx, "account", event)
}

func (al *AuditLogger) log(ctx context.Context, auditType string, event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", auditType),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.Username != "" {
		attrs = append(attrs, slog.String("username", al.username(event.Username)))
	}
	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}

func (al *AuditLogger) username(u string) string {
	if al.env == "development" {
		return u
	}
	return MaskedUsername(u)
}
