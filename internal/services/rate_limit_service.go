package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/BradenHooton/tajnur-auth/internal/models"
	pkglogger "github.com/BradenHooton/tajnur-auth/pkg/logger"
)

const sourceKeyPrefix = "ip:"

// FailureWindow stores failed-attempt timestamps per key. Failures prunes
// entries at or before since and returns the remainder in ascending order.
type FailureWindow interface {
	Failures(ctx context.Context, key string, since time.Time) ([]time.Time, error)
	Add(ctx context.Context, key string, at time.Time, ttl time.Duration) error
	Reset(ctx context.Context, key string) error
}

// RateLimitConfig holds configuration for rate limiting behavior
type RateLimitConfig struct {
	MaxAttempts          int           // failures per username inside Window before admission is denied
	Window               time.Duration // trailing window; a failure stops counting once it is this old
	BySource             bool          // also key failures by source address
	MaxAttemptsPerSource int
}

// RateLimitService decides login admission from a sliding window of recent
// failures. Lockout is a pure function of that window: there is no lock
// flag to clear, it lifts when the oldest qualifying failure ages out.
type RateLimitService struct {
	window FailureWindow
	config RateLimitConfig
	clock  clock.Clock
	logger *slog.Logger
}

func NewRateLimitService(window FailureWindow, config RateLimitConfig, clk clock.Clock, logger *slog.Logger) *RateLimitService {
	if clk == nil {
		clk = clock.New()
	}
	return &RateLimitService{
		window: window,
		config: config,
		clock:  clk,
		logger: logger,
	}
}

// Admit reports whether a login for username from sourceAddress may proceed.
// When denied, retryAfter is how long until the window admits again. Store
// errors deny with ErrInfrastructure.
func (s *RateLimitService) Admit(ctx context.Context, username, sourceAddress string) (bool, time.Duration, error) {
	now := s.clock.Now()

	allowed, retryAfter, err := s.admitKey(ctx, username, s.config.MaxAttempts, now)
	if err != nil {
		return false, 0, err
	}

	if s.config.BySource && sourceAddress != "" {
		srcAllowed, srcRetry, err := s.admitKey(ctx, sourceKeyPrefix+sourceAddress, s.config.MaxAttemptsPerSource, now)
		if err != nil {
			return false, 0, err
		}
		if !srcAllowed {
			s.logger.Warn("source address rate limited", slog.String("ip_address", sourceAddress))
			allowed = false
			if srcRetry > retryAfter {
				retryAfter = srcRetry
			}
		}
	}

	if !allowed {
		s.logger.Warn("login rate limited",
			slog.String("username", pkglogger.MaskedUsername(username)),
			slog.Duration("retry_after", retryAfter),
		)
	}
	return allowed, retryAfter, nil
}

func (s *RateLimitService) admitKey(ctx context.Context, key string, limit int, now time.Time) (bool, time.Duration, error) {
	failures, err := s.window.Failures(ctx, key, now.Add(-s.config.Window))
	if err != nil {
		return false, 0, fmt.Errorf("%w: rate limit lookup: %v", models.ErrInfrastructure, err)
	}

	if len(failures) < limit {
		return true, 0, nil
	}

	// Admission resumes once the count drops below limit, i.e. when the
	// failure that is limit-th from the newest leaves the window.
	pivot := failures[len(failures)-limit]
	retryAfter := pivot.Add(s.config.Window).Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}
	return false, retryAfter, nil
}

// RecordFailure adds a failed attempt. reachedLimit is true only for the
// failure that brings the username's window to exactly MaxAttempts, so
// callers can act once per lockout.
func (s *RateLimitService) RecordFailure(ctx context.Context, username, sourceAddress string) (reachedLimit bool, until time.Time, err error) {
	now := s.clock.Now()

	if err := s.window.Add(ctx, username, now, s.config.Window); err != nil {
		return false, time.Time{}, fmt.Errorf("%w: record failure: %v", models.ErrInfrastructure, err)
	}

	if s.config.BySource && sourceAddress != "" {
		if err := s.window.Add(ctx, sourceKeyPrefix+sourceAddress, now, s.config.Window); err != nil {
			return false, time.Time{}, fmt.Errorf("%w: record source failure: %v", models.ErrInfrastructure, err)
		}
	}

	failures, err := s.window.Failures(ctx, username, now.Add(-s.config.Window))
	if err != nil {
		return false, time.Time{}, fmt.Errorf("%w: rate limit lookup: %v", models.ErrInfrastructure, err)
	}

	if len(failures) != s.config.MaxAttempts {
		return false, time.Time{}, nil
	}
	return true, failures[0].Add(s.config.Window), nil
}

// RecordSuccess clears the username's failures. Source-address failures
// are kept.
func (s *RateLimitService) RecordSuccess(ctx context.Context, username string) error {
	if err := s.window.Reset(ctx, username); err != nil {
		return fmt.Errorf("%w: reset failures: %v", models.ErrInfrastructure, err)
	}
	return nil
}
