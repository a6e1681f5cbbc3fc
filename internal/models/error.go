package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("resource already exists")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// ErrRateLimited means admission was denied by the login rate limiter.
	// Transient: retrying after the lockout window elapses can succeed.
	ErrRateLimited = errors.New("too many failed login attempts")

	// ErrInfrastructure wraps failures of a backing store (database, session
	// store, rate-limit store). It is never an authentication outcome.
	ErrInfrastructure = errors.New("infrastructure error")
)
