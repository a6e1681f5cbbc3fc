package models

import "time"

// Identity is the authenticated principal bound to a session
type Identity struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	IsAdmin  bool   `json:"is_admin"`
}

// Complete reports whether every field required for an authenticated result is present
func (i Identity) Complete() bool {
	return i.UserID != "" && i.Username != "" && i.Role != ""
}

// Session is the server-side state behind an opaque session handle.
// Identity is nil while the session is anonymous.
type Session struct {
	ID        string    `json:"id"`
	CSRFToken string    `json:"csrf_token,omitempty"`
	Identity  *Identity `json:"identity,omitempty"`

	// AuthenticatedAt/ExpiresAt describe the identity binding and are zero while anonymous
	AuthenticatedAt time.Time `json:"authenticated_at,omitempty"`
	ExpiresAt       time.Time `json:"expires_at,omitempty"`

	// StartedAt is when the handle was minted
	StartedAt time.Time `json:"started_at"`
}

// Authenticated reports whether the session holds a live, complete identity at now
func (s *Session) Authenticated(now time.Time) bool {
	if s == nil || s.Identity == nil || !s.Identity.Complete() {
		return false
	}
	return !now.After(s.ExpiresAt)
}

// ClearIdentity drops every identity field so an expired binding cannot leak
func (s *Session) ClearIdentity() {
	s.Identity = nil
	s.AuthenticatedAt = time.Time{}
	s.ExpiresAt = time.Time{}
}
