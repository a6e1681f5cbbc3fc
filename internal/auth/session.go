package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/BradenHooton/tajnur-auth/internal/models"
	pkgauth "github.com/BradenHooton/tajnur-auth/pkg/auth"
)

const (
	// SessionIDBytes is the entropy of a session handle (base64url, 43 chars)
	SessionIDBytes = 32
	sessionIDLen   = 43
)

// SessionManager owns the session lifecycle:
// Anonymous -> Authenticated -> LoggedOut or Expired.
//
// Handles are only ever minted here. A handle presented by a client that
// the store does not know is discarded and a new one minted in its place,
// so a client can never choose the handle its identity is bound to.
type SessionManager struct {
	store SessionStore
	clock clock.Clock
	ttl   time.Duration
}

func NewSessionManager(store SessionStore, ttl time.Duration, clk clock.Clock) *SessionManager {
	if clk == nil {
		clk = clock.New()
	}
	return &SessionManager{store: store, clock: clk, ttl: ttl}
}

func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Resume returns the stored session for id, or a freshly minted anonymous
// session when id is empty, malformed, unknown or evicted. fresh reports
// whether a new handle was minted. A fresh session is not persisted until
// something is written to it.
func (m *SessionManager) Resume(ctx context.Context, id string) (sess *models.Session, fresh bool, err error) {
	if validSessionID(id) {
		sess, err = m.store.Load(ctx, id)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", models.ErrInfrastructure, err)
		}
		if sess != nil && sess.ID == id {
			return sess, false, nil
		}
	}

	sess, err = m.mint()
	if err != nil {
		return nil, false, err
	}
	return sess, true, nil
}

func (m *SessionManager) mint() (*models.Session, error) {
	id, err := pkgauth.RandomURLToken(SessionIDBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: mint session id: %v", models.ErrInfrastructure, err)
	}
	return &models.Session{ID: id, StartedAt: m.clock.Now()}, nil
}

// Save persists s. The store entry outlives an identity's expires_at only
// by however long the session keeps being touched; Verify decides expiry.
func (m *SessionManager) Save(ctx context.Context, s *models.Session) error {
	if err := m.store.Save(ctx, s, m.ttl); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInfrastructure, err)
	}
	return nil
}

// Commit binds identity to s with an absolute expiry of now+ttl.
func (m *SessionManager) Commit(ctx context.Context, s *models.Session, identity models.Identity) error {
	if !identity.Complete() {
		return fmt.Errorf("%w: incomplete identity", models.ErrInvalidInput)
	}

	now := m.clock.Now()
	id := identity
	s.Identity = &id
	s.AuthenticatedAt = now
	s.ExpiresAt = now.Add(m.ttl)

	return m.Save(ctx, s)
}

// Verify reports whether s holds a live identity. An expired binding is
// cleared and persisted so no stale field survives.
func (m *SessionManager) Verify(ctx context.Context, s *models.Session) (bool, error) {
	now := m.clock.Now()
	if s.Authenticated(now) {
		return true, nil
	}

	if s.Identity != nil || !s.ExpiresAt.IsZero() {
		s.ClearIdentity()
		if err := m.Save(ctx, s); err != nil {
			return false, err
		}
	}
	return false, nil
}

// Destroy discards every piece of state behind s and invalidates its handle.
// Destroying an unsaved or already-destroyed session is a no-op.
func (m *SessionManager) Destroy(ctx context.Context, s *models.Session) error {
	if s.ID != "" {
		if err := m.store.Delete(ctx, s.ID); err != nil {
			return fmt.Errorf("%w: %v", models.ErrInfrastructure, err)
		}
	}

	s.ID = ""
	s.CSRFToken = ""
	s.ClearIdentity()
	return nil
}

func (m *SessionManager) Ping(ctx context.Context) error {
	return m.store.Ping(ctx)
}

func validSessionID(id string) bool {
	if len(id) != sessionIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
