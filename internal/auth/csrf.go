package auth

import (
	"context"
	"crypto/subtle"

	"github.com/BradenHooton/tajnur-auth/internal/models"
	pkgauth "github.com/BradenHooton/tajnur-auth/pkg/auth"
)

// CSRFTokenBytes is the entropy of an anti-forgery token (hex, 64 chars)
const CSRFTokenBytes = 32

// CSRFTokenManager issues one anti-forgery token per session and checks
// presented tokens against it. The token lives as long as the session.
type CSRFTokenManager struct {
	sessions *SessionManager
}

func NewCSRFTokenManager(sessions *SessionManager) *CSRFTokenManager {
	return &CSRFTokenManager{sessions: sessions}
}

// Issue returns the session's token, minting and persisting one first if
// the session has none.
func (m *CSRFTokenManager) Issue(ctx context.Context, s *models.Session) (string, error) {
	if s.CSRFToken != "" {
		return s.CSRFToken, nil
	}

	token, err := pkgauth.RandomHex(CSRFTokenBytes)
	if err != nil {
		return "", err
	}

	s.CSRFToken = token
	if err := m.sessions.Save(ctx, s); err != nil {
		s.CSRFToken = ""
		return "", err
	}
	return token, nil
}

// Validate compares presented to the session's token in constant time.
// An empty value on either side never validates.
func (m *CSRFTokenManager) Validate(s *models.Session, presented string) bool {
	if s == nil || s.CSRFToken == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.CSRFToken), []byte(presented)) == 1
}
