package auth_test

import (
	"context"
	"time"

	"github.com/BradenHooton/tajnur-auth/internal/models"
)

// MockSessionStore lets a test replace any store call
type MockSessionStore struct {
	LoadFunc   func(ctx context.Context, id string) (*models.Session, error)
	SaveFunc   func(ctx context.Context, s *models.Session, ttl time.Duration) error
	DeleteFunc func(ctx context.Context, id string) error
	PingFunc   func(ctx context.Context) error
}

func (m *MockSessionStore) Load(ctx context.Context, id string) (*models.Session, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockSessionStore) Save(ctx context.Context, s *models.Session, ttl time.Duration) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, s, ttl)
	}
	return nil
}

func (m *MockSessionStore) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockSessionStore) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

func aliceIdentity() models.Identity {
	return models.Identity{UserID: "u-alice", Username: "alice", Role: models.RoleStaff}
}
