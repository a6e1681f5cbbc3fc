package services

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/tajnur-auth/internal/models"
)

// MockCredentialStore implements CredentialStore for testing
type MockCredentialStore struct {
	GetByUsernameFunc      func(ctx context.Context, username string) (*models.Account, error)
	RecordLoginOutcomeFunc func(ctx context.Context, username, sourceAddress, userAgent string, success bool) error
	MarkLockedFunc         func(ctx context.Context, username string, until time.Time) error

	mu       sync.Mutex
	Outcomes []LoginOutcome
	Lookups  int
}

// LoginOutcome is one recorded RecordLoginOutcome call
type LoginOutcome struct {
	Username      string
	SourceAddress string
	Success       bool
}

func (m *MockCredentialStore) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	m.mu.Lock()
	m.Lookups++
	m.mu.Unlock()
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *MockCredentialStore) RecordLoginOutcome(ctx context.Context, username, sourceAddress, userAgent string, success bool) error {
	m.mu.Lock()
	m.Outcomes = append(m.Outcomes, LoginOutcome{Username: username, SourceAddress: sourceAddress, Success: success})
	m.mu.Unlock()
	if m.RecordLoginOutcomeFunc != nil {
		return m.RecordLoginOutcomeFunc(ctx, username, sourceAddress, userAgent, success)
	}
	return nil
}

func (m *MockCredentialStore) MarkLocked(ctx context.Context, username string, until time.Time) error {
	if m.MarkLockedFunc != nil {
		return m.MarkLockedFunc(ctx, username, until)
	}
	return nil
}

// MockFailureWindow implements FailureWindow for testing
type MockFailureWindow struct {
	FailuresFunc func(ctx context.Context, key string, since time.Time) ([]time.Time, error)
	AddFunc      func(ctx context.Context, key string, at time.Time, ttl time.Duration) error
	ResetFunc    func(ctx context.Context, key string) error
}

func (m *MockFailureWindow) Failures(ctx context.Context, key string, since time.Time) ([]time.Time, error) {
	if m.FailuresFunc != nil {
		return m.FailuresFunc(ctx, key, since)
	}
	return nil, nil
}

func (m *MockFailureWindow) Add(ctx context.Context, key string, at time.Time, ttl time.Duration) error {
	if m.AddFunc != nil {
		return m.AddFunc(ctx, key, at, ttl)
	}
	return nil
}

func (m *MockFailureWindow) Reset(ctx context.Context, key string) error {
	if m.ResetFunc != nil {
		return m.ResetFunc(ctx, key)
	}
	return nil
}

// MockLockoutNotifier records NotifyLockout calls
type MockLockoutNotifier struct {
	mu    sync.Mutex
	Calls []string
}

func (m *MockLockoutNotifier) NotifyLockout(account *models.Account, sourceAddress string, until time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, account.Username)
}

// MockAccountRepository implements AccountRepository for testing
type MockAccountRepository struct {
	CreateFunc    func(ctx context.Context, account *models.Account) (*models.Account, error)
	ListFunc      func(ctx context.Context, limit, offset int) ([]*models.Account, error)
	SetActiveFunc func(ctx context.Context, username string, active bool) error
}

func (m *MockAccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	account.ID = "acct-1"
	return account, nil
}

func (m *MockAccountRepository) List(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*models.Account{}, nil
}

func (m *MockAccountRepository) SetActive(ctx context.Context, username string, active bool) error {
	if m.SetActiveFunc != nil {
		return m.SetActiveFunc(ctx, username, active)
	}
	return nil
}

// NewTestAccount returns an active staff account with the given password hash
func NewTestAccount(id, username, passwordHash string) *models.Account {
	now := time.Now()
	return &models.Account{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		Role:         models.RoleStaff,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
