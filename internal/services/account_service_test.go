package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/tajnur-auth/internal/models"
	pkgauth "github.com/BradenHooton/tajnur-auth/pkg/auth"
	pkglogger "github.com/BradenHooton/tajnur-auth/pkg/logger"
)

func newTestAccountService(repo AccountRepository) *AccountService {
	svc := NewAccountService(repo, testLogger(), pkglogger.NewAuditLogger(testLogger(), "test"))
	svc.hash = func(p string) (string, error) { return pkgauth.HashPasswordWithCost(p, 4) }
	return svc
}

func TestAccountService_CreateAccount_Success(t *testing.T) {
	var saved *models.Account
	repo := &MockAccountRepository{
		CreateFunc: func(ctx context.Context, account *models.Account) (*models.Account, error) {
			saved = account
			account.ID = "acct-1"
			return account, nil
		},
	}
	svc := newTestAccountService(repo)

	account, err := svc.CreateAccount(context.Background(), NewAccount{
		Username: "  Alice ",
		Password: "correct-horse1",
		Email:    "alice@example.com",
		Role:     models.RoleStaff,
	})

	require.NoError(t, err)
	assert.Equal(t, "acct-1", account.ID)
	assert.Equal(t, "alice", saved.Username)
	assert.True(t, saved.IsActive)
	assert.False(t, saved.IsAdmin)
	assert.NotEqual(t, "correct-horse1", saved.PasswordHash)
	assert.NoError(t, pkgauth.ComparePassword(saved.PasswordHash, "correct-horse1"))
}

func TestAccountService_CreateAccount_AdminRoleImpliesAdmin(t *testing.T) {
	var saved *models.Account
	repo := &MockAccountRepository{
		CreateFunc: func(ctx context.Context, account *models.Account) (*models.Account, error) {
			saved = account
			return account, nil
		},
	}
	svc := newTestAccountService(repo)

	_, err := svc.CreateAccount(context.Background(), NewAccount{
		Username: "root_admin",
		Password: "correct-horse1",
		Role:     models.RoleAdmin,
	})
	require.NoError(t, err)
	assert.True(t, saved.IsAdmin)
}

func TestAccountService_CreateAccount_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   NewAccount
	}{
		{"bad username", NewAccount{Username: "a!", Password: "correct-horse1", Role: models.RoleStaff}},
		{"bad role", NewAccount{Username: "alice", Password: "correct-horse1", Role: "owner"}},
		{"bad email", NewAccount{Username: "alice", Password: "correct-horse1", Email: "nope", Role: models.RoleStaff}},
		{"weak password", NewAccount{Username: "alice", Password: "short", Role: models.RoleStaff}},
		{"password without digit", NewAccount{Username: "alice", Password: "onlyletters", Role: models.RoleStaff}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockAccountRepository{
				CreateFunc: func(ctx context.Context, account *models.Account) (*models.Account, error) {
					t.Fatal("repository must not be called")
					return nil, nil
				},
			}
			_, err := newTestAccountService(repo).CreateAccount(context.Background(), tt.in)
			assert.ErrorIs(t, err, models.ErrInvalidInput)
		})
	}
}

func TestAccountService_EnsureAdmin(t *testing.T) {
	t.Run("creates when missing", func(t *testing.T) {
		svc := newTestAccountService(&MockAccountRepository{})
		created, err := svc.EnsureAdmin(context.Background(), "admin", "correct-horse1")
		require.NoError(t, err)
		assert.True(t, created)
	})

	t.Run("existing account is left alone", func(t *testing.T) {
		svc := newTestAccountService(&MockAccountRepository{
			CreateFunc: func(ctx context.Context, account *models.Account) (*models.Account, error) {
				return nil, models.ErrConflict
			},
		})
		created, err := svc.EnsureAdmin(context.Background(), "admin", "correct-horse1")
		require.NoError(t, err)
		assert.False(t, created)
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		svc := newTestAccountService(&MockAccountRepository{
			CreateFunc: func(ctx context.Context, account *models.Account) (*models.Account, error) {
				return nil, errors.New("connection refused")
			},
		})
		_, err := svc.EnsureAdmin(context.Background(), "admin", "correct-horse1")
		assert.Error(t, err)
	})
}

func TestAccountService_ListAccounts_ClampsLimit(t *testing.T) {
	var gotLimit, gotOffset int
	svc := newTestAccountService(&MockAccountRepository{
		ListFunc: func(ctx context.Context, limit, offset int) ([]*models.Account, error) {
			gotLimit, gotOffset = limit, offset
			return nil, nil
		},
	})

	_, err := svc.ListAccounts(context.Background(), 0, -5)
	require.NoError(t, err)
	assert.Equal(t, 100, gotLimit)
	assert.Equal(t, 0, gotOffset)

	_, err = svc.ListAccounts(context.Background(), 25, 50)
	require.NoError(t, err)
	assert.Equal(t, 25, gotLimit)
	assert.Equal(t, 50, gotOffset)
}

func TestAccountService_SetActive(t *testing.T) {
	var gotName string
	var gotActive bool
	svc := newTestAccountService(&MockAccountRepository{
		SetActiveFunc: func(ctx context.Context, username string, active bool) error {
			gotName, gotActive = username, active
			return nil
		},
	})

	require.NoError(t, svc.SetActive(context.Background(), "Alice", false))
	assert.Equal(t, "alice", gotName)
	assert.False(t, gotActive)

	svc = newTestAccountService(&MockAccountRepository{
		SetActiveFunc: func(ctx context.Context, username string, active bool) error {
			return models.ErrNotFound
		},
	})
	assert.ErrorIs(t, svc.SetActive(context.Background(), "ghost", true), models.ErrNotFound)
}
