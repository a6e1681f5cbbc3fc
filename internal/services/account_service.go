package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/tajnur-auth/internal/models"
	"github.com/BradenHooton/tajnur-auth/pkg/auth"
	pkglogger "github.com/BradenHooton/tajnur-auth/pkg/logger"
)

// AccountRepository defines the provisioning side of the credential store
type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	List(ctx context.Context, limit, offset int) ([]*models.Account, error)
	SetActive(ctx context.Context, username string, active bool) error
}

// NewAccount is the input for out-of-band account creation
type NewAccount struct {
	Username string `validate:"required,min=3,max=50,username"`
	Password string `validate:"required"`
	Email    string `validate:"omitempty,email,max=255"`
	Role     string `validate:"required,oneof=admin staff manager"`
	IsAdmin  bool
}

// AccountService provisions accounts for the CLI and the startup bootstrap.
// Nothing here is reachable over HTTP.
type AccountService struct {
	repo        AccountRepository
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	hash        func(string) (string, error)
}

func NewAccountService(repo AccountRepository, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AccountService {
	return &AccountService{
		repo:        repo,
		logger:      logger,
		auditLogger: auditLogger,
		hash:        auth.HashPassword,
	}
}

// CreateAccount validates and stores a new active account
func (s *AccountService) CreateAccount(ctx context.Context, in NewAccount) (*models.Account, error) {
	in.Username = NormalizeUsername(in.Username)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account, err := s.repo.Create(ctx, &models.Account{
		Username:     in.Username,
		PasswordHash: hash,
		Email:        in.Email,
		Role:         in.Role,
		IsAdmin:      in.IsAdmin || in.Role == models.RoleAdmin,
		IsActive:     true,
	})
	if err != nil {
		if !errors.Is(err, models.ErrConflict) {
			s.logger.Error("failed to create account", slog.Any("error", err))
		}
		return nil, err
	}

	s.auditLogger.LogAccountAction(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventAccountCreated,
		UserID:    account.ID,
		Username:  account.Username,
		Metadata:  map[string]string{"role": account.Role},
	})
	return account, nil
}

// EnsureAdmin creates an admin account unless the username already exists.
// created is false when the account was already there.
func (s *AccountService) EnsureAdmin(ctx context.Context, username, password string) (created bool, err error) {
	_, err = s.CreateAccount(ctx, NewAccount{
		Username: username,
		Password: password,
		Role:     models.RoleAdmin,
		IsAdmin:  true,
	})
	if errors.Is(err, models.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *AccountService) ListAccounts(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

// SetActive enables or disables future logins for username
func (s *AccountService) SetActive(ctx context.Context, username string, active bool) error {
	username = NormalizeUsername(username)
	if err := s.repo.SetActive(ctx, username, active); err != nil {
		return err
	}

	s.auditLogger.LogAccountAction(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventAccountStatus,
		Username:  username,
		Metadata:  map[string]string{"active": fmt.Sprintf("%t", active)},
	})
	return nil
}
