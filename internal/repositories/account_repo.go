package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/BradenHooton/tajnur-auth/internal/database"
	"github.com/BradenHooton/tajnur-auth/internal/models"
)

const accountColumns = `id, username, password_hash, email, role, is_admin, is_active,
	failed_login_attempts, locked_until, last_login, created_at, updated_at`

// AccountRepository is the credential store backed by the users table.
type AccountRepository struct {
	db *database.DB
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// rowScanner covers both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var account models.Account
	var email *string

	err := scanner.Scan(
		&account.ID, &account.Username, &account.PasswordHash, &email,
		&account.Role, &account.IsAdmin, &account.IsActive,
		&account.FailedLoginAttempts, &account.LockedUntil, &account.LastLogin,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if email != nil {
		account.Email = *email
	}

	return &account, nil
}

// GetByUsername returns the active account with the given (already normalized)
// username. Inactive and unknown accounts are both ErrNotFound.
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users WHERE username = $1 AND is_active = TRUE`

	return scanAccountRow(r.db.Pool.QueryRow(ctx, query, username))
}

// RecordLoginOutcome appends to the attempt log and updates the account's
// counters in one transaction. An unknown username still gets an attempt row.
func (r *AccountRepository) RecordLoginOutcome(ctx context.Context, username, sourceAddress, userAgent string, success bool) error {
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO login_attempts (username, ip_address, user_agent, success)
			VALUES ($1, $2, $3, $4)
		`, username, sourceAddress, userAgent, success)
		if err != nil {
			return fmt.Errorf("insert login attempt: %w", err)
		}

		if success {
			_, err = tx.Exec(ctx, `
				UPDATE users
				SET failed_login_attempts = 0, locked_until = NULL, last_login = NOW(), updated_at = NOW()
				WHERE username = $1
			`, username)
		} else {
			_, err = tx.Exec(ctx, `
				UPDATE users
				SET failed_login_attempts = failed_login_attempts + 1, updated_at = NOW()
				WHERE username = $1
			`, username)
		}
		if err != nil {
			return fmt.Errorf("update login counters: %w", err)
		}
		return nil
	})

	return database.MapPostgresError(err)
}

// MarkLocked stamps locked_until for display. Admission never reads it.
func (r *AccountRepository) MarkLocked(ctx context.Context, username string, until time.Time) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET locked_until = $2, updated_at = NOW() WHERE username = $1`,
		username, until,
	)
	return database.MapPostgresError(err)
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	account.ID = uuid.New().String()

	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now

	if account.Role == "" {
		account.Role = models.RoleStaff
	}

	var email *string
	if account.Email != "" {
		email = &account.Email
	}

	query := `
		INSERT INTO users (id, username, password_hash, email, role, is_admin, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + accountColumns

	return scanAccountRow(r.db.Pool.QueryRow(ctx, query,
		account.ID, account.Username, account.PasswordHash, email,
		account.Role, account.IsAdmin, account.IsActive,
		account.CreatedAt, account.UpdatedAt,
	))
}

// List returns accounts in username order, active or not.
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users ORDER BY username LIMIT $1 OFFSET $2`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", database.MapPostgresError(err))
	}
	defer rows.Close()

	accounts := make([]*models.Account, 0)
	for rows.Next() {
		account, err := scanAccountRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", database.MapPostgresError(err))
	}

	return accounts, nil
}

// SetActive enables or disables an account. Disabling does not touch live
// sessions; it stops future logins.
func (r *AccountRepository) SetActive(ctx context.Context, username string, active bool) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET is_active = $2, updated_at = NOW() WHERE username = $1`,
		username, active,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
