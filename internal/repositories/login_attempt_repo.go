package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/tajnur-auth/internal/database"
	"github.com/BradenHooton/tajnur-auth/internal/models"
)

// LoginAttemptRepository reads and prunes the append-only attempt log.
// Rows are written by AccountRepository.RecordLoginOutcome.
type LoginAttemptRepository struct {
	db *database.DB
}

// NewLoginAttemptRepository creates a new LoginAttemptRepository
func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db}
}

// ListRecent returns the newest attempts for a username
func (r *LoginAttemptRepository) ListRecent(ctx context.Context, username string, limit int) ([]*models.LoginAttempt, error) {
	query := `
		SELECT id, username, ip_address, user_agent, attempt_time, success
		FROM login_attempts
		WHERE username = $1
		ORDER BY attempt_time DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, username, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query login attempts: %w", database.MapPostgresError(err))
	}
	defer rows.Close()

	attempts := make([]*models.LoginAttempt, 0)
	for rows.Next() {
		var a models.LoginAttempt
		if err := rows.Scan(&a.ID, &a.Username, &a.IPAddress, &a.UserAgent, &a.AttemptTime, &a.Success); err != nil {
			return nil, fmt.Errorf("failed to scan login attempt: %w", database.MapPostgresError(err))
		}
		attempts = append(attempts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", database.MapPostgresError(err))
	}

	return attempts, nil
}

// DeleteOlderThan removes audit rows recorded before cutoff
func (r *LoginAttemptRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM login_attempts WHERE attempt_time < $1`, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
