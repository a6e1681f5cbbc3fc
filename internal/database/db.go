package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/BradenHooton/tajnur-auth/internal/models"
)

// MapPostgresError translates driver errors into model sentinels. Anything
// it does not recognize is the store being unreachable or broken, which the
// auth core reports as ErrInfrastructure rather than a credential failure.
func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return models.ErrConflict
		case "23502", "23514": // not_null_violation, check_violation
			return fmt.Errorf("%w: %s", models.ErrInvalidInput, pgErr.ConstraintName)
		}
	}

	return fmt.Errorf("%w: %v", models.ErrInfrastructure, err)
}

// WithTransaction runs fn in a transaction, committing on nil and rolling
// back on error or panic.
func (db *DB) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = fn(tx)
	return err
}
