package database

import (
	"context"
	"embed"
	"fmt"
	"io"
	"log"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

func prepareGoose(out io.Writer) error {
	goose.SetBaseFS(migrationsFS)
	if out == nil {
		goose.SetLogger(log.New(io.Discard, "", 0))
	} else {
		goose.SetLogger(log.New(out, "", 0))
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

// Migrate applies all pending embedded migrations. Goose needs a database/sql
// handle, so one is opened over the existing pool.
func (db *DB) Migrate(ctx context.Context, out io.Writer) error {
	if err := prepareGoose(out); err != nil {
		return err
	}

	sqlDB := stdlib.OpenDBFromPool(db.Pool)
	defer sqlDB.Close()

	if err := goose.UpContext(ctx, sqlDB, migrationsDir); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	db.logger.Info("database migrations applied")
	return nil
}

// MigrationStatus writes the applied/pending state of every migration to out.
func (db *DB) MigrationStatus(ctx context.Context, out io.Writer) error {
	if err := prepareGoose(out); err != nil {
		return err
	}

	sqlDB := stdlib.OpenDBFromPool(db.Pool)
	defer sqlDB.Close()

	if err := goose.StatusContext(ctx, sqlDB, migrationsDir); err != nil {
		return fmt.Errorf("migration status: %w", err)
	}
	return nil
}
