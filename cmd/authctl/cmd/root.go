package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BradenHooton/tajnur-auth/internal/config"
	"github.com/BradenHooton/tajnur-auth/internal/database"
	pkglogger "github.com/BradenHooton/tajnur-auth/pkg/logger"
)

var (
	jsonOutput bool
	verbose    bool
)

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:   "authctl",
	Short: "Operator tool for the tajnur auth service",
	Long: `authctl runs database migrations and manages accounts out of band.

It reads the same environment (and .env file) as the API server:
  DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME, DB_SSLMODE`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output JSON instead of a table")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level to stderr")
}

// env bundles what every database-backed subcommand needs
type env struct {
	cfg    *config.Config
	db     *database.DB
	logger *slog.Logger
	audit  *pkglogger.AuditLogger
}

func (e *env) Close() {
	e.db.Close()
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openEnv loads configuration and connects to the database
func openEnv(ctx context.Context) (*env, error) {
	logger := newLogger(os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	db, err := database.NewConnection(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	return &env{
		cfg:    cfg,
		db:     db,
		logger: logger,
		audit:  pkglogger.NewAuditLogger(logger, cfg.Server.Env),
	}, nil
}
