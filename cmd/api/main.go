package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"

	"github.com/BradenHooton/tajnur-auth/internal/auth"
	"github.com/BradenHooton/tajnur-auth/internal/background"
	"github.com/BradenHooton/tajnur-auth/internal/config"
	"github.com/BradenHooton/tajnur-auth/internal/database"
	"github.com/BradenHooton/tajnur-auth/internal/handlers"
	"github.com/BradenHooton/tajnur-auth/internal/metrics"
	"github.com/BradenHooton/tajnur-auth/internal/middleware"
	"github.com/BradenHooton/tajnur-auth/internal/models"
	"github.com/BradenHooton/tajnur-auth/internal/repositories"
	"github.com/BradenHooton/tajnur-auth/internal/routes"
	"github.com/BradenHooton/tajnur-auth/internal/services"
	pkghttp "github.com/BradenHooton/tajnur-auth/pkg/http"
	pkglogger "github.com/BradenHooton/tajnur-auth/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("session_store", cfg.Session.Store),
		slog.String("rate_limit_store", cfg.RateLimit.Store),
	)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := database.NewConnection(startupCtx, &cfg.Database, logger)
	if err != nil {
		startupCancel()
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(startupCtx, os.Stdout); err != nil {
			startupCancel()
			logger.Error("failed to apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	var rdb *redis.Client
	if cfg.UsesRedis() {
		rdb, err = openRedis(startupCtx, cfg.Redis.URL)
		if err != nil {
			startupCancel()
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer rdb.Close()
	}

	clk := clock.New()
	m := metrics.New()
	auditLogger := pkglogger.NewAuditLogger(logger, cfg.Server.Env)

	// Repositories
	accountRepo := repositories.NewAccountRepository(db)
	attemptRepo := repositories.NewLoginAttemptRepository(db)

	var failureWindow services.FailureWindow
	if cfg.RateLimit.Store == config.StoreRedis {
		failureWindow = repositories.NewRedisFailureWindow(rdb)
	} else {
		logger.Warn("login failure window is in-process; lockouts are not shared between instances")
		failureWindow = repositories.NewMemoryFailureWindow()
	}

	var sessionStore auth.SessionStore
	if cfg.Session.Store == config.StoreRedis {
		sessionStore = auth.NewRedisSessionStore(rdb)
	} else {
		sessionStore = auth.NewMemorySessionStore(cfg.Session.MemoryMax, cfg.Session.TTL)
	}

	// Auth core
	sessions := auth.NewSessionManager(sessionStore, cfg.Session.TTL, clk)
	csrfManager := auth.NewCSRFTokenManager(sessions)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:    cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs:  cfg.Auth.TimingDelayRandomMs,
		DelayOnSuccess: cfg.Auth.TimingDelayOnSuccess,
	})
	rateLimitService := services.NewRateLimitService(failureWindow, services.RateLimitConfig{
		MaxAttempts:          cfg.RateLimit.MaxAttempts,
		Window:               cfg.RateLimit.LockoutWindow,
		BySource:             cfg.RateLimit.BySource,
		MaxAttemptsPerSource: cfg.RateLimit.MaxAttemptsPerSource,
	}, clk, logger)

	notifiers := []services.LockoutNotifier{
		services.LockoutNotifierFunc(func(*models.Account, string, time.Time) { m.Lockout() }),
	}
	if cfg.Email.AlertsEnabled {
		alerts, err := services.NewSESAlertService(cfg.Email.AWSRegion, cfg.Email.FromAddress, cfg.Email.AlertsPerSecond, logger)
		if err != nil {
			startupCancel()
			logger.Error("failed to initialize alert email", slog.Any("error", err))
			os.Exit(1)
		}
		notifiers = append(notifiers, alerts)
	}

	authService := services.NewAuthService(
		accountRepo,
		rateLimitService,
		sessions,
		csrfManager,
		timingDelay,
		services.Notifiers(notifiers...),
		logger,
		auditLogger,
	)
	accountService := services.NewAccountService(accountRepo, logger, auditLogger)

	if cfg.Auth.AdminUsername != "" && cfg.Auth.AdminPassword != "" {
		created, err := accountService.EnsureAdmin(startupCtx, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword)
		if err != nil {
			logger.Error("failed to ensure admin account", slog.Any("error", err))
		} else if created {
			logger.Info("admin account created", slog.String("username", pkglogger.MaskedUsername(cfg.Auth.AdminUsername)))
		}
	}
	startupCancel()

	// HTTP
	cookies := auth.CookieConfig{
		Name:     cfg.Session.CookieName,
		Domain:   cfg.Session.Domain,
		Secure:   cfg.Session.CookieSecure,
		SameSite: cfg.Session.SameSite,
	}
	resolver := pkghttp.NewIPResolver(cfg.Server.TrustedProxies)

	router := routes.NewRouter(routes.Config{
		Env:            cfg.Server.Env,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: 60 * time.Second,
		LoginThrottle:  middleware.RequestThrottleConfig{RequestsPerMinute: cfg.RateLimit.IPRequestsPerMinute},
		AuthHandler:    handlers.NewAuthHandler(authService, cookies, cfg.Session.TTL, resolver, m, logger),
		HealthHandler: handlers.NewHealthHandler(map[string]handlers.Pinger{
			"database": db,
			"sessions": sessions,
		}, logger),
		Sessions: sessions,
		Cookies:  cookies,
		Resolver: resolver,
		Metrics:  m,
		Logger:   logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	cleanupManager := background.NewCleanupManager(attemptRepo, m, logger, clk, cfg.Auth.AttemptRetention, cfg.Auth.CleanupInterval)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go cleanupManager.Start(cleanupCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
