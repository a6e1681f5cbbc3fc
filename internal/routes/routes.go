package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/BradenHooton/tajnur-auth/internal/auth"
	"github.com/BradenHooton/tajnur-auth/internal/handlers"
	"github.com/BradenHooton/tajnur-auth/internal/metrics"
	"github.com/BradenHooton/tajnur-auth/internal/middleware"
	pkghttp "github.com/BradenHooton/tajnur-auth/pkg/http"
)

// Config carries everything the router needs
type Config struct {
	Env            string
	AllowedOrigins []string
	RequestTimeout time.Duration
	LoginThrottle  middleware.RequestThrottleConfig

	AuthHandler   *handlers.AuthHandler
	HealthHandler *handlers.HealthHandler
	Sessions      *auth.SessionManager
	Cookies       auth.CookieConfig
	Resolver      *pkghttp.IPResolver
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
}

// NewRouter builds the HTTP surface. Routes are matched by exact path;
// anything else gets a JSON 404 or 405.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(middleware.SecureLogger(cfg.Logger, cfg.Resolver))
	r.Use(chimiddleware.Recoverer)
	r.Use(cfg.Metrics.Instrument)
	r.Use(middleware.SecurityHeaders(middleware.SecurityHeadersConfig{Env: cfg.Env}))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	if cfg.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteNotFound(w, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteMethodNotAllowed(w)
	})

	r.Get("/health", cfg.HealthHandler.Health)
	r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	RegisterAuthRoutes(r, cfg)
	return r
}

// RegisterAuthRoutes mounts /api/auth behind the session middleware
func RegisterAuthRoutes(router chi.Router, cfg Config) {
	router.Route("/api/auth", func(r chi.Router) {
		r.Use(auth.SessionMiddleware(cfg.Sessions, cfg.Cookies, cfg.Logger))

		r.With(middleware.ThrottleByIP(cfg.LoginThrottle, cfg.Resolver)).Post("/login", cfg.AuthHandler.Login)
		r.Post("/logout", cfg.AuthHandler.Logout)
		r.Get("/verify", cfg.AuthHandler.Verify)
		r.Get("/csrf", cfg.AuthHandler.CSRF)
	})
}
