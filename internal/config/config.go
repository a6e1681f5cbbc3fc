package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends for session and rate-limit state
const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Redis     RedisConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	Auth      AuthConfig
	Email     EmailConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	AutoMigrate       bool
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type RedisConfig struct {
	URL string
}

type SessionConfig struct {
	Store        string
	TTL          time.Duration
	CookieName   string
	CookieSecure bool
	SameSite     string
	Domain       string
	MemoryMax    int
}

type RateLimitConfig struct {
	Store                string
	MaxAttempts          int
	LockoutWindow        time.Duration
	BySource             bool
	MaxAttemptsPerSource int
	IPRequestsPerMinute  int
}

type AuthConfig struct {
	TimingDelayBaseMs    int
	TimingDelayRandomMs  int
	TimingDelayOnSuccess bool
	AttemptRetention     time.Duration
	CleanupInterval      time.Duration
	AdminUsername        string
	AdminPassword        string
}

type EmailConfig struct {
	AlertsEnabled   bool
	AWSRegion       string
	FromAddress     string
	AlertsPerSecond float64
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "tajnur_auth"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			AutoMigrate:       getEnvAsBool("DB_AUTO_MIGRATE", false),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: parseList(getEnv("TRUSTED_PROXIES", "")),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://127.0.0.1:6379/0"),
		},
		Session: SessionConfig{
			Store:        strings.ToLower(getEnv("SESSION_STORE", StoreRedis)),
			TTL:          getEnvAsDuration("SESSION_TTL", 1*time.Hour),
			CookieName:   getEnv("SESSION_COOKIE_NAME", "tajnur_session"),
			CookieSecure: getEnvAsBool("COOKIE_SECURE", env == "production"),
			SameSite:     strings.ToLower(getEnv("COOKIE_SAMESITE", "strict")),
			Domain:       getEnv("COOKIE_DOMAIN", ""),
			MemoryMax:    getEnvAsInt("SESSION_MEMORY_MAX", 100000),
		},
		RateLimit: RateLimitConfig{
			Store:                strings.ToLower(getEnv("RATE_LIMIT_STORE", StoreRedis)),
			MaxAttempts:          getEnvAsInt("LOGIN_MAX_ATTEMPTS", 5),
			LockoutWindow:        getEnvAsDuration("LOGIN_LOCKOUT_WINDOW", 900*time.Second),
			BySource:             getEnvAsBool("RATE_LIMIT_BY_SOURCE", false),
			MaxAttemptsPerSource: getEnvAsInt("LOGIN_MAX_ATTEMPTS_PER_SOURCE", 20),
			IPRequestsPerMinute:  getEnvAsInt("LOGIN_IP_REQUESTS_PER_MINUTE", 30),
		},
		Auth: AuthConfig{
			TimingDelayBaseMs:    getEnvAsInt("TIMING_DELAY_BASE_MS", 250),
			TimingDelayRandomMs:  getEnvAsInt("TIMING_DELAY_RANDOM_MS", 100),
			TimingDelayOnSuccess: getEnvAsBool("TIMING_DELAY_ON_SUCCESS", false),
			AttemptRetention:     getEnvAsDuration("ATTEMPT_RETENTION", 90*24*time.Hour),
			CleanupInterval:      getEnvAsDuration("CLEANUP_INTERVAL", 1*time.Hour),
			AdminUsername:        getEnv("ADMIN_USERNAME", ""),
			AdminPassword:        getEnv("ADMIN_PASSWORD", ""),
		},
		Email: EmailConfig{
			AlertsEnabled:   getEnvAsBool("ALERT_EMAIL_ENABLED", false),
			AWSRegion:       getEnv("AWS_REGION", "us-east-1"),
			FromAddress:     getEnv("ALERT_EMAIL_FROM", ""),
			AlertsPerSecond: getEnvAsFloat("ALERT_EMAILS_PER_SECOND", 1),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate rejects settings the auth core cannot run with
func (c *Config) validate() error {
	if err := validateStore("SESSION_STORE", c.Session.Store); err != nil {
		return err
	}
	if err := validateStore("RATE_LIMIT_STORE", c.RateLimit.Store); err != nil {
		return err
	}

	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive (got %s)", c.Session.TTL)
	}
	if c.RateLimit.MaxAttempts < 1 {
		return fmt.Errorf("LOGIN_MAX_ATTEMPTS must be at least 1 (got %d)", c.RateLimit.MaxAttempts)
	}
	if c.RateLimit.LockoutWindow <= 0 {
		return fmt.Errorf("LOGIN_LOCKOUT_WINDOW must be positive (got %s)", c.RateLimit.LockoutWindow)
	}
	if c.RateLimit.BySource && c.RateLimit.MaxAttemptsPerSource < 1 {
		return fmt.Errorf("LOGIN_MAX_ATTEMPTS_PER_SOURCE must be at least 1 when RATE_LIMIT_BY_SOURCE is set")
	}

	switch c.Session.SameSite {
	case "strict", "lax", "none":
	default:
		return fmt.Errorf("COOKIE_SAMESITE must be one of strict, lax, none (got %q)", c.Session.SameSite)
	}

	// Browsers drop SameSite=None cookies that are not Secure
	if c.Session.SameSite == "none" && !c.Session.CookieSecure {
		return fmt.Errorf("COOKIE_SAMESITE=none requires COOKIE_SECURE=true")
	}

	if c.Email.AlertsEnabled && c.Email.FromAddress == "" {
		return fmt.Errorf("ALERT_EMAIL_FROM is required when ALERT_EMAIL_ENABLED is set")
	}

	if c.Server.Env == "production" && c.Session.Store == StoreMemory {
		return fmt.Errorf("SESSION_STORE=memory is not allowed in production: sessions must be shared across processes")
	}

	return nil
}

func validateStore(key, value string) error {
	switch value {
	case StoreRedis, StoreMemory:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q (got %q)", key, StoreRedis, StoreMemory, value)
	}
}

// UsesRedis reports whether any component needs a Redis connection
func (c *Config) UsesRedis() bool {
	return c.Session.Store == StoreRedis || c.RateLimit.Store == StoreRedis
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseList(raw string) []string {
	if raw == "" {
		return []string{}
	}
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		// Default to no origins in production
		return parseList(getEnv("ALLOWED_ORIGINS", ""))
	}

	if origins := getEnv("ALLOWED_ORIGINS", ""); origins != "" {
		return parseList(origins)
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
