package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	pkghttp "github.com/BradenHooton/tajnur-auth/pkg/http"
)

// RequestThrottleConfig caps raw request volume per client address. It sits
// in front of the login failure window and counts every request, not only
// failures.
type RequestThrottleConfig struct {
	RequestsPerMinute int
}

// DefaultLoginThrottle returns the default per-address request cap for login
func DefaultLoginThrottle() RequestThrottleConfig {
	return RequestThrottleConfig{RequestsPerMinute: 30}
}

// ThrottleByIP limits requests per client address as resolved by resolver.
// A zero or negative limit disables the throttle.
func ThrottleByIP(config RequestThrottleConfig, resolver *pkghttp.IPResolver) func(next http.Handler) http.Handler {
	if config.RequestsPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return httprate.Limit(
		config.RequestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return resolver.ClientIP(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Too many requests. Please try again later.")
		}),
	)
}
