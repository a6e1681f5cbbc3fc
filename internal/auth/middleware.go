package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/BradenHooton/tajnur-auth/internal/models"
	pkghttp "github.com/BradenHooton/tajnur-auth/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

// SessionContextKey is the key for storing the request's session in context
const SessionContextKey contextKey = "session"

// SessionMiddleware resumes or mints the caller's session and puts it in
// the request context. A newly minted handle is sent back as a cookie
// before the handler runs. If the session store is unreachable the request
// fails with 503 instead of silently continuing anonymous.
func SessionMiddleware(sessions *SessionManager, cookies CookieConfig, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, fresh, err := sessions.Resume(r.Context(), SessionIDFromCookie(r, cookies))
			if err != nil {
				logger.Error("session store unavailable",
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("error", err.Error()),
				)
				pkghttp.WriteServiceUnavailable(w)
				return
			}

			if fresh {
				SetSessionCookie(w, sess.ID, sessions.TTL(), cookies)
			}

			ctx := context.WithValue(r.Context(), SessionContextKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext returns the session placed by SessionMiddleware, or nil
func SessionFromContext(ctx context.Context) *models.Session {
	sess, _ := ctx.Value(SessionContextKey).(*models.Session)
	return sess
}
