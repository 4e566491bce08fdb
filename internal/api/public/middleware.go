package public

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/intelrouter/query-router-service/internal/api"
	"github.com/intelrouter/query-router-service/internal/auth"
	"github.com/intelrouter/query-router-service/internal/limiter"
	"github.com/intelrouter/query-router-service/internal/usage"
)

// Context key type to avoid collisions.
type contextKey string

const userContextKey contextKey = "authenticated_user"

// UserFromContext returns the authenticated user set by AuthMiddleware.
func UserFromContext(ctx context.Context) (*auth.AuthenticatedUser, bool) {
	user, ok := ctx.Value(userContextKey).(*auth.AuthenticatedUser)
	return user, ok
}

// WithUser returns a context carrying the user, for tests.
func WithUser(ctx context.Context, user *auth.AuthenticatedUser) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// AuthMiddleware validates the bearer token and stores the resolved user in
// the request context.
func AuthMiddleware(authenticator *auth.Authenticator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := authenticator.Authenticate(r.Header.Get("Authorization"))
			if err != nil {
				logger.Debug("authentication failed",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.Error(err),
				)
				api.WriteError(w, r, "authentication required", api.ErrCodeUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RateLimitMiddleware enforces the per-user request rate limit. It runs
// after AuthMiddleware so the bucket key is the authenticated user.
func RateLimitMiddleware(rateLimiter *limiter.RateLimiter, auditLogger *usage.AuditLogger, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			result, err := rateLimiter.CheckUser(r.Context(), user.UserID)
			if err != nil {
				logger.Warn("rate limit check failed, allowing request",
					zap.String("user_id", user.UserID),
					zap.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

			if !result.Allowed {
				if auditLogger != nil {
					auditLogger.LogDenial(usage.AuditEvent{
						RequestID:      middleware.GetReqID(r.Context()),
						UserID:         user.UserID,
						Action:         "REQUEST_DENIED",
						DecisionReason: "RATE_LIMIT_EXCEEDED",
					})
				}
				retryAfter := int(result.RetryAfter.Seconds()) + 1
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				api.WriteLimitError(w, r, "rate limit exceeded", api.ErrCodeRateLimitExceeded,
					&retryAfter, map[string]any{"limit": result.Limit})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin rejects non-admin users. It runs after AuthMiddleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok || !user.IsAdmin() {
			api.WriteError(w, r, "admin role required", api.ErrCodeForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
