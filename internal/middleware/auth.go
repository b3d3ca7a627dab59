package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/samuelysliu/pdf-editor/internal/util"

	"github.com/rs/zerolog"
)

// Injected key type to avoid context collisions
type contextKey string

const UserContextKey = contextKey("user")

// WithUserID returns ctx carrying the authenticated user id.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, UserContextKey, userID)
}

// UserIDFromContext returns the id AuthMiddleware stored on the request.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(UserContextKey).(int64)
	return id, ok && id > 0
}

func AuthMiddleware(jwtSecret string, logger zerolog.Logger) func(http.Handler) http.Handler {
	logger = logger.With().Str("middleware", "Auth").Logger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Debug().Str("path", r.URL.Path).Msg("Authorization header missing")
				unauthorized(w, "Authorization header missing")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Debug().Str("path", r.URL.Path).Msg("Invalid authorization header")
				unauthorized(w, "Invalid authorization header")
				return
			}
			claims, err := util.ValidateJWT(strings.TrimSpace(parts[1]), jwtSecret)
			if err != nil {
				logger.Info().Err(err).Str("path", r.URL.Path).Msg("Invalid token")
				unauthorized(w, "Invalid token")
				return
			}
			userID, err := claims.UserID()
			if err != nil {
				logger.Info().Err(err).Msg("Invalid token subject")
				unauthorized(w, "Invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="pdf-editor"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
