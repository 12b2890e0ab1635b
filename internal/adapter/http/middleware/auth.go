package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/iho/eodledger/internal/domain"
	"github.com/iho/eodledger/internal/infrastructure/auth"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// OperatorContextKey is the context key for the authenticated operator
	OperatorContextKey ContextKey = "operator"

	// UserIDHeader names the operator when authentication is disabled.
	UserIDHeader = "X-User-ID"
)

// AuthMiddleware creates an authentication middleware
func AuthMiddleware(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims, err := jwtManager.Verify(parts[1])
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, domain.ErrExpiredToken) {
					msg = "token has expired"
				}
				http.Error(w, msg, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), OperatorContextKey, claims.Operator())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole creates a middleware that checks for a minimum role
func RequireRole(minRole domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			op, ok := OperatorFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !op.Role.Allows(minRole) {
				http.Error(w, "insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// OperatorFromContext extracts the authenticated operator from context
func OperatorFromContext(ctx context.Context) (domain.Operator, bool) {
	op, ok := ctx.Value(OperatorContextKey).(domain.Operator)
	return op, ok
}

// UserID returns the id recorded against job executions: the authenticated
// operator, then the X-User-ID header, then fallback.
func UserID(r *http.Request, fallback string) string {
	if op, ok := OperatorFromContext(r.Context()); ok && op.ID != "" {
		return op.ID
	}
	if id := strings.TrimSpace(r.Header.Get(UserIDHeader)); id != "" {
		return id
	}
	return fallback
}
