package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tobioye/ballotgate/internal/models"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// StudentContextKey is the key for storing student claims in context
	StudentContextKey contextKey = "student"
)

// StudentFetcher fetches the current account for role and status checks
type StudentFetcher interface {
	GetByID(ctx context.Context, id string) (*models.Student, error)
}

// Middleware validates JWT tokens and injects student claims into context
func Middleware(tm *TokenManager) func(next http.Handler) http.Handler {
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

			claims, err := tm.ValidateToken(parts[1])
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			// Refresh tokens are only accepted by the refresh endpoint
			if claims.Type == "refresh" {
				http.Error(w, "refresh tokens cannot be used for API access", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), StudentContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole enforces role-based access control. The role is read from the
// database on every request so a demotion takes effect immediately, not at
// token expiry.
func RequireRole(students StudentFetcher, role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetStudentFromContext(r)
			if claims == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			student, err := students.GetByID(r.Context(), claims.StudentID)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					http.Error(w, "account not found", http.StatusUnauthorized)
					return
				}
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			if student.Role != role {
				http.Error(w, "forbidden: insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetStudentFromContext extracts student claims from request context
func GetStudentFromContext(r *http.Request) *models.TokenClaims {
	claims, ok := r.Context().Value(StudentContextKey).(*models.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}
