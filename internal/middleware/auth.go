// Package middleware provides HTTP middleware for the record store API.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/R3E-Network/recordstore/internal/app/auth"
	"github.com/R3E-Network/recordstore/internal/errors"
	internalhttputil "github.com/R3E-Network/recordstore/internal/httputil"
	"github.com/R3E-Network/recordstore/internal/logging"
)

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// AuthMiddleware provides JWT authentication
type AuthMiddleware struct {
	verifier TokenVerifier
	logger   *logging.Logger
}

// NewAuthMiddleware creates a new authentication middleware. Public routes
// are simply not wrapped with it.
func NewAuthMiddleware(verifier TokenVerifier, logger *logging.Logger) *AuthMiddleware {
	if logger == nil {
		logger = logging.NewDefault("auth")
	}
	return &AuthMiddleware{verifier: verifier, logger: logger}
}

// Handler returns the middleware handler
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.respondError(w, r, errors.Unauthorized("Missing Authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			m.respondError(w, r, errors.Unauthorized("Invalid Authorization header format"))
			return
		}

		claims, err := m.verifier.Verify(strings.TrimSpace(parts[1]))
		if err != nil {
			m.respondError(w, r, err)
			return
		}

		ctx := logging.WithUser(r.Context(), claims.UserID, claims.Role)

		m.logger.WithContext(ctx).WithField("role", claims.Role).Debug("Authentication successful")

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// respondError sends an error response
func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	serviceErr := errors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = errors.Internal("Authentication failed", err)
	}

	internalhttputil.WriteErrorResponse(w, r, serviceErr.HTTPStatus, string(serviceErr.Code), serviceErr.Message, serviceErr.Details)

	m.logger.WithContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
		"status": serviceErr.HTTPStatus,
	}).Warn("Authentication failed")
}

// GetUserID extracts user ID from context
func GetUserID(r *http.Request) string {
	return logging.GetUserID(r.Context())
}

// GetUserRole extracts user role from context
func GetUserRole(r *http.Request) string {
	return logging.GetRole(r.Context())
}

// RoleLookup returns the role currently stored for a user.
type RoleLookup func(ctx context.Context, userID string) (string, error)

// RefreshRole replaces the role claim with the stored role, so a demoted or
// deleted account loses its privileges before its token expires.
func RefreshRole(lookup RoleLookup, logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := GetUserID(r)
			if userID == "" {
				internalhttputil.WriteError(w, r, errors.Unauthorized(""))
				return
			}
			role, err := lookup(r.Context(), userID)
			if errors.IsCode(err, errors.CodeNotFound) {
				if logger != nil {
					logger.LogSecurityEvent(r.Context(), "account_missing", map[string]interface{}{
						"path":   r.URL.Path,
						"method": r.Method,
					})
				}
				internalhttputil.WriteError(w, r, errors.Unauthorized("account no longer exists"))
				return
			}
			if err != nil {
				internalhttputil.WriteError(w, r, err)
				return
			}
			if role != GetUserRole(r) && logger != nil {
				logger.WithContext(r.Context()).WithField("claimed", GetUserRole(r)).WithField("stored", role).Info("role changed since token was issued")
			}
			next.ServeHTTP(w, r.WithContext(logging.WithUser(r.Context(), userID, role)))
		})
	}
}

// RequireRole rejects authenticated callers whose role is not in roles.
func RequireRole(logger *logging.Logger, roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetUserID(r) == "" {
				internalhttputil.WriteError(w, r, errors.Unauthorized(""))
				return
			}
			if role := GetUserRole(r); !allowed[role] {
				if logger != nil {
					logger.LogSecurityEvent(r.Context(), "role_denied", map[string]interface{}{
						"role":   role,
						"path":   r.URL.Path,
						"method": r.Method,
					})
				}
				internalhttputil.WriteError(w, r, errors.Forbidden("insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
