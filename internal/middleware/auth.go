// Package middleware provides HTTP middleware for the ticket API
package middleware

import (
	"net/http"
	"strings"

	"github.com/R3E-Network/mintix/internal/app/services/auth"
	"github.com/R3E-Network/mintix/internal/errors"
	internalhttputil "github.com/R3E-Network/mintix/internal/httputil"
	"github.com/R3E-Network/mintix/pkg/logger"
)

// TokenVerifier validates a raw token.
type TokenVerifier interface {
	VerifyToken(raw string) (*auth.Claims, error)
}

// AuthMiddleware gates routes behind a signed token.
type AuthMiddleware struct {
	verifier  TokenVerifier
	roles     *Roles
	logger    *logger.Logger
	skipPaths map[string]bool
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(verifier TokenVerifier, roles *Roles, log *logger.Logger, skipPaths []string) *AuthMiddleware {
	if log == nil {
		log = logger.NewDefault("auth-middleware")
	}
	if roles == nil {
		roles = NewRoles(nil)
	}
	skip := make(map[string]bool)
	for _, path := range skipPaths {
		skip[path] = true
	}

	return &AuthMiddleware{
		verifier:  verifier,
		roles:     roles,
		logger:    log,
		skipPaths: skip,
	}
}

// Handler returns the middleware handler
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		raw := TokenFromRequest(r)
		if raw == "" {
			m.respondError(w, r, errors.Forbidden("no token provided"))
			return
		}

		claims, err := m.verifier.VerifyToken(raw)
		if err != nil {
			m.respondError(w, r, err)
			return
		}

		ctx := logger.WithUser(r.Context(), claims.Username)
		ctx = logger.WithRole(ctx, m.roles.Resolve(claims.Username))

		m.logger.WithContext(ctx).Debug("authentication successful")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TokenFromRequest reads the token from the Authorization bearer header, the
// x-access-token header or the token query parameter, in that order.
func TokenFromRequest(r *http.Request) string {
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if token := strings.TrimSpace(r.Header.Get("x-access-token")); token != "" {
		return token
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// respondError sends an error response
func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	serviceErr := errors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = errors.Internal("authentication failed", err)
	}

	internalhttputil.WriteErrorResponse(w, r, serviceErr.HTTPStatus, string(serviceErr.Code), serviceErr.Message, serviceErr.Details)

	m.logger.WithContext(r.Context()).WithError(err).WithField("path", r.URL.Path).
		WithField("method", r.Method).
		WithField("status", serviceErr.HTTPStatus).
		Warn("authentication failed")
}

// GetUsername extracts the authenticated username from context
func GetUsername(r *http.Request) string {
	return logger.User(r.Context())
}
