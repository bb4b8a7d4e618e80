package middleware

import (
	"net/http"
	"strings"

	"github.com/R3E-Network/mintix/internal/errors"
	internalhttputil "github.com/R3E-Network/mintix/internal/httputil"
	"github.com/R3E-Network/mintix/pkg/logger"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Roles resolves usernames against the admin allowlist.
type Roles struct {
	admins map[string]struct{}
}

// NewRoles builds a resolver from an allowlist set.
func NewRoles(admins map[string]struct{}) *Roles {
	normalized := make(map[string]struct{}, len(admins))
	for name := range admins {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			normalized[name] = struct{}{}
		}
	}
	return &Roles{admins: normalized}
}

// Resolve returns the role for a username.
func (r *Roles) Resolve(username string) string {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return ""
	}
	if _, ok := r.admins[username]; ok {
		return RoleAdmin
	}
	return RoleUser
}

// RequireAdmin rejects callers without the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if logger.Role(r.Context()) != RoleAdmin {
			internalhttputil.WriteError(w, r, errors.Forbidden("admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
