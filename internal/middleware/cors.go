package middleware

import (
	"net/http"
	"strings"
)

const (
	corsMethods        = "GET, POST, PUT, DELETE, OPTIONS"
	corsRequestHeaders = "Content-Type, Authorization, X-Access-Token, Idempotency-Key, X-Trace-ID"
	corsExposedHeaders = "X-Trace-ID, Idempotent-Replayed"
	corsMaxAge         = "3600"
)

// CORSMiddleware lets browser clients on the configured origins call the
// ticket API with a bearer token and an Idempotency-Key. Entries are exact
// origins, "*" for any origin, or ".example.com" for every subdomain.
type CORSMiddleware struct {
	any      bool
	exact    map[string]struct{}
	suffixes []string
}

// NewCORSMiddleware compiles the CORS_ALLOWED_ORIGINS list.
func NewCORSMiddleware(allowedOrigins []string) *CORSMiddleware {
	m := &CORSMiddleware{exact: make(map[string]struct{}, len(allowedOrigins))}
	for _, origin := range allowedOrigins {
		switch {
		case origin == "*":
			m.any = true
		case strings.HasPrefix(origin, "."):
			m.suffixes = append(m.suffixes, origin)
		case origin != "":
			m.exact[origin] = struct{}{}
		}
	}
	return m
}

// Handler echoes an allowed Origin back with the API's CORS headers and
// answers every OPTIONS request with 204 before it reaches auth.
func (m *CORSMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && m.allows(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", corsRequestHeaders)
			h.Set("Access-Control-Expose-Headers", corsExposedHeaders)
			h.Set("Access-Control-Max-Age", corsMaxAge)
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *CORSMiddleware) allows(origin string) bool {
	if m.any {
		return true
	}
	if _, ok := m.exact[origin]; ok {
		return true
	}
	for _, suffix := range m.suffixes {
		if strings.HasSuffix(origin, suffix) {
			return true
		}
	}
	return false
}
