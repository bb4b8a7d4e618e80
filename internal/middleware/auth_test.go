package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/R3E-Network/mintix/internal/app/domain/user"
	"github.com/R3E-Network/mintix/internal/app/services/auth"
	"github.com/R3E-Network/mintix/internal/app/storage/memory"
	"github.com/R3E-Network/mintix/pkg/logger"
)

func newTestAuth(t *testing.T) (*auth.Service, string) {
	t.Helper()
	svc, err := auth.New(memory.New(), "middleware-secret", time.Hour, logger.Discard())
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	token, err := svc.IssueToken(user.User{ID: "u-1", Username: "alice", PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return svc, token
}

func okHandler(captured *string, role *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			*captured = GetUsername(r)
		}
		if role != nil {
			*role = logger.Role(r.Context())
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware_Handler_SkipPaths(t *testing.T) {
	svc, _ := newTestAuth(t)
	middleware := NewAuthMiddleware(svc, nil, logger.Discard(), []string{"/healthz"})

	rec := httptest.NewRecorder()
	middleware.Handler(okHandler(nil, nil)).ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestAuthMiddleware_Handler_MissingToken(t *testing.T) {
	svc, _ := newTestAuth(t)
	middleware := NewAuthMiddleware(svc, nil, logger.Discard(), nil)

	rec := httptest.NewRecorder()
	middleware.Handler(okHandler(nil, nil)).ServeHTTP(rec, httptest.NewRequest("GET", "/v1/events", nil))

	if rec.Code != http.StatusForbidden {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestAuthMiddleware_Handler_TokenSources(t *testing.T) {
	svc, token := newTestAuth(t)
	middleware := NewAuthMiddleware(svc, NewRoles(map[string]struct{}{"Alice": {}}), logger.Discard(), nil)

	tests := []struct {
		name  string
		build func() *http.Request
	}{
		{"bearer", func() *http.Request {
			req := httptest.NewRequest("GET", "/v1/events", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			return req
		}},
		{"lowercase bearer", func() *http.Request {
			req := httptest.NewRequest("GET", "/v1/events", nil)
			req.Header.Set("Authorization", "bearer "+token)
			return req
		}},
		{"x-access-token", func() *http.Request {
			req := httptest.NewRequest("GET", "/v1/events", nil)
			req.Header.Set("x-access-token", token)
			return req
		}},
		{"query", func() *http.Request {
			return httptest.NewRequest("GET", "/v1/events?token="+token, nil)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var username, role string
			rec := httptest.NewRecorder()
			middleware.Handler(okHandler(&username, &role)).ServeHTTP(rec, tt.build())

			if rec.Code != http.StatusOK {
				t.Fatalf("Status code = %d, want %d", rec.Code, http.StatusOK)
			}
			if username != "alice" {
				t.Errorf("username = %q, want alice", username)
			}
			if role != RoleAdmin {
				t.Errorf("role = %q, want admin", role)
			}
		})
	}
}

func TestAuthMiddleware_Handler_InvalidToken(t *testing.T) {
	svc, _ := newTestAuth(t)
	middleware := NewAuthMiddleware(svc, nil, logger.Discard(), nil)

	other, err := auth.New(memory.New(), "other-secret", time.Hour, logger.Discard())
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	foreign, _ := other.IssueToken(user.User{Username: "mallory"})

	for name, token := range map[string]string{
		"garbage":     "invalid.token.here",
		"wrong key":   foreign,
		"not a token": "abc",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/v1/events", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			middleware.Handler(okHandler(nil, nil)).ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("Status code = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	handler := RequireAdmin(okHandler(nil, nil))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("DELETE", "/v1/payment/1", nil)
	req = req.WithContext(logger.WithRole(context.Background(), RoleUser))
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("user: Status code = %d, want %d", rec.Code, http.StatusForbidden)
	}

	rec = httptest.NewRecorder()
	req = req.WithContext(logger.WithRole(context.Background(), RoleAdmin))
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("admin: Status code = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRateLimiterRejectsBurst(t *testing.T) {
	rl := NewRateLimiter(1, 2, logger.Discard())
	handler := rl.Handler(okHandler(nil, nil))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/v1/events", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}

	// a different client has its own bucket
	req := httptest.NewRequest("GET", "/v1/events", nil)
	req.RemoteAddr = "10.0.0.2:5555"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("second client = %d", rec.Code)
	}
}
