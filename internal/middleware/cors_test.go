package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORSPreflight(t *testing.T) {
	handler := NewCORSMiddleware([]string{"https://app.example.com"}).Handler(okHandler(nil, nil))

	req := httptest.NewRequest(http.MethodOptions, "/v1/tickets/mint", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("Status code = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("allow origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Expose-Headers"); got != corsExposedHeaders {
		t.Fatalf("expose headers = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.test")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("unexpected origin allowed")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("disallowed origin should still reach the handler, got %d", rec.Code)
	}
}

func TestCORSOriginMatching(t *testing.T) {
	cors := NewCORSMiddleware([]string{"https://mintix.io", ".mintix.app", ""})
	cases := map[string]bool{
		"https://mintix.io":          true,
		"https://tickets.mintix.app": true,
		"https://mintix.io.evil":     false,
		"https://other.example":      false,
	}
	for origin, want := range cases {
		if got := cors.allows(origin); got != want {
			t.Fatalf("allows(%q) = %v, want %v", origin, got, want)
		}
	}

	if !NewCORSMiddleware([]string{"*"}).allows("https://anything.test") {
		t.Fatalf("wildcard should allow every origin")
	}
}
