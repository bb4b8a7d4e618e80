//go:build integration && postgres

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"

	"github.com/R3E-Network/mintix/internal/app/runtime"
	"github.com/R3E-Network/mintix/internal/config"
	"github.com/R3E-Network/mintix/pkg/testutil"
)

// Integration test against Postgres to ensure migrations and ticket flows work with persistence.
func TestIntegrationPostgres(t *testing.T) {
	_ = godotenv.Load() // allow .env for local runs
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping Postgres integration")
	}

	ctx := context.Background()
	cfg := &config.Config{
		Server:   config.ServerConfig{Host: "127.0.0.1", Port: 3000, ShutdownTimeout: 5 * time.Second},
		Database: config.DatabaseConfig{DSN: dsn, MaxOpenConns: 4, AutoMigrate: true},
		Chain: config.ChainConfig{
			Mode:           config.ChainModeSimulated,
			ConfirmTimeout: time.Second,
			PollInterval:   10 * time.Millisecond,
		},
		Auth:      config.AuthConfig{Secret: "integration-secret", TokenTTL: time.Hour, AdminUsernames: "pgadmin"},
		Reconcile: config.ReconcileConfig{Disabled: true},
		Logging:   config.LoggingConfig{Level: "warn", Format: "json"},
	}

	appRuntime, err := runtime.NewApplication(cfg)
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	t.Cleanup(func() { _ = appRuntime.Shutdown(ctx) })
	if err := appRuntime.Start(ctx); err != nil {
		t.Fatalf("start runtime: %v", err)
	}

	srv := &testServer{t: t, handler: appRuntime.Handler(), app: appRuntime.App()}
	username := "pg-" + time.Now().Format("150405.000000")
	token := srv.register(username)

	resp := srv.do(http.MethodPost, "/v1/tickets/mint", token, marshal(map[string]any{
		"ticketData": map[string]any{"ticketType": "GA", "price": 42},
	}), IdempotencyHeader, "pg-"+testutil.NewAddress())
	if resp.Code != http.StatusOK {
		t.Fatalf("mint: %d %s", resp.Code, resp.Body.String())
	}
	var minted struct {
		Data struct {
			TicketAddress string `json:"ticketAddress"`
		} `json:"data"`
	}
	decode(t, resp, &minted)

	resp = srv.do(http.MethodGet, "/v1/tickets/"+minted.Data.TicketAddress+"/transactions", token, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("history: %d", resp.Code)
	}
	var history struct {
		Data []struct {
			Kind   string          `json:"type"`
			Amount json.RawMessage `json:"amount"`
		} `json:"data"`
	}
	decode(t, resp, &history)
	if len(history.Data) != 1 || history.Data[0].Kind != "MINT" || !bytes.Contains(history.Data[0].Amount, []byte("42")) {
		t.Fatalf("unexpected history: %s", resp.Body.String())
	}

	resp = srv.do(http.MethodPost, "/v1/event", token, marshal(map[string]any{"name": "pg-event"}))
	if resp.Code != http.StatusCreated {
		t.Fatalf("create event: %d %s", resp.Code, resp.Body.String())
	}
}
