package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsAndOverrides(t *testing.T) {
	t.Setenv("SECRET", "jwt-secret")
	t.Setenv("CHAIN_MODE", ChainModeSimulated)
	t.Setenv("PORT", "8088")
	t.Setenv("CHAIN_CONFIRM_TIMEOUT", "5s")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8088 {
		t.Fatalf("port = %d", cfg.Server.Port)
	}
	if cfg.Chain.ConfirmTimeout != 5*time.Second {
		t.Fatalf("confirm timeout = %s", cfg.Chain.ConfirmTimeout)
	}
	if cfg.Chain.PollInterval != 2*time.Second {
		t.Fatalf("poll interval default = %s", cfg.Chain.PollInterval)
	}
	if cfg.Auth.TokenTTL != 7*24*time.Hour {
		t.Fatalf("token ttl default = %s", cfg.Auth.TokenTTL)
	}
	if cfg.Reconcile.Schedule != "@every 30s" {
		t.Fatalf("schedule default = %q", cfg.Reconcile.Schedule)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	contents := "SECRET=from-file\nCHAIN_MODE=simulated\nADMIN_USERNAMES=alice, bob\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("SECRET", "")
	os.Unsetenv("SECRET")
	t.Setenv("CHAIN_MODE", "")
	os.Unsetenv("CHAIN_MODE")
	t.Setenv("ADMIN_USERNAMES", "")
	os.Unsetenv("ADMIN_USERNAMES")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.Secret != "from-file" {
		t.Fatalf("secret = %q", cfg.Auth.Secret)
	}
	admins := cfg.Auth.Admins()
	if _, ok := admins["bob"]; !ok || len(admins) != 2 {
		t.Fatalf("admins = %v", admins)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Server: ServerConfig{Port: 3000},
			Chain:  ChainConfig{Mode: ChainModeRPC, RPCURL: "http://localhost:8899", OperatorKey: "key", ConfirmTimeout: time.Second, PollInterval: time.Second},
			Auth:   AuthConfig{Secret: "s"},
		}
	}

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing secret", func(c *Config) { c.Auth.Secret = "" }, true},
		{"missing operator key", func(c *Config) { c.Chain.OperatorKey = "" }, true},
		{"simulated without key", func(c *Config) { c.Chain.Mode = ChainModeSimulated; c.Chain.OperatorKey = "" }, false},
		{"unknown mode", func(c *Config) { c.Chain.Mode = "ganache" }, true},
		{"zero timeout", func(c *Config) { c.Chain.ConfirmTimeout = 0 }, true},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, true},
		{"lock ttl below confirm wait", func(c *Config) { c.Redis.LockTTL = time.Second; c.Chain.ConfirmTimeout = time.Minute }, true},
		{"lock ttl without margin", func(c *Config) { c.Redis.LockTTL = time.Minute; c.Chain.ConfirmTimeout = time.Minute }, true},
		{"default lock ttl with long confirm wait", func(c *Config) { c.Chain.ConfirmTimeout = 5 * time.Minute }, true},
		{"lock ttl outlives confirm wait", func(c *Config) { c.Redis.LockTTL = 3 * time.Minute; c.Chain.ConfirmTimeout = time.Minute }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestOriginsPreservesOrder(t *testing.T) {
	h := HTTPConfig{AllowedOrigins: "https://a.example, https://b.example,,"}
	got := h.Origins()
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Fatalf("origins = %v", got)
	}
}
