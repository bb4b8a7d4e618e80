// Package config loads runtime configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config is the root configuration tree.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Chain     ChainConfig
	Auth      AuthConfig
	HTTP      HTTPConfig
	Reconcile ReconcileConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host            string        `env:"HOST,default=0.0.0.0"`
	Port            int           `env:"PORT,default=3000"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT,default=15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT,default=90s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT,default=10s"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	DSN             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS,default=10"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME,default=30m"`
	AutoMigrate     bool          `env:"DB_AUTO_MIGRATE,default=true"`
}

const (
	defaultLockTTL = 2 * time.Minute
	// lockMargin covers submission and persistence around the confirmation wait.
	lockMargin = 15 * time.Second
)

type RedisConfig struct {
	URL     string        `env:"REDIS_URL"`
	LockTTL time.Duration `env:"LOCK_TTL,default=2m"`
}

// Chain modes.
const (
	ChainModeRPC       = "rpc"
	ChainModeSimulated = "simulated"
)

type ChainConfig struct {
	RPCURL         string        `env:"SOLANA_RPC_URL,default=https://api.devnet.solana.com"`
	Mode           string        `env:"CHAIN_MODE,default=rpc"`
	Commitment     string        `env:"CHAIN_COMMITMENT,default=confirmed"`
	ConfirmTimeout time.Duration `env:"CHAIN_CONFIRM_TIMEOUT,default=60s"`
	PollInterval   time.Duration `env:"CHAIN_POLL_INTERVAL,default=2s"`
	OperatorKey    string        `env:"SECRET_KEY"`
	ProgramID      string        `env:"PROGRAM_ID"`
	DescriptorPath string        `env:"PROGRAM_DESCRIPTOR"`
}

type AuthConfig struct {
	Secret         string        `env:"SECRET"`
	TokenTTL       time.Duration `env:"TOKEN_TTL,default=168h"`
	AdminUsernames string        `env:"ADMIN_USERNAMES"`
}

// Admins returns the admin allowlist as a set.
func (a AuthConfig) Admins() map[string]struct{} {
	return ParseCSVSet(a.AdminUsernames)
}

type HTTPConfig struct {
	AllowedOrigins string  `env:"CORS_ALLOWED_ORIGINS,default=*"`
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS,default=20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST,default=40"`
	AuditLogPath   string  `env:"AUDIT_LOG_PATH"`
}

// Origins splits the CORS allowlist.
func (h HTTPConfig) Origins() []string {
	var out []string
	for _, part := range strings.Split(h.AllowedOrigins, ",") {
		if origin := strings.TrimSpace(part); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

type ReconcileConfig struct {
	Schedule  string        `env:"RECONCILE_SCHEDULE,default=@every 30s"`
	BatchSize int           `env:"RECONCILE_BATCH_SIZE,default=50"`
	Expiry    time.Duration `env:"RECONCILE_EXPIRY,default=10m"`
	Disabled  bool          `env:"RECONCILE_DISABLED,default=false"`
}

type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=json"`
	Output string `env:"LOG_OUTPUT,default=stdout"`
}

// Load reads an optional dotenv file and decodes the environment.
func Load(envFiles ...string) (*Config, error) {
	if err := loadDotEnv(envFiles...); err != nil {
		return nil, err
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field requirements the tags cannot express.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return errors.New("SECRET is required for token signing")
	}
	switch c.Chain.Mode {
	case ChainModeRPC:
		if strings.TrimSpace(c.Chain.OperatorKey) == "" {
			return errors.New("SECRET_KEY is required in rpc chain mode")
		}
		if strings.TrimSpace(c.Chain.RPCURL) == "" {
			return errors.New("SOLANA_RPC_URL is required in rpc chain mode")
		}
	case ChainModeSimulated:
	default:
		return fmt.Errorf("unknown CHAIN_MODE %q", c.Chain.Mode)
	}
	if c.Chain.ConfirmTimeout <= 0 {
		return errors.New("CHAIN_CONFIRM_TIMEOUT must be positive")
	}
	if c.Chain.PollInterval <= 0 {
		return errors.New("CHAIN_POLL_INTERVAL must be positive")
	}
	lockTTL := c.Redis.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	if lockTTL < c.Chain.ConfirmTimeout+lockMargin {
		return fmt.Errorf("LOCK_TTL (%s) must exceed CHAIN_CONFIRM_TIMEOUT (%s) by at least %s",
			lockTTL, c.Chain.ConfirmTimeout, lockMargin)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Server.Port)
	}
	return nil
}

func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ParseCSVSet splits a comma-separated list into a set, dropping blanks.
func ParseCSVSet(raw string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out[trimmed] = struct{}{}
	}
	return out
}
