// Package runtime builds a running process from configuration.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	app "github.com/R3E-Network/mintix/internal/app"
	"github.com/R3E-Network/mintix/internal/app/httpapi"
	"github.com/R3E-Network/mintix/internal/app/services/reconcile"
	"github.com/R3E-Network/mintix/internal/app/services/tickets"
	"github.com/R3E-Network/mintix/internal/app/storage/postgres"
	"github.com/R3E-Network/mintix/internal/chain"
	"github.com/R3E-Network/mintix/internal/config"
	"github.com/R3E-Network/mintix/internal/platform/migrations"
	"github.com/R3E-Network/mintix/pkg/logger"
)

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	app        *app.Application
	handler    http.Handler
	httpServer *http.Server
	db         *sqlx.DB
	redis      *redis.Client
	cancel     context.CancelFunc

	mu      sync.Mutex
	started bool
}

// NewApplication constructs the process from cfg.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	var (
		stores app.Stores
		db     *sqlx.DB
		err    error
	)
	if strings.TrimSpace(cfg.Database.DSN) != "" {
		db, err = openDatabase(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if cfg.Database.AutoMigrate {
			if err := migrations.Up(db.DB); err != nil {
				db.Close()
				return nil, err
			}
		}
		store := postgres.New(db.DB)
		stores = app.Stores{Users: store, Events: store, Transactions: store}
	} else {
		log.Warn("DATABASE_URL not set; using in-memory storage")
	}

	closeDB := func() {
		if db != nil {
			db.Close()
		}
	}

	locker, rdb, err := buildLocker(cfg.Redis, log)
	if err != nil {
		closeDB()
		return nil, err
	}

	client, err := buildChain(cfg.Chain, log)
	if err != nil {
		closeDB()
		if rdb != nil {
			rdb.Close()
		}
		return nil, err
	}

	application, err := app.New(stores, app.Options{
		Chain:       client,
		Locker:      locker,
		TokenSecret: cfg.Auth.Secret,
		TokenTTL:    cfg.Auth.TokenTTL,
		Reconcile: reconcile.Config{
			Schedule:  cfg.Reconcile.Schedule,
			BatchSize: cfg.Reconcile.BatchSize,
			Expiry:    cfg.Reconcile.Expiry,
		},
		DisableReconciler: cfg.Reconcile.Disabled,
	}, log)
	if err != nil {
		closeDB()
		if rdb != nil {
			rdb.Close()
		}
		return nil, fmt.Errorf("build application: %w", err)
	}

	background, cancel := context.WithCancel(context.Background())
	handler, err := httpapi.NewHandler(application, httpapi.Options{
		Admins:         cfg.Auth.Admins(),
		AllowedOrigins: cfg.HTTP.Origins(),
		RateLimitRPS:   cfg.HTTP.RateLimitRPS,
		RateLimitBurst: cfg.HTTP.RateLimitBurst,
		AuditLogPath:   cfg.HTTP.AuditLogPath,
		Background:     background,
	}, log.Named("http"))
	if err != nil {
		cancel()
		closeDB()
		if rdb != nil {
			rdb.Close()
		}
		return nil, fmt.Errorf("build http handler: %w", err)
	}

	return &Application{
		cfg:     cfg,
		log:     log,
		app:     application,
		handler: handler,
		httpServer: &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           handler,
			ReadTimeout:       cfg.Server.ReadTimeout,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      cfg.Server.WriteTimeout,
		},
		db:     db,
		redis:  rdb,
		cancel: cancel,
	}, nil
}

// App exposes the composed services.
func (a *Application) App() *app.Application {
	return a.app
}

// Handler exposes the HTTP handler without a listener.
func (a *Application) Handler() http.Handler {
	return a.handler
}

// Start launches background services without opening a listener.
func (a *Application) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return nil
	}
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}
	a.started = true
	return nil
}

// Run starts the services and the HTTP server and blocks until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown stops the HTTP server and services, then releases connections.
func (a *Application) Shutdown(ctx context.Context) error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
	}

	a.mu.Lock()
	if a.started {
		if err := a.app.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("stop services: %w", err))
		}
		a.started = false
	}
	a.mu.Unlock()

	a.cancel()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("error closing redis connection")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
	}
	return errors.Join(errs...)
}

func openDatabase(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// buildLocker prefers Redis so that locks hold across replicas.
func buildLocker(cfg config.RedisConfig, log *logger.Logger) (tickets.Locker, *redis.Client, error) {
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = tickets.DefaultLockTTL
	}
	if strings.TrimSpace(cfg.URL) == "" {
		log.Warn("REDIS_URL not set; request locks are process-local")
		return tickets.NewLocalLocker(ttl), nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return tickets.NewRedisLocker(client, ttl), client, nil
}

func buildChain(cfg config.ChainConfig, log *logger.Logger) (tickets.ChainClient, error) {
	desc, err := config.LoadProgramDescriptor(cfg.DescriptorPath, cfg.ProgramID)
	if err != nil {
		return nil, err
	}
	program, err := chain.NewProgram(desc)
	if err != nil {
		return nil, err
	}

	var operator solana.PrivateKey
	if strings.TrimSpace(cfg.OperatorKey) != "" {
		key, err := chain.ParseKeypair(cfg.OperatorKey)
		if err != nil {
			return nil, fmt.Errorf("SECRET_KEY: %w", err)
		}
		operator = key
	}

	switch cfg.Mode {
	case config.ChainModeSimulated:
		log.Warn("CHAIN_MODE=simulated; instructions are not sent to a cluster")
		sim, err := chain.NewSimulator(program, operator)
		if err != nil {
			return nil, fmt.Errorf("build chain simulator: %w", err)
		}
		return sim, nil
	case config.ChainModeRPC, "":
		client, err := chain.NewClient(chain.Config{
			RPCURL:         cfg.RPCURL,
			Commitment:     cfg.Commitment,
			ConfirmTimeout: cfg.ConfirmTimeout,
			PollInterval:   cfg.PollInterval,
			Operator:       operator,
			Program:        program,
		}, log.Named("chain"))
		if err != nil {
			return nil, fmt.Errorf("build chain client: %w", err)
		}
		log.WithField("rpc", cfg.RPCURL).WithField("program", program.ID.String()).
			WithField("operator", client.OperatorAddress()).Info("chain client configured")
		return client, nil
	default:
		return nil, fmt.Errorf("unknown chain mode %q", cfg.Mode)
	}
}

// Migrate applies the embedded schema and returns.
func Migrate(cfg config.DatabaseConfig) error {
	if strings.TrimSpace(cfg.DSN) == "" {
		return errors.New("DATABASE_URL is required to migrate")
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	return migrations.Up(db.DB)
}
