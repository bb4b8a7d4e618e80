package app

import (
	"context"
	"fmt"
	"time"

	"github.com/R3E-Network/mintix/internal/app/services/auth"
	"github.com/R3E-Network/mintix/internal/app/services/events"
	"github.com/R3E-Network/mintix/internal/app/services/payments"
	"github.com/R3E-Network/mintix/internal/app/services/reconcile"
	"github.com/R3E-Network/mintix/internal/app/services/tickets"
	"github.com/R3E-Network/mintix/internal/app/storage"
	"github.com/R3E-Network/mintix/internal/app/storage/memory"
	"github.com/R3E-Network/mintix/internal/app/system"
	"github.com/R3E-Network/mintix/internal/chain"
	"github.com/R3E-Network/mintix/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users        storage.UserStore
	Events       storage.EventStore
	Transactions storage.TransactionStore
}

// Options carries the non-storage collaborators.
type Options struct {
	// Chain defaults to an in-process simulator.
	Chain tickets.ChainClient
	// Locker defaults to an in-process locker.
	Locker tickets.Locker

	TokenSecret string
	TokenTTL    time.Duration

	Reconcile         reconcile.Config
	DisableReconciler bool
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Chain      tickets.ChainClient
	Auth       *auth.Service
	Tickets    *tickets.Service
	Events     *events.Service
	Payments   *payments.Service
	Reconciler *reconcile.Reconciler
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Events == nil {
		stores.Events = mem
	}
	if stores.Transactions == nil {
		stores.Transactions = mem
	}

	client := opts.Chain
	if client == nil {
		sim, err := chain.NewSimulator(nil, nil)
		if err != nil {
			return nil, fmt.Errorf("build chain simulator: %w", err)
		}
		log.Warn("no chain client configured; using in-process simulator")
		client = sim
	}
	locker := opts.Locker
	if locker == nil {
		locker = tickets.NewLocalLocker(tickets.DefaultLockTTL)
	}

	authService, err := auth.New(stores.Users, opts.TokenSecret, opts.TokenTTL, log.Named("auth"))
	if err != nil {
		return nil, fmt.Errorf("build auth service: %w", err)
	}

	manager := system.NewManager()
	for _, name := range []string{"auth", "tickets", "events", "payments"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	var reconciler *reconcile.Reconciler
	if opts.DisableReconciler {
		log.Warn("reconciler disabled; pending records will not be settled")
	} else {
		reconciler = reconcile.New(stores.Transactions, client, opts.Reconcile, log.Named("reconciler"))
		if err := manager.Register(reconciler); err != nil {
			return nil, fmt.Errorf("register %s: %w", reconciler.Name(), err)
		}
	}

	return &Application{
		manager:    manager,
		log:        log,
		Chain:      client,
		Auth:       authService,
		Tickets:    tickets.New(client, stores.Transactions, locker, log.Named("tickets")),
		Events:     events.New(stores.Events, log.Named("events")),
		Payments:   payments.New(stores.Transactions, log.Named("payments")),
		Reconciler: reconciler,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
