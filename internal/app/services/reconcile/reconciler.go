// Package reconcile settles ledger records left pending when the confirmation
// wait elapsed before the chain confirmed the signature.
package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/R3E-Network/mintix/internal/app/domain/ticket"
	"github.com/R3E-Network/mintix/internal/app/metrics"
	"github.com/R3E-Network/mintix/internal/app/storage"
	"github.com/R3E-Network/mintix/internal/app/system"
	"github.com/R3E-Network/mintix/internal/chain"
	"github.com/R3E-Network/mintix/pkg/logger"
)

const (
	DefaultSchedule  = "@every 30s"
	DefaultBatchSize = 50
	// DefaultExpiry is how long a signature may stay unconfirmed before the
	// record is marked failed. Blockhashes expire well before this.
	DefaultExpiry = 10 * time.Minute
)

// StatusChecker reports the confirmation state of a signature.
type StatusChecker interface {
	SignatureStatus(ctx context.Context, signature string) (chain.Confirmation, error)
}

// Config tunes the reconciler.
type Config struct {
	Schedule  string
	BatchSize int
	Expiry    time.Duration
}

// Result summarises one pass.
type Result struct {
	Checked   int
	Confirmed int
	Failed    int
}

// Reconciler advances pending records to confirmed or failed. It only ever
// changes the status field.
type Reconciler struct {
	store    storage.TransactionStore
	checker  StatusChecker
	schedule string
	batch    int
	expiry   time.Duration
	now      func() time.Time
	log      *logger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
	passMu  sync.Mutex
}

var _ system.Service = (*Reconciler)(nil)

// New constructs a reconciler.
func New(store storage.TransactionStore, checker StatusChecker, cfg Config, log *logger.Logger) *Reconciler {
	if log == nil {
		log = logger.NewDefault("reconciler")
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = DefaultExpiry
	}
	return &Reconciler{
		store:    store,
		checker:  checker,
		schedule: cfg.Schedule,
		batch:    cfg.BatchSize,
		expiry:   cfg.Expiry,
		now:      time.Now,
		log:      log,
	}
}

func (r *Reconciler) Name() string { return "reconciler" }

// Start schedules passes on the configured cron schedule.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}
	runCtx := context.WithoutCancel(ctx)
	c := cron.New()
	if _, err := c.AddFunc(r.schedule, func() {
		if _, err := r.Run(runCtx); err != nil {
			r.log.WithError(err).Warn("reconcile pass failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", r.schedule, err)
	}
	c.Start()
	r.cron = c
	r.running = true
	r.log.WithField("schedule", r.schedule).Info("reconciler started")
	return nil
}

// Stop halts scheduling and waits for an in-flight pass.
func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	c := r.cron
	r.cron = nil
	r.running = false
	r.mu.Unlock()

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run performs one pass over the oldest pending records.
func (r *Reconciler) Run(ctx context.Context) (Result, error) {
	// overlapping cron ticks must not double-process a batch
	if !r.passMu.TryLock() {
		return Result{}, nil
	}
	defer r.passMu.Unlock()

	var res Result
	pending, err := r.store.ListTransactionsByStatus(ctx, ticket.StatusPending, r.batch)
	if err != nil {
		return res, fmt.Errorf("list pending records: %w", err)
	}
	now := r.now()
	for _, rec := range pending {
		res.Checked++
		entry := r.log.WithField("record_id", rec.ID).WithField("signature", rec.Signature)

		expired := now.Sub(rec.CreatedAt) >= r.expiry
		next := ticket.StatusPending
		status, err := r.checker.SignatureStatus(ctx, rec.Signature)
		switch {
		case err != nil:
			entry.WithError(err).Debug("signature status unavailable")
			// a lookup that never succeeds must not pin the record
			if expired {
				next = ticket.StatusFailed
			}
		case status == chain.Confirmed:
			next = ticket.StatusConfirmed
		case status == chain.Failed:
			next = ticket.StatusFailed
		case expired:
			next = ticket.StatusFailed
		}
		if next == ticket.StatusPending {
			continue
		}

		if _, err := r.store.UpdateTransactionStatus(ctx, rec.ID, next); err != nil {
			entry.WithError(err).Warn("update record status failed")
			continue
		}
		metrics.RecordReconciled(string(next))
		if next == ticket.StatusConfirmed {
			res.Confirmed++
		} else {
			res.Failed++
		}
		entry.WithField("status", next).Info("pending record settled")
	}
	return res, nil
}
