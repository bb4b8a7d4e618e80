package storage

import (
	"context"
	"errors"

	"github.com/R3E-Network/mintix/internal/app/domain/event"
	"github.com/R3E-Network/mintix/internal/app/domain/ticket"
	"github.com/R3E-Network/mintix/internal/app/domain/user"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("storage: not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("storage: duplicate key")
)

// Page selects a window of a newest-first listing.
type Page struct {
	Limit  int
	Offset int
}

// UserStore persists credential records.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	GetUserByUsername(ctx context.Context, username string) (user.User, error)
}

// EventStore persists events.
type EventStore interface {
	CreateEvent(ctx context.Context, evt event.Event) (event.Event, error)
	UpdateEvent(ctx context.Context, evt event.Event) (event.Event, error)
	GetEvent(ctx context.Context, id string) (event.Event, error)
	ListEvents(ctx context.Context, page Page) ([]event.Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

// TransactionStore persists ticket transaction records.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, rec ticket.Record) (ticket.Record, error)
	// UpdateTransaction rewrites the administrative fields (amount, event id).
	UpdateTransaction(ctx context.Context, rec ticket.Record) (ticket.Record, error)
	UpdateTransactionStatus(ctx context.Context, id string, status ticket.Status) (ticket.Record, error)
	GetTransaction(ctx context.Context, id string) (ticket.Record, error)
	GetTransactionByIdempotencyKey(ctx context.Context, key string) (ticket.Record, error)
	ListTransactions(ctx context.Context, page Page) ([]ticket.Record, error)
	ListTransactionsByAddress(ctx context.Context, address string, page Page) ([]ticket.Record, error)
	ListTransactionsByStatus(ctx context.Context, status ticket.Status, limit int) ([]ticket.Record, error)
	DeleteTransaction(ctx context.Context, id string) error
}
