package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/mintix/internal/app/domain/event"
	"github.com/R3E-Network/mintix/internal/app/domain/ticket"
	"github.com/R3E-Network/mintix/internal/app/domain/user"
	"github.com/R3E-Network/mintix/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu           sync.RWMutex
	users        map[string]user.User
	events       map[string]event.Event
	transactions map[string]ticket.Record
	bySignature  map[string]string
	byIdemKey    map[string]string
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.EventStore = (*Store)(nil)
var _ storage.TransactionStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		users:        make(map[string]user.User),
		events:       make(map[string]event.Event),
		transactions: make(map[string]ticket.Record),
		bySignature:  make(map[string]string),
		byIdemKey:    make(map[string]string),
	}
}

// UserStore implementation -----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(u.Username)
	if _, exists := s.users[key]; exists {
		return user.User{}, storage.ErrDuplicate
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users[key] = u
	return u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[strings.ToLower(username)]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

// EventStore implementation ----------------------------------------------------

func (s *Store) CreateEvent(_ context.Context, evt event.Event) (event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if evt.ID == "" {
		evt.ID = uuid.NewString()
	} else if _, exists := s.events[evt.ID]; exists {
		return event.Event{}, storage.ErrDuplicate
	}
	now := time.Now().UTC()
	evt.CreatedAt = now
	evt.UpdatedAt = now
	s.events[evt.ID] = cloneEvent(evt)
	return cloneEvent(evt), nil
}

func (s *Store) UpdateEvent(_ context.Context, evt event.Event) (event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.events[evt.ID]
	if !ok {
		return event.Event{}, storage.ErrNotFound
	}
	evt.CreatedAt = existing.CreatedAt
	evt.UpdatedAt = time.Now().UTC()
	s.events[evt.ID] = cloneEvent(evt)
	return cloneEvent(evt), nil
}

func (s *Store) GetEvent(_ context.Context, id string) (event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	evt, ok := s.events[id]
	if !ok {
		return event.Event{}, storage.ErrNotFound
	}
	return cloneEvent(evt), nil
}

func (s *Store) ListEvents(_ context.Context, page storage.Page) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]event.Event, 0, len(s.events))
	for _, evt := range s.events {
		out = append(out, cloneEvent(evt))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, page), nil
}

func (s *Store) DeleteEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.events, id)
	return nil
}

// TransactionStore implementation ----------------------------------------------

func (s *Store) CreateTransaction(_ context.Context, rec ticket.Record) (ticket.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bySignature[rec.Signature]; exists {
		return ticket.Record{}, storage.ErrDuplicate
	}
	if rec.IdempotencyKey != "" {
		if _, exists := s.byIdemKey[rec.IdempotencyKey]; exists {
			return ticket.Record{}, storage.ErrDuplicate
		}
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	s.transactions[rec.ID] = rec
	s.bySignature[rec.Signature] = rec.ID
	if rec.IdempotencyKey != "" {
		s.byIdemKey[rec.IdempotencyKey] = rec.ID
	}
	return rec, nil
}

func (s *Store) UpdateTransaction(_ context.Context, rec ticket.Record) (ticket.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.transactions[rec.ID]
	if !ok {
		return ticket.Record{}, storage.ErrNotFound
	}
	existing.Amount = rec.Amount
	existing.EventID = rec.EventID
	existing.UpdatedAt = time.Now().UTC()
	s.transactions[rec.ID] = existing
	return existing, nil
}

func (s *Store) UpdateTransactionStatus(_ context.Context, id string, status ticket.Status) (ticket.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.transactions[id]
	if !ok {
		return ticket.Record{}, storage.ErrNotFound
	}
	existing.Status = status
	existing.UpdatedAt = time.Now().UTC()
	s.transactions[id] = existing
	return existing, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (ticket.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.transactions[id]
	if !ok {
		return ticket.Record{}, storage.ErrNotFound
	}
	return rec, nil
}

func (s *Store) GetTransactionByIdempotencyKey(_ context.Context, key string) (ticket.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byIdemKey[key]
	if !ok {
		return ticket.Record{}, storage.ErrNotFound
	}
	return s.transactions[id], nil
}

func (s *Store) ListTransactions(_ context.Context, page storage.Page) ([]ticket.Record, error) {
	return s.filterTransactions(page, func(ticket.Record) bool { return true }), nil
}

func (s *Store) ListTransactionsByAddress(_ context.Context, address string, page storage.Page) ([]ticket.Record, error) {
	return s.filterTransactions(page, func(rec ticket.Record) bool {
		return rec.TicketAddress == address
	}), nil
}

func (s *Store) ListTransactionsByStatus(_ context.Context, status ticket.Status, limit int) ([]ticket.Record, error) {
	out := s.filterTransactions(storage.Page{}, func(rec ticket.Record) bool {
		return rec.Status == status
	})
	// oldest first so long-pending records are settled before newer ones
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, storage.Page{Limit: limit}), nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.transactions[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.transactions, id)
	delete(s.bySignature, rec.Signature)
	if rec.IdempotencyKey != "" {
		delete(s.byIdemKey, rec.IdempotencyKey)
	}
	return nil
}

func (s *Store) filterTransactions(page storage.Page, keep func(ticket.Record) bool) []ticket.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ticket.Record, 0)
	for _, rec := range s.transactions {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, page)
}

func paginate[T any](items []T, page storage.Page) []T {
	if page.Offset < 0 {
		page.Offset = 0
	}
	if page.Offset >= len(items) {
		return []T{}
	}
	items = items[page.Offset:]
	if page.Limit > 0 && page.Limit < len(items) {
		items = items[:page.Limit]
	}
	return items
}

func cloneEvent(evt event.Event) event.Event {
	if evt.Categories != nil {
		evt.Categories = append([]string(nil), evt.Categories...)
	}
	if evt.Location != nil {
		loc := *evt.Location
		loc.Coordinates = append([]float64(nil), loc.Coordinates...)
		evt.Location = &loc
	}
	return evt
}
