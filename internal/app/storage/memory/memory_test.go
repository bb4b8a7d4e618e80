package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/R3E-Network/mintix/internal/app/domain/event"
	"github.com/R3E-Network/mintix/internal/app/domain/ticket"
	"github.com/R3E-Network/mintix/internal/app/domain/user"
	"github.com/R3E-Network/mintix/internal/app/storage"
)

func TestUsersUniqueUsername(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.CreateUser(ctx, user.User{Username: "alice", PasswordHash: "h"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.CreateUser(ctx, user.User{Username: "Alice"}); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	got, err := store.GetUserByUsername(ctx, "alice")
	if err != nil || got.PasswordHash != "h" {
		t.Fatalf("get: %+v %v", got, err)
	}
	if _, err := store.GetUserByUsername(ctx, "bob"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestEventsNewestFirstPagination(t *testing.T) {
	store := New()
	ctx := context.Background()

	for _, name := range []string{"first", "second", "third"} {
		if _, err := store.CreateEvent(ctx, event.Event{Name: name, Categories: []string{"music"}}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		time.Sleep(time.Millisecond)
	}

	page, err := store.ListEvents(ctx, storage.Page{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 || page[0].Name != "third" || page[1].Name != "second" {
		t.Fatalf("unexpected page: %+v", page)
	}

	rest, _ := store.ListEvents(ctx, storage.Page{Limit: 2, Offset: 2})
	if len(rest) != 1 || rest[0].Name != "first" {
		t.Fatalf("unexpected second page: %+v", rest)
	}

	beyond, _ := store.ListEvents(ctx, storage.Page{Limit: 2, Offset: 10})
	if len(beyond) != 0 {
		t.Fatalf("expected empty page, got %d", len(beyond))
	}

	negative, err := store.ListEvents(ctx, storage.Page{Limit: 2, Offset: -9223372036854775726})
	if err != nil || len(negative) != 2 || negative[0].Name != "third" {
		t.Fatalf("negative offset should read from the start: %+v %v", negative, err)
	}
}

func TestEventsReturnCopies(t *testing.T) {
	store := New()
	ctx := context.Background()

	created, _ := store.CreateEvent(ctx, event.Event{Name: "gig", Categories: []string{"a"}})
	created.Categories[0] = "mutated"

	got, _ := store.GetEvent(ctx, created.ID)
	if got.Categories[0] != "a" {
		t.Fatalf("store leaked internal slice")
	}
}

func TestTransactionsLedger(t *testing.T) {
	store := New()
	ctx := context.Background()

	rec, err := store.CreateTransaction(ctx, ticket.Record{
		Kind:           ticket.KindMint,
		Amount:         decimal.NewNullDecimal(decimal.NewFromInt(100)),
		TicketAddress:  "addr-1",
		Signature:      "sig-1",
		Status:         ticket.StatusPending,
		IdempotencyKey: "key-1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := store.CreateTransaction(ctx, ticket.Record{Signature: "sig-1"}); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("duplicate signature accepted: %v", err)
	}
	if _, err := store.CreateTransaction(ctx, ticket.Record{Signature: "sig-2", IdempotencyKey: "key-1"}); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("duplicate idempotency key accepted: %v", err)
	}

	byKey, err := store.GetTransactionByIdempotencyKey(ctx, "key-1")
	if err != nil || byKey.ID != rec.ID {
		t.Fatalf("lookup by key: %+v %v", byKey, err)
	}

	updated, err := store.UpdateTransaction(ctx, ticket.Record{ID: rec.ID, Signature: "forged", EventID: "evt"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Signature != "sig-1" || updated.EventID != "evt" {
		t.Fatalf("ledger fields must not change: %+v", updated)
	}

	pending, _ := store.ListTransactionsByStatus(ctx, ticket.StatusPending, 10)
	if len(pending) != 1 {
		t.Fatalf("pending = %d", len(pending))
	}
	if _, err := store.UpdateTransactionStatus(ctx, rec.ID, ticket.StatusConfirmed); err != nil {
		t.Fatalf("status: %v", err)
	}
	pending, _ = store.ListTransactionsByStatus(ctx, ticket.StatusPending, 10)
	if len(pending) != 0 {
		t.Fatalf("pending after confirm = %d", len(pending))
	}

	byAddr, _ := store.ListTransactionsByAddress(ctx, "addr-1", storage.Page{Limit: 10})
	if len(byAddr) != 1 {
		t.Fatalf("by address = %d", len(byAddr))
	}

	if err := store.DeleteTransaction(ctx, rec.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetTransactionByIdempotencyKey(ctx, "key-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("index not cleared: %v", err)
	}
}
