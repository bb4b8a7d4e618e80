package chain

import (
	"context"
	"errors"
	"testing"
)

func TestSimulatorOwnershipRules(t *testing.T) {
	sim, err := NewSimulator(nil, nil)
	if err != nil {
		t.Fatalf("simulator: %v", err)
	}
	ctx := context.Background()

	mint, err := sim.MintTicket(ctx, MintRequest{Metadata: `{"ticketType":"VIP","price":100}`})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	address, err := ParsePublicKey(mint.TicketAddress)
	if err != nil {
		t.Fatalf("ticket address: %v", err)
	}

	state, err := sim.GetTicket(ctx, address)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if state.Owner != sim.OperatorAddress() || state.Price != 0 {
		t.Fatalf("fresh ticket: %+v", state)
	}

	if _, err := sim.ListTicket(ctx, ListRequest{Ticket: address, Price: 150000000}); err != nil {
		t.Fatalf("list: %v", err)
	}
	state, _ = sim.GetTicket(ctx, address)
	if state.Price != 150000000 {
		t.Fatalf("price = %d", state.Price)
	}

	buyer, _ := NewKeypair()
	transfer, err := sim.TransferTicket(ctx, TransferRequest{Ticket: address, NewOwner: buyer.PublicKey(), Buyer: buyer})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if transfer.Buyer != buyer.PublicKey().String() {
		t.Fatalf("buyer = %s", transfer.Buyer)
	}
	state, _ = sim.GetTicket(ctx, address)
	if state.Owner != buyer.PublicKey().String() || state.Price != 0 {
		t.Fatalf("after transfer: %+v", state)
	}

	// operator no longer owns the ticket
	if _, err := sim.ListTicket(ctx, ListRequest{Ticket: address, Price: 1}); !errors.Is(err, ErrInvalidOwner) {
		t.Fatalf("expected invalid owner, got %v", err)
	}
	if _, err := sim.ListTicket(ctx, ListRequest{Ticket: address, Price: 5, Authority: buyer}); err != nil {
		t.Fatalf("new owner listing: %v", err)
	}
}

func TestSimulatorHoldAndSettle(t *testing.T) {
	sim, _ := NewSimulator(nil, nil)
	ctx := context.Background()

	sim.HoldConfirmations(true)
	receipt, err := sim.MintTicket(ctx, MintRequest{Metadata: `{}`})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if receipt.Status != Pending {
		t.Fatalf("status = %s", receipt.Status)
	}
	if st, _ := sim.SignatureStatus(ctx, receipt.Signature); st != Pending {
		t.Fatalf("signature status = %s", st)
	}

	sim.Settle()
	if st, _ := sim.SignatureStatus(ctx, receipt.Signature); st != Confirmed {
		t.Fatalf("after settle = %s", st)
	}
}

func TestSimulatorMissingAccount(t *testing.T) {
	sim, _ := NewSimulator(nil, nil)
	key, _ := NewKeypair()
	if _, err := sim.GetTicket(context.Background(), key.PublicKey()); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
