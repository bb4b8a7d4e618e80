package payments

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/mintix/internal/app/domain/ticket"
	"github.com/R3E-Network/mintix/internal/app/storage"
	"github.com/R3E-Network/mintix/internal/app/storage/memory"
	svcerrors "github.com/R3E-Network/mintix/internal/errors"
	"github.com/R3E-Network/mintix/pkg/testutil"
)

func TestPaymentLifecycle(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()
	address := testutil.NewAddress()
	sig := testutil.NewSignature()

	rec, err := svc.Create(ctx, CreateInput{
		Kind:          "mint",
		Amount:        decimal.NewNullDecimal(decimal.NewFromInt(100)),
		TicketAddress: address,
		Signature:     sig,
	}, "admin")
	require.NoError(t, err)
	assert.Equal(t, ticket.KindMint, rec.Kind)
	assert.Equal(t, ticket.StatusConfirmed, rec.Status)
	assert.Equal(t, "admin", rec.RequestedBy)

	_, err = svc.Create(ctx, CreateInput{Kind: "MINT", TicketAddress: address, Signature: sig}, "admin")
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeConflict))

	eventID := "6f1c4f0e-3a1b-4a8c-8a43-5f8a9a4d2c11"
	amount := decimal.NewNullDecimal(decimal.NewFromInt(250))
	updated, err := svc.Update(ctx, rec.ID, UpdateInput{Amount: &amount, EventID: &eventID})
	require.NoError(t, err)
	assert.Equal(t, "250", updated.Amount.Decimal.String())
	assert.Equal(t, eventID, updated.EventID)
	assert.Equal(t, sig, updated.Signature, "ledger fields are immutable")
	assert.Equal(t, address, updated.TicketAddress)

	list, err := svc.List(ctx, storage.Page{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.Delete(ctx, rec.ID))
	_, err = svc.Get(ctx, rec.ID)
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeNotFound))
}

func TestPaymentValidation(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()
	address := testutil.NewAddress()
	sig := testutil.NewSignature()

	cases := map[string]CreateInput{
		"bad kind":        {Kind: "REFUND", TicketAddress: address, Signature: sig},
		"no signature":    {Kind: "LIST", TicketAddress: address},
		"bad signature":   {Kind: "LIST", TicketAddress: address, Signature: "not-a-signature", Status: "pending"},
		"bad address":     {Kind: "LIST", TicketAddress: "xyz", Signature: sig},
		"bad status":      {Kind: "LIST", TicketAddress: address, Signature: sig, Status: "done"},
		"bad event ref":   {Kind: "LIST", TicketAddress: address, Signature: sig, EventID: "evt-1"},
		"negative amount": {Kind: "LIST", TicketAddress: address, Signature: sig, Amount: decimal.NewNullDecimal(decimal.NewFromInt(-5))},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(ctx, in, "admin")
			assert.True(t, svcerrors.IsCode(err, svcerrors.CodeValidation), "got %v", err)
		})
	}

	rec, err := svc.Create(ctx, CreateInput{Kind: "TRANSFER", TicketAddress: address, Signature: testutil.NewSignature()}, "admin")
	require.NoError(t, err)
	negative := decimal.NewNullDecimal(decimal.NewFromInt(-1))
	_, err = svc.Update(ctx, rec.ID, UpdateInput{Amount: &negative})
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeValidation))
}
