// Package payments exposes the ticket transaction ledger as payment records.
// Ledger fields are immutable; administrators may only correct the amount and
// the event reference, or delete a record.
package payments

import (
	"context"
	"errors"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/R3E-Network/mintix/internal/app/domain/ticket"
	"github.com/R3E-Network/mintix/internal/app/storage"
	"github.com/R3E-Network/mintix/internal/chain"
	svcerrors "github.com/R3E-Network/mintix/internal/errors"
	"github.com/R3E-Network/mintix/pkg/logger"
)

// CreateInput describes a manually recorded payment.
type CreateInput struct {
	Kind          ticket.Kind         `json:"type"`
	Amount        decimal.NullDecimal `json:"amount"`
	EventID       string              `json:"eventId"`
	TicketAddress string              `json:"ticketAddress"`
	Signature     string              `json:"signature"`
	Status        ticket.Status       `json:"status"`
}

// UpdateInput carries the administrative fields. Nil fields are unchanged.
type UpdateInput struct {
	Amount  *decimal.NullDecimal `json:"amount"`
	EventID *string              `json:"eventId"`
}

// Service manages payment records.
type Service struct {
	store storage.TransactionStore
	log   *logger.Logger
}

// New constructs a payment service.
func New(store storage.TransactionStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("payments")
	}
	return &Service{store: store, log: log}
}

// Create records a payment observed outside the orchestrator.
func (s *Service) Create(ctx context.Context, in CreateInput, requestedBy string) (ticket.Record, error) {
	in.Kind = ticket.Kind(strings.ToUpper(strings.TrimSpace(string(in.Kind))))
	if !in.Kind.Valid() {
		return ticket.Record{}, svcerrors.Validation("type must be one of MINT, LIST, TRANSFER")
	}
	in.Signature = strings.TrimSpace(in.Signature)
	if in.Signature == "" {
		return ticket.Record{}, svcerrors.Validation("signature is required")
	}
	if _, err := solana.SignatureFromBase58(in.Signature); err != nil {
		return ticket.Record{}, svcerrors.Validation("signature is not a valid transaction signature")
	}
	if in.Amount.Valid && in.Amount.Decimal.IsNegative() {
		return ticket.Record{}, svcerrors.Validation("amount must not be negative")
	}
	address, err := chain.ParsePublicKey(in.TicketAddress)
	if err != nil {
		return ticket.Record{}, svcerrors.Validation("ticketAddress is not a valid public key")
	}
	if in.Status == "" {
		in.Status = ticket.StatusConfirmed
	}
	if !in.Status.Valid() {
		return ticket.Record{}, svcerrors.Validation("status must be one of confirmed, pending, failed")
	}
	eventID, err := normalizeEventID(in.EventID)
	if err != nil {
		return ticket.Record{}, err
	}

	rec, err := s.store.CreateTransaction(ctx, ticket.Record{
		Kind:          in.Kind,
		Amount:        in.Amount,
		EventID:       eventID,
		TicketAddress: address.String(),
		Signature:     in.Signature,
		Status:        in.Status,
		RequestedBy:   requestedBy,
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return ticket.Record{}, svcerrors.Conflict("a record with this signature already exists")
		}
		return ticket.Record{}, svcerrors.Persistence("failed to create payment", err)
	}
	s.log.WithContext(ctx).WithField("payment_id", rec.ID).WithField("signature", rec.Signature).Info("payment recorded")
	return rec, nil
}

// Get returns one record.
func (s *Service) Get(ctx context.Context, id string) (ticket.Record, error) {
	rec, err := s.store.GetTransaction(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ticket.Record{}, svcerrors.NotFound("payment", id)
		}
		return ticket.Record{}, svcerrors.Persistence("failed to load payment", err)
	}
	return rec, nil
}

// List returns a page of records, newest first.
func (s *Service) List(ctx context.Context, page storage.Page) ([]ticket.Record, error) {
	out, err := s.store.ListTransactions(ctx, page)
	if err != nil {
		return nil, svcerrors.Persistence("failed to list payments", err)
	}
	return out, nil
}

// Update corrects the amount or event reference of a record.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (ticket.Record, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return ticket.Record{}, err
	}
	if in.Amount != nil {
		if in.Amount.Valid && in.Amount.Decimal.IsNegative() {
			return ticket.Record{}, svcerrors.Validation("amount must not be negative")
		}
		rec.Amount = *in.Amount
	}
	if in.EventID != nil {
		eventID, err := normalizeEventID(*in.EventID)
		if err != nil {
			return ticket.Record{}, err
		}
		rec.EventID = eventID
	}
	updated, err := s.store.UpdateTransaction(ctx, rec)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ticket.Record{}, svcerrors.NotFound("payment", id)
		}
		return ticket.Record{}, svcerrors.Persistence("failed to update payment", err)
	}
	s.log.WithContext(ctx).WithField("payment_id", id).Info("payment updated")
	return updated, nil
}

// Delete removes a record.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteTransaction(ctx, strings.TrimSpace(id)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return svcerrors.NotFound("payment", id)
		}
		return svcerrors.Persistence("failed to delete payment", err)
	}
	s.log.WithContext(ctx).WithField("payment_id", id).Warn("payment deleted")
	return nil
}

func normalizeEventID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", svcerrors.Validation("eventId is not a valid id")
	}
	return id.String(), nil
}
