// Package tickets orchestrates ticket program instructions: validate the
// request, submit one instruction, wait for confirmation and record the
// signature in the transaction ledger.
package tickets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/R3E-Network/mintix/internal/app/domain/ticket"
	"github.com/R3E-Network/mintix/internal/app/metrics"
	"github.com/R3E-Network/mintix/internal/app/storage"
	"github.com/R3E-Network/mintix/internal/chain"
	svcerrors "github.com/R3E-Network/mintix/internal/errors"
	"github.com/R3E-Network/mintix/pkg/logger"
)

// ChainClient is the ticket program surface the orchestrator needs.
// *chain.Client and *chain.Simulator satisfy it.
type ChainClient interface {
	OperatorAddress() string
	MaxMetadataBytes() int
	MintTicket(ctx context.Context, req chain.MintRequest) (chain.Receipt, error)
	ListTicket(ctx context.Context, req chain.ListRequest) (chain.Receipt, error)
	TransferTicket(ctx context.Context, req chain.TransferRequest) (chain.Receipt, error)
	GetTicket(ctx context.Context, address solana.PublicKey) (chain.TicketState, error)
	SignatureStatus(ctx context.Context, signature string) (chain.Confirmation, error)
}

var (
	_ ChainClient = (*chain.Client)(nil)
	_ ChainClient = (*chain.Simulator)(nil)
)

// MintRequest asks for a new ticket holding TicketData as metadata.
type MintRequest struct {
	TicketData      json.RawMessage
	EventID         string
	IdempotencyKey  string
	RequestedBy     string
	SignerSecretKey string
}

// MintResult is returned by Mint.
type MintResult struct {
	TicketAddress string        `json:"ticketAddress"`
	Signature     string        `json:"signature"`
	Status        ticket.Status `json:"status"`
	Replayed      bool          `json:"-"`
}

// ListRequest sets a resale price, in lamports, on a ticket.
type ListRequest struct {
	TicketAddress   string
	Price           decimal.NullDecimal
	IdempotencyKey  string
	RequestedBy     string
	SignerSecretKey string
}

// ListResult is returned by List.
type ListResult struct {
	Signature string        `json:"signature"`
	Status    ticket.Status `json:"status"`
	Replayed  bool          `json:"-"`
}

// TransferRequest moves a ticket to NewOwner. BuyerSecretKey is optional.
type TransferRequest struct {
	TicketAddress   string
	NewOwner        string
	BuyerSecretKey  string
	IdempotencyKey  string
	RequestedBy     string
	SignerSecretKey string
}

// TransferResult is returned by Transfer. BuyerPublicKey is empty on replay.
type TransferResult struct {
	Signature      string        `json:"signature"`
	NewOwner       string        `json:"newOwner"`
	BuyerPublicKey string        `json:"buyerPublicKey,omitempty"`
	Status         ticket.Status `json:"status"`
	Replayed       bool          `json:"-"`
}

// Service is the ticket orchestrator.
type Service struct {
	chain  ChainClient
	store  storage.TransactionStore
	locker Locker
	log    *logger.Logger
}

// New constructs the orchestrator. A nil locker falls back to an in-process one.
func New(client ChainClient, store storage.TransactionStore, locker Locker, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("tickets")
	}
	if locker == nil {
		locker = NewLocalLocker(DefaultLockTTL)
	}
	return &Service{chain: client, store: store, locker: locker, log: log}
}

// Mint creates a ticket account on chain and records a MINT entry.
func (s *Service) Mint(ctx context.Context, req MintRequest) (MintResult, error) {
	metadata, amount, err := s.normalizeTicketData(req.TicketData)
	if err != nil {
		return MintResult{}, err
	}
	signer, err := parseOptionalKey(req.SignerSecretKey, "signerSecretKey")
	if err != nil {
		return MintResult{}, err
	}

	rec, replayed, err := s.run(ctx, intent{
		kind:        ticket.KindMint,
		idemKey:     strings.TrimSpace(req.IdempotencyKey),
		requestedBy: req.RequestedBy,
		eventID:     normalizeEventID(req.EventID),
		amount:      amount,
		submit: func(ctx context.Context) (chain.Receipt, error) {
			return s.chain.MintTicket(ctx, chain.MintRequest{Metadata: metadata, Authority: signer})
		},
	})
	if err != nil {
		return MintResult{}, err
	}
	return MintResult{
		TicketAddress: rec.TicketAddress,
		Signature:     rec.Signature,
		Status:        rec.Status,
		Replayed:      replayed,
	}, nil
}

// List sets a resale price on a ticket and records a LIST entry.
func (s *Service) List(ctx context.Context, req ListRequest) (ListResult, error) {
	address, err := parseTicketAddress(req.TicketAddress)
	if err != nil {
		return ListResult{}, err
	}
	price, err := parsePrice(req.Price)
	if err != nil {
		return ListResult{}, err
	}
	signer, err := parseOptionalKey(req.SignerSecretKey, "signerSecretKey")
	if err != nil {
		return ListResult{}, err
	}

	rec, replayed, err := s.run(ctx, intent{
		kind:        ticket.KindList,
		address:     address.String(),
		idemKey:     strings.TrimSpace(req.IdempotencyKey),
		requestedBy: req.RequestedBy,
		amount:      decimal.NewNullDecimal(req.Price.Decimal),
		submit: func(ctx context.Context) (chain.Receipt, error) {
			return s.chain.ListTicket(ctx, chain.ListRequest{Ticket: address, Price: price, Authority: signer})
		},
	})
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Signature: rec.Signature, Status: rec.Status, Replayed: replayed}, nil
}

// Transfer moves a ticket to a new owner and records a TRANSFER entry.
func (s *Service) Transfer(ctx context.Context, req TransferRequest) (TransferResult, error) {
	address, err := parseTicketAddress(req.TicketAddress)
	if err != nil {
		return TransferResult{}, err
	}
	if strings.TrimSpace(req.NewOwner) == "" {
		return TransferResult{}, svcerrors.Validation("newOwner is required")
	}
	newOwner, err := chain.ParsePublicKey(req.NewOwner)
	if err != nil {
		return TransferResult{}, svcerrors.Validation("newOwner is not a valid public key")
	}
	buyer, err := parseOptionalKey(req.BuyerSecretKey, "buyerSecretKey")
	if err != nil {
		return TransferResult{}, err
	}
	signer, err := parseOptionalKey(req.SignerSecretKey, "signerSecretKey")
	if err != nil {
		return TransferResult{}, err
	}

	var buyerKey string
	rec, replayed, err := s.run(ctx, intent{
		kind:        ticket.KindTransfer,
		address:     address.String(),
		idemKey:     strings.TrimSpace(req.IdempotencyKey),
		requestedBy: req.RequestedBy,
		submit: func(ctx context.Context) (chain.Receipt, error) {
			receipt, err := s.chain.TransferTicket(ctx, chain.TransferRequest{
				Ticket:   address,
				NewOwner: newOwner,
				Seller:   signer,
				Buyer:    buyer,
			})
			buyerKey = receipt.Buyer
			return receipt, err
		},
	})
	if err != nil {
		return TransferResult{}, err
	}
	return TransferResult{
		Signature:      rec.Signature,
		NewOwner:       newOwner.String(),
		BuyerPublicKey: buyerKey,
		Status:         rec.Status,
		Replayed:       replayed,
	}, nil
}

// GetTicket reads the on-chain state of a ticket.
func (s *Service) GetTicket(ctx context.Context, address string) (ticket.Ticket, error) {
	key, err := parseTicketAddress(address)
	if err != nil {
		return ticket.Ticket{}, err
	}
	state, err := s.chain.GetTicket(ctx, key)
	if err != nil {
		if errors.Is(err, chain.ErrAccountNotFound) || errors.Is(err, chain.ErrNotTicketAccount) {
			return ticket.Ticket{}, svcerrors.NotFound("ticket", key.String())
		}
		return ticket.Ticket{}, svcerrors.Chain("failed to read ticket", err)
	}
	return ticket.Ticket{
		Address:  state.Address,
		Owner:    state.Owner,
		Metadata: metadataJSON(state.Metadata),
		Price:    state.Price,
	}, nil
}

// History lists ledger entries recorded for a ticket, newest first.
func (s *Service) History(ctx context.Context, address string, page storage.Page) ([]ticket.Record, error) {
	key, err := parseTicketAddress(address)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListTransactionsByAddress(ctx, key.String(), page)
	if err != nil {
		return nil, svcerrors.Persistence("failed to list ticket transactions", err)
	}
	return records, nil
}

// intent is one mutating request reduced to what the ledger needs.
type intent struct {
	kind        ticket.Kind
	address     string
	idemKey     string
	requestedBy string
	eventID     string
	amount      decimal.NullDecimal
	submit      func(ctx context.Context) (chain.Receipt, error)
}

// run locks the request, replays a prior result for a known idempotency key,
// submits the instruction and records the outcome.
func (s *Service) run(ctx context.Context, in intent) (ticket.Record, bool, error) {
	entry := s.log.WithContext(ctx).WithField("kind", in.kind)
	if in.address != "" {
		entry = entry.WithField("ticket_address", in.address)
	}

	var keys []string
	if in.idemKey != "" {
		keys = append(keys, "idem:"+in.idemKey)
	}
	if in.address != "" {
		keys = append(keys, "ticket:"+in.address)
	}
	release, err := s.lock(ctx, keys)
	if err != nil {
		return ticket.Record{}, false, err
	}
	defer release()

	if in.idemKey != "" {
		prior, err := s.store.GetTransactionByIdempotencyKey(ctx, in.idemKey)
		switch {
		case err == nil:
			if prior.Kind != in.kind || (in.address != "" && prior.TicketAddress != in.address) {
				return ticket.Record{}, false, svcerrors.Conflict("idempotency key already used for a different request").
					WithDetails("idempotencyKey", in.idemKey)
			}
			metrics.RecordIdempotentReplay(string(in.kind))
			entry.WithField("signature", prior.Signature).Info("replayed prior result for idempotency key")
			return prior, true, nil
		case !errors.Is(err, storage.ErrNotFound):
			return ticket.Record{}, false, svcerrors.Persistence("failed to look up idempotency key", err)
		}
	}

	started := time.Now()
	receipt, err := in.submit(ctx)
	if err != nil {
		outcome := "rejected"
		if errors.Is(err, chain.ErrTransactionFailed) {
			outcome = "failed"
		}
		metrics.RecordChainInstruction(string(in.kind), outcome, time.Since(started))
		entry.WithError(err).WithField("signature", receipt.Signature).Warn("ticket instruction failed")
		return ticket.Record{}, false, chainError(err, receipt)
	}
	metrics.RecordChainInstruction(string(in.kind), string(receipt.Status), time.Since(started))

	status := ticket.Status(receipt.Status)
	if !status.Valid() {
		status = ticket.StatusPending
	}
	rec := ticket.Record{
		Kind:           in.kind,
		Amount:         in.amount,
		EventID:        in.eventID,
		TicketAddress:  receipt.TicketAddress,
		Signature:      receipt.Signature,
		Status:         status,
		IdempotencyKey: in.idemKey,
		RequestedBy:    in.requestedBy,
	}

	// The chain has accepted the instruction; a cancelled request must not
	// drop the ledger entry.
	saved, err := s.store.CreateTransaction(context.WithoutCancel(ctx), rec)
	if err != nil {
		metrics.RecordLedgerWriteFailure(string(in.kind))
		entry.WithError(err).
			WithField("ticket_address", receipt.TicketAddress).
			WithField("signature", receipt.Signature).
			Error("chain instruction succeeded but the transaction record was not saved")
		return ticket.Record{}, false, svcerrors.Persistence("transaction recorded on chain but not saved", err).
			WithDetails("ticketAddress", receipt.TicketAddress).
			WithDetails("signature", receipt.Signature)
	}

	entry.WithField("ticket_address", saved.TicketAddress).
		WithField("signature", saved.Signature).
		WithField("status", saved.Status).
		Info("ticket instruction recorded")
	return saved, false, nil
}

// lock takes every key or none.
func (s *Service) lock(ctx context.Context, keys []string) (func(), error) {
	var releases []func(context.Context) error
	releaseAll := func() {
		bg := context.WithoutCancel(ctx)
		for i := len(releases) - 1; i >= 0; i-- {
			if err := releases[i](bg); err != nil {
				s.log.WithError(err).Warn("release lock")
			}
		}
	}
	for _, key := range keys {
		release, err := s.locker.TryLock(ctx, key)
		if err != nil {
			releaseAll()
			if errors.Is(err, ErrLockHeld) {
				return nil, svcerrors.Conflict("another request for this ticket is in progress")
			}
			return nil, svcerrors.Internal("failed to acquire request lock", err)
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}

func chainError(err error, receipt chain.Receipt) error {
	var out *svcerrors.ServiceError
	switch {
	case errors.Is(err, chain.ErrInvalidOwner):
		out = svcerrors.Chain("signer does not own the ticket", err)
	case errors.Is(err, chain.ErrTransactionFailed):
		out = svcerrors.Chain("transaction failed on chain", err)
	case errors.Is(err, chain.ErrMetadataTooLarge):
		return svcerrors.Validation("ticketData exceeds the ticket account capacity")
	default:
		out = svcerrors.Chain("failed to submit ticket instruction", err)
	}
	if receipt.Signature != "" {
		out = out.WithDetails("signature", receipt.Signature)
	}
	return out
}

// normalizeTicketData compacts the payload and reads its declared price.
func (s *Service) normalizeTicketData(raw json.RawMessage) (string, decimal.NullDecimal, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", decimal.NullDecimal{}, svcerrors.Validation("ticketData is required")
	}
	if !gjson.ValidBytes(trimmed) {
		return "", decimal.NullDecimal{}, svcerrors.Validation("ticketData must be valid JSON")
	}
	parsed := gjson.ParseBytes(trimmed)
	empty := false
	switch {
	case parsed.Type == gjson.Null:
		empty = true
	case parsed.Type == gjson.String:
		empty = strings.TrimSpace(parsed.Str) == ""
	case parsed.IsObject():
		empty = len(parsed.Map()) == 0
	case parsed.IsArray():
		empty = len(parsed.Array()) == 0
	}
	if empty {
		return "", decimal.NullDecimal{}, svcerrors.Validation("ticketData must not be empty")
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return "", decimal.NullDecimal{}, svcerrors.Validation("ticketData must be valid JSON")
	}
	if limit := s.chain.MaxMetadataBytes(); limit > 0 && buf.Len() > limit {
		return "", decimal.NullDecimal{}, svcerrors.Validationf("ticketData must be at most %d bytes", limit)
	}
	return buf.String(), declaredPrice(parsed), nil
}

// declaredPrice reads an optional "price" field, defaulting to zero.
func declaredPrice(data gjson.Result) decimal.NullDecimal {
	field := data.Get("price")
	var raw string
	switch field.Type {
	case gjson.Number:
		raw = field.Raw
	case gjson.String:
		raw = strings.TrimSpace(field.Str)
	}
	if d, err := decimal.NewFromString(raw); err == nil {
		return decimal.NewNullDecimal(d)
	}
	return decimal.NewNullDecimal(decimal.Zero)
}

var maxLamports = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)

func parsePrice(price decimal.NullDecimal) (uint64, error) {
	if !price.Valid {
		return 0, svcerrors.Validation("price is required")
	}
	if !price.Decimal.IsInteger() || !price.Decimal.IsPositive() {
		return 0, svcerrors.Validation("price must be a positive integer number of lamports")
	}
	if price.Decimal.GreaterThan(maxLamports) {
		return 0, svcerrors.Validation("price exceeds the maximum lamport amount")
	}
	return price.Decimal.BigInt().Uint64(), nil
}

func parseTicketAddress(raw string) (solana.PublicKey, error) {
	if strings.TrimSpace(raw) == "" {
		return solana.PublicKey{}, svcerrors.Validation("ticket address is required")
	}
	key, err := chain.ParsePublicKey(raw)
	if err != nil {
		return solana.PublicKey{}, svcerrors.Validationf("invalid ticket address %q", raw)
	}
	return key, nil
}

func parseOptionalKey(raw, field string) (solana.PrivateKey, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	key, err := chain.ParseKeypair(raw)
	if err != nil {
		return nil, svcerrors.Validationf("%s is not a valid secret key", field)
	}
	return key, nil
}

// normalizeEventID drops references that are not event ids.
func normalizeEventID(raw string) string {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return id.String()
}

// metadataJSON returns metadata as JSON, quoting it when it is plain text.
func metadataJSON(metadata string) json.RawMessage {
	if metadata != "" && json.Valid([]byte(metadata)) {
		return json.RawMessage(metadata)
	}
	quoted, _ := json.Marshal(metadata)
	return quoted
}
