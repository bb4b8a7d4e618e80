package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/R3E-Network/mintix/pkg/logger"
)

// RPC is the subset of the Solana JSON-RPC API the client relies on.
// *rpc.Client satisfies it.
type RPC interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
}

// Config holds client configuration.
type Config struct {
	RPCURL         string
	Commitment     string
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	Operator       solana.PrivateKey
	Program        *Program
}

// Client submits ticket program instructions over Solana RPC.
type Client struct {
	rpc            RPC
	program        *Program
	operator       solana.PrivateKey
	commitment     rpc.CommitmentType
	confirmTimeout time.Duration
	pollInterval   time.Duration
	log            *logger.Logger
}

// NewClient dials the configured RPC endpoint.
func NewClient(cfg Config, log *logger.Logger) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL required")
	}
	return NewClientWithRPC(rpc.New(cfg.RPCURL), cfg, log)
}

// NewClientWithRPC builds a client over an existing RPC implementation.
func NewClientWithRPC(r RPC, cfg Config, log *logger.Logger) (*Client, error) {
	if r == nil {
		return nil, fmt.Errorf("rpc client required")
	}
	if len(cfg.Operator) != 64 {
		return nil, fmt.Errorf("%w: operator key required", ErrInvalidKey)
	}
	if log == nil {
		log = logger.NewDefault("chain")
	}
	program := cfg.Program
	if program == nil {
		var err error
		if program, err = NewProgram(nil); err != nil {
			return nil, err
		}
	}
	commitment := rpc.CommitmentType(strings.ToLower(strings.TrimSpace(cfg.Commitment)))
	switch commitment {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
	case "":
		commitment = rpc.CommitmentConfirmed
	default:
		return nil, fmt.Errorf("unsupported commitment %q", cfg.Commitment)
	}
	timeout := cfg.ConfirmTimeout
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Client{
		rpc:            r,
		program:        program,
		operator:       cfg.Operator,
		commitment:     commitment,
		confirmTimeout: timeout,
		pollInterval:   poll,
		log:            log,
	}, nil
}

// OperatorAddress returns the operator public key.
func (c *Client) OperatorAddress() string {
	return c.operator.PublicKey().String()
}

// MaxMetadataBytes reports the metadata capacity of a ticket account.
func (c *Client) MaxMetadataBytes() int {
	return c.program.MaxMetadataBytes()
}

// MintTicket creates a ticket account and waits for confirmation.
func (c *Client) MintTicket(ctx context.Context, req MintRequest) (Receipt, error) {
	authority := c.signerOrOperator(req.Authority)
	ticketKey := req.TicketKey
	if ticketKey == nil {
		var err error
		if ticketKey, err = NewKeypair(); err != nil {
			return Receipt{}, fmt.Errorf("generate ticket key: %w", err)
		}
	}

	ix, err := c.program.MintInstruction(authority.PublicKey(), ticketKey.PublicKey(), req.Metadata)
	if err != nil {
		return Receipt{}, err
	}
	receipt, err := c.submit(ctx, ix, authority, ticketKey)
	receipt.TicketAddress = ticketKey.PublicKey().String()
	return receipt, err
}

// ListTicket sets a resale price on a ticket.
func (c *Client) ListTicket(ctx context.Context, req ListRequest) (Receipt, error) {
	authority := c.signerOrOperator(req.Authority)
	ix, err := c.program.ListInstruction(authority.PublicKey(), req.Ticket, req.Price)
	if err != nil {
		return Receipt{}, err
	}
	receipt, err := c.submit(ctx, ix, authority)
	receipt.TicketAddress = req.Ticket.String()
	return receipt, err
}

// TransferTicket moves a ticket to a new owner.
func (c *Client) TransferTicket(ctx context.Context, req TransferRequest) (Receipt, error) {
	seller := c.signerOrOperator(req.Seller)
	buyer := req.Buyer
	if buyer == nil {
		var err error
		if buyer, err = NewKeypair(); err != nil {
			return Receipt{}, fmt.Errorf("generate buyer key: %w", err)
		}
	}
	ix, err := c.program.TransferInstruction(seller.PublicKey(), req.Ticket, buyer.PublicKey(), req.NewOwner)
	if err != nil {
		return Receipt{}, err
	}
	receipt, err := c.submit(ctx, ix, seller, buyer)
	receipt.TicketAddress = req.Ticket.String()
	receipt.Buyer = buyer.PublicKey().String()
	return receipt, err
}

// GetTicket reads and decodes a ticket account.
func (c *Client) GetTicket(ctx context.Context, address solana.PublicKey) (TicketState, error) {
	out, err := c.rpc.GetAccountInfo(ctx, address)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return TicketState{}, ErrAccountNotFound
		}
		return TicketState{}, fmt.Errorf("get account %s: %w", address, err)
	}
	if out == nil || out.Value == nil || out.Value.Data == nil {
		return TicketState{}, ErrAccountNotFound
	}
	return c.program.DecodeTicket(address, out.Value.Owner, out.Value.Data.GetBinary())
}

// SignatureStatus reports the confirmation state of a previously sent signature.
func (c *Client) SignatureStatus(ctx context.Context, signature string) (Confirmation, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return "", fmt.Errorf("parse signature: %w", err)
	}
	return c.status(ctx, sig)
}

// submit signs ix with signers (the first pays fees), sends it and waits.
func (c *Client) submit(ctx context.Context, ix solana.Instruction, signers ...solana.PrivateKey) (Receipt, error) {
	payer := signers[0]
	receipt := Receipt{Signer: payer.PublicKey().String()}

	latest, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return receipt, fmt.Errorf("get latest blockhash: %w", err)
	}
	if latest == nil || latest.Value == nil {
		return receipt, fmt.Errorf("get latest blockhash: empty response")
	}

	tx, err := solana.NewTransaction([]solana.Instruction{ix}, latest.Value.Blockhash, solana.TransactionPayer(payer.PublicKey()))
	if err != nil {
		return receipt, fmt.Errorf("build transaction: %w", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		for i := range signers {
			if signers[i].PublicKey().Equals(key) {
				return &signers[i]
			}
		}
		return nil
	}); err != nil {
		return receipt, fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: c.commitment,
	})
	if err != nil {
		return receipt, classifySendError(err)
	}
	receipt.Signature = sig.String()

	status, err := c.waitForConfirmation(ctx, sig)
	receipt.Status = status
	return receipt, err
}

// waitForConfirmation polls until the signature reaches the target commitment,
// fails on-chain, or the confirm timeout elapses. A timeout is not an error:
// the receipt is reported as pending.
func (c *Client) waitForConfirmation(ctx context.Context, sig solana.Signature) (Confirmation, error) {
	wctx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		status, err := c.status(wctx, sig)
		switch {
		case err != nil && wctx.Err() == nil:
			c.log.WithError(err).WithField("signature", sig.String()).Debug("signature status poll failed")
		case status == Confirmed:
			return Confirmed, nil
		case status == Failed:
			return Failed, ErrTransactionFailed
		}

		select {
		case <-wctx.Done():
			c.log.WithField("signature", sig.String()).
				WithField("timeout", c.confirmTimeout.String()).
				Warn("confirmation wait elapsed; reporting pending")
			return Pending, nil
		case <-ticker.C:
		}
	}
}

func (c *Client) status(ctx context.Context, sig solana.Signature) (Confirmation, error) {
	out, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return Pending, err
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return Pending, nil
	}
	st := out.Value[0]
	if st.Err != nil {
		return Failed, nil
	}
	if c.reached(st.ConfirmationStatus) {
		return Confirmed, nil
	}
	return Pending, nil
}

func (c *Client) reached(got rpc.ConfirmationStatusType) bool {
	switch c.commitment {
	case rpc.CommitmentFinalized:
		return got == rpc.ConfirmationStatusFinalized
	case rpc.CommitmentProcessed:
		return got != ""
	default:
		return got == rpc.ConfirmationStatusConfirmed || got == rpc.ConfirmationStatusFinalized
	}
}

func (c *Client) signerOrOperator(key solana.PrivateKey) solana.PrivateKey {
	if len(key) == 64 {
		return key
	}
	return c.operator
}

// invalidOwnerCode is the program's first custom error (6000) in hex.
const invalidOwnerCode = "custom program error: 0x1770"

func classifySendError(err error) error {
	if strings.Contains(err.Error(), invalidOwnerCode) {
		return fmt.Errorf("%w: %v", ErrInvalidOwner, err)
	}
	return fmt.Errorf("send transaction: %w", err)
}
