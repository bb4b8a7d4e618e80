// Package chain provides Solana interaction with the ticket program.
package chain

import (
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
)

// DefaultConfirmTimeout bounds how long a submission waits for confirmation.
const DefaultConfirmTimeout = 60 * time.Second

// DefaultPollInterval is the default interval for polling signature status.
const DefaultPollInterval = 2 * time.Second

// Confirmation is the observed state of a submitted signature.
type Confirmation string

const (
	Confirmed Confirmation = "confirmed"
	Pending   Confirmation = "pending"
	Failed    Confirmation = "failed"
)

var (
	ErrInvalidKey        = errors.New("chain: invalid secret key")
	ErrInvalidAddress    = errors.New("chain: invalid public key")
	ErrAccountNotFound   = errors.New("chain: account not found")
	ErrNotTicketAccount  = errors.New("chain: account is not a ticket")
	ErrInvalidOwner      = errors.New("chain: invalid ticket owner")
	ErrTransactionFailed = errors.New("chain: transaction failed")
	ErrMetadataTooLarge  = errors.New("chain: metadata exceeds ticket account capacity")
)

// MintRequest creates a new ticket account holding Metadata.
// A nil Authority means the operator key signs and pays.
type MintRequest struct {
	Metadata  string
	Authority solana.PrivateKey
	TicketKey solana.PrivateKey
}

// ListRequest sets a resale price on a ticket held by Authority.
type ListRequest struct {
	Ticket    solana.PublicKey
	Price     uint64
	Authority solana.PrivateKey
}

// TransferRequest moves a ticket from Seller to NewOwner. A nil Buyer is
// replaced by an ephemeral key-pair.
type TransferRequest struct {
	Ticket   solana.PublicKey
	NewOwner solana.PublicKey
	Seller   solana.PrivateKey
	Buyer    solana.PrivateKey
}

// Receipt describes one submitted instruction.
type Receipt struct {
	Signature     string
	TicketAddress string
	Signer        string
	Buyer         string
	Status        Confirmation
}

// TicketState is the decoded on-chain ticket account.
type TicketState struct {
	Address  string
	Owner    string
	Metadata string
	Price    uint64
}
