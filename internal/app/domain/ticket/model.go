package ticket

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies which program instruction produced a record.
type Kind string

const (
	KindMint     Kind = "MINT"
	KindList     Kind = "LIST"
	KindTransfer Kind = "TRANSFER"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindMint, KindList, KindTransfer:
		return true
	}
	return false
}

// Status tracks confirmation of the recorded signature.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusPending   Status = "pending"
	StatusFailed    Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusConfirmed, StatusPending, StatusFailed:
		return true
	}
	return false
}

// Record is a persisted ledger entry for one confirmed (or pending) chain call.
// TicketAddress, Signature, Kind and IdempotencyKey never change once written.
type Record struct {
	ID             string              `json:"id"`
	Kind           Kind                `json:"type"`
	Amount         decimal.NullDecimal `json:"amount"`
	EventID        string              `json:"eventId,omitempty"`
	TicketAddress  string              `json:"ticketAddress"`
	Signature      string              `json:"signature"`
	Status         Status              `json:"status"`
	IdempotencyKey string              `json:"idempotencyKey,omitempty"`
	RequestedBy    string              `json:"requestedBy,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

// Ticket is the on-chain state of a ticket account, read back on demand.
type Ticket struct {
	Address  string          `json:"address"`
	Owner    string          `json:"owner"`
	Metadata json.RawMessage `json:"metadata"`
	Price    uint64          `json:"price,string"`
}
