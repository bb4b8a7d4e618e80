package chain

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// Simulator is an in-process stand-in for the ticket program. It enforces the
// same ownership rules and is used for local development and tests.
type Simulator struct {
	mu         sync.Mutex
	program    *Program
	operator   solana.PrivateKey
	accounts   map[solana.PublicKey][]byte
	signatures map[string]Confirmation
	hold       bool
}

// NewSimulator builds a simulator. A nil operator gets a random key.
func NewSimulator(program *Program, operator solana.PrivateKey) (*Simulator, error) {
	if program == nil {
		var err error
		if program, err = NewProgram(nil); err != nil {
			return nil, err
		}
	}
	if len(operator) != 64 {
		var err error
		if operator, err = NewKeypair(); err != nil {
			return nil, err
		}
	}
	return &Simulator{
		program:    program,
		operator:   operator,
		accounts:   make(map[solana.PublicKey][]byte),
		signatures: make(map[string]Confirmation),
	}, nil
}

// OperatorAddress returns the operator public key.
func (s *Simulator) OperatorAddress() string {
	return s.operator.PublicKey().String()
}

// MaxMetadataBytes reports the metadata capacity of a ticket account.
func (s *Simulator) MaxMetadataBytes() int {
	return s.program.MaxMetadataBytes()
}

// HoldConfirmations makes subsequent submissions report pending until Settle.
func (s *Simulator) HoldConfirmations(hold bool) {
	s.mu.Lock()
	s.hold = hold
	s.mu.Unlock()
}

// Settle confirms every pending signature.
func (s *Simulator) Settle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sig, st := range s.signatures {
		if st == Pending {
			s.signatures[sig] = Confirmed
		}
	}
}

func (s *Simulator) MintTicket(ctx context.Context, req MintRequest) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	authority := s.signerOrOperator(req.Authority)
	ticketKey := req.TicketKey
	if ticketKey == nil {
		var err error
		if ticketKey, err = NewKeypair(); err != nil {
			return Receipt{}, err
		}
	}
	if len(req.Metadata) > s.program.MaxMetadataBytes() {
		return Receipt{}, fmt.Errorf("%w: %d > %d bytes", ErrMetadataTooLarge, len(req.Metadata), s.program.MaxMetadataBytes())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	address := ticketKey.PublicKey()
	if _, exists := s.accounts[address]; exists {
		return Receipt{}, fmt.Errorf("%w: account %s already in use", ErrTransactionFailed, address)
	}
	data, err := s.program.EncodeTicket(TicketState{Owner: authority.PublicKey().String(), Metadata: req.Metadata})
	if err != nil {
		return Receipt{}, err
	}
	s.accounts[address] = data
	return s.receiptLocked(authority, address.String()), nil
}

func (s *Simulator) ListTicket(ctx context.Context, req ListRequest) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	authority := s.signerOrOperator(req.Authority)

	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadLocked(req.Ticket)
	if err != nil {
		return Receipt{}, err
	}
	if state.Owner != authority.PublicKey().String() {
		return Receipt{}, ErrInvalidOwner
	}
	state.Price = req.Price
	if err := s.storeLocked(req.Ticket, state); err != nil {
		return Receipt{}, err
	}
	return s.receiptLocked(authority, req.Ticket.String()), nil
}

func (s *Simulator) TransferTicket(ctx context.Context, req TransferRequest) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	seller := s.signerOrOperator(req.Seller)
	buyer := req.Buyer
	if buyer == nil {
		var err error
		if buyer, err = NewKeypair(); err != nil {
			return Receipt{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadLocked(req.Ticket)
	if err != nil {
		return Receipt{}, err
	}
	if state.Owner != seller.PublicKey().String() {
		return Receipt{}, ErrInvalidOwner
	}
	state.Owner = req.NewOwner.String()
	state.Price = 0
	if err := s.storeLocked(req.Ticket, state); err != nil {
		return Receipt{}, err
	}
	receipt := s.receiptLocked(seller, req.Ticket.String())
	receipt.Buyer = buyer.PublicKey().String()
	return receipt, nil
}

func (s *Simulator) GetTicket(ctx context.Context, address solana.PublicKey) (TicketState, error) {
	if err := ctx.Err(); err != nil {
		return TicketState{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(address)
}

func (s *Simulator) SignatureStatus(ctx context.Context, signature string) (Confirmation, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.signatures[signature]
	if !ok {
		return Pending, nil
	}
	return st, nil
}

func (s *Simulator) loadLocked(address solana.PublicKey) (TicketState, error) {
	data, ok := s.accounts[address]
	if !ok {
		return TicketState{}, ErrAccountNotFound
	}
	return s.program.DecodeTicket(address, s.program.ID, data)
}

func (s *Simulator) storeLocked(address solana.PublicKey, state TicketState) error {
	data, err := s.program.EncodeTicket(state)
	if err != nil {
		return err
	}
	s.accounts[address] = data
	return nil
}

func (s *Simulator) receiptLocked(signer solana.PrivateKey, address string) Receipt {
	var sig solana.Signature
	_, _ = rand.Read(sig[:])
	status := Confirmed
	if s.hold {
		status = Pending
	}
	s.signatures[sig.String()] = status
	return Receipt{
		Signature:     sig.String(),
		TicketAddress: address,
		Signer:        signer.PublicKey().String(),
		Status:        status,
	}
}

func (s *Simulator) signerOrOperator(key solana.PrivateKey) solana.PrivateKey {
	if len(key) == 64 {
		return key
	}
	return s.operator
}
