// Package testutil provides common testing utilities and mock implementations.
package testutil

import (
	"context"
	"crypto/rand"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/mock"

	"github.com/R3E-Network/mintix/internal/app/domain/ticket"
	"github.com/R3E-Network/mintix/internal/app/storage"
	"github.com/R3E-Network/mintix/internal/chain"
)

// MockChain is a testify mock of the ticket program client.
type MockChain struct {
	mock.Mock
}

func (m *MockChain) OperatorAddress() string {
	return m.Called().String(0)
}

func (m *MockChain) MaxMetadataBytes() int {
	return m.Called().Int(0)
}

func (m *MockChain) MintTicket(ctx context.Context, req chain.MintRequest) (chain.Receipt, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(chain.Receipt), args.Error(1)
}

func (m *MockChain) ListTicket(ctx context.Context, req chain.ListRequest) (chain.Receipt, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(chain.Receipt), args.Error(1)
}

func (m *MockChain) TransferTicket(ctx context.Context, req chain.TransferRequest) (chain.Receipt, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(chain.Receipt), args.Error(1)
}

func (m *MockChain) GetTicket(ctx context.Context, address solana.PublicKey) (chain.TicketState, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(chain.TicketState), args.Error(1)
}

func (m *MockChain) SignatureStatus(ctx context.Context, signature string) (chain.Confirmation, error) {
	args := m.Called(ctx, signature)
	return args.Get(0).(chain.Confirmation), args.Error(1)
}

// FailingTransactions wraps a store and fails CreateTransaction with Err.
type FailingTransactions struct {
	storage.TransactionStore
	Err error

	mu       sync.Mutex
	attempts int
}

func (f *FailingTransactions) CreateTransaction(ctx context.Context, rec ticket.Record) (ticket.Record, error) {
	f.mu.Lock()
	f.attempts++
	f.mu.Unlock()
	if f.Err != nil {
		return ticket.Record{}, f.Err
	}
	return f.TransactionStore.CreateTransaction(ctx, rec)
}

// Attempts reports how many writes were tried.
func (f *FailingTransactions) Attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

// NewAddress returns a fresh random public key in base58.
func NewAddress() string {
	key, err := chain.NewKeypair()
	if err != nil {
		panic(err)
	}
	return key.PublicKey().String()
}

// NewSignature returns a random transaction signature in base58.
func NewSignature() string {
	var sig solana.Signature
	if _, err := rand.Read(sig[:]); err != nil {
		panic(err)
	}
	return sig.String()
}
