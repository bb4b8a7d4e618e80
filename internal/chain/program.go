package chain

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/R3E-Network/mintix/internal/config"
)

const discriminatorSize = 8

// Program encodes instructions for, and decodes accounts of, the ticket program.
type Program struct {
	ID         solana.PublicKey
	descriptor *config.ProgramDescriptor
}

// NewProgram validates the descriptor and resolves the program id.
func NewProgram(desc *config.ProgramDescriptor) (*Program, error) {
	if desc == nil {
		desc = config.DefaultProgramDescriptor()
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	id, err := ParsePublicKey(desc.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("program id: %w", err)
	}
	return &Program{ID: id, descriptor: desc}, nil
}

// MaxMetadataBytes reports the metadata capacity of a ticket account.
func (p *Program) MaxMetadataBytes() int {
	return p.descriptor.MaxMetadataBytes()
}

// InstructionDiscriminator is the first 8 bytes of sha256("global:<name>").
func InstructionDiscriminator(name string) []byte {
	sum := sha256.Sum256([]byte("global:" + name))
	return sum[:discriminatorSize]
}

// AccountDiscriminator is the first 8 bytes of sha256("account:<Name>").
func AccountDiscriminator(name string) []byte {
	sum := sha256.Sum256([]byte("account:" + name))
	return sum[:discriminatorSize]
}

type mintArgs struct {
	TicketData string
}

type listArgs struct {
	Price uint64
}

type transferArgs struct {
	NewOwner solana.PublicKey
}

type ticketAccount struct {
	Owner    solana.PublicKey
	Metadata string
	Price    uint64
}

// MintInstruction builds mint_ticket(ticket_data).
func (p *Program) MintInstruction(authority, ticketAccount solana.PublicKey, metadata string) (solana.Instruction, error) {
	if len(metadata) > p.MaxMetadataBytes() {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrMetadataTooLarge, len(metadata), p.MaxMetadataBytes())
	}
	return p.build(p.descriptor.Mint, map[string]solana.PublicKey{
		config.RoleUserWallet:    authority,
		config.RoleTicketAccount: ticketAccount,
		config.RoleSystemProgram: solana.SystemProgramID,
	}, mintArgs{TicketData: metadata})
}

// ListInstruction builds list_ticket_for_resell(price).
func (p *Program) ListInstruction(authority, ticketAccount solana.PublicKey, price uint64) (solana.Instruction, error) {
	return p.build(p.descriptor.List, map[string]solana.PublicKey{
		config.RoleUserWallet:    authority,
		config.RoleTicketAccount: ticketAccount,
	}, listArgs{Price: price})
}

// TransferInstruction builds transfer_ticket(new_owner).
func (p *Program) TransferInstruction(seller, ticketAccount, buyer, newOwner solana.PublicKey) (solana.Instruction, error) {
	return p.build(p.descriptor.Transfer, map[string]solana.PublicKey{
		config.RoleSellerWallet:  seller,
		config.RoleTicketAccount: ticketAccount,
		config.RoleBuyerWallet:   buyer,
	}, transferArgs{NewOwner: newOwner})
}

func (p *Program) build(desc config.InstructionDescriptor, accounts map[string]solana.PublicKey, args any) (solana.Instruction, error) {
	encoded, err := bin.MarshalBorsh(args)
	if err != nil {
		return nil, fmt.Errorf("encode %s args: %w", desc.Name, err)
	}
	data := append(InstructionDiscriminator(desc.Name), encoded...)

	metas := make(solana.AccountMetaSlice, 0, len(desc.Accounts))
	for _, acct := range desc.Accounts {
		key, ok := accounts[acct.Role]
		if !ok {
			return nil, fmt.Errorf("%s: no key for account %s", desc.Name, acct.Role)
		}
		metas = append(metas, solana.NewAccountMeta(key, acct.Writable, acct.Signer))
	}
	return solana.NewInstruction(p.ID, metas, data), nil
}

// DecodeTicket parses raw account data owned by the program.
func (p *Program) DecodeTicket(address solana.PublicKey, owner solana.PublicKey, data []byte) (TicketState, error) {
	if !owner.Equals(p.ID) {
		return TicketState{}, fmt.Errorf("%w: owned by %s", ErrNotTicketAccount, owner)
	}
	disc := AccountDiscriminator(p.descriptor.TicketAccount.Name)
	if len(data) < discriminatorSize || !bytes.Equal(data[:discriminatorSize], disc) {
		return TicketState{}, fmt.Errorf("%w: discriminator mismatch", ErrNotTicketAccount)
	}
	var acct ticketAccount
	if err := bin.UnmarshalBorsh(&acct, data[discriminatorSize:]); err != nil {
		return TicketState{}, fmt.Errorf("%w: %v", ErrNotTicketAccount, err)
	}
	return TicketState{
		Address:  address.String(),
		Owner:    acct.Owner.String(),
		Metadata: acct.Metadata,
		Price:    acct.Price,
	}, nil
}

// EncodeTicket produces account data in the program's layout, zero-padded to
// the allocated space.
func (p *Program) EncodeTicket(state TicketState) ([]byte, error) {
	owner, err := ParsePublicKey(state.Owner)
	if err != nil {
		return nil, err
	}
	encoded, err := bin.MarshalBorsh(ticketAccount{Owner: owner, Metadata: state.Metadata, Price: state.Price})
	if err != nil {
		return nil, err
	}
	data := make([]byte, 0, p.descriptor.TicketAccount.Space)
	data = append(data, AccountDiscriminator(p.descriptor.TicketAccount.Name)...)
	data = append(data, encoded...)
	if pad := p.descriptor.TicketAccount.Space - len(data); pad > 0 {
		data = append(data, make([]byte, pad)...)
	}
	return data, nil
}
