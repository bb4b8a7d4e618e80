package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultProgramID is the deployed ticket program.
const DefaultProgramID = "2mUirJGwKfWUtbqJkgLxPqWDJ5dsi66MYs9CmpZ4ZSGV"

// Account roles understood by the chain client.
const (
	RoleUserWallet    = "user_wallet"
	RoleSellerWallet  = "seller_wallet"
	RoleBuyerWallet   = "buyer_wallet"
	RoleTicketAccount = "ticket_account"
	RoleSystemProgram = "system_program"
)

// ProgramDescriptor describes the on-chain ticket program interface.
type ProgramDescriptor struct {
	ProgramID     string                `yaml:"program_id"`
	TicketAccount AccountTypeDescriptor `yaml:"ticket_account"`
	Mint          InstructionDescriptor `yaml:"mint"`
	List          InstructionDescriptor `yaml:"list"`
	Transfer      InstructionDescriptor `yaml:"transfer"`
}

// AccountTypeDescriptor names the program-owned account type and its size.
type AccountTypeDescriptor struct {
	Name  string `yaml:"name"`
	Space int    `yaml:"space"`
}

// InstructionDescriptor lists an instruction and its ordered accounts.
type InstructionDescriptor struct {
	Name     string              `yaml:"name"`
	Accounts []AccountDescriptor `yaml:"accounts"`
}

// AccountDescriptor is one entry of an instruction's account list.
type AccountDescriptor struct {
	Role     string `yaml:"role"`
	Writable bool   `yaml:"writable"`
	Signer   bool   `yaml:"signer"`
}

// DefaultProgramDescriptor mirrors the deployed program's interface.
func DefaultProgramDescriptor() *ProgramDescriptor {
	return &ProgramDescriptor{
		ProgramID:     DefaultProgramID,
		TicketAccount: AccountTypeDescriptor{Name: "Ticket", Space: 8 + 32 + 1000 + 8},
		Mint: InstructionDescriptor{
			Name: "mint_ticket",
			Accounts: []AccountDescriptor{
				{Role: RoleUserWallet, Writable: true, Signer: true},
				{Role: RoleTicketAccount, Writable: true, Signer: true},
				{Role: RoleSystemProgram},
			},
		},
		List: InstructionDescriptor{
			Name: "list_ticket_for_resell",
			Accounts: []AccountDescriptor{
				{Role: RoleUserWallet, Writable: true, Signer: true},
				{Role: RoleTicketAccount, Writable: true},
			},
		},
		Transfer: InstructionDescriptor{
			Name: "transfer_ticket",
			Accounts: []AccountDescriptor{
				{Role: RoleSellerWallet, Writable: true, Signer: true},
				{Role: RoleTicketAccount, Writable: true},
				{Role: RoleBuyerWallet, Signer: true},
			},
		},
	}
}

// LoadProgramDescriptor reads a YAML descriptor. An empty path yields the default.
// A non-empty programID overrides the descriptor's program id.
func LoadProgramDescriptor(path, programID string) (*ProgramDescriptor, error) {
	desc := DefaultProgramDescriptor()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read program descriptor: %w", err)
		}
		desc = &ProgramDescriptor{}
		if err := yaml.Unmarshal(data, desc); err != nil {
			return nil, fmt.Errorf("parse program descriptor: %w", err)
		}
	}
	if strings.TrimSpace(programID) != "" {
		desc.ProgramID = strings.TrimSpace(programID)
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return desc, nil
}

// Validate checks that every instruction is named and uses known roles.
func (d *ProgramDescriptor) Validate() error {
	if d.ProgramID == "" {
		return fmt.Errorf("program descriptor: program_id is required")
	}
	if d.TicketAccount.Name == "" {
		return fmt.Errorf("program descriptor: ticket_account.name is required")
	}
	if d.TicketAccount.Space <= 8+32+4+8 {
		return fmt.Errorf("program descriptor: ticket_account.space %d too small", d.TicketAccount.Space)
	}
	checks := map[string]struct {
		ins      InstructionDescriptor
		required []string
	}{
		"mint":     {d.Mint, []string{RoleUserWallet, RoleTicketAccount, RoleSystemProgram}},
		"list":     {d.List, []string{RoleUserWallet, RoleTicketAccount}},
		"transfer": {d.Transfer, []string{RoleSellerWallet, RoleTicketAccount, RoleBuyerWallet}},
	}
	for key, c := range checks {
		if c.ins.Name == "" {
			return fmt.Errorf("program descriptor: %s.name is required", key)
		}
		seen := make(map[string]bool, len(c.ins.Accounts))
		for _, acct := range c.ins.Accounts {
			seen[acct.Role] = true
		}
		for _, role := range c.required {
			if !seen[role] {
				return fmt.Errorf("program descriptor: %s is missing account %s", key, role)
			}
		}
		for role := range seen {
			if !contains(c.required, role) {
				return fmt.Errorf("program descriptor: %s has unknown account %s", key, role)
			}
		}
	}
	return nil
}

// MaxMetadataBytes is the largest metadata string the ticket account can hold.
func (d *ProgramDescriptor) MaxMetadataBytes() int {
	// discriminator + owner + string length prefix + price
	return d.TicketAccount.Space - 8 - 32 - 4 - 8
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
