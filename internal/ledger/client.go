// Package ledger is docvault's narrow view of the public ledger: reading
// accounts owned by the vault program and submitting signed instructions.
// Everything read through this package is treated as the single source of
// truth for authorization; nothing here is cached.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/pda"
)

var (
	// ErrAccountNotFound means no account exists at the address.
	ErrAccountNotFound = fmt.Errorf("ledger account %w", common.ErrorNotFound)

	// ErrInvalidAccountData means the account exists but is not the
	// expected record (wrong owner, discriminator or size).
	ErrInvalidAccountData = fmt.Errorf("invalid account data: %w", common.ErrInvalidInput)

	// ErrTransactionFailed means the ledger executed the transaction and
	// rejected it.
	ErrTransactionFailed = errors.New("transaction failed")
)

// AccountInfo is the raw state of one ledger account.
type AccountInfo struct {
	Owner    pda.PublicKey
	Lamports uint64
	Data     []byte
}

// AccountMeta references an account used by an instruction.
type AccountMeta struct {
	PublicKey  pda.PublicKey
	IsSigner   bool
	IsWritable bool
}

// Instruction is one program invocation inside a transaction.
type Instruction struct {
	ProgramID pda.PublicKey
	Accounts  []AccountMeta
	Data      []byte
}

// Signer holds a private key able to sign transaction messages.
type Signer interface {
	PublicKey() pda.PublicKey
	Sign(message []byte) ([]byte, error)
}

// Client reads ledger accounts and submits transactions. GetAccountInfo
// returns ErrAccountNotFound for an absent account; transport failures wrap
// common.ErrLedgerUnavailable.
type Client interface {
	GetAccountInfo(ctx context.Context, address pda.PublicKey) (*AccountInfo, error)
	SubmitTransaction(ctx context.Context, instructions []Instruction, signers []Signer) (string, error)
}

// BalanceReader is implemented by clients that can report lamport balances.
type BalanceReader interface {
	GetBalance(ctx context.Context, address pda.PublicKey) (uint64, error)
}
