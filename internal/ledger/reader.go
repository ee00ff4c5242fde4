package ledger

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/docvault/internal/pda"
)

// AccountReader fetches and decodes vault program accounts. Accounts not
// owned by the program are rejected so a forged record at a guessed address
// is never trusted.
type AccountReader struct {
	client    Client
	programID pda.PublicKey
}

func NewAccountReader(client Client, programID pda.PublicKey) *AccountReader {
	return &AccountReader{client: client, programID: programID}
}

func (r *AccountReader) fetch(ctx context.Context, address pda.PublicKey) ([]byte, error) {
	info, err := r.client.GetAccountInfo(ctx, address)
	if err != nil {
		return nil, err
	}
	if info.Owner != r.programID {
		return nil, fmt.Errorf("%s owned by %s: %w", address, info.Owner, ErrInvalidAccountData)
	}
	return info.Data, nil
}

func (r *AccountReader) Profile(ctx context.Context, address pda.PublicKey) (*ProfileAccount, error) {
	data, err := r.fetch(ctx, address)
	if err != nil {
		return nil, err
	}
	return DecodeProfileAccount(data)
}

func (r *AccountReader) Document(ctx context.Context, address pda.PublicKey) (*DocumentAccount, error) {
	data, err := r.fetch(ctx, address)
	if err != nil {
		return nil, err
	}
	return DecodeDocumentAccount(data)
}

func (r *AccountReader) Share(ctx context.Context, address pda.PublicKey) (*ShareAccount, error) {
	data, err := r.fetch(ctx, address)
	if err != nil {
		return nil, err
	}
	return DecodeShareAccount(data)
}
