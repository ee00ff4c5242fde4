package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/ledger"
	"github.com/dmitrijs2005/docvault/internal/logging"
	"github.com/dmitrijs2005/docvault/internal/pda"
)

// FundingService reports wallet balances and pays out small amounts from a
// faucet wallet so new users can cover their ledger fees.
type FundingService struct {
	client ledger.ReadWriter
	faucet ledger.Signer
	log    logging.Logger
}

// NewFundingService constructs a FundingService over the ledger client.
// faucet may be nil, in which case SendPayment always fails.
func NewFundingService(client ledger.ReadWriter, faucet ledger.Signer, log logging.Logger) *FundingService {
	return &FundingService{client: client, faucet: faucet, log: log.With("module", "funding")}
}

func (s *FundingService) Balance(ctx context.Context, address string) (uint64, error) {
	key, err := pda.ParsePublicKey(address)
	if err != nil {
		return 0, err
	}
	return s.client.GetBalance(ctx, key)
}

// SendPayment transfers lamports from the faucet to address and returns the
// transaction signature. The faucet balance must exceed the amount.
func (s *FundingService) SendPayment(ctx context.Context, address string, lamports uint64) (string, error) {
	if s.faucet == nil {
		return "", fmt.Errorf("faucet is not configured: %w", common.ErrInvalidInput)
	}
	if lamports == 0 {
		return "", fmt.Errorf("amount must be positive: %w", common.ErrInvalidInput)
	}

	to, err := pda.ParsePublicKey(address)
	if err != nil {
		return "", err
	}

	from := s.faucet.PublicKey()
	balance, err := s.client.GetBalance(ctx, from)
	if err != nil {
		return "", err
	}
	if balance <= lamports {
		s.log.Warn(ctx, "faucet balance too low", "balance", balance, "requested", lamports)
		return "", fmt.Errorf("faucet balance %d does not cover %d: %w", balance, lamports, common.ErrInvalidInput)
	}

	sig, err := s.client.SubmitTransaction(ctx, []ledger.Instruction{ledger.SystemTransfer(from, to, lamports)}, []ledger.Signer{s.faucet})
	if err != nil {
		s.log.Error(ctx, "payment failed", "to", to.String(), "lamports", lamports, "error", err)
		return "", err
	}

	s.log.Info(ctx, "payment sent", "to", to.String(), "lamports", lamports, "signature", sig)
	return sig, nil
}
