// Package services contains the vault's server-side business logic. Callers
// pass already authenticated wallet addresses; services re-derive ledger
// addresses and re-read ledger state on every call.
package services

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/cryptox"
	"github.com/dmitrijs2005/docvault/internal/dbx"
	"github.com/dmitrijs2005/docvault/internal/ledger"
	"github.com/dmitrijs2005/docvault/internal/logging"
	"github.com/dmitrijs2005/docvault/internal/pda"
	"github.com/dmitrijs2005/docvault/internal/server/models"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// newChallenge is a seam for tests.
var newChallenge = func() string {
	return uuid.NewString()
}

// ProfileService registers wallets and runs the signed-message login.
type ProfileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	deriver     *pda.Deriver
	accounts    *ledger.AccountReader
	log         logging.Logger
}

// NewProfileService constructs a ProfileService over the metadata store and
// the ledger profile accounts.
func NewProfileService(db *sql.DB, m repomanager.RepositoryManager, deriver *pda.Deriver, accounts *ledger.AccountReader, log logging.Logger) *ProfileService {
	return &ProfileService{
		db:          db,
		repomanager: m,
		deriver:     deriver,
		accounts:    accounts,
		log:         log.With("module", "profiles"),
	}
}

// Register creates the profile of wallet. A second registration of the same
// wallet fails with common.ErrAlreadyExists.
func (s *ProfileService) Register(ctx context.Context, wallet string) (*models.Profile, error) {
	owner, err := pda.ParsePublicKey(wallet)
	if err != nil {
		return nil, err
	}

	profileAddr, _, err := s.deriver.ProfileAddress(owner)
	if err != nil {
		return nil, err
	}

	p, err := s.repomanager.Profiles(s.db).Create(ctx, &models.Profile{
		WalletAddress: owner.String(),
		ProfilePDA:    profileAddr.String(),
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "profile registered", "wallet", p.WalletAddress, "profile_pda", p.ProfilePDA)
	return p, nil
}

func (s *ProfileService) Get(ctx context.Context, wallet string) (*models.Profile, error) {
	owner, err := pda.ParsePublicKey(wallet)
	if err != nil {
		return nil, err
	}
	return s.repomanager.Profiles(s.db).GetByWallet(ctx, owner.String())
}

// Status reads the ledger profile of wallet next to its off-chain record.
// A profile not yet created on the ledger is reported with OnLedger unset.
// A document count that differs between the two is logged.
func (s *ProfileService) Status(ctx context.Context, wallet string) (*models.ProfileStatus, error) {
	owner, err := pda.ParsePublicKey(wallet)
	if err != nil {
		return nil, err
	}

	p, err := s.repomanager.Profiles(s.db).GetByWallet(ctx, owner.String())
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", owner, err)
	}
	docs, err := s.repomanager.Documents(s.db).ListByOwner(ctx, owner.String())
	if err != nil {
		return nil, err
	}

	status := &models.ProfileStatus{Profile: *p, DocumentCount: len(docs)}

	profileAddr, _, err := s.deriver.ProfileAddress(owner)
	if err != nil {
		return nil, err
	}
	account, err := s.accounts.Profile(ctx, profileAddr)
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		return status, nil
	case err != nil:
		return nil, err
	case account.Owner != owner:
		return nil, fmt.Errorf("profile %s belongs to %s: %w", profileAddr, account.Owner, ledger.ErrInvalidAccountData)
	}

	status.OnLedger = true
	status.LedgerDocumentCount = account.DocumentCount
	if account.DocumentCount != uint64(len(docs)) {
		s.log.Warn(ctx, "document count differs from ledger", "wallet", owner.String(),
			"ledger", account.DocumentCount, "stored", len(docs))
	}
	return status, nil
}

// IssueLoginChallenge stores a fresh single-use message for wallet to sign.
func (s *ProfileService) IssueLoginChallenge(ctx context.Context, wallet string) (string, error) {
	owner, err := pda.ParsePublicKey(wallet)
	if err != nil {
		return "", err
	}

	message := newChallenge()
	if err := s.repomanager.Profiles(s.db).SetAuthMessage(ctx, owner.String(), message); err != nil {
		return "", err
	}

	return message, nil
}

// VerifyLogin checks signatureHex, an ed25519 signature by wallet over the
// pending challenge, and consumes the challenge. Any failure is reported as
// common.ErrorUnauthorized except malformed input and storage errors.
func (s *ProfileService) VerifyLogin(ctx context.Context, wallet string, signatureHex string) error {
	owner, err := pda.ParsePublicKey(wallet)
	if err != nil {
		return err
	}

	signature, err := hex.DecodeString(signatureHex)
	if err != nil {
		return fmt.Errorf("signature: %v: %w", err, common.ErrInvalidInput)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Profiles(tx)

		p, err := repo.GetByWalletForUpdate(ctx, owner.String())
		if err != nil {
			return err
		}

		if p.AuthMessage == "" || p.AuthMessageUsed {
			return fmt.Errorf("no pending challenge: %w", common.ErrorUnauthorized)
		}

		ok, err := cryptox.VerifyDetached(owner.Bytes(), []byte(p.AuthMessage), signature)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("bad signature: %w", common.ErrorUnauthorized)
		}

		return repo.MarkAuthMessageUsed(ctx, owner.String())
	})
	if err != nil {
		s.log.Warn(ctx, "login rejected", "wallet", owner.String(), "error", err)
		return err
	}

	s.log.Info(ctx, "login verified", "wallet", owner.String())
	return nil
}
