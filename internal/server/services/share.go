package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/ledger"
	"github.com/dmitrijs2005/docvault/internal/logging"
	"github.com/dmitrijs2005/docvault/internal/pda"
	"github.com/dmitrijs2005/docvault/internal/server/models"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/repomanager"
)

// ShareService records ledger grants off-chain for listing. The grant itself
// is created and toggled by the owner on the ledger.
type ShareService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	deriver     *pda.Deriver
	accounts    *ledger.AccountReader
	log         logging.Logger
}

// NewShareService constructs a ShareService that records grants in the
// metadata store and checks them against the ledger.
func NewShareService(db *sql.DB, m repomanager.RepositoryManager, deriver *pda.Deriver, accounts *ledger.AccountReader, log logging.Logger) *ShareService {
	return &ShareService{
		db:          db,
		repomanager: m,
		deriver:     deriver,
		accounts:    accounts,
		log:         log.With("module", "shares"),
	}
}

// ValidUntil reads the grant for invitee on document (owner, index) and
// returns its expiry together with the share address. A grant never
// created on the ledger yields common.ErrorNotFound.
func (s *ShareService) ValidUntil(ctx context.Context, owner pda.PublicKey, index uint64, invitee pda.PublicKey) (time.Time, pda.PublicKey, error) {
	docAddr, _, err := s.deriver.DocumentAddress(owner, index)
	if err != nil {
		return time.Time{}, pda.PublicKey{}, err
	}
	shareAddr, _, err := s.deriver.ShareAddress(docAddr, invitee)
	if err != nil {
		return time.Time{}, pda.PublicKey{}, err
	}

	share, err := s.accounts.Share(ctx, shareAddr)
	if err != nil {
		return time.Time{}, shareAddr, fmt.Errorf("share %s: %w", shareAddr, err)
	}

	return share.ValidUntil(), shareAddr, nil
}

// ShareDocument records the grant for invitee on document (owner, index).
// Only the owner may call it. sharePDA may be empty; when given it must
// equal the derived share address. Repeating the call refreshes ValidUntil
// on the existing row.
func (s *ShareService) ShareDocument(ctx context.Context, caller string, owner string, index uint64, invitee string, sharePDA string) (*models.Share, error) {
	ownerKey, err := pda.ParsePublicKey(owner)
	if err != nil {
		return nil, err
	}
	inviteeKey, err := pda.ParsePublicKey(invitee)
	if err != nil {
		return nil, err
	}
	callerKey, err := pda.ParsePublicKey(caller)
	if err != nil {
		return nil, err
	}

	doc, err := s.repomanager.Documents(s.db).GetByOwnerIndex(ctx, ownerKey.String(), index)
	if err != nil {
		return nil, fmt.Errorf("document %s/%d: %w", ownerKey, index, err)
	}

	if doc.OwnerAddress != callerKey.String() {
		return nil, fmt.Errorf("only the owner may share: %w", common.ErrorUnauthorized)
	}

	validUntil, shareAddr, err := s.ValidUntil(ctx, ownerKey, doc.Index, inviteeKey)
	if err != nil {
		return nil, err
	}

	if sharePDA != "" && sharePDA != shareAddr.String() {
		return nil, fmt.Errorf("share address %s does not match derived %s: %w", sharePDA, shareAddr, common.ErrInvalidInput)
	}

	share := &models.Share{
		DocumentID:     doc.ID,
		OwnerAddress:   doc.OwnerAddress,
		InviteeAddress: inviteeKey.String(),
		SharePDA:       shareAddr.String(),
		ValidUntil:     validUntil,
	}

	inserted, err := s.repomanager.Shares(s.db).Upsert(ctx, share)
	if err != nil {
		return nil, err
	}

	action := "refreshed"
	if inserted {
		action = "created"
	}
	s.log.Info(ctx, "share "+action, "owner", doc.OwnerAddress, "index", doc.Index, "invitee", share.InviteeAddress,
		"share_pda", share.SharePDA, "valid_until", validUntil)

	return share, nil
}

// ListShared returns documents shared with invitee. ValidUntil is the
// cached value and is for display only.
func (s *ShareService) ListShared(ctx context.Context, invitee string) ([]models.SharedDocument, error) {
	inviteeKey, err := pda.ParsePublicKey(invitee)
	if err != nil {
		return nil, err
	}
	return s.repomanager.Shares(s.db).ListSharedWith(ctx, inviteeKey.String())
}
