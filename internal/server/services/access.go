package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/ledger"
	"github.com/dmitrijs2005/docvault/internal/logging"
	"github.com/dmitrijs2005/docvault/internal/pda"
	"github.com/dmitrijs2005/docvault/internal/server/models"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/repomanager"
)

// AccessService decides whether a wallet may read a document. The ledger
// share account is the only authority: it is fetched on every decision and
// the cached Share rows are never consulted.
type AccessService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	deriver     *pda.Deriver
	accounts    *ledger.AccountReader
	log         logging.Logger
	now         func() time.Time
}

// NewAccessService constructs an AccessService that resolves document
// permissions from the ledger access and share accounts.
func NewAccessService(db *sql.DB, m repomanager.RepositoryManager, deriver *pda.Deriver, accounts *ledger.AccountReader, log logging.Logger) *AccessService {
	return &AccessService{
		db:          db,
		repomanager: m,
		deriver:     deriver,
		accounts:    accounts,
		log:         log.With("module", "access"),
		now:         time.Now,
	}
}

// CanAccess reports whether requester may read document (owner, index).
// The owner always may. Anyone else needs an active, unexpired grant at the
// share address derived for them. A missing grant is a plain false; ledger
// failures are returned as errors wrapping common.ErrLedgerUnavailable so
// they are not mistaken for a denial.
func (s *AccessService) CanAccess(ctx context.Context, owner string, index uint64, requester string) (bool, error) {
	ownerKey, err := pda.ParsePublicKey(owner)
	if err != nil {
		return false, err
	}
	requesterKey, err := pda.ParsePublicKey(requester)
	if err != nil {
		return false, err
	}

	doc, err := s.repomanager.Documents(s.db).GetByOwnerIndex(ctx, ownerKey.String(), index)
	if err != nil {
		return false, fmt.Errorf("document %s/%d: %w", ownerKey, index, err)
	}

	if requesterKey == ownerKey {
		return true, nil
	}

	return s.checkGrant(ctx, doc, ownerKey, requesterKey)
}

func (s *AccessService) checkGrant(ctx context.Context, doc *models.Document, owner, requester pda.PublicKey) (bool, error) {
	docAddr, _, err := s.deriver.DocumentAddress(owner, doc.Index)
	if err != nil {
		return false, err
	}
	shareAddr, _, err := s.deriver.ShareAddress(docAddr, requester)
	if err != nil {
		return false, err
	}

	share, err := s.accounts.Share(ctx, shareAddr)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		s.log.Info(ctx, "access denied", "owner", owner.String(), "index", doc.Index, "requester", requester.String(), "reason", "no grant")
		return false, nil
	}
	if err != nil {
		return false, err
	}

	now := s.now()
	if !share.IsValidAt(now) {
		reason := "expired"
		if !share.IsActive {
			reason = "revoked"
		}
		s.log.Info(ctx, "access denied", "owner", owner.String(), "index", doc.Index, "requester", requester.String(),
			"reason", reason, "valid_until", share.ValidUntil())
		return false, nil
	}

	return true, nil
}

// EnsureCanAccess is CanAccess returning common.ErrorUnauthorized on denial.
func (s *AccessService) EnsureCanAccess(ctx context.Context, owner string, index uint64, requester string) error {
	ok, err := s.CanAccess(ctx, owner, index, requester)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s may not read %s/%d: %w", requester, owner, index, common.ErrorUnauthorized)
	}
	return nil
}
