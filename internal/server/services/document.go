package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/cryptox"
	"github.com/dmitrijs2005/docvault/internal/dbx"
	"github.com/dmitrijs2005/docvault/internal/ledger"
	"github.com/dmitrijs2005/docvault/internal/logging"
	"github.com/dmitrijs2005/docvault/internal/pda"
	"github.com/dmitrijs2005/docvault/internal/server/models"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/docvault/internal/server/storage"
	"github.com/sethvargo/go-retry"
)

var (
	// indexRetryBackoff bounds retries of an upload that lost the index race.
	indexRetryBackoff = func() retry.Backoff {
		return retry.WithMaxRetries(5, retry.NewExponential(10*time.Millisecond))
	}
)

// DocumentService owns document content and its metadata.
type DocumentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       storage.ObjectStore
	deriver     *pda.Deriver
	accounts    *ledger.AccountReader
	access      *AccessService
	prefix      string
	log         logging.Logger
	now         func() time.Time
}

// NewDocumentService constructs a DocumentService backed by the metadata
// store, the object store and the ledger.
func NewDocumentService(db *sql.DB, m repomanager.RepositoryManager, store storage.ObjectStore, deriver *pda.Deriver,
	accounts *ledger.AccountReader, access *AccessService, prefix string, log logging.Logger) *DocumentService {
	return &DocumentService{
		db:          db,
		repomanager: m,
		store:       store,
		deriver:     deriver,
		accounts:    accounts,
		access:      access,
		prefix:      strings.Trim(prefix, "/"),
		log:         log.With("module", "documents"),
		now:         time.Now,
	}
}

// ownerPrefix is the object key prefix of all of owner's documents.
func (s *DocumentService) ownerPrefix(owner string) string {
	return s.prefix + "/" + owner + "/"
}

// extension returns the file extension without the dot, or "".
func extension(name string) string {
	return strings.TrimPrefix(filepath.Ext(name), ".")
}

func cleanFileName(name string) (string, error) {
	base := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(name, "\\", "/")))
	if base == "/" || base == "." || base == "" {
		return "", fmt.Errorf("file name %q: %w", name, common.ErrInvalidInput)
	}
	return base, nil
}

// Upload stores content for owner and records it with the next free index.
// The object is written first; if recording the metadata then fails the
// object is left behind and shows up in FindOrphans.
func (s *DocumentService) Upload(ctx context.Context, owner string, name string, content []byte) (*models.Document, error) {
	ownerKey, err := pda.ParsePublicKey(owner)
	if err != nil {
		return nil, err
	}
	fileName, err := cleanFileName(name)
	if err != nil {
		return nil, err
	}

	profile, err := s.repomanager.Profiles(s.db).GetByWallet(ctx, ownerKey.String())
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", ownerKey, err)
	}

	objectName := fmt.Sprintf("%s%d/%s", s.ownerPrefix(ownerKey.String()), s.now().UnixMilli(), fileName)

	if err := s.store.Put(ctx, objectName, content); err != nil {
		return nil, err
	}

	var doc *models.Document
	err = retry.Do(ctx, indexRetryBackoff(), func(ctx context.Context) error {
		err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			repo := s.repomanager.Documents(tx)

			d, err := repo.Create(ctx, &models.Document{
				ProfileID:    profile.ID,
				OwnerAddress: ownerKey.String(),
				ObjectName:   objectName,
				Metadata: models.DocumentMetadata{
					Name:      fileName,
					Size:      int64(len(content)),
					Extension: extension(fileName),
				},
			})
			if err != nil {
				return err
			}

			docAddr, _, err := s.deriver.DocumentAddress(ownerKey, d.Index)
			if err != nil {
				return err
			}
			d.DocumentPDA = docAddr.String()
			if err := repo.SetDocumentPDA(ctx, d.ID, d.DocumentPDA); err != nil {
				return err
			}

			doc = d
			return nil
		})
		if errors.Is(err, common.ErrDuplicateIndex) {
			s.log.Warn(ctx, "document index taken, retrying", "owner", ownerKey.String())
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		s.log.Error(ctx, "document metadata not recorded, object orphaned", "owner", ownerKey.String(), "object", objectName, "error", err)
		return nil, err
	}

	s.log.Info(ctx, "document uploaded", "owner", doc.OwnerAddress, "index", doc.Index, "object", doc.ObjectName, "size", doc.Metadata.Size)
	return doc, nil
}

func (s *DocumentService) getDocument(ctx context.Context, owner string, index uint64) (*models.Document, pda.PublicKey, error) {
	ownerKey, err := pda.ParsePublicKey(owner)
	if err != nil {
		return nil, ownerKey, err
	}

	doc, err := s.repomanager.Documents(s.db).GetByOwnerIndex(ctx, ownerKey.String(), index)
	if err != nil {
		return nil, ownerKey, fmt.Errorf("document %s/%d: %w", ownerKey, index, err)
	}
	return doc, ownerKey, nil
}

func (s *DocumentService) getLiveDocument(ctx context.Context, owner string, index uint64) (*models.Document, pda.PublicKey, error) {
	doc, ownerKey, err := s.getDocument(ctx, owner, index)
	if err != nil {
		return nil, ownerKey, err
	}
	if doc.DeletionState != models.DeletionActive {
		return nil, ownerKey, fmt.Errorf("document %s/%d is deleted: %w", ownerKey, index, common.ErrorNotFound)
	}
	return doc, ownerKey, nil
}

// Download returns the stored bytes of document (owner, index). Anyone but
// the owner must pass EnsureCanAccess before the object is read.
func (s *DocumentService) Download(ctx context.Context, owner string, index uint64, requester string) ([]byte, *models.Document, error) {
	doc, _, err := s.getLiveDocument(ctx, owner, index)
	if err != nil {
		return nil, nil, err
	}

	if requester != doc.OwnerAddress {
		if err := s.access.EnsureCanAccess(ctx, doc.OwnerAddress, doc.Index, requester); err != nil {
			return nil, nil, err
		}
	}

	content, err := s.store.Get(ctx, doc.ObjectName)
	if err != nil {
		return nil, nil, err
	}
	return content, doc, nil
}

// Delete purges the content of document (owner, index) once the ledger
// shows it deleted. Until then it fails with common.ErrDeletionNotConfirmed
// and changes nothing. Progress is recorded so an interrupted purge resumes
// without consulting the ledger again; deleting a purged document is a
// no-op.
func (s *DocumentService) Delete(ctx context.Context, owner string, index uint64, caller string) error {
	doc, ownerKey, err := s.getDocument(ctx, owner, index)
	if err != nil {
		return err
	}

	callerKey, err := pda.ParsePublicKey(caller)
	if err != nil {
		return err
	}
	if callerKey != ownerKey {
		return fmt.Errorf("only the owner may delete: %w", common.ErrorUnauthorized)
	}

	repo := s.repomanager.Documents(s.db)

	switch doc.DeletionState {
	case models.DeletionObjectPurged:
		return nil

	case models.DeletionActive:
		docAddr, _, err := s.deriver.DocumentAddress(ownerKey, doc.Index)
		if err != nil {
			return err
		}

		account, err := s.accounts.Document(ctx, docAddr)
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return fmt.Errorf("no ledger record at %s: %w", docAddr, common.ErrDeletionNotConfirmed)
		}
		if err != nil {
			return err
		}
		if !account.Deleted {
			s.log.Info(ctx, "delete refused, ledger not confirmed", "owner", doc.OwnerAddress, "index", doc.Index)
			return fmt.Errorf("document %s/%d: %w", doc.OwnerAddress, doc.Index, common.ErrDeletionNotConfirmed)
		}

		if err := repo.SetDeletionState(ctx, doc.ID, models.DeletionLedgerConfirmedDeleted); err != nil {
			return err
		}
		s.log.Info(ctx, "deletion confirmed on ledger", "owner", doc.OwnerAddress, "index", doc.Index)
	}

	if err := s.store.Delete(ctx, doc.ObjectName); err != nil {
		return err
	}
	if err := repo.SetDeletionState(ctx, doc.ID, models.DeletionObjectPurged); err != nil {
		return err
	}

	s.log.Info(ctx, "document object purged", "owner", doc.OwnerAddress, "index", doc.Index, "object", doc.ObjectName)
	return nil
}

// ToggleEncryption flips the at-rest state of owner's document: plain
// content is encrypted with key, encrypted content is decrypted with it.
// The object is rewritten under the same name. A wrong key fails with
// common.ErrInvalidInput and leaves the object and its flag untouched.
//
// When the stored object already is in the requested state, a previous
// toggle rewrote it without recording the flag; only the flag is updated.
func (s *DocumentService) ToggleEncryption(ctx context.Context, owner string, index uint64, key string) (*models.Document, error) {
	doc, _, err := s.getLiveDocument(ctx, owner, index)
	if err != nil {
		return nil, err
	}

	content, err := s.store.Get(ctx, doc.ObjectName)
	if err != nil {
		return nil, err
	}

	if s.alreadyToggled(doc, content, key) {
		s.log.Warn(ctx, "object already in requested state, recording flag", "owner", doc.OwnerAddress, "index", doc.Index,
			"encrypted", !doc.IsEncrypted)
		return s.recordEncrypted(ctx, doc, !doc.IsEncrypted)
	}

	var transformed []byte
	if doc.IsEncrypted {
		transformed, err = cryptox.Decrypt(content, key)
	} else {
		transformed, err = cryptox.Encrypt(content, key)
	}
	if err != nil {
		s.log.Warn(ctx, "encryption toggle refused", "owner", doc.OwnerAddress, "index", doc.Index, "error", err)
		return nil, err
	}

	if err := s.store.Put(ctx, doc.ObjectName, transformed); err != nil {
		return nil, err
	}

	return s.recordEncrypted(ctx, doc, !doc.IsEncrypted)
}

// alreadyToggled reports whether content is already in the state the
// toggle would produce.
func (s *DocumentService) alreadyToggled(doc *models.Document, content []byte, key string) bool {
	if doc.IsEncrypted {
		return !cryptox.IsEnvelope(content)
	}
	if !cryptox.IsEnvelope(content) {
		return false
	}
	_, err := cryptox.Decrypt(content, key)
	return err == nil
}

func (s *DocumentService) recordEncrypted(ctx context.Context, doc *models.Document, encrypted bool) (*models.Document, error) {
	if err := s.repomanager.Documents(s.db).SetEncrypted(ctx, doc.ID, encrypted); err != nil {
		s.log.Error(ctx, "object rewritten but encryption flag not recorded", "owner", doc.OwnerAddress, "index", doc.Index,
			"object", doc.ObjectName, "encrypted", encrypted, "error", err)
		return nil, err
	}

	doc.IsEncrypted = encrypted
	s.log.Info(ctx, "document encryption toggled", "owner", doc.OwnerAddress, "index", doc.Index, "encrypted", doc.IsEncrypted)
	return doc, nil
}

// List returns owner's documents, newest first, each with its shares.
func (s *DocumentService) List(ctx context.Context, owner string) ([]models.DocumentData, error) {
	ownerKey, err := pda.ParsePublicKey(owner)
	if err != nil {
		return nil, err
	}

	docs, err := s.repomanager.Documents(s.db).ListByOwner(ctx, ownerKey.String())
	if err != nil {
		return nil, err
	}
	shares, err := s.repomanager.Shares(s.db).ListByOwner(ctx, ownerKey.String())
	if err != nil {
		return nil, err
	}

	byDoc := make(map[string][]models.Share, len(docs))
	for _, sh := range shares {
		byDoc[sh.DocumentID] = append(byDoc[sh.DocumentID], sh)
	}

	result := make([]models.DocumentData, 0, len(docs))
	for _, d := range docs {
		result = append(result, models.DocumentData{Document: d, Shares: byDoc[d.ID]})
	}
	return result, nil
}

// FindOrphans lists objects under owner's prefix that no live document
// refers to. It only reports; nothing is deleted.
func (s *DocumentService) FindOrphans(ctx context.Context, owner string) ([]string, error) {
	ownerKey, err := pda.ParsePublicKey(owner)
	if err != nil {
		return nil, err
	}

	docs, err := s.repomanager.Documents(s.db).ListByOwner(ctx, ownerKey.String())
	if err != nil {
		return nil, err
	}

	known := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		if d.DeletionState != models.DeletionObjectPurged {
			known[d.ObjectName] = struct{}{}
		}
	}

	names, err := s.store.List(ctx, s.ownerPrefix(ownerKey.String()))
	if err != nil {
		return nil, err
	}

	var orphans []string
	for _, n := range names {
		if _, ok := known[n]; !ok {
			orphans = append(orphans, n)
		}
	}

	if len(orphans) > 0 {
		s.log.Warn(ctx, "orphaned objects found", "owner", ownerKey.String(), "count", len(orphans))
	}
	return orphans, nil
}
