package services

import (
	"context"
	"crypto/ed25519"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/dbx"
	"github.com/dmitrijs2005/docvault/internal/ledger"
	"github.com/dmitrijs2005/docvault/internal/logging"
	"github.com/dmitrijs2005/docvault/internal/pda"
	"github.com/dmitrijs2005/docvault/internal/server/models"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/documents"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/shares"
	"github.com/dmitrijs2005/docvault/internal/server/storage"
	"github.com/stretchr/testify/require"
)

var testProgramID = pda.MustParsePublicKey("GWDtSYERr74SqwyirLDfUBS15Hnp6gwsp49qtTQkwJhs")

// wallet returns a deterministic ed25519 keypair for seed byte b.
func wallet(b byte) (pda.PublicKey, ed25519.PrivateKey) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = b
	}
	priv := ed25519.NewKeyFromSeed(seed)
	var pk pda.PublicKey
	copy(pk[:], priv.Public().(ed25519.PublicKey))
	return pk, priv
}

// --- repositories ---

type memProfiles struct {
	m *memRepoManager
}

func (r *memProfiles) Create(_ context.Context, p *models.Profile) (*models.Profile, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.profiles[p.WalletAddress]; ok {
		return nil, common.ErrAlreadyExists
	}
	r.m.seq++
	c := *p
	c.ID = fmt.Sprintf("profile-%d", r.m.seq)
	c.AuthMessageUsed = true
	c.CreatedAt, c.UpdatedAt = r.m.clock, r.m.clock
	r.m.profiles[c.WalletAddress] = &c
	out := c
	return &out, nil
}

func (r *memProfiles) GetByWallet(_ context.Context, wallet string) (*models.Profile, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.profiles[wallet]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *p
	return &out, nil
}

func (r *memProfiles) GetByWalletForUpdate(ctx context.Context, wallet string) (*models.Profile, error) {
	return r.GetByWallet(ctx, wallet)
}

func (r *memProfiles) SetAuthMessage(_ context.Context, wallet string, message string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.profiles[wallet]
	if !ok {
		return common.ErrorNotFound
	}
	p.AuthMessage, p.AuthMessageUsed = message, false
	return nil
}

func (r *memProfiles) MarkAuthMessageUsed(_ context.Context, wallet string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.profiles[wallet]
	if !ok {
		return common.ErrorNotFound
	}
	p.AuthMessageUsed = true
	return nil
}

type memDocuments struct {
	m *memRepoManager
}

func (r *memDocuments) Create(_ context.Context, doc *models.Document) (*models.Document, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.duplicateIndex > 0 {
		r.m.duplicateIndex--
		return nil, common.ErrDuplicateIndex
	}
	if r.m.createErr != nil {
		return nil, r.m.createErr
	}
	var idx uint64
	for _, d := range r.m.documents {
		if d.OwnerAddress == doc.OwnerAddress {
			idx++
		}
	}
	r.m.seq++
	c := *doc
	c.ID = fmt.Sprintf("doc-%d", r.m.seq)
	c.Index = idx
	c.DeletionState = models.DeletionActive
	c.CreatedAt, c.UpdatedAt = r.m.clock, r.m.clock
	r.m.documents = append(r.m.documents, &c)
	out := c
	return &out, nil
}

func (r *memDocuments) find(id string) (*models.Document, error) {
	for _, d := range r.m.documents {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memDocuments) GetByOwnerIndex(_ context.Context, owner string, index uint64) (*models.Document, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, d := range r.m.documents {
		if d.OwnerAddress == owner && d.Index == index {
			out := *d
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memDocuments) ListByOwner(_ context.Context, owner string) ([]models.Document, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []models.Document
	for _, d := range r.m.documents {
		if d.OwnerAddress == owner {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index > out[j].Index })
	return out, nil
}

func (r *memDocuments) SetDocumentPDA(_ context.Context, id string, addr string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	d, err := r.find(id)
	if err != nil {
		return err
	}
	d.DocumentPDA = addr
	return nil
}

func (r *memDocuments) SetEncrypted(_ context.Context, id string, encrypted bool) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.setEncryptedErr != nil {
		return r.m.setEncryptedErr
	}
	d, err := r.find(id)
	if err != nil {
		return err
	}
	d.IsEncrypted = encrypted
	return nil
}

func (r *memDocuments) SetDeletionState(_ context.Context, id string, state models.DeletionState) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	d, err := r.find(id)
	if err != nil {
		return err
	}
	if !d.DeletionState.CanAdvanceTo(state) {
		return common.ErrorNotFound
	}
	d.DeletionState = state
	d.DeletedOnLedger = state != models.DeletionActive
	return nil
}

type memShares struct {
	m *memRepoManager
}

func (r *memShares) Upsert(_ context.Context, share *models.Share) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, s := range r.m.shares {
		if s.DocumentID == share.DocumentID && s.InviteeAddress == share.InviteeAddress {
			s.ValidUntil = share.ValidUntil
			s.OwnerAddress = share.OwnerAddress
			s.SharePDA = share.SharePDA
			share.ID = s.ID
			return false, nil
		}
	}
	r.m.seq++
	c := *share
	c.ID = fmt.Sprintf("share-%d", r.m.seq)
	r.m.shares = append(r.m.shares, &c)
	share.ID = c.ID
	return true, nil
}

func (r *memShares) ListByOwner(_ context.Context, owner string) ([]models.Share, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []models.Share
	for _, s := range r.m.shares {
		if s.OwnerAddress == owner {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *memShares) ListSharedWith(_ context.Context, invitee string) ([]models.SharedDocument, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []models.SharedDocument
	for _, s := range r.m.shares {
		if s.InviteeAddress != invitee {
			continue
		}
		d, err := (&memDocuments{m: r.m}).find(s.DocumentID)
		if err != nil || d.DeletionState == models.DeletionObjectPurged {
			continue
		}
		out = append(out, models.SharedDocument{Document: *d, SharePDA: s.SharePDA, ValidUntil: s.ValidUntil})
	}
	return out, nil
}

// memRepoManager backs all repositories with shared maps, ignoring the DBTX.
type memRepoManager struct {
	mu        sync.Mutex
	seq       int
	clock     time.Time
	profiles  map[string]*models.Profile
	documents []*models.Document
	shares    []*models.Share

	duplicateIndex  int
	createErr       error
	setEncryptedErr error
}

func newMemRepoManager() *memRepoManager {
	return &memRepoManager{
		clock:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		profiles: make(map[string]*models.Profile),
	}
}

func (m *memRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *memRepoManager) Profiles(dbx.DBTX) profiles.Repository        { return &memProfiles{m: m} }
func (m *memRepoManager) Documents(dbx.DBTX) documents.Repository      { return &memDocuments{m: m} }
func (m *memRepoManager) Shares(dbx.DBTX) shares.Repository            { return &memShares{m: m} }

// --- ledger ---

type memLedger struct {
	mu        sync.Mutex
	accounts  map[pda.PublicKey]*ledger.AccountInfo
	balances  map[pda.PublicKey]uint64
	submitted [][]ledger.Instruction
	readErr   error
	reads     int
}

func newMemLedger() *memLedger {
	return &memLedger{
		accounts: make(map[pda.PublicKey]*ledger.AccountInfo),
		balances: make(map[pda.PublicKey]uint64),
	}
}

func (l *memLedger) GetAccountInfo(_ context.Context, address pda.PublicKey) (*ledger.AccountInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads++
	if l.readErr != nil {
		return nil, l.readErr
	}
	info, ok := l.accounts[address]
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}
	return info, nil
}

func (l *memLedger) GetBalance(_ context.Context, address pda.PublicKey) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.readErr != nil {
		return 0, l.readErr
	}
	return l.balances[address], nil
}

func (l *memLedger) SubmitTransaction(_ context.Context, instructions []ledger.Instruction, signers []ledger.Signer) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.submitted = append(l.submitted, instructions)
	return fmt.Sprintf("sig-%d", len(l.submitted)), nil
}

func (l *memLedger) put(address pda.PublicKey, data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[address] = &ledger.AccountInfo{Owner: testProgramID, Data: data}
}

func (l *memLedger) remove(address pda.PublicKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.accounts, address)
}

// --- object store ---

type recordingStore struct {
	*storage.MemoryStore
	deleteErr error
	deletes   []string
}

func (s *recordingStore) Delete(ctx context.Context, name string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deletes = append(s.deletes, name)
	return s.MemoryStore.Delete(ctx, name)
}

// --- environment ---

type testEnv struct {
	db       *sql.DB
	mock     sqlmock.Sqlmock
	repos    *memRepoManager
	ledger   *memLedger
	store    *recordingStore
	deriver  *pda.Deriver
	profiles *ProfileService
	access   *AccessService
	shares   *ShareService
	docs     *DocumentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	e := &testEnv{
		db:      db,
		mock:    mock,
		repos:   newMemRepoManager(),
		ledger:  newMemLedger(),
		store:   &recordingStore{MemoryStore: storage.NewMemoryStore()},
		deriver: pda.NewDeriver(testProgramID),
	}
	accounts := ledger.NewAccountReader(e.ledger, testProgramID)
	log := logging.Nop()

	e.profiles = NewProfileService(db, e.repos, e.deriver, accounts, log)
	e.access = NewAccessService(db, e.repos, e.deriver, accounts, log)
	e.shares = NewShareService(db, e.repos, e.deriver, accounts, log)
	e.docs = NewDocumentService(db, e.repos, e.store, e.deriver, accounts, e.access, "documents", log)
	return e
}

// register creates a profile for owner without touching sqlmock.
func (e *testEnv) register(t *testing.T, owner pda.PublicKey) {
	t.Helper()
	_, err := e.profiles.Register(context.Background(), owner.String())
	require.NoError(t, err)
}

// upload stores content for owner, expecting exactly one transaction.
func (e *testEnv) upload(t *testing.T, owner pda.PublicKey, name string, content []byte) *models.Document {
	t.Helper()
	e.mock.ExpectBegin()
	e.mock.ExpectCommit()
	doc, err := e.docs.Upload(context.Background(), owner.String(), name, content)
	require.NoError(t, err)
	return doc
}

// grant writes the share account for invitee on (owner, index).
func (e *testEnv) grant(t *testing.T, owner pda.PublicKey, index uint64, invitee pda.PublicKey, updated time.Time, hours int64, active bool) pda.PublicKey {
	t.Helper()
	docAddr, _, err := e.deriver.DocumentAddress(owner, index)
	require.NoError(t, err)
	shareAddr, _, err := e.deriver.ShareAddress(docAddr, invitee)
	require.NoError(t, err)

	acc := &ledger.ShareAccount{
		Invitee:         invitee,
		DocumentIndex:   index,
		Created:         updated.Unix(),
		Updated:         updated.Unix(),
		ValidUntilHours: hours,
		IsActive:        active,
	}
	e.ledger.put(shareAddr, acc.Encode())
	return shareAddr
}

// markDeleted writes the document account for (owner, index).
func (e *testEnv) markDeleted(t *testing.T, owner pda.PublicKey, index uint64, deleted bool) pda.PublicKey {
	t.Helper()
	docAddr, _, err := e.deriver.DocumentAddress(owner, index)
	require.NoError(t, err)
	acc := &ledger.DocumentAccount{Owner: owner, Name: "doc", Index: index, Deleted: deleted}
	e.ledger.put(docAddr, acc.Encode())
	return docAddr
}
