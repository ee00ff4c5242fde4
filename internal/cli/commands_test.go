package cli

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServices struct {
	challenge  string
	verifyErr  error
	verifiedBy string
	signature  string

	uploaded   map[string][]byte
	documents  map[uint64]*models.Document
	deleted    []uint64
	toggleKey  string
	canAccess  bool
	shareCalls [][]string
	payments   map[string]uint64
}

func newFakeServices() *fakeServices {
	return &fakeServices{
		challenge: "challenge-1",
		uploaded:  map[string][]byte{},
		documents: map[uint64]*models.Document{},
		payments:  map[string]uint64{},
	}
}

func (f *fakeServices) Register(_ context.Context, wallet string) (*models.Profile, error) {
	return &models.Profile{WalletAddress: wallet, ProfilePDA: "pda-" + wallet}, nil
}
func (f *fakeServices) Status(_ context.Context, wallet string) (*models.ProfileStatus, error) {
	return &models.ProfileStatus{Profile: models.Profile{WalletAddress: wallet, ProfilePDA: "pda-" + wallet},
		OnLedger: wallet == "onchain", LedgerDocumentCount: 3, DocumentCount: 3}, nil
}
func (f *fakeServices) IssueLoginChallenge(context.Context, string) (string, error) {
	return f.challenge, nil
}
func (f *fakeServices) VerifyLogin(_ context.Context, wallet string, sig string) error {
	if f.verifyErr != nil {
		return f.verifyErr
	}
	f.verifiedBy, f.signature = wallet, sig
	return nil
}

func (f *fakeServices) Upload(_ context.Context, owner, name string, content []byte) (*models.Document, error) {
	f.uploaded[owner+"/"+name] = content
	d := &models.Document{OwnerAddress: owner, Index: uint64(len(f.documents)),
		Metadata: models.DocumentMetadata{Name: name, Size: int64(len(content))}}
	f.documents[d.Index] = d
	return d, nil
}
func (f *fakeServices) Download(_ context.Context, owner string, index uint64, requester string) ([]byte, *models.Document, error) {
	d, ok := f.documents[index]
	if !ok {
		return nil, nil, common.ErrorNotFound
	}
	return f.uploaded[d.OwnerAddress+"/"+d.Metadata.Name], d, nil
}
func (f *fakeServices) Delete(_ context.Context, _ string, index uint64, _ string) error {
	f.deleted = append(f.deleted, index)
	return common.ErrDeletionNotConfirmed
}
func (f *fakeServices) ToggleEncryption(_ context.Context, _ string, index uint64, key string) (*models.Document, error) {
	f.toggleKey = key
	d := f.documents[index]
	d.IsEncrypted = !d.IsEncrypted
	return d, nil
}
func (f *fakeServices) List(context.Context, string) ([]models.DocumentData, error) {
	var out []models.DocumentData
	for _, d := range f.documents {
		out = append(out, models.DocumentData{Document: *d})
	}
	return out, nil
}
func (f *fakeServices) FindOrphans(context.Context, string) ([]string, error) {
	return []string{"documents/w/1/stray"}, nil
}

func (f *fakeServices) ShareDocument(_ context.Context, caller, owner string, index uint64, invitee, sharePDA string) (*models.Share, error) {
	f.shareCalls = append(f.shareCalls, []string{caller, owner, invitee, sharePDA})
	return &models.Share{InviteeAddress: invitee, SharePDA: "derived", ValidUntil: time.Unix(0, 0).UTC()}, nil
}
func (f *fakeServices) ListShared(context.Context, string) ([]models.SharedDocument, error) {
	return nil, nil
}

func (f *fakeServices) CanAccess(context.Context, string, uint64, string) (bool, error) {
	return f.canAccess, nil
}

func (f *fakeServices) Balance(_ context.Context, address string) (uint64, error) {
	return f.payments[address], nil
}
func (f *fakeServices) SendPayment(_ context.Context, address string, lamports uint64) (string, error) {
	f.payments[address] += lamports
	return "sig", nil
}

func newTestApp(f *fakeServices, input string) *App {
	a := NewApp(Services{Profiles: f, Documents: f, Shares: f, Access: f, Funding: f})
	a.reader = bufio.NewReader(strings.NewReader(input))
	a.out = &bytes.Buffer{}
	return a
}

func TestApp_Login(t *testing.T) {
	silence(t)
	ctx := context.Background()

	f := newFakeServices()
	a := newTestApp(f, "abcdef\n")
	require.NoError(t, a.Login(ctx, []string{"wallet-1"}))
	assert.True(t, a.isLoggedIn())
	assert.Equal(t, "wallet-1", f.verifiedBy)
	assert.Equal(t, "abcdef", f.signature)
	assert.Contains(t, a.out.(*bytes.Buffer).String(), "challenge-1")

	f = newFakeServices()
	f.verifyErr = common.ErrorUnauthorized
	a = newTestApp(f, "abcdef\n")
	assert.ErrorIs(t, a.Login(ctx, []string{"wallet-1"}), common.ErrorUnauthorized)
	assert.False(t, a.isLoggedIn())

	assert.ErrorIs(t, a.Login(ctx, nil), errUsage)
}

func TestApp_DocumentCommands(t *testing.T) {
	out := silence(t)
	ctx := context.Background()

	dir := t.TempDir()
	t.Chdir(dir)

	origRead := readFile
	readFile = func(string) ([]byte, error) { return []byte("hello"), nil }
	t.Cleanup(func() { readFile = origRead })

	origPw := readPassword
	readPassword = func(int) ([]byte, error) { return []byte("key"), nil }
	t.Cleanup(func() { readPassword = origPw })

	f := newFakeServices()
	a := newTestApp(f, "")
	a.principal = "owner"

	require.NoError(t, a.Upload(ctx, []string{"/tmp/x/report.pdf"}))
	assert.Equal(t, []byte("hello"), f.uploaded["owner/report.pdf"])

	require.NoError(t, a.Download(ctx, []string{"owner", "0"}))
	saved, err := os.ReadFile(filepath.Join(dir, "downloads", "report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), saved)

	require.NoError(t, a.Toggle(ctx, []string{"0"}))
	assert.Equal(t, "key", f.toggleKey)
	assert.True(t, f.documents[0].IsEncrypted)

	assert.ErrorIs(t, a.Delete(ctx, []string{"owner", "0"}), common.ErrDeletionNotConfirmed)
	assert.Equal(t, []uint64{0}, f.deleted)

	assert.ErrorIs(t, a.Download(ctx, []string{"owner", "9"}), common.ErrorNotFound)
	assert.Error(t, a.Download(ctx, []string{"owner", "x"}))

	require.NoError(t, a.List(ctx, nil))
	require.NoError(t, a.Orphans(ctx, nil))

	joined := strings.Join(*out, "\n")
	assert.Contains(t, joined, "Uploaded report.pdf as index 0 (5 bytes)")
	assert.Contains(t, joined, "documents/w/1/stray")
	assert.Contains(t, joined, "is now encrypted")
}

func TestApp_ShareAndAccessCommands(t *testing.T) {
	out := silence(t)
	ctx := context.Background()

	f := newFakeServices()
	a := newTestApp(f, "")
	a.principal = "owner"

	require.NoError(t, a.Share(ctx, []string{"0", "invitee"}))
	require.NoError(t, a.Share(ctx, []string{"0", "invitee", "explicit"}))
	assert.Equal(t, [][]string{
		{"owner", "owner", "invitee", ""},
		{"owner", "owner", "invitee", "explicit"},
	}, f.shareCalls)

	require.NoError(t, a.CanAccess(ctx, []string{"owner", "0"}))
	f.canAccess = true
	require.NoError(t, a.CanAccess(ctx, []string{"owner", "0"}))
	require.NoError(t, a.Shared(ctx, nil))

	joined := strings.Join(*out, "\n")
	assert.Contains(t, joined, "Access denied")
	assert.Contains(t, joined, "Access granted")
	assert.Contains(t, joined, "Nothing shared with you")
}

func TestApp_FundingCommands(t *testing.T) {
	out := silence(t)
	ctx := context.Background()

	f := newFakeServices()
	a := newTestApp(f, "")

	require.NoError(t, a.Fund(ctx, []string{"addr", "250"}))
	require.NoError(t, a.Balance(ctx, []string{"addr"}))
	assert.Error(t, a.Fund(ctx, []string{"addr", "lots"}))
	assert.ErrorIs(t, a.Balance(ctx, nil), errUsage)

	assert.Contains(t, strings.Join(*out, "\n"), "addr: 250 lamports")
}

func TestApp_Profile(t *testing.T) {
	out := silence(t)
	ctx := context.Background()

	a := newTestApp(newFakeServices(), "")
	assert.ErrorIs(t, a.Profile(ctx, nil), errUsage)

	require.NoError(t, a.Profile(ctx, []string{"offchain"}))
	a.principal = "onchain"
	require.NoError(t, a.Profile(ctx, nil))

	joined := strings.Join(*out, "\n")
	assert.Contains(t, joined, "Profile not created on ledger yet")
	assert.Contains(t, joined, "onchain profile pda-onchain documents 3")
	assert.Contains(t, joined, "ledger documents 3")
}
