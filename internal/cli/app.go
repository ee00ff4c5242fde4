package cli

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/dmitrijs2005/docvault/internal/server/models"
)

// ProfileAPI is the slice of the profile service the console uses.
type ProfileAPI interface {
	Register(ctx context.Context, wallet string) (*models.Profile, error)
	Status(ctx context.Context, wallet string) (*models.ProfileStatus, error)
	IssueLoginChallenge(ctx context.Context, wallet string) (string, error)
	VerifyLogin(ctx context.Context, wallet string, signatureHex string) error
}

type DocumentAPI interface {
	Upload(ctx context.Context, owner string, name string, content []byte) (*models.Document, error)
	Download(ctx context.Context, owner string, index uint64, requester string) ([]byte, *models.Document, error)
	Delete(ctx context.Context, owner string, index uint64, caller string) error
	ToggleEncryption(ctx context.Context, owner string, index uint64, key string) (*models.Document, error)
	List(ctx context.Context, owner string) ([]models.DocumentData, error)
	FindOrphans(ctx context.Context, owner string) ([]string, error)
}

type ShareAPI interface {
	ShareDocument(ctx context.Context, caller string, owner string, index uint64, invitee string, sharePDA string) (*models.Share, error)
	ListShared(ctx context.Context, invitee string) ([]models.SharedDocument, error)
}

type AccessAPI interface {
	CanAccess(ctx context.Context, owner string, index uint64, requester string) (bool, error)
}

type FundingAPI interface {
	Balance(ctx context.Context, address string) (uint64, error)
	SendPayment(ctx context.Context, address string, lamports uint64) (string, error)
}

// Services groups the backends the console drives.
type Services struct {
	Profiles  ProfileAPI
	Documents DocumentAPI
	Shares    ShareAPI
	Access    AccessAPI
	Funding   FundingAPI
}

type App struct {
	svc       Services
	principal string
	reader    *bufio.Reader
	out       io.Writer
	downloads string
}

func NewApp(svc Services) *App {
	return &App{svc: svc, reader: bufio.NewReader(os.Stdin), out: os.Stdout, downloads: "downloads"}
}

func (a *App) isLoggedIn() bool {
	return a.principal != ""
}

func (a *App) status() string {
	if a.principal == "" {
		return "(anonymous)"
	}
	return "(" + a.principal + ")"
}

// Run starts the REPL on stdin and blocks until the user exits or ctx is
// cancelled between commands.
func (a *App) Run(ctx context.Context) {
	printlnFn("Welcome to docvault console (type 'help' for commands)")
	runREPL(ctx, a, a.status, bufio.NewScanner(a.reader))
}
