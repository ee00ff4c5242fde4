// Package server wires configuration, storage backends, the ledger client
// and the services together and runs the operator console on top of them.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/docvault/internal/cli"
	"github.com/dmitrijs2005/docvault/internal/ledger"
	"github.com/dmitrijs2005/docvault/internal/logging"
	"github.com/dmitrijs2005/docvault/internal/pda"
	"github.com/dmitrijs2005/docvault/internal/server/config"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/docvault/internal/server/services"
	"github.com/dmitrijs2005/docvault/internal/server/storage"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	console *cli.App
}

// NewApp connects to Postgres, migrates it, prepares the bucket and builds
// the services described by c.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogBackend)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	store, err := storage.NewS3Store(ctx, storage.S3Options{
		AccessKey:    c.S3RootUser,
		SecretKey:    c.S3RootPassword,
		Region:       c.S3Region,
		BaseEndpoint: c.S3BaseEndpoint,
		Bucket:       c.S3Bucket,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("s3 init error: %w", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bucket %s: %w", c.S3Bucket, err)
	}

	rpc, err := ledger.NewRPCClient(c.LedgerEndpoint, c.LedgerCommitment, &http.Client{Timeout: 30 * time.Second})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	client := ledger.NewRetryingClient(rpc, c.LedgerRetryAttempts, c.LedgerRetryBaseDelay, logger)

	svc, err := buildServices(db, rm, store, client, c, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &App{config: c, logger: logger, db: db, console: cli.NewApp(svc)}, nil
}

// buildServices assembles the services over already opened backends.
func buildServices(db *sql.DB, rm repomanager.RepositoryManager, store storage.ObjectStore, client ledger.ReadWriter,
	c *config.Config, logger logging.Logger) (cli.Services, error) {

	programID, err := pda.ParsePublicKey(c.ProgramID)
	if err != nil {
		return cli.Services{}, fmt.Errorf("program id: %w", err)
	}

	faucet, err := newFaucet(c.FaucetMnemonic)
	if err != nil {
		return cli.Services{}, fmt.Errorf("faucet: %w", err)
	}

	deriver := pda.NewDeriver(programID)
	accounts := ledger.NewAccountReader(client, programID)

	access := services.NewAccessService(db, rm, deriver, accounts, logger)

	return cli.Services{
		Profiles:  services.NewProfileService(db, rm, deriver, accounts, logger),
		Documents: services.NewDocumentService(db, rm, store, deriver, accounts, access, c.StoragePrefix, logger),
		Shares:    services.NewShareService(db, rm, deriver, accounts, logger),
		Access:    access,
		Funding:   services.NewFundingService(client, faucet, logger),
	}, nil
}

// newFaucet returns nil when no mnemonic is configured.
func newFaucet(mnemonic string) (ledger.Signer, error) {
	if mnemonic == "" {
		return nil, nil
	}
	s, err := ledger.SignerFromMnemonic(mnemonic)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	app.logger.Info(ctx, "Starting docvault console...", "ledger", app.config.LedgerEndpoint, "program", app.config.ProgramID)

	app.console.Run(ctx)

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close", "error", err)
	}
	_ = logging.Sync(app.logger)
}
