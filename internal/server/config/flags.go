package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/docvault/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   PostgreSQL DSN
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-x string   object key prefix
//	-l string   ledger JSON-RPC endpoint
//	-m string   ledger commitment (processed, confirmed, finalized)
//	-i string   vault program id
//	-r int      ledger read retries
//	-t int      ledger retry base delay, milliseconds
//	-f string   faucet mnemonic
//	-o string   log backend (slog, zap)
//
// Args are filtered with flagx.FilterArgs first so that unrelated flags
// (such as -c) do not abort parsing.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-u", "-p", "-b", "-g", "-e", "-x", "-l", "-m", "-i", "-r", "-t", "-f", "-o"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.StoragePrefix, "x", config.StoragePrefix, "object key prefix")
	fs.StringVar(&config.LedgerEndpoint, "l", config.LedgerEndpoint, "ledger RPC endpoint")
	fs.StringVar(&config.LedgerCommitment, "m", config.LedgerCommitment, "ledger commitment")
	fs.StringVar(&config.ProgramID, "i", config.ProgramID, "vault program id")
	fs.Uint64Var(&config.LedgerRetryAttempts, "r", config.LedgerRetryAttempts, "ledger read retries")

	retryDelay := fs.Int("t", int(config.LedgerRetryBaseDelay.Milliseconds()), "ledger retry base delay (in milliseconds)")

	fs.StringVar(&config.FaucetMnemonic, "f", config.FaucetMnemonic, "faucet mnemonic")
	fs.StringVar(&config.LogBackend, "o", config.LogBackend, "log backend")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.LedgerRetryBaseDelay = time.Duration(*retryDelay) * time.Millisecond
}
