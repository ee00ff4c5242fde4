package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to. Handlers report
// their own errors; the REPL ignores the returned values.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context, args []string) error
	Login(ctx context.Context, args []string) error
	Profile(ctx context.Context, args []string) error
	Upload(ctx context.Context, args []string) error
	Download(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Toggle(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	Share(ctx context.Context, args []string) error
	Shared(ctx context.Context, args []string) error
	CanAccess(ctx context.Context, args []string) error
	Orphans(ctx context.Context, args []string) error
	Balance(ctx context.Context, args []string) error
	Fund(ctx context.Context, args []string) error
}

// runREPL reads commands line by line and dispatches them to a.
//
//	Always:
//	  help                             show available commands
//	  register <wallet>                create a profile
//	  login <wallet>                   sign a challenge and act as wallet
//	  profile [wallet]                 profile and its ledger record
//	  balance <address>                ledger balance in lamports
//	  fund <address> <lamports>        pay from the faucet
//	  exit | quit
//
//	Logged in:
//	  upload <path>
//	  download <owner> <index>         saves into ./downloads
//	  delete <owner> <index>
//	  toggle <index>                   encrypt or decrypt at rest
//	  list
//	  share <index> <invitee> [sharePda]
//	  shared                           documents shared with you
//	  canaccess <owner> <index>
//	  orphans
//
// The loop exits on EOF, on exit/quit or once ctx is done.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("vault %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: upload, download, delete, toggle, (l)ist, share, shared, canaccess, orphans, profile, balance, fund, login, exit")
			} else {
				printlnFn("Available commands: register, login, profile, balance, fund, exit")
			}

		case "register":
			_ = a.Register(ctx, args)

		case "login":
			_ = a.Login(ctx, args)

		case "profile":
			_ = a.Profile(ctx, args)

		case "balance":
			_ = a.Balance(ctx, args)

		case "fund":
			_ = a.Fund(ctx, args)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		case "upload", "download", "delete", "toggle", "l", "list", "share", "shared", "canaccess", "orphans":
			if !a.isLoggedIn() {
				printlnFn("Please login first")
				continue
			}
			dispatchLoggedIn(ctx, a, cmd, args)

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}

func dispatchLoggedIn(ctx context.Context, a execIface, cmd string, args []string) {
	switch cmd {
	case "upload":
		_ = a.Upload(ctx, args)
	case "download":
		_ = a.Download(ctx, args)
	case "delete":
		_ = a.Delete(ctx, args)
	case "toggle":
		_ = a.Toggle(ctx, args)
	case "l", "list":
		_ = a.List(ctx, args)
	case "share":
		_ = a.Share(ctx, args)
	case "shared":
		_ = a.Shared(ctx, args)
	case "canaccess":
		_ = a.CanAccess(ctx, args)
	case "orphans":
		_ = a.Orphans(ctx, args)
	}
}
