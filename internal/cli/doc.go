// Package cli provides the interactive docvault operator console.
//
// The console talks to the services directly: it registers wallets, runs
// the signed-message login and then acts as the logged-in wallet for
// uploads, shares, access checks and deletes.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See runREPL for the command list.
package cli
