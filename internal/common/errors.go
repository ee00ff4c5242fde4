// Package common defines the sentinel errors shared by every docvault layer
// together with a few byte helpers. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound     = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrDuplicateIndex = errors.New("duplicate document index")

	// Service-level errors.
	ErrorInternal           = errors.New("internal error")
	ErrorUnauthorized       = errors.New("unauthorized")
	ErrDeletionNotConfirmed = errors.New("document deletion is not confirmed on ledger")

	// Validation errors (malformed address or key material).
	ErrInvalidInput = errors.New("invalid input")

	// Address derivation found no off-curve candidate. Unrecoverable.
	ErrDerivationExhausted = errors.New("unable to find a viable program address")

	// The ledger could not be reached or answered with a transient failure.
	// Distinct from a denial: access could not be determined.
	ErrLedgerUnavailable = errors.New("ledger unavailable")
)
