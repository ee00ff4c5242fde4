package pda

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/docvault/internal/common"
)

const (
	MaxSeeds      = 16
	MaxSeedLength = 32
)

// pdaMarker is appended to every derivation preimage by the ledger runtime.
var pdaMarker = []byte("ProgramDerivedAddress")

// onCurve is a seam for tests that need to exhaust the bump search.
var onCurve = IsOnCurve

// CreateProgramAddress hashes seeds and programID into an address and
// rejects the result when it lies on the ed25519 curve.
//
//	address = SHA-256(seed_1 || ... || seed_n || programID || "ProgramDerivedAddress")
func CreateProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, error) {
	if len(seeds) > MaxSeeds {
		return PublicKey{}, fmt.Errorf("%d seeds exceed the limit of %d: %w", len(seeds), MaxSeeds, common.ErrInvalidInput)
	}

	h := sha256.New()
	for i, s := range seeds {
		if len(s) > MaxSeedLength {
			return PublicKey{}, fmt.Errorf("seed %d is %d bytes, limit is %d: %w", i, len(s), MaxSeedLength, common.ErrInvalidInput)
		}
		h.Write(s)
	}
	h.Write(programID[:])
	h.Write(pdaMarker)

	var address PublicKey
	copy(address[:], h.Sum(nil))

	if onCurve(address[:]) {
		return PublicKey{}, errOnCurve
	}
	return address, nil
}

var errOnCurve = errors.New("derived address is on curve")

// FindProgramAddress searches bumps from 255 down to 0 and returns the first
// off-curve address along with its bump. The bump is passed as a trailing
// one-byte seed. The result depends only on seeds and programID.
func FindProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return PublicKey{}, 0, fmt.Errorf("%d seeds leave no room for the bump: %w", len(seeds), common.ErrInvalidInput)
	}

	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{uint8(bump)}

		address, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return address, uint8(bump), nil
		}
		if err != errOnCurve {
			return PublicKey{}, 0, err
		}
	}

	return PublicKey{}, 0, common.ErrDerivationExhausted
}
