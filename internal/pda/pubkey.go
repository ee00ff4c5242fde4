// Package pda names every on-chain vault record. It provides the 32-byte
// ledger PublicKey with its base58 text form and the deterministic program
// address derivation that lets any party recompute where a profile, document
// or share record lives without a directory lookup.
package pda

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/mr-tron/base58"
)

// PublicKeySize is the byte length of a ledger address.
const PublicKeySize = 32

// PublicKey is a ledger address: either an ed25519 public key or a program
// derived address.
type PublicKey [PublicKeySize]byte

// ParsePublicKey decodes a base58 address. Anything that does not decode to
// exactly 32 bytes is rejected with common.ErrInvalidInput.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	if s == "" {
		return pk, fmt.Errorf("empty address: %w", common.ErrInvalidInput)
	}
	b, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("address %q: %v: %w", s, err, common.ErrInvalidInput)
	}
	if len(b) != PublicKeySize {
		return pk, fmt.Errorf("address %q decodes to %d bytes: %w", s, len(b), common.ErrInvalidInput)
	}
	copy(pk[:], b)
	return pk, nil
}

// MustParsePublicKey is ParsePublicKey for compile-time constants.
func MustParsePublicKey(s string) PublicKey {
	pk, err := ParsePublicKey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// PublicKeyFromBytes copies b into a PublicKey.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != PublicKeySize {
		return pk, fmt.Errorf("public key must be %d bytes, got %d: %w", PublicKeySize, len(b), common.ErrInvalidInput)
	}
	copy(pk[:], b)
	return pk, nil
}

func (pk PublicKey) String() string {
	return base58.Encode(pk[:])
}

func (pk PublicKey) Bytes() []byte {
	return pk[:]
}

func (pk PublicKey) IsZero() bool {
	return pk == PublicKey{}
}

// IsOnCurve reports whether b is the encoding of a point on the ed25519
// curve. Derived addresses must not be, so that no private key exists for
// them.
func IsOnCurve(b []byte) bool {
	if len(b) != PublicKeySize {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}
