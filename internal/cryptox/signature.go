package cryptox

import (
	"crypto/ed25519"
	"fmt"

	"github.com/dmitrijs2005/docvault/internal/common"
	"golang.org/x/crypto/nacl/sign"
)

// VerifyDetached reports whether signature is a valid ed25519 signature of
// message by publicKey. Only the first 64 bytes of signature are considered,
// which tolerates wallets that append extra bytes after the signature.
func VerifyDetached(publicKey, message, signature []byte) (bool, error) {
	if len(publicKey) != ed25519.PublicKeySize {
		return false, fmt.Errorf("public key must be %d bytes: %w", ed25519.PublicKeySize, common.ErrInvalidInput)
	}
	if len(signature) < sign.Overhead {
		return false, fmt.Errorf("signature must be at least %d bytes: %w", sign.Overhead, common.ErrInvalidInput)
	}

	var pk [32]byte
	copy(pk[:], publicKey)

	signed := make([]byte, 0, sign.Overhead+len(message))
	signed = append(signed, signature[:sign.Overhead]...)
	signed = append(signed, message...)

	_, ok := sign.Open(nil, signed, &pk)
	return ok, nil
}
