package ledger

import (
	"crypto/ed25519"
	"fmt"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/pda"
	"github.com/tyler-smith/go-bip39"
)

// KeypairSigner signs with an in-memory ed25519 private key.
type KeypairSigner struct {
	private ed25519.PrivateKey
	public  pda.PublicKey
}

func NewKeypairSigner(private ed25519.PrivateKey) *KeypairSigner {
	s := &KeypairSigner{private: private}
	copy(s.public[:], private.Public().(ed25519.PublicKey))
	return s
}

// SignerFromMnemonic derives a keypair from a BIP-39 mnemonic the way
// browser wallets do: the first 32 bytes of the seed (empty passphrase) are
// the ed25519 seed.
func SignerFromMnemonic(mnemonic string) (*KeypairSigner, error) {
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, fmt.Errorf("mnemonic: %v: %w", err, common.ErrInvalidInput)
	}
	defer common.WipeByteArray(seed)

	return NewKeypairSigner(ed25519.NewKeyFromSeed(seed[:ed25519.SeedSize])), nil
}

func (s *KeypairSigner) PublicKey() pda.PublicKey {
	return s.public
}

func (s *KeypairSigner) Sign(message []byte) ([]byte, error) {
	return ed25519.Sign(s.private, message), nil
}
