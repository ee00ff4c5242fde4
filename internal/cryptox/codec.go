// Package cryptox implements the at-rest document transform and the detached
// signature check used by the login challenge.
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/dmitrijs2005/docvault/internal/common"
)

const (
	// envelopeMagic opens every ciphertext produced by Encrypt.
	envelopeMagic = "DVE1"

	// NonceSize is the length of the random nonce stored in every envelope.
	NonceSize = 12

	tagSize = 16

	// Overhead is the number of bytes Encrypt adds to the content.
	Overhead = len(envelopeMagic) + NonceSize + tagSize
)

// DeriveKey maps an arbitrary-length passphrase to a 32-byte AES-256 key
// using SHA-256.
func DeriveKey(passphrase string) []byte {
	sum := sha256.Sum256([]byte(passphrase))
	return sum[:]
}

// Encrypt seals content with AES-256-GCM under a key derived from
// passphrase. A fresh nonce is generated on every call and the result is
// self-contained:
//
//	ciphertext = "DVE1" || nonce (12 bytes) || encrypted content || tag (16 bytes)
//
// Example:
//
//	ct, err := cryptox.Encrypt([]byte("report"), "MySuperSecretKey")
//	if err != nil {
//	    return err
//	}
//	pt, err := cryptox.Decrypt(ct, "MySuperSecretKey") // pt == "report"
func Encrypt(content []byte, passphrase string) ([]byte, error) {
	aead, err := newAEAD(passphrase)
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(envelopeMagic)+NonceSize, Overhead+len(content))
	copy(out, envelopeMagic)
	nonce := out[len(envelopeMagic):]
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return aead.Seal(out, nonce, content, nil), nil
}

// Decrypt opens a ciphertext produced by Encrypt. Input that is not an
// envelope, and a wrong passphrase, both fail with common.ErrInvalidInput;
// nothing is returned in that case.
func Decrypt(ciphertext []byte, passphrase string) ([]byte, error) {
	if !IsEnvelope(ciphertext) {
		return nil, fmt.Errorf("content is not encrypted: %w", common.ErrInvalidInput)
	}

	aead, err := newAEAD(passphrase)
	if err != nil {
		return nil, err
	}

	nonce := ciphertext[len(envelopeMagic) : len(envelopeMagic)+NonceSize]
	out, err := aead.Open(nil, nonce, ciphertext[len(envelopeMagic)+NonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("wrong encryption key or corrupted content: %w", common.ErrInvalidInput)
	}
	if out == nil {
		out = []byte{}
	}
	return out, nil
}

// IsEnvelope reports whether b looks like the output of Encrypt. It checks
// the header and length only; use Decrypt to authenticate.
func IsEnvelope(b []byte) bool {
	return len(b) >= Overhead && bytes.HasPrefix(b, []byte(envelopeMagic))
}

func newAEAD(passphrase string) (cipher.AEAD, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("empty encryption key: %w", common.ErrInvalidInput)
	}

	key := DeriveKey(passphrase)
	defer common.WipeByteArray(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
