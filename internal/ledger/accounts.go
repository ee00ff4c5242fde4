package ledger

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/dmitrijs2005/docvault/internal/pda"
)

// Account type names as declared by the vault program. The first eight bytes
// of each account are SHA-256("account:<name>")[:8].
const (
	ProfileAccountName  = "ProfileData"
	DocumentAccountName = "DocumentData"
	ShareAccountName    = "DocumentShareData"
)

const discriminatorSize = 8

// Discriminator returns the eight-byte tag that prefixes accounts of the
// given type.
func Discriminator(accountName string) [discriminatorSize]byte {
	sum := sha256.Sum256([]byte("account:" + accountName))
	var d [discriminatorSize]byte
	copy(d[:], sum[:discriminatorSize])
	return d
}

// ProfileAccount mirrors the on-chain profile record.
type ProfileAccount struct {
	Owner         pda.PublicKey
	DocumentCount uint64
	Created       int64
	Updated       int64
}

// DocumentAccount mirrors the on-chain document record. Deleted is set by
// the owner's deletion transaction and gates purging of the stored object.
type DocumentAccount struct {
	Owner   pda.PublicKey
	Name    string
	Index   uint64
	Created int64
	Deleted bool
}

// ShareAccount mirrors the on-chain grant allowing Invitee to read a
// document. ValidUntilHours counts from Updated, the last ledger write.
type ShareAccount struct {
	Invitee         pda.PublicKey
	DocumentIndex   uint64
	Created         int64
	Updated         int64
	ValidUntilHours int64
	IsPublic        bool
	IsActive        bool
}

// ValidUntilMillis returns the expiry in milliseconds since the epoch:
// (updated + 3600*validUntilHours) * 1000.
func (s *ShareAccount) ValidUntilMillis() int64 {
	return (s.Updated + 3600*s.ValidUntilHours) * 1000
}

// ValidUntil is ValidUntilMillis as a time.Time.
func (s *ShareAccount) ValidUntil() time.Time {
	return time.UnixMilli(s.ValidUntilMillis())
}

// IsValidAt reports whether the grant is active and not expired at now.
// The boundary millisecond itself is still valid.
func (s *ShareAccount) IsValidAt(now time.Time) bool {
	return s.IsActive && now.UnixMilli() <= s.ValidUntilMillis()
}

func DecodeProfileAccount(data []byte) (*ProfileAccount, error) {
	r, err := newAccountReader(data, ProfileAccountName)
	if err != nil {
		return nil, err
	}
	acc := &ProfileAccount{
		Owner:         r.publicKey(),
		DocumentCount: r.u64(),
		Created:       r.i64(),
		Updated:       r.i64(),
	}
	if r.err != nil {
		return nil, r.err
	}
	return acc, nil
}

func DecodeDocumentAccount(data []byte) (*DocumentAccount, error) {
	r, err := newAccountReader(data, DocumentAccountName)
	if err != nil {
		return nil, err
	}
	acc := &DocumentAccount{
		Owner:   r.publicKey(),
		Name:    r.string(),
		Index:   r.u64(),
		Created: r.i64(),
		Deleted: r.bool(),
	}
	if r.err != nil {
		return nil, r.err
	}
	return acc, nil
}

func DecodeShareAccount(data []byte) (*ShareAccount, error) {
	r, err := newAccountReader(data, ShareAccountName)
	if err != nil {
		return nil, err
	}
	acc := &ShareAccount{
		Invitee:         r.publicKey(),
		DocumentIndex:   r.u64(),
		Created:         r.i64(),
		Updated:         r.i64(),
		ValidUntilHours: r.i64(),
		IsPublic:        r.bool(),
		IsActive:        r.bool(),
	}
	if r.err != nil {
		return nil, r.err
	}
	return acc, nil
}

// accountReader decodes fixed-width little-endian fields. The first short
// read latches err and every later read returns a zero value.
type accountReader struct {
	buf []byte
	off int
	err error
}

func newAccountReader(data []byte, name string) (*accountReader, error) {
	if len(data) < discriminatorSize {
		return nil, fmt.Errorf("%s: %d bytes: %w", name, len(data), ErrInvalidAccountData)
	}
	want := Discriminator(name)
	if string(data[:discriminatorSize]) != string(want[:]) {
		return nil, fmt.Errorf("%s: discriminator mismatch: %w", name, ErrInvalidAccountData)
	}
	return &accountReader{buf: data, off: discriminatorSize}, nil
}

func (r *accountReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.buf) {
		r.err = fmt.Errorf("need %d bytes at offset %d of %d: %w", n, r.off, len(r.buf), ErrInvalidAccountData)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *accountReader) publicKey() pda.PublicKey {
	var pk pda.PublicKey
	if b := r.take(pda.PublicKeySize); b != nil {
		copy(pk[:], b)
	}
	return pk
}

func (r *accountReader) u64() uint64 {
	if b := r.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

func (r *accountReader) i64() int64 {
	return int64(r.u64())
}

func (r *accountReader) bool() bool {
	if b := r.take(1); b != nil {
		return b[0] != 0
	}
	return false
}

func (r *accountReader) string() string {
	b := r.take(4)
	if b == nil {
		return ""
	}
	n := binary.LittleEndian.Uint32(b)
	if int64(n) > int64(len(r.buf)) {
		r.err = fmt.Errorf("string length %d: %w", n, ErrInvalidAccountData)
		return ""
	}
	return string(r.take(int(n)))
}

// Encode serializes the account in the program's layout, discriminator
// included.
func (a *ProfileAccount) Encode() []byte {
	w := newAccountWriter(ProfileAccountName)
	w.publicKey(a.Owner)
	w.u64(a.DocumentCount)
	w.u64(uint64(a.Created))
	w.u64(uint64(a.Updated))
	return w.buf
}

func (a *DocumentAccount) Encode() []byte {
	w := newAccountWriter(DocumentAccountName)
	w.publicKey(a.Owner)
	w.string(a.Name)
	w.u64(a.Index)
	w.u64(uint64(a.Created))
	w.bool(a.Deleted)
	return w.buf
}

func (a *ShareAccount) Encode() []byte {
	w := newAccountWriter(ShareAccountName)
	w.publicKey(a.Invitee)
	w.u64(a.DocumentIndex)
	w.u64(uint64(a.Created))
	w.u64(uint64(a.Updated))
	w.u64(uint64(a.ValidUntilHours))
	w.bool(a.IsPublic)
	w.bool(a.IsActive)
	return w.buf
}

type accountWriter struct {
	buf []byte
}

func newAccountWriter(name string) *accountWriter {
	d := Discriminator(name)
	return &accountWriter{buf: append([]byte(nil), d[:]...)}
}

func (w *accountWriter) publicKey(pk pda.PublicKey) {
	w.buf = append(w.buf, pk[:]...)
}

func (w *accountWriter) u64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

func (w *accountWriter) bool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
		return
	}
	w.buf = append(w.buf, 0)
}

func (w *accountWriter) string(s string) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(len(s)))
	w.buf = append(w.buf, s...)
}
