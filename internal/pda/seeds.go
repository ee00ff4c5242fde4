package pda

import "strconv"

// Seed prefixes shared with the vault ledger program. The order of seeds is
// part of the contract: writer and reader must agree byte for byte.
const (
	ProfileSeed       = "profile"
	DocumentSeed      = "document"
	DocumentShareSeed = "document-share"
)

// Deriver computes vault record addresses for one program.
type Deriver struct {
	programID PublicKey
}

func NewDeriver(programID PublicKey) *Deriver {
	return &Deriver{programID: programID}
}

func (d *Deriver) ProgramID() PublicKey {
	return d.programID
}

// ProfileAddress derives ["profile", owner].
func (d *Deriver) ProfileAddress(owner PublicKey) (PublicKey, uint8, error) {
	return FindProgramAddress(ProfileSeeds(owner), d.programID)
}

// DocumentAddress derives ["document", owner, decimal(index)].
func (d *Deriver) DocumentAddress(owner PublicKey, index uint64) (PublicKey, uint8, error) {
	return FindProgramAddress(DocumentSeeds(owner, index), d.programID)
}

// ShareAddress derives [documentAddress, "document-share", invitee].
func (d *Deriver) ShareAddress(document PublicKey, invitee PublicKey) (PublicKey, uint8, error) {
	return FindProgramAddress(ShareSeeds(document, invitee), d.programID)
}

func ProfileSeeds(owner PublicKey) [][]byte {
	return [][]byte{[]byte(ProfileSeed), owner.Bytes()}
}

func DocumentSeeds(owner PublicKey, index uint64) [][]byte {
	return [][]byte{[]byte(DocumentSeed), owner.Bytes(), []byte(strconv.FormatUint(index, 10))}
}

func ShareSeeds(document PublicKey, invitee PublicKey) [][]byte {
	return [][]byte{document.Bytes(), []byte(DocumentShareSeed), invitee.Bytes()}
}
