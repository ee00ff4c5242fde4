package ledger

import (
	"encoding/binary"

	"github.com/dmitrijs2005/docvault/internal/pda"
)

// SystemProgramID is the ledger's native account program.
var SystemProgramID = pda.PublicKey{}

const systemTransferInstruction = 2

// SystemTransfer moves lamports between two system accounts. from must sign.
func SystemTransfer(from, to pda.PublicKey, lamports uint64) Instruction {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], systemTransferInstruction)
	binary.LittleEndian.PutUint64(data[4:12], lamports)

	return Instruction{
		ProgramID: SystemProgramID,
		Accounts: []AccountMeta{
			{PublicKey: from, IsSigner: true, IsWritable: true},
			{PublicKey: to, IsWritable: true},
		},
		Data: data,
	}
}
