package ledger

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/docvault/internal/pda"
)

const signatureSize = 64

// Message is a compiled legacy transaction message.
type Message struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
	AccountKeys                 []pda.PublicKey
	RecentBlockhash             [32]byte
	Instructions                []CompiledInstruction
}

// CompiledInstruction references accounts by their index in AccountKeys.
type CompiledInstruction struct {
	ProgramIDIndex uint8
	Accounts       []uint8
	Data           []byte
}

type accountFlags struct {
	signer   bool
	writable bool
}

// CompileMessage orders the accounts used by instructions the way the ledger
// expects (fee payer, writable signers, readonly signers, writable
// non-signers, readonly non-signers) and rewrites instructions to indexes.
func CompileMessage(feePayer pda.PublicKey, instructions []Instruction, blockhash [32]byte) (*Message, error) {
	if len(instructions) == 0 {
		return nil, errors.New("no instructions")
	}

	order := []pda.PublicKey{feePayer}
	flags := map[pda.PublicKey]*accountFlags{feePayer: {signer: true, writable: true}}

	add := func(pk pda.PublicKey, signer, writable bool) {
		f, ok := flags[pk]
		if !ok {
			f = &accountFlags{}
			flags[pk] = f
			order = append(order, pk)
		}
		f.signer = f.signer || signer
		f.writable = f.writable || writable
	}

	for _, ix := range instructions {
		for _, a := range ix.Accounts {
			add(a.PublicKey, a.IsSigner, a.IsWritable)
		}
		add(ix.ProgramID, false, false)
	}

	var ws, rs, wu, ru []pda.PublicKey
	for _, pk := range order[1:] {
		f := flags[pk]
		switch {
		case f.signer && f.writable:
			ws = append(ws, pk)
		case f.signer:
			rs = append(rs, pk)
		case f.writable:
			wu = append(wu, pk)
		default:
			ru = append(ru, pk)
		}
	}

	keys := make([]pda.PublicKey, 0, len(order))
	keys = append(keys, feePayer)
	keys = append(keys, ws...)
	keys = append(keys, rs...)
	keys = append(keys, wu...)
	keys = append(keys, ru...)

	if len(keys) > 256 {
		return nil, fmt.Errorf("too many accounts: %d", len(keys))
	}

	index := make(map[pda.PublicKey]uint8, len(keys))
	for i, pk := range keys {
		index[pk] = uint8(i)
	}

	msg := &Message{
		NumRequiredSignatures:       uint8(1 + len(ws) + len(rs)),
		NumReadonlySignedAccounts:   uint8(len(rs)),
		NumReadonlyUnsignedAccounts: uint8(len(ru)),
		AccountKeys:                 keys,
		RecentBlockhash:             blockhash,
	}

	for _, ix := range instructions {
		c := CompiledInstruction{ProgramIDIndex: index[ix.ProgramID], Data: ix.Data}
		for _, a := range ix.Accounts {
			c.Accounts = append(c.Accounts, index[a.PublicKey])
		}
		msg.Instructions = append(msg.Instructions, c)
	}

	return msg, nil
}

// Serialize encodes the message in the ledger wire format.
func (m *Message) Serialize() []byte {
	var buf bytes.Buffer
	buf.WriteByte(m.NumRequiredSignatures)
	buf.WriteByte(m.NumReadonlySignedAccounts)
	buf.WriteByte(m.NumReadonlyUnsignedAccounts)

	writeCompactU16(&buf, len(m.AccountKeys))
	for _, k := range m.AccountKeys {
		buf.Write(k[:])
	}

	buf.Write(m.RecentBlockhash[:])

	writeCompactU16(&buf, len(m.Instructions))
	for _, ix := range m.Instructions {
		buf.WriteByte(ix.ProgramIDIndex)
		writeCompactU16(&buf, len(ix.Accounts))
		buf.Write(ix.Accounts)
		writeCompactU16(&buf, len(ix.Data))
		buf.Write(ix.Data)
	}

	return buf.Bytes()
}

// SignTransaction compiles and signs a transaction. The first signer pays
// the fee. Every account flagged as signer must have a matching Signer.
func SignTransaction(instructions []Instruction, signers []Signer, blockhash [32]byte) ([]byte, error) {
	if len(signers) == 0 {
		return nil, errors.New("at least one signer (fee payer) is required")
	}

	msg, err := CompileMessage(signers[0].PublicKey(), instructions, blockhash)
	if err != nil {
		return nil, err
	}

	byKey := make(map[pda.PublicKey]Signer, len(signers))
	for _, s := range signers {
		byKey[s.PublicKey()] = s
	}

	payload := msg.Serialize()

	var buf bytes.Buffer
	writeCompactU16(&buf, int(msg.NumRequiredSignatures))
	for _, pk := range msg.AccountKeys[:msg.NumRequiredSignatures] {
		s, ok := byKey[pk]
		if !ok {
			return nil, fmt.Errorf("missing signer for %s", pk)
		}
		sig, err := s.Sign(payload)
		if err != nil {
			return nil, fmt.Errorf("sign with %s: %w", pk, err)
		}
		if len(sig) != signatureSize {
			return nil, fmt.Errorf("signature of %d bytes from %s", len(sig), pk)
		}
		buf.Write(sig)
	}
	buf.Write(payload)

	return buf.Bytes(), nil
}

// writeCompactU16 writes n as the ledger's variable-length "short vec" prefix.
func writeCompactU16(buf *bytes.Buffer, n int) {
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n == 0 {
			buf.WriteByte(b)
			return
		}
		buf.WriteByte(b | 0x80)
	}
}
