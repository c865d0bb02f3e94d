// Package types provides the base ledger types shared by the runtime, the token
// program and the lending protocol. Key and signature types are aliases of the
// solana-go types so addresses print and parse as base58 everywhere.
package types

import (
	"github.com/gagliardetto/solana-go"
)

// Pubkey is an account address (32 bytes).
type Pubkey = solana.PublicKey

// Signature is an ed25519 transaction signature (64 bytes).
type Signature = solana.Signature

// Account is a record stored in the ledger under its address.
type Account struct {
	// Owner is the program allowed to modify Data.
	Owner Pubkey `json:"owner"`

	// Data is the serialized account state.
	Data []byte `json:"data"`
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	data := make([]byte, len(a.Data))
	copy(data, a.Data)
	return &Account{Owner: a.Owner, Data: data}
}

// AccountMeta describes a single account involved in an instruction.
type AccountMeta struct {
	// Pubkey is the public key of the account.
	Pubkey Pubkey `json:"pubkey"`

	// IsSigner indicates if the account must authorize the instruction.
	IsSigner bool `json:"is_signer"`

	// IsWritable indicates if the instruction may modify the account.
	IsWritable bool `json:"is_writable"`
}

// Meta returns a read-only, non-signer AccountMeta for pubkey.
func Meta(pubkey Pubkey) AccountMeta {
	return AccountMeta{Pubkey: pubkey}
}

// Writable marks the account as writable.
func (am AccountMeta) Writable() AccountMeta {
	am.IsWritable = true
	return am
}

// Signer marks the account as a signer.
func (am AccountMeta) Signer() AccountMeta {
	am.IsSigner = true
	return am
}

// Instruction is a single program invocation.
type Instruction struct {
	// ProgramID is the program that will process this instruction.
	ProgramID Pubkey `json:"program_id"`

	// Accounts is the ordered list of accounts passed to the program.
	Accounts []AccountMeta `json:"accounts"`

	// Data is the instruction data.
	Data []byte `json:"data"`
}

// AccountKeys returns the addresses referenced by the instruction, in order.
func (ix *Instruction) AccountKeys() []Pubkey {
	keys := make([]Pubkey, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		keys[i] = meta.Pubkey
	}
	return keys
}
