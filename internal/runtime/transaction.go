package runtime

import (
	"encoding/base64"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	cerrors "github.com/lugondev/go-cash/internal/errors"
	"github.com/lugondev/go-cash/pkg/types"
)

// Message is the signed part of a transaction.
type Message struct {
	// Signers lists every account that must sign, in signature order.
	Signers []types.Pubkey

	// Nonce distinguishes otherwise identical messages so they produce
	// distinct signatures.
	Nonce uint64

	Instructions []types.Instruction
}

// Bytes returns the Borsh encoding of the message, the payload signers sign.
func (m *Message) Bytes() ([]byte, error) {
	data, err := bin.MarshalBorsh(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return data, nil
}

// Transaction is a message plus one signature per declared signer.
type Transaction struct {
	Message    Message
	Signatures []types.Signature
}

// NewTransaction builds an unsigned transaction. The signer list is every
// account flagged as signer in the instructions, in order of first appearance.
func NewTransaction(nonce uint64, instructions ...types.Instruction) *Transaction {
	seen := make(map[types.Pubkey]struct{})
	var signers []types.Pubkey
	for _, ix := range instructions {
		for _, meta := range ix.Accounts {
			if !meta.IsSigner {
				continue
			}
			if _, ok := seen[meta.Pubkey]; ok {
				continue
			}
			seen[meta.Pubkey] = struct{}{}
			signers = append(signers, meta.Pubkey)
		}
	}
	return &Transaction{
		Message: Message{
			Signers:      signers,
			Nonce:        nonce,
			Instructions: instructions,
		},
		Signatures: make([]types.Signature, len(signers)),
	}
}

// Sign fills in the signature of every declared signer whose key is given.
// Keys for accounts that are not declared signers are ignored.
func (tx *Transaction) Sign(keys ...solana.PrivateKey) error {
	payload, err := tx.Message.Bytes()
	if err != nil {
		return err
	}
	if len(tx.Signatures) != len(tx.Message.Signers) {
		sigs := make([]types.Signature, len(tx.Message.Signers))
		copy(sigs, tx.Signatures)
		tx.Signatures = sigs
	}
	for _, key := range keys {
		pub := key.PublicKey()
		for i, signer := range tx.Message.Signers {
			if !signer.Equals(pub) {
				continue
			}
			sig, err := key.Sign(payload)
			if err != nil {
				return fmt.Errorf("failed to sign for %s: %w", pub, err)
			}
			tx.Signatures[i] = sig
		}
	}
	return nil
}

// Verify checks that every declared signer produced a valid signature.
func (tx *Transaction) Verify() error {
	if len(tx.Message.Signers) == 0 {
		return cerrors.ErrMissingSignature.WithDetails(map[string]any{"reason": "transaction has no signers"})
	}
	if len(tx.Signatures) != len(tx.Message.Signers) {
		return cerrors.ErrMissingSignature.WithDetails(map[string]any{
			"signers":    len(tx.Message.Signers),
			"signatures": len(tx.Signatures),
		})
	}
	payload, err := tx.Message.Bytes()
	if err != nil {
		return err
	}
	for i, signer := range tx.Message.Signers {
		sig := tx.Signatures[i]
		if sig == (types.Signature{}) {
			return cerrors.ErrMissingSignature.WithDetails(map[string]any{"signer": signer.String()})
		}
		if !sig.Verify(signer, payload) {
			return cerrors.ErrInvalidSignature.WithDetails(map[string]any{"signer": signer.String()})
		}
	}
	return nil
}

// Signature returns the first signature, which identifies the transaction.
func (tx *Transaction) Signature() types.Signature {
	if len(tx.Signatures) == 0 {
		return types.Signature{}
	}
	return tx.Signatures[0]
}

// Encode returns the Borsh encoding of the transaction.
func (tx *Transaction) Encode() ([]byte, error) {
	return bin.MarshalBorsh(tx)
}

// ToBase64 returns the base64 Borsh encoding of the transaction.
func (tx *Transaction) ToBase64() (string, error) {
	data, err := tx.Encode()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// TransactionFromBytes decodes a Borsh-encoded transaction.
func TransactionFromBytes(data []byte) (*Transaction, error) {
	var tx Transaction
	if err := bin.UnmarshalBorsh(&tx, data); err != nil {
		return nil, cerrors.ErrInvalidInstruction.WithCause(err)
	}
	return &tx, nil
}

// TransactionFromBase64 decodes a base64 Borsh-encoded transaction.
func TransactionFromBase64(s string) (*Transaction, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, cerrors.ErrInvalidInstruction.WithCause(err)
	}
	return TransactionFromBytes(data)
}
