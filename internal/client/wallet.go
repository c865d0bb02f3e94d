package client

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
)

// Wallet is a keypair that signs ledger transactions. On disk it uses the
// solana-keygen layout: a JSON array of the 64 private key bytes.
type Wallet struct {
	key solana.PrivateKey
}

func NewWallet() *Wallet {
	return &Wallet{key: solana.NewWallet().PrivateKey}
}

func WalletFromPrivateKey(key solana.PrivateKey) *Wallet {
	return &Wallet{key: key}
}

func WalletFromBase58(encoded string) (*Wallet, error) {
	key, err := solana.PrivateKeyFromBase58(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	return &Wallet{key: key}, nil
}

// WalletFromFile reads a keypair file and checks that its public half
// matches the seed.
func WalletFromFile(path string) (*Wallet, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keypair %s: %w", path, err)
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("keypair %s holds %d bytes, want %d", path, len(key), ed25519.PrivateKeySize)
	}
	derived := ed25519.NewKeyFromSeed(key[:ed25519.SeedSize])
	if !bytes.Equal(derived[ed25519.SeedSize:], key[ed25519.SeedSize:]) {
		return nil, fmt.Errorf("keypair %s: public key does not match seed", path)
	}
	return &Wallet{key: key}, nil
}

// SaveToFile writes the keypair readable by the owner only, creating the
// parent directory if needed.
func (w *Wallet) SaveToFile(path string) error {
	// A []byte would marshal as base64; keygen files are integer arrays.
	ints := make([]uint16, len(w.key))
	for i, b := range w.key {
		ints[i] = uint16(b)
	}
	data, err := json.Marshal(ints)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write keypair %s: %w", path, err)
	}
	return nil
}

func (w *Wallet) PublicKey() solana.PublicKey   { return w.key.PublicKey() }
func (w *Wallet) PrivateKey() solana.PrivateKey { return w.key }
func (w *Wallet) String() string                { return w.PublicKey().String() }

func keysOf(wallets ...*Wallet) []solana.PrivateKey {
	keys := make([]solana.PrivateKey, 0, len(wallets))
	for _, w := range wallets {
		if w != nil {
			keys = append(keys, w.key)
		}
	}
	return keys
}
