// Package ledger is the shared account store the runtime executes against.
//
// Accounts are versioned records keyed by address. Every transaction runs in a
// Tx that records the version of each account it reads and buffers its writes;
// Commit re-checks those versions under the commit lock and rejects the whole
// transaction with ErrWriteConflict if another commit touched any of them in
// the meantime. Successful commits are written as one atomic batch and advance
// the slot counter by one.
package ledger

import (
	"encoding/binary"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	bin "github.com/gagliardetto/binary"

	cerrors "github.com/lugondev/go-cash/internal/errors"
	"github.com/lugondev/go-cash/pkg/types"
)

var (
	prefixAccount   = []byte("a/")
	prefixSignature = []byte("s/")
	keySlot         = []byte("m/slot")
)

// Record is a stored account.
type Record struct {
	Owner types.Pubkey

	// Version starts at 1 and increases on every committed write.
	Version uint64

	// Slot is the slot of the last commit that wrote the record.
	Slot uint64

	Data []byte
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	cp := *r
	cp.Data = append([]byte(nil), r.Data...)
	return &cp
}

// Account returns the owner and data of the record.
func (r *Record) Account() types.Account {
	return types.Account{Owner: r.Owner, Data: append([]byte(nil), r.Data...)}
}

// Entry is an address paired with its record.
type Entry struct {
	Address types.Pubkey
	Record  *Record
}

// Ledger owns a Store and the commit lock.
type Ledger struct {
	store  Store
	mu     sync.Mutex
	slot   atomic.Uint64
	logger *slog.Logger
}

// New opens a ledger on store, resuming the slot counter if present.
func New(store Store, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Ledger{store: store, logger: logger.With("component", "ledger")}

	raw, err := store.Get(keySlot)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return nil, cerrors.Storage("read slot", err)
	case len(raw) == 8:
		l.slot.Store(binary.LittleEndian.Uint64(raw))
	}
	return l, nil
}

// NewMemory returns a ledger over a fresh MemStore.
func NewMemory() *Ledger {
	l, _ := New(NewMemStore(), nil)
	return l
}

// Slot returns the slot of the last commit.
func (l *Ledger) Slot() uint64 {
	return l.slot.Load()
}

// Get returns the committed record at addr.
func (l *Ledger) Get(addr types.Pubkey) (*Record, error) {
	rec, err := l.load(addr)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, cerrors.AccountNotFound("account", addr.String())
	}
	return rec, nil
}

// Exists reports whether a committed record exists at addr.
func (l *Ledger) Exists(addr types.Pubkey) (bool, error) {
	ok, err := l.store.Has(accountKey(addr))
	if err != nil {
		return false, cerrors.Storage("has account", err)
	}
	return ok, nil
}

// AccountsByOwner returns every committed record owned by owner.
func (l *Ledger) AccountsByOwner(owner types.Pubkey) ([]Entry, error) {
	var (
		out    []Entry
		decErr error
	)
	err := l.store.Iterate(prefixAccount, func(key, value []byte) bool {
		rec, err := decodeRecord(value)
		if err != nil {
			decErr = err
			return false
		}
		if rec.Owner.Equals(owner) {
			var addr types.Pubkey
			copy(addr[:], key[len(prefixAccount):])
			out = append(out, Entry{Address: addr, Record: rec})
		}
		return true
	})
	if err != nil {
		return nil, cerrors.Storage("iterate accounts", err)
	}
	if decErr != nil {
		return nil, decErr
	}
	return out, nil
}

// SignatureSlot returns the slot a transaction signature was committed in.
func (l *Ledger) SignatureSlot(sig types.Signature) (uint64, bool, error) {
	raw, err := l.store.Get(signatureKey(sig))
	if errors.Is(err, ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, cerrors.Storage("read signature", err)
	}
	if len(raw) != 8 {
		return 0, false, cerrors.ErrInvalidAccountData
	}
	return binary.LittleEndian.Uint64(raw), true, nil
}

// Close closes the underlying store.
func (l *Ledger) Close() error {
	return l.store.Close()
}

// Begin opens a transaction.
func (l *Ledger) Begin() *Tx {
	return &Tx{
		ledger: l,
		reads:  make(map[types.Pubkey]uint64),
		cache:  make(map[types.Pubkey]*Record),
		writes: make(map[types.Pubkey]*Record),
	}
}

func (l *Ledger) load(addr types.Pubkey) (*Record, error) {
	raw, err := l.store.Get(accountKey(addr))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, cerrors.Storage("read account", err)
	}
	return decodeRecord(raw)
}

func (l *Ledger) version(addr types.Pubkey) (uint64, error) {
	rec, err := l.load(addr)
	if err != nil || rec == nil {
		return 0, err
	}
	return rec.Version, nil
}

func accountKey(addr types.Pubkey) []byte {
	return append(append([]byte(nil), prefixAccount...), addr[:]...)
}

func signatureKey(sig types.Signature) []byte {
	return append(append([]byte(nil), prefixSignature...), sig[:]...)
}

func encodeRecord(rec *Record) ([]byte, error) {
	data, err := bin.MarshalBorsh(rec)
	if err != nil {
		return nil, cerrors.ErrInvalidAccountData.WithCause(err)
	}
	return data, nil
}

func decodeRecord(raw []byte) (*Record, error) {
	var rec Record
	if err := bin.UnmarshalBorsh(&rec, raw); err != nil {
		return nil, cerrors.ErrInvalidAccountData.WithCause(err)
	}
	return &rec, nil
}

func encodeUint64(v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return buf[:]
}
