package ledger

import (
	cerrors "github.com/lugondev/go-cash/internal/errors"
	"github.com/lugondev/go-cash/pkg/types"
)

// Change is one account written by a committed transaction.
type Change struct {
	Address types.Pubkey
	Record  *Record
}

// CommitResult describes a committed transaction.
type CommitResult struct {
	Slot    uint64
	Changes []Change
}

// Tx is a transaction-scoped view of the ledger. A Tx is not safe for
// concurrent use.
type Tx struct {
	ledger *Ledger

	// reads maps every address observed to the version seen; 0 means absent.
	reads map[types.Pubkey]uint64
	// cache holds the first read of every address; nil marks absence.
	cache  map[types.Pubkey]*Record
	writes map[types.Pubkey]*Record
	order  []types.Pubkey

	signature *types.Signature
	done      bool
}

// Get returns the account at addr as seen by this transaction.
func (tx *Tx) Get(addr types.Pubkey) (*Record, error) {
	rec, err := tx.lookup(addr)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, cerrors.AccountNotFound("account", addr.String())
	}
	return rec.Clone(), nil
}

// Exists reports whether addr holds an account in this transaction's view.
func (tx *Tx) Exists(addr types.Pubkey) (bool, error) {
	rec, err := tx.lookup(addr)
	if err != nil {
		return false, err
	}
	return rec != nil, nil
}

// Create allocates a new account. It fails with ErrAccountExists when addr is
// already taken, so a second creation can never overwrite the first.
func (tx *Tx) Create(addr, owner types.Pubkey, data []byte) error {
	if tx.done {
		return cerrors.ErrTransactionClosed
	}
	rec, err := tx.lookup(addr)
	if err != nil {
		return err
	}
	if rec != nil {
		return cerrors.ErrAccountExists.WithDetails(map[string]any{"address": addr.String()})
	}
	tx.stage(addr, &Record{Owner: owner, Data: append([]byte(nil), data...)})
	return nil
}

// Put replaces the data of an existing account. Ownership checks are the
// caller's responsibility.
func (tx *Tx) Put(addr types.Pubkey, data []byte) error {
	if tx.done {
		return cerrors.ErrTransactionClosed
	}
	rec, err := tx.lookup(addr)
	if err != nil {
		return err
	}
	if rec == nil {
		return cerrors.AccountNotFound("account", addr.String())
	}
	next := rec.Clone()
	next.Data = append([]byte(nil), data...)
	tx.stage(addr, next)
	return nil
}

// SetSignature records the signature the commit is stored under. Commit
// fails with ErrDuplicateTransaction if it was already committed.
func (tx *Tx) SetSignature(sig types.Signature) {
	tx.signature = &sig
}

// Writes returns the number of accounts staged for writing.
func (tx *Tx) Writes() int {
	return len(tx.order)
}

// Commit validates the read set and atomically applies all writes.
func (tx *Tx) Commit() (*CommitResult, error) {
	if tx.done {
		return nil, cerrors.ErrTransactionClosed
	}
	tx.done = true

	l := tx.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	for addr, seen := range tx.reads {
		current, err := l.version(addr)
		if err != nil {
			return nil, err
		}
		if current != seen {
			l.logger.Debug("write conflict", "address", addr.String(), "seen", seen, "current", current)
			return nil, cerrors.ErrWriteConflict.WithDetails(map[string]any{"address": addr.String()})
		}
	}

	if tx.signature != nil {
		ok, err := l.store.Has(signatureKey(*tx.signature))
		if err != nil {
			return nil, cerrors.Storage("has signature", err)
		}
		if ok {
			return nil, cerrors.ErrDuplicateTransaction.WithDetails(map[string]any{"signature": tx.signature.String()})
		}
	}

	slot := l.slot.Load() + 1
	batch := new(Batch)
	changes := make([]Change, 0, len(tx.order))
	for _, addr := range tx.order {
		rec := tx.writes[addr]
		rec.Version = tx.reads[addr] + 1
		rec.Slot = slot
		raw, err := encodeRecord(rec)
		if err != nil {
			return nil, err
		}
		batch.Put(accountKey(addr), raw)
		changes = append(changes, Change{Address: addr, Record: rec.Clone()})
	}
	if tx.signature != nil {
		batch.Put(signatureKey(*tx.signature), encodeUint64(slot))
	}
	batch.Put(keySlot, encodeUint64(slot))

	if err := l.store.Write(batch); err != nil {
		return nil, cerrors.Storage("write batch", err)
	}
	l.slot.Store(slot)
	return &CommitResult{Slot: slot, Changes: changes}, nil
}

// Discard drops all staged writes.
func (tx *Tx) Discard() {
	tx.done = true
	tx.writes = nil
	tx.order = nil
}

func (tx *Tx) lookup(addr types.Pubkey) (*Record, error) {
	if rec, ok := tx.writes[addr]; ok {
		return rec, nil
	}
	if rec, seen := tx.cache[addr]; seen {
		return rec, nil
	}
	rec, err := tx.ledger.load(addr)
	if err != nil {
		return nil, err
	}
	tx.cache[addr] = rec
	if rec == nil {
		tx.reads[addr] = 0
		return nil, nil
	}
	tx.reads[addr] = rec.Version
	return rec, nil
}

func (tx *Tx) stage(addr types.Pubkey, rec *Record) {
	if _, ok := tx.writes[addr]; !ok {
		tx.order = append(tx.order, addr)
	}
	tx.writes[addr] = rec
}
