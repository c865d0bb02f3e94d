package ledger

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/lugondev/go-cash/internal/errors"
)

var (
	ownerA = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	ownerB = solana.MustPublicKeyFromBase58("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
	addr1  = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	addr2  = solana.MustPublicKeyFromBase58("8jN8d8wR6dM4AaBnkvbsWw8vbeVLAvAbZ2t1KBhvtkCj")
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	level, err := OpenLevelStore(t.TempDir())
	require.NoError(t, err)
	return map[string]Store{
		"memory":  NewMemStore(),
		"leveldb": level,
	}
}

func TestCreateAndCommit(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			l, err := New(store, nil)
			require.NoError(t, err)
			defer l.Close()

			tx := l.Begin()
			require.NoError(t, tx.Create(addr1, ownerA, []byte{1, 2, 3}))

			// Writes are invisible until commit.
			ok, err := l.Exists(addr1)
			require.NoError(t, err)
			assert.False(t, ok)

			res, err := tx.Commit()
			require.NoError(t, err)
			assert.Equal(t, uint64(1), res.Slot)
			require.Len(t, res.Changes, 1)

			rec, err := l.Get(addr1)
			require.NoError(t, err)
			assert.Equal(t, ownerA, rec.Owner)
			assert.Equal(t, uint64(1), rec.Version)
			assert.Equal(t, uint64(1), rec.Slot)
			assert.Equal(t, []byte{1, 2, 3}, rec.Data)
			assert.Equal(t, uint64(1), l.Slot())
		})
	}
}

func TestCreateRejectsExisting(t *testing.T) {
	l := NewMemory()

	tx := l.Begin()
	require.NoError(t, tx.Create(addr1, ownerA, nil))
	assert.ErrorIs(t, tx.Create(addr1, ownerA, nil), cerrors.ErrAccountExists)
	_, err := tx.Commit()
	require.NoError(t, err)

	tx = l.Begin()
	assert.ErrorIs(t, tx.Create(addr1, ownerB, []byte{9}), cerrors.ErrAccountExists)
	tx.Discard()

	rec, err := l.Get(addr1)
	require.NoError(t, err)
	assert.Equal(t, ownerA, rec.Owner)
}

func TestPutRequiresAccount(t *testing.T) {
	l := NewMemory()
	tx := l.Begin()
	assert.ErrorIs(t, tx.Put(addr1, []byte{1}), cerrors.ErrAccountNotFound)
}

func TestDiscardLeavesNoTrace(t *testing.T) {
	l := NewMemory()
	tx := l.Begin()
	require.NoError(t, tx.Create(addr1, ownerA, nil))
	tx.Discard()

	_, err := tx.Commit()
	assert.ErrorIs(t, err, cerrors.ErrTransactionClosed)

	_, err = l.Get(addr1)
	assert.ErrorIs(t, err, cerrors.ErrAccountNotFound)
	assert.Equal(t, uint64(0), l.Slot())
}

func TestWriteConflict(t *testing.T) {
	l := NewMemory()
	setup := l.Begin()
	require.NoError(t, setup.Create(addr1, ownerA, []byte{0}))
	_, err := setup.Commit()
	require.NoError(t, err)

	first := l.Begin()
	second := l.Begin()

	_, err = first.Get(addr1)
	require.NoError(t, err)
	_, err = second.Get(addr1)
	require.NoError(t, err)

	require.NoError(t, first.Put(addr1, []byte{1}))
	require.NoError(t, second.Put(addr1, []byte{2}))

	_, err = first.Commit()
	require.NoError(t, err)

	_, err = second.Commit()
	require.ErrorIs(t, err, cerrors.ErrWriteConflict)
	assert.Equal(t, cerrors.KindConflict, cerrors.KindOf(err))

	rec, err := l.Get(addr1)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, rec.Data)
	assert.Equal(t, uint64(2), rec.Version)
}

func TestConcurrentCreateConflicts(t *testing.T) {
	l := NewMemory()

	first := l.Begin()
	second := l.Begin()
	require.NoError(t, first.Create(addr1, ownerA, nil))
	require.NoError(t, second.Create(addr1, ownerB, nil))

	_, err := first.Commit()
	require.NoError(t, err)
	_, err = second.Commit()
	assert.ErrorIs(t, err, cerrors.ErrWriteConflict)
}

func TestDisjointTransactionsDoNotConflict(t *testing.T) {
	l := NewMemory()

	first := l.Begin()
	second := l.Begin()
	require.NoError(t, first.Create(addr1, ownerA, nil))
	require.NoError(t, second.Create(addr2, ownerA, nil))

	_, err := first.Commit()
	require.NoError(t, err)
	_, err = second.Commit()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), l.Slot())
}

func TestDuplicateSignature(t *testing.T) {
	l := NewMemory()
	var sig solana.Signature
	sig[0] = 7

	tx := l.Begin()
	tx.SetSignature(sig)
	_, err := tx.Commit()
	require.NoError(t, err)

	slot, ok, err := l.SignatureSlot(sig)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(1), slot)

	tx = l.Begin()
	tx.SetSignature(sig)
	_, err = tx.Commit()
	assert.ErrorIs(t, err, cerrors.ErrDuplicateTransaction)
}

func TestAccountsByOwner(t *testing.T) {
	l := NewMemory()
	tx := l.Begin()
	require.NoError(t, tx.Create(addr1, ownerA, nil))
	require.NoError(t, tx.Create(addr2, ownerB, nil))
	_, err := tx.Commit()
	require.NoError(t, err)

	entries, err := l.AccountsByOwner(ownerA)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, addr1, entries[0].Address)
}

func TestSlotSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := OpenLevelStore(dir)
	require.NoError(t, err)
	l, err := New(store, nil)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := l.Begin().Commit()
		require.NoError(t, err)
	}
	require.NoError(t, l.Close())

	store, err = OpenLevelStore(dir)
	require.NoError(t, err)
	l, err = New(store, nil)
	require.NoError(t, err)
	defer l.Close()
	assert.Equal(t, uint64(3), l.Slot())
}
