// Package memory is an in-process journal backend for tests and single-run
// tools. Records are copied on the way in and out.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/lugondev/go-cash/internal/config"
	"github.com/lugondev/go-cash/internal/storage"
)

func init() {
	storage.Register(storage.DatabaseTypeMemory, func(context.Context, *config.DatabaseConfig) (storage.Repository, error) {
		return NewMemoryRepository(), nil
	})
}

type MemoryRepository struct {
	mu           sync.RWMutex
	accounts     map[string]*storage.AccountModel
	transactions map[string]*storage.TransactionModel
	instructions map[string]*storage.InstructionModel
	events       map[string]*storage.EventModel
	closed       bool
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts:     make(map[string]*storage.AccountModel),
		transactions: make(map[string]*storage.TransactionModel),
		instructions: make(map[string]*storage.InstructionModel),
		events:       make(map[string]*storage.EventModel),
	}
}

func (r *MemoryRepository) Accounts() storage.AccountRepository {
	return &memoryAccountRepository{r}
}

func (r *MemoryRepository) Transactions() storage.TransactionRepository {
	return &memoryTransactionRepository{r}
}

func (r *MemoryRepository) Instructions() storage.InstructionRepository {
	return &memoryInstructionRepository{r}
}

func (r *MemoryRepository) Events() storage.EventRepository {
	return &memoryEventRepository{r}
}

func (r *MemoryRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *MemoryRepository) Ping(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return errClosed
	}
	return ctx.Err()
}

type memoryError string

func (e memoryError) Error() string { return string(e) }

const errClosed = memoryError("memory repository closed")

// page applies offset and limit to sorted results. A non-positive limit
// returns everything after offset.
func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func collect[T any](m map[string]*T, match func(*T) bool) []*T {
	var out []*T
	for _, v := range m {
		if match(v) {
			c := *v
			out = append(out, &c)
		}
	}
	return out
}

type memoryAccountRepository struct{ r *MemoryRepository }

func (a *memoryAccountRepository) Save(ctx context.Context, account *storage.AccountModel) error {
	a.r.mu.Lock()
	defer a.r.mu.Unlock()
	a.saveLocked(account)
	return nil
}

func (a *memoryAccountRepository) saveLocked(account *storage.AccountModel) {
	c := *account
	c.Data = slices.Clone(account.Data)
	if prev, ok := a.r.accounts[c.Pubkey]; ok {
		if prev.Version > c.Version {
			return
		}
		c.CreatedAt = prev.CreatedAt
	}
	a.r.accounts[c.Pubkey] = &c
}

func (a *memoryAccountRepository) SaveBatch(ctx context.Context, accounts []*storage.AccountModel) error {
	a.r.mu.Lock()
	defer a.r.mu.Unlock()
	for _, account := range accounts {
		a.saveLocked(account)
	}
	return nil
}

func (a *memoryAccountRepository) FindByPubkey(ctx context.Context, pubkey string) (*storage.AccountModel, error) {
	a.r.mu.RLock()
	defer a.r.mu.RUnlock()
	acc, ok := a.r.accounts[pubkey]
	if !ok {
		return nil, nil
	}
	c := *acc
	return &c, nil
}

func (a *memoryAccountRepository) FindByOwner(ctx context.Context, owner string, limit int, offset int) ([]*storage.AccountModel, error) {
	return a.find(func(m *storage.AccountModel) bool { return m.Owner == owner }, limit, offset), nil
}

func (a *memoryAccountRepository) FindByKind(ctx context.Context, kind string, limit int, offset int) ([]*storage.AccountModel, error) {
	return a.find(func(m *storage.AccountModel) bool { return m.Kind == kind }, limit, offset), nil
}

func (a *memoryAccountRepository) find(match func(*storage.AccountModel) bool, limit, offset int) []*storage.AccountModel {
	a.r.mu.RLock()
	defer a.r.mu.RUnlock()
	out := collect(a.r.accounts, match)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Slot != out[j].Slot {
			return out[i].Slot > out[j].Slot
		}
		return out[i].Pubkey < out[j].Pubkey
	})
	return page(out, limit, offset)
}

type memoryTransactionRepository struct{ r *MemoryRepository }

func (t *memoryTransactionRepository) Save(ctx context.Context, tx *storage.TransactionModel) error {
	return t.SaveBatch(ctx, []*storage.TransactionModel{tx})
}

func (t *memoryTransactionRepository) SaveBatch(ctx context.Context, transactions []*storage.TransactionModel) error {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	for _, tx := range transactions {
		c := *tx
		c.Signers = slices.Clone(tx.Signers)
		c.LogMessages = slices.Clone(tx.LogMessages)
		t.r.transactions[c.Signature] = &c
	}
	return nil
}

func (t *memoryTransactionRepository) FindBySignature(ctx context.Context, signature string) (*storage.TransactionModel, error) {
	t.r.mu.RLock()
	defer t.r.mu.RUnlock()
	tx, ok := t.r.transactions[signature]
	if !ok {
		return nil, nil
	}
	c := *tx
	return &c, nil
}

func (t *memoryTransactionRepository) FindBySlot(ctx context.Context, slot uint64, limit int, offset int) ([]*storage.TransactionModel, error) {
	return t.find(func(m *storage.TransactionModel) bool { return m.Slot == slot }, limit, offset), nil
}

func (t *memoryTransactionRepository) FindBySigner(ctx context.Context, signer string, limit int, offset int) ([]*storage.TransactionModel, error) {
	return t.find(func(m *storage.TransactionModel) bool { return slices.Contains(m.Signers, signer) }, limit, offset), nil
}

func (t *memoryTransactionRepository) FindRecent(ctx context.Context, limit int) ([]*storage.TransactionModel, error) {
	return t.find(func(*storage.TransactionModel) bool { return true }, limit, 0), nil
}

// find orders newest first by slot, then creation time.
func (t *memoryTransactionRepository) find(match func(*storage.TransactionModel) bool, limit, offset int) []*storage.TransactionModel {
	t.r.mu.RLock()
	defer t.r.mu.RUnlock()
	out := collect(t.r.transactions, match)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Slot != out[j].Slot {
			return out[i].Slot > out[j].Slot
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Signature < out[j].Signature
	})
	return page(out, limit, offset)
}

type memoryInstructionRepository struct{ r *MemoryRepository }

func (i *memoryInstructionRepository) Save(ctx context.Context, instruction *storage.InstructionModel) error {
	return i.SaveBatch(ctx, []*storage.InstructionModel{instruction})
}

func (i *memoryInstructionRepository) SaveBatch(ctx context.Context, instructions []*storage.InstructionModel) error {
	i.r.mu.Lock()
	defer i.r.mu.Unlock()
	for _, ix := range instructions {
		c := *ix
		c.Data = slices.Clone(ix.Data)
		c.Accounts = slices.Clone(ix.Accounts)
		i.r.instructions[c.ID] = &c
	}
	return nil
}

func (i *memoryInstructionRepository) FindBySignature(ctx context.Context, signature string) ([]*storage.InstructionModel, error) {
	return i.find(func(m *storage.InstructionModel) bool { return m.Signature == signature }, 0, 0), nil
}

func (i *memoryInstructionRepository) FindByProgramID(ctx context.Context, programID string, limit int, offset int) ([]*storage.InstructionModel, error) {
	return i.find(func(m *storage.InstructionModel) bool { return m.ProgramID == programID }, limit, offset), nil
}

func (i *memoryInstructionRepository) FindByName(ctx context.Context, name string, limit int, offset int) ([]*storage.InstructionModel, error) {
	return i.find(func(m *storage.InstructionModel) bool { return m.Name == name }, limit, offset), nil
}

func (i *memoryInstructionRepository) find(match func(*storage.InstructionModel) bool, limit, offset int) []*storage.InstructionModel {
	i.r.mu.RLock()
	defer i.r.mu.RUnlock()
	out := collect(i.r.instructions, match)
	sort.Slice(out, func(a, b int) bool {
		if out[a].Slot != out[b].Slot {
			return out[a].Slot > out[b].Slot
		}
		if out[a].Signature != out[b].Signature {
			return out[a].Signature < out[b].Signature
		}
		return out[a].InstructionIndex < out[b].InstructionIndex
	})
	return page(out, limit, offset)
}

type memoryEventRepository struct{ r *MemoryRepository }

func (e *memoryEventRepository) Save(ctx context.Context, event *storage.EventModel) error {
	return e.SaveBatch(ctx, []*storage.EventModel{event})
}

func (e *memoryEventRepository) SaveBatch(ctx context.Context, events []*storage.EventModel) error {
	e.r.mu.Lock()
	defer e.r.mu.Unlock()
	for _, ev := range events {
		c := *ev
		c.Data = make(map[string]any, len(ev.Data))
		for k, v := range ev.Data {
			c.Data[k] = v
		}
		e.r.events[c.ID] = &c
	}
	return nil
}

func (e *memoryEventRepository) FindBySignature(ctx context.Context, signature string) ([]*storage.EventModel, error) {
	return e.find(func(m *storage.EventModel) bool { return m.Signature == signature }, 0, 0), nil
}

func (e *memoryEventRepository) FindByProgramID(ctx context.Context, programID string, limit int, offset int) ([]*storage.EventModel, error) {
	return e.find(func(m *storage.EventModel) bool { return m.ProgramID == programID }, limit, offset), nil
}

func (e *memoryEventRepository) FindByEventName(ctx context.Context, eventName string, limit int, offset int) ([]*storage.EventModel, error) {
	return e.find(func(m *storage.EventModel) bool { return m.EventName == eventName }, limit, offset), nil
}

func (e *memoryEventRepository) FindBySlot(ctx context.Context, slot uint64, limit int, offset int) ([]*storage.EventModel, error) {
	return e.find(func(m *storage.EventModel) bool { return m.Slot == slot }, limit, offset), nil
}

func (e *memoryEventRepository) find(match func(*storage.EventModel) bool, limit, offset int) []*storage.EventModel {
	e.r.mu.RLock()
	defer e.r.mu.RUnlock()
	out := collect(e.r.events, match)
	sort.Slice(out, func(a, b int) bool {
		if out[a].Slot != out[b].Slot {
			return out[a].Slot > out[b].Slot
		}
		if out[a].Signature != out[b].Signature {
			return out[a].Signature < out[b].Signature
		}
		return out[a].EventIndex < out[b].EventIndex
	})
	return page(out, limit, offset)
}
