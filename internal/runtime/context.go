package runtime

import (
	"context"
	"fmt"

	"github.com/lugondev/go-cash/internal/authority"
	cerrors "github.com/lugondev/go-cash/internal/errors"
	"github.com/lugondev/go-cash/internal/ledger"
	plog "github.com/lugondev/go-cash/pkg/log"
	"github.com/lugondev/go-cash/pkg/types"
)

// InvokeContext is the view a program gets of the transaction while it
// processes one instruction. A program can only read accounts passed to the
// instruction, can only write accounts it owns and that were passed as
// writable, and can only sign for accounts through its frame's signer set.
type InvokeContext struct {
	ctx     context.Context
	runtime *Runtime
	tx      *ledger.Tx
	exec    *execution
	program Program
	ix      *types.Instruction
	depth   int

	signers  map[types.Pubkey]struct{}
	writable map[types.Pubkey]struct{}
}

// Context returns the request context.
func (ic *InvokeContext) Context() context.Context {
	return ic.ctx
}

// ProgramID returns the id of the executing program.
func (ic *InvokeContext) ProgramID() types.Pubkey {
	return ic.program.ID()
}

// Depth returns the invocation depth, 1 for top-level instructions.
func (ic *InvokeContext) Depth() int {
	return ic.depth
}

// Data returns the instruction data.
func (ic *InvokeContext) Data() []byte {
	return ic.ix.Data
}

// Accounts returns the instruction's account list.
func (ic *InvokeContext) Accounts() []types.AccountMeta {
	return ic.ix.Accounts
}

// Account returns the i-th account of the instruction.
func (ic *InvokeContext) Account(i int) (types.AccountMeta, error) {
	if i < 0 || i >= len(ic.ix.Accounts) {
		return types.AccountMeta{}, cerrors.ErrNotEnoughAccounts.WithDetails(map[string]any{
			"index": i,
			"count": len(ic.ix.Accounts),
		})
	}
	return ic.ix.Accounts[i], nil
}

// IsSigner reports whether addr has signed this instruction, either as a
// transaction signer or through a calling program's seeds.
func (ic *InvokeContext) IsSigner(addr types.Pubkey) bool {
	_, ok := ic.signers[addr]
	return ok
}

// IsWritable reports whether addr was passed as writable.
func (ic *InvokeContext) IsWritable(addr types.Pubkey) bool {
	_, ok := ic.writable[addr]
	return ok
}

// Get loads an account passed to the instruction.
func (ic *InvokeContext) Get(addr types.Pubkey) (*ledger.Record, error) {
	if err := ic.requirePassed(addr); err != nil {
		return nil, err
	}
	return ic.tx.Get(addr)
}

// Exists reports whether an account passed to the instruction exists.
func (ic *InvokeContext) Exists(addr types.Pubkey) (bool, error) {
	if err := ic.requirePassed(addr); err != nil {
		return false, err
	}
	return ic.tx.Exists(addr)
}

// Create allocates a new account owned by the executing program.
func (ic *InvokeContext) Create(addr types.Pubkey, data []byte) error {
	if err := ic.requireWritable(addr); err != nil {
		return err
	}
	return ic.tx.Create(addr, ic.program.ID(), data)
}

// Store replaces the data of an account owned by the executing program.
func (ic *InvokeContext) Store(addr types.Pubkey, data []byte) error {
	if err := ic.requireWritable(addr); err != nil {
		return err
	}
	rec, err := ic.tx.Get(addr)
	if err != nil {
		return err
	}
	if !rec.Owner.Equals(ic.program.ID()) {
		return cerrors.ErrIllegalOwner.WithDetails(map[string]any{
			"address": addr.String(),
			"owner":   rec.Owner.String(),
			"program": ic.program.ID().String(),
		})
	}
	return ic.tx.Put(addr, data)
}

// Log records a "Program log:" line.
func (ic *InvokeContext) Log(format string, args ...any) {
	ic.exec.append(plog.FormatLog(fmt.Sprintf(format, args...)))
}

// Emit records a "Program data:" line carrying an encoded event.
func (ic *InvokeContext) Emit(data []byte) {
	ic.exec.append(plog.FormatData(data))
}

// Invoke calls another program. Every account the callee needs must have
// been passed to the current instruction. An account flagged as signer in ix
// must either be a signer of the current frame or the program address the
// current program derives from one of signerSeeds (bump included).
func (ic *InvokeContext) Invoke(ix types.Instruction, signerSeeds ...[][]byte) error {
	if ic.depth >= ic.runtime.maxDepth {
		return cerrors.ErrCallDepthExceeded.WithDetails(map[string]any{"depth": ic.depth})
	}

	callee, ok := ic.runtime.Program(ix.ProgramID)
	if !ok {
		return cerrors.ErrUnknownProgram.WithDetails(map[string]any{"program": ix.ProgramID.String()})
	}

	pdaSigners := make(map[types.Pubkey]struct{}, len(signerSeeds))
	for _, seeds := range signerSeeds {
		addr, err := authority.CreateAddress(seeds, ic.program.ID())
		if err != nil {
			return err
		}
		pdaSigners[addr] = struct{}{}
	}

	frame := &InvokeContext{
		ctx:      ic.ctx,
		runtime:  ic.runtime,
		tx:       ic.tx,
		exec:     ic.exec,
		program:  callee,
		ix:       &ix,
		depth:    ic.depth + 1,
		signers:  make(map[types.Pubkey]struct{}),
		writable: make(map[types.Pubkey]struct{}),
	}
	for _, meta := range ix.Accounts {
		if err := ic.requirePassed(meta.Pubkey); err != nil {
			return err
		}
		if meta.IsWritable {
			if !ic.IsWritable(meta.Pubkey) {
				return cerrors.ErrReadonlyAccount.WithDetails(map[string]any{"address": meta.Pubkey.String()})
			}
			frame.writable[meta.Pubkey] = struct{}{}
		}
		if meta.IsSigner {
			_, derived := pdaSigners[meta.Pubkey]
			if !derived && !ic.IsSigner(meta.Pubkey) {
				return cerrors.ErrMissingSignature.WithDetails(map[string]any{
					"address": meta.Pubkey.String(),
					"callee":  callee.Name(),
				})
			}
			frame.signers[meta.Pubkey] = struct{}{}
		}
	}

	return ic.runtime.process(frame)
}

func (ic *InvokeContext) requirePassed(addr types.Pubkey) error {
	for _, meta := range ic.ix.Accounts {
		if meta.Pubkey.Equals(addr) {
			return nil
		}
	}
	return cerrors.ErrAccountNotPassed.WithDetails(map[string]any{"address": addr.String()})
}

func (ic *InvokeContext) requireWritable(addr types.Pubkey) error {
	if err := ic.requirePassed(addr); err != nil {
		return err
	}
	if !ic.IsWritable(addr) {
		return cerrors.ErrReadonlyAccount.WithDetails(map[string]any{"address": addr.String()})
	}
	return nil
}
