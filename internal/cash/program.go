// Package cash implements the collateralized lending program.
//
// Tier 1 locks a base asset into a pool and mints two claims against it: a
// receipt for the principal, held in a slot owned by the lender's derived
// authority, and cash worth 100/120 of the principal, held by the lender.
// Tier 2 locks cash into a cash pool for scash, one to one.
//
// Every working account is derived from the pool's seed scheme and checked
// against the address the caller presents before anything is written. The
// program never holds keys: custody balances and mints answer to a pool
// authority it signs for by re-deriving that authority's seeds.
package cash

import (
	"log/slog"

	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/go-cash/internal/authority"
	cerrors "github.com/lugondev/go-cash/internal/errors"
	"github.com/lugondev/go-cash/internal/metrics"
	"github.com/lugondev/go-cash/internal/runtime"
	"github.com/lugondev/go-cash/internal/state"
	"github.com/lugondev/go-cash/internal/token"
	"github.com/lugondev/go-cash/pkg/types"
)

// DefaultProgramID is the address the program is registered under unless
// configured otherwise.
var DefaultProgramID = solana.MustPublicKeyFromBase58("EYCdeLWKH7F5JejES1aPvGBqFaT9S1e2roEThq1y9FAR")

// MintDecimals is the precision of receipt, cash and scash mints.
const MintDecimals = 6

// Program is the lending program.
type Program struct {
	id      types.Pubkey
	deriver *authority.Deriver
	logger  *slog.Logger
	metrics *metrics.Collection

	rejectExistingLending bool
}

// Option configures a Program.
type Option func(*Program)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Program) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics sets the metrics collection.
func WithMetrics(m *metrics.Collection) Option {
	return func(p *Program) { p.metrics = metrics.OrNoop(m) }
}

// WithRejectExistingLending controls whether lend fails with
// ErrExistingLending while the lender's receipt slot still holds principal.
// It is on by default. With it off a second lend adds to the slot, but redeem
// burns the cash of the summed principal, which can exceed what the separate
// lends minted: six lends of 1 mint no cash, and their redeem needs 5.
func WithRejectExistingLending(reject bool) Option {
	return func(p *Program) { p.rejectExistingLending = reject }
}

// New returns the program registered under programID.
func New(programID types.Pubkey, opts ...Option) *Program {
	p := &Program{
		id:      programID,
		deriver: authority.NewDeriver(programID),
		logger:  slog.Default(),
		metrics: metrics.NewCollection(),

		rejectExistingLending: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("program", "cash")
	return p
}

func (p *Program) ID() types.Pubkey { return p.id }
func (p *Program) Name() string     { return "cash" }

// Deriver returns the program's address deriver.
func (p *Program) Deriver() *authority.Deriver { return p.deriver }

// Process dispatches one instruction by its discriminator.
func (p *Program) Process(ic *runtime.InvokeContext) error {
	decoded, err := DecodeInstruction(&types.Instruction{
		ProgramID: p.id,
		Accounts:  ic.Accounts(),
		Data:      ic.Data(),
	})
	if err != nil {
		return err
	}
	ic.Log("Instruction: %s", decoded.Name)

	switch decoded.Name {
	case InstructionCreateAmm:
		err = p.createAmm(ic, decoded.Args.(*CreateAmmArgs))
	case InstructionCreatePool:
		err = p.createPool(ic)
	case InstructionCreateCashPool:
		err = p.createCashPool(ic)
	case InstructionLend:
		err = p.lend(ic, decoded.Args.(*AmountArgs).Amount)
	case InstructionRedeem:
		err = p.redeem(ic)
	case InstructionLendCash:
		err = p.lendCash(ic, decoded.Args.(*AmountArgs).Amount)
	case InstructionRedeemCash:
		err = p.redeemCash(ic)
	default:
		err = cerrors.ErrInvalidInstruction
	}

	if err != nil {
		p.logger.Debug("instruction failed",
			"instruction", decoded.Name,
			"kind", string(cerrors.KindOf(err)),
			"error", err,
		)
		_ = p.metrics.IncrementCounter(ic.Context(), metrics.MetricInstructionErrors, 1)
	}
	return err
}

func (p *Program) loadAmm(ic *runtime.InvokeContext, addr types.Pubkey) (*state.Amm, error) {
	rec, err := ic.Get(addr)
	if err != nil {
		return nil, err
	}
	if !rec.Owner.Equals(p.id) {
		return nil, cerrors.ErrIllegalOwner.WithDetails(map[string]any{"account": "amm", "address": addr.String()})
	}
	return state.DecodeAmm(rec.Data)
}

func (p *Program) loadPool(ic *runtime.InvokeContext, addr types.Pubkey, want state.PoolType) (*state.Pool, error) {
	rec, err := ic.Get(addr)
	if err != nil {
		return nil, err
	}
	if !rec.Owner.Equals(p.id) {
		return nil, cerrors.ErrIllegalOwner.WithDetails(map[string]any{"account": "pool", "address": addr.String()})
	}
	pool, err := state.DecodePool(rec.Data)
	if err != nil {
		return nil, err
	}
	if pool.PoolType != want {
		return nil, cerrors.ErrInvalidAccountData.WithDetails(map[string]any{
			"pool_type": pool.PoolType.String(),
			"want":      want.String(),
		})
	}
	return pool, nil
}

// requireAdmin checks that the presented admin key is the AMM's admin. The
// admin does not have to sign; the transaction is paid by payer.
func requireAdmin(ic *runtime.InvokeContext, amm *state.Amm, admin, payer types.Pubkey) error {
	if !amm.Admin.Equals(admin) {
		return cerrors.ErrUnauthorized.WithDetails(map[string]any{
			"role":      "admin",
			"expected":  amm.Admin.String(),
			"presented": admin.String(),
		})
	}
	return requireSigner(ic, "payer", payer)
}

func requireSigner(ic *runtime.InvokeContext, what string, addr types.Pubkey) error {
	if !ic.IsSigner(addr) {
		return cerrors.ErrMissingSignature.WithDetails(map[string]any{"account": what, "address": addr.String()})
	}
	return nil
}

// tokenAccount reads a token account passed to the instruction.
func tokenAccount(ic *runtime.InvokeContext, addr types.Pubkey) (*token.Account, error) {
	rec, err := ic.Get(addr)
	if err != nil {
		return nil, err
	}
	if !rec.Owner.Equals(token.ProgramID) {
		return nil, cerrors.ErrIllegalOwner.WithDetails(map[string]any{"account": "token_account", "address": addr.String()})
	}
	return token.DecodeAccount(rec.Data)
}

// requireMint checks that addr holds an initialized token mint.
func requireMint(ic *runtime.InvokeContext, what string, addr types.Pubkey) error {
	rec, err := ic.Get(addr)
	if err != nil {
		if cerrors.Is(err, cerrors.ErrAccountNotFound) {
			return cerrors.AccountNotFound(what, addr.String())
		}
		return err
	}
	if !rec.Owner.Equals(token.ProgramID) {
		return cerrors.ErrIllegalOwner.WithDetails(map[string]any{"account": what, "address": addr.String()})
	}
	_, err = token.DecodeMint(rec.Data)
	return err
}

// ensureTokenAccount creates owner's associated account for mint at addr when
// it does not exist yet.
func ensureTokenAccount(ic *runtime.InvokeContext, addr, mint, owner types.Pubkey) error {
	ok, err := ic.Exists(addr)
	if err != nil || ok {
		return err
	}
	return ic.Invoke(token.NewInitializeAccountInstruction(addr, mint, owner))
}

// ensureCustody creates the pool authority's custody account for mint at addr.
// An account someone else already created there is accepted while it is empty
// and unlocked.
func ensureCustody(ic *runtime.InvokeContext, what string, addr, mint, poolAuthority types.Pubkey) error {
	ok, err := ic.Exists(addr)
	if err != nil {
		return err
	}
	if !ok {
		return ic.Invoke(token.NewInitializeAccountInstruction(addr, mint, poolAuthority))
	}
	acct, err := tokenAccount(ic, addr)
	if err != nil {
		return err
	}
	if !acct.Owner.Equals(poolAuthority) || !acct.Mint.Equals(mint) || acct.Amount != 0 || acct.Locked {
		return cerrors.ErrInvalidAccountData.WithDetails(map[string]any{
			"account": what,
			"address": addr.String(),
			"owner":   acct.Owner.String(),
			"amount":  acct.Amount,
			"locked":  acct.Locked,
		})
	}
	return nil
}

// mintAndLock mints amount into dest and locks it, signing as the pool
// authority.
func mintAndLock(ic *runtime.InvokeContext, mint, dest types.Pubkey, poolAuthority authority.Derived, amount uint64) error {
	seeds := poolAuthority.SignerSeeds()
	if err := ic.Invoke(token.NewMintToInstruction(mint, dest, poolAuthority.Address, amount), seeds); err != nil {
		return err
	}
	return ic.Invoke(token.NewFreezeAccountInstruction(dest, mint, poolAuthority.Address), seeds)
}
