package cash

import (
	"github.com/lugondev/go-cash/internal/runtime"
	"github.com/lugondev/go-cash/internal/state"
)

// createAmm records a new AMM at derive([id]). The admin account becomes the
// only key allowed to create pools under it.
func (p *Program) createAmm(ic *runtime.InvokeContext, args *CreateAmmArgs) error {
	accts, err := parseCreateAmmAccounts(ic)
	if err != nil {
		return err
	}
	if err := requireSigner(ic, "payer", accts.Payer); err != nil {
		return err
	}

	derived, err := p.deriver.Amm(args.ID)
	if err != nil {
		return err
	}
	if err := verifyAll(check{"amm", accts.Amm, derived}); err != nil {
		return err
	}

	amm := &state.Amm{
		ID:                    args.ID,
		Admin:                 accts.Admin,
		LiquidityFee:          args.LiquidityFee,
		ProtocolFeePercentage: args.ProtocolFeePercentage,
	}
	if err := amm.Validate(); err != nil {
		return err
	}
	data, err := amm.Encode()
	if err != nil {
		return err
	}
	if err := ic.Create(accts.Amm, data); err != nil {
		return err
	}

	return emit(ic, EventAmmCreated, &AmmCreatedEvent{
		Amm:                   accts.Amm,
		ID:                    args.ID,
		Admin:                 accts.Admin,
		LiquidityFee:          args.LiquidityFee,
		ProtocolFeePercentage: args.ProtocolFeePercentage,
	})
}
