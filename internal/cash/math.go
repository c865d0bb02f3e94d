package cash

import (
	"math/bits"

	cerrors "github.com/lugondev/go-cash/internal/errors"
)

// Collateral ratio: every 120 units of principal back 100 units of cash.
const (
	RatioNumerator   = 100
	RatioDenominator = 120
)

// CashForPrincipal returns floor(principal*100/120). It fails with
// ErrCalculationError when principal*100 overflows uint64.
func CashForPrincipal(principal uint64) (uint64, error) {
	hi, lo := bits.Mul64(principal, RatioNumerator)
	if hi != 0 {
		return 0, cerrors.ErrCalculationError.WithDetails(map[string]any{"principal": principal})
	}
	return lo / RatioDenominator, nil
}
