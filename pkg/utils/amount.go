package utils

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// FormatAmount renders a raw token amount in UI units, e.g. 1500000 with 6
// decimals becomes "1.500000".
func FormatAmount(raw uint64, decimals uint8) string {
	d := decimal.NewFromBigInt(new(big.Int).SetUint64(raw), -int32(decimals))
	return d.StringFixed(int32(decimals))
}

// ParseAmount converts a UI amount string into raw base units. Amounts with
// more fractional digits than decimals, negative amounts and amounts that do
// not fit in a uint64 are rejected.
func ParseAmount(s string, decimals uint8) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("invalid amount %q: negative", s)
	}
	raw := d.Shift(int32(decimals))
	if !raw.Equal(raw.Truncate(0)) {
		return 0, fmt.Errorf("invalid amount %q: more than %d decimal places", s, decimals)
	}
	bi := raw.BigInt()
	if !bi.IsUint64() {
		return 0, fmt.Errorf("invalid amount %q: out of range", s)
	}
	return bi.Uint64(), nil
}
