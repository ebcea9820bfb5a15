package math

import (
	"errors"
	"fmt"
	stdmath "math"

	"github.com/shopspring/decimal"
)

// DecimalConfig defines fixed-point precision
type DecimalConfig struct {
	DecimalPrecision int32 // Number of decimal places
	Scale            int64 // 10^DecimalPrecision
}

// CollateralConfig is the precision for collateral amounts and share
// holdings. One share always locks exactly one unit of collateral, so
// both sides of a split share a single scale.
var CollateralConfig = DecimalConfig{DecimalPrecision: 6, Scale: 1_000_000}

// ErrOverflow is returned when a checked operation leaves int64 range.
var ErrOverflow = errors.New("int64 overflow")

// CheckedAdd performs a + b, failing instead of wrapping around.
func CheckedAdd(a, b int64) (int64, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, a, b)
	}
	return sum, nil
}

// CheckedSub performs a - b, failing instead of wrapping around.
func CheckedSub(a, b int64) (int64, error) {
	if b == stdmath.MinInt64 {
		return 0, fmt.Errorf("%w: %d - %d", ErrOverflow, a, b)
	}
	return CheckedAdd(a, -b)
}

// Min64 returns the smaller of two int64 values.
func Min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// ParseAmount converts a human-readable decimal string ("40.5") into a
// fixed-point collateral amount. Fails on malformed input, on more
// fractional digits than the collateral scale carries, and on values
// outside int64 range.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return FromDecimal(d)
}

// FromDecimal converts a decimal into a fixed-point collateral amount.
func FromDecimal(d decimal.Decimal) (int64, error) {
	scaled := d.Shift(CollateralConfig.DecimalPrecision)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("amount %s exceeds %d decimal places",
			d.String(), CollateralConfig.DecimalPrecision)
	}
	if !scaled.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: amount %s", ErrOverflow, d.String())
	}
	return scaled.IntPart(), nil
}

// FormatAmount renders a fixed-point collateral amount as a decimal string.
func FormatAmount(v int64) string {
	return decimal.New(v, -CollateralConfig.DecimalPrecision).String()
}
