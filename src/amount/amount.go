// Package amount converts between human decimal strings and integer
// smallest-unit values. All on-chain amounts travel as *big.Int; the decimal
// form exists only at input/output boundaries.
package amount

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/chainfund/chainfund/src/faults"
)

// EtherDecimals is the scaling factor for the native currency.
const EtherDecimals int32 = 18

// ToUnits parses a positive decimal string into smallest units.
func ToUnits(s string, decimals int32) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, faults.New(faults.Validation, "amount is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, faults.New(faults.Validation, "amount %q is not a number", s)
	}
	if d.Sign() <= 0 {
		return nil, faults.New(faults.Validation, "amount must be positive")
	}
	shifted := d.Shift(decimals)
	if !shifted.IsInteger() {
		return nil, faults.New(faults.Validation, "amount %s has more than %d decimal places", s, decimals)
	}
	return shifted.BigInt(), nil
}

// FromUnits renders smallest units as a decimal string with trailing zeros
// trimmed. A nil value renders as "0".
func FromUnits(v *big.Int, decimals int32) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -decimals).String()
}

// BasisPoints parses a percentage string ("5.25") into integer basis points.
// 10000 basis points = 100%.
func BasisPoints(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, faults.New(faults.Validation, "rate is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, faults.New(faults.Validation, "rate %q is not a number", s)
	}
	if d.Sign() < 0 {
		return nil, faults.New(faults.Validation, "rate must not be negative")
	}
	bps := d.Shift(2)
	if !bps.IsInteger() {
		return nil, faults.New(faults.Validation, "rate %s is finer than a basis point", s)
	}
	return bps.BigInt(), nil
}

// PercentFromBasisPoints renders basis points as a percentage string.
func PercentFromBasisPoints(bps *big.Int) string {
	if bps == nil {
		return "0"
	}
	return decimal.NewFromBigInt(bps, -2).String()
}
