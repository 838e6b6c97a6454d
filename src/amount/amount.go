// Package amount converts between human decimal amounts and exact
// smallest-unit integers.
package amount

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for empty, zero, negative, non-numeric or
// over-precise amounts.
var ErrInvalidAmount = errors.New("invalid amount")

// ToSmallestUnit converts a decimal string like "10.5" into the integer value
// in the smallest unit of a token with the given decimals.
func ToSmallestUnit(s string, decimals int32) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	if decimals < 0 {
		return nil, fmt.Errorf("%w: negative decimals %d", ErrInvalidAmount, decimals)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.Sign() <= 0 {
		return nil, fmt.Errorf("%w: must be positive, got %q", ErrInvalidAmount, s)
	}

	shifted := d.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("%w: more than %d fractional digits in %q", ErrInvalidAmount, decimals, s)
	}
	return shifted.BigInt(), nil
}

// FromSmallestUnit renders v as an exact decimal string, trailing zeros trimmed.
func FromSmallestUnit(v *big.Int, decimals int32) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -decimals).String()
}

// Format renders v for display with thousands separators and exactly
// fractionDigits fractional digits. Extra digits are truncated.
func Format(v *big.Int, decimals int32, fractionDigits int) string {
	if v == nil {
		v = new(big.Int)
	}
	if fractionDigits < 0 {
		fractionDigits = 0
	}

	d := decimal.NewFromBigInt(v, -decimals).Truncate(int32(fractionDigits))
	sign := ""
	if d.Sign() < 0 {
		sign = "-"
		d = d.Abs()
	}

	fixed := d.StringFixed(int32(fractionDigits))
	intPart, frac, _ := strings.Cut(fixed, ".")

	whole, ok := new(big.Int).SetString(intPart, 10)
	if !ok {
		whole = new(big.Int)
	}
	out := sign + humanize.BigComma(whole)
	if fractionDigits > 0 {
		out += "." + frac
	}
	return out
}

// FormatString parses a smallest-unit decimal string and formats it. Invalid
// input renders as "0".
func FormatString(smallest string, decimals int32, fractionDigits int) string {
	v, ok := new(big.Int).SetString(strings.TrimSpace(smallest), 10)
	if !ok {
		v = new(big.Int)
	}
	return Format(v, decimals, fractionDigits)
}

// USDValue multiplies a smallest-unit value by a unit price and returns the
// result rounded to cents.
func USDValue(v *big.Int, decimals int32, price decimal.Decimal) string {
	if v == nil {
		return "0.00"
	}
	return decimal.NewFromBigInt(v, -decimals).Mul(price).StringFixed(2)
}
