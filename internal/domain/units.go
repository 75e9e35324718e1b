package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ToRawAmount converts a human-readable amount to the token's smallest-unit
// integer representation as a decimal string. Conversion goes through
// decimal arithmetic so amounts like 0.1 at 18 decimals do not pick up float
// noise.
func ToRawAmount(amount float64, decimals int) string {
	scale := decimal.New(1, int32(decimals))
	return decimal.NewFromFloat(amount).Mul(scale).Truncate(0).String()
}

// FromRawAmount converts a smallest-unit integer string back to a
// human-readable amount.
func FromRawAmount(raw string, decimals int) (float64, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("domain: parse raw amount %q: %w", raw, ErrParse)
	}
	scale := decimal.New(1, int32(decimals))
	f, _ := d.Div(scale).Float64()
	return f, nil
}
