package core

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Float returns the amount as a float64 for display purposes.
// Note: Use cents (or Decimal) for calculations to avoid floating-point drift.
func (m Money) Float() float64 {
	return float64(m.Cents) / 100.0
}

// Decimal returns the amount as an exact decimal with two places.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// MoneyFromDecimal rounds d half-away-from-zero to cents.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Round(2).Shift(2).IntPart()}
}

// String renders the amount with two decimals, e.g. "12.30".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON encodes the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or numeric string. Negative amounts are
// rejected; zero is allowed here and left to Validate.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(data) == 0 || string(data) == "null" {
		m.Cents = 0
		return nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(string(data), ",", "."))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, data)
	}
	if d.IsNegative() {
		return ErrInvalidAmount
	}
	*m = MoneyFromDecimal(d)
	return nil
}
