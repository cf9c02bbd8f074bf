// Package money holds fixed-point currency amounts. Every amount in the
// pricing pipeline is an integer count of cents; decimal math is only used
// for rates and rounded back to cents once.
package money

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Cents is an amount in the smallest currency unit.
type Cents int64

// ErrOverflow is returned when an amount no longer fits in a Cents.
var ErrOverflow = errors.New("money: amount overflows")

var hundred = decimal.NewFromInt(100)

// FromDecimal converts a dollar amount to cents, rounding half away from zero.
func FromDecimal(d decimal.Decimal) Cents {
	return Cents(d.Mul(hundred).Round(0).IntPart())
}

// FromDollarsString parses a dollar string such as "1061.00".
func FromDollarsString(value string) (Cents, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", value, err)
	}
	return FromDecimal(d), nil
}

// Decimal returns the amount in dollars.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(c)).Shift(-2)
}

// Int64 returns the raw cent count.
func (c Cents) Int64() int64 {
	return int64(c)
}

// MulRate applies a decimal rate and rounds to the nearest cent.
func (c Cents) MulRate(rate decimal.Decimal) Cents {
	return Cents(decimal.NewFromInt(int64(c)).Mul(rate).Round(0).IntPart())
}

// Times multiplies by a whole quantity, failing instead of wrapping around.
func (c Cents) Times(qty int) (Cents, error) {
	if c == 0 || qty == 0 {
		return 0, nil
	}
	q := int64(qty)
	product := int64(c) * q
	if product/q != int64(c) || (int64(c) == -1 && q == math.MinInt64) || (q == -1 && int64(c) == math.MinInt64) {
		return 0, fmt.Errorf("%w: %s x %d", ErrOverflow, c, qty)
	}
	return Cents(product), nil
}

func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// MarshalJSON renders a JSON number with exactly two decimals.
func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalJSON accepts numbers or quoted dollar strings.
func (c *Cents) UnmarshalJSON(data []byte) error {
	raw := bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(raw) == 0 || string(raw) == "null" {
		*c = 0
		return nil
	}
	parsed, err := FromDollarsString(string(raw))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Sum adds amounts, failing instead of wrapping around.
func Sum(values ...Cents) (Cents, error) {
	var total int64
	for _, v := range values {
		next := total + int64(v)
		if (v > 0 && next < total) || (v < 0 && next > total) {
			return 0, ErrOverflow
		}
		total = next
	}
	return Cents(total), nil
}
