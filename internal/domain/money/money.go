// Package money implements fixed-point currency amounts stored as integer
// minor units. Decimal conversion happens only at the boundaries (JSON, SQL,
// display).
package money

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Money is an amount in minor currency units (cents).
type Money int64

// Zero is the zero amount.
const Zero Money = 0

const minorDigits = 2

var (
	// ErrNegative is returned when parsing a negative amount.
	ErrNegative = errors.New("negative amount")
	// ErrPrecision is returned when an amount has more than two fractional digits.
	ErrPrecision = errors.New("amount has sub-cent precision")
)

// FromCents returns the amount for the given number of minor units.
func FromCents(cents int64) Money {
	return Money(cents)
}

// FromDecimal converts a decimal amount to Money, rounding half-up to the
// nearest cent.
func FromDecimal(d decimal.Decimal) Money {
	return Money(d.Shift(minorDigits).Round(0).IntPart())
}

// Parse parses a decimal string such as "12.50". Negative amounts and amounts
// with sub-cent precision are rejected.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, errors.Wrapf(err, "parse amount %q", s)
	}
	return fromExact(d)
}

// MustParse is like Parse but panics on error. Intended for tests and
// constants.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

func fromExact(d decimal.Decimal) (Money, error) {
	if d.IsNegative() {
		return Zero, ErrNegative
	}
	if !d.Equal(d.Round(minorDigits)) {
		return Zero, ErrPrecision
	}
	return FromDecimal(d), nil
}

// Cents returns the amount in minor units.
func (m Money) Cents() int64 { return int64(m) }

// Decimal returns the amount as a decimal with two fractional digits.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -minorDigits)
}

// String formats the amount with exactly two fractional digits.
func (m Money) String() string {
	return m.Decimal().StringFixed(minorDigits)
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m == 0 }

// Add returns m + o.
func (m Money) Add(o Money) Money { return m + o }

// Sub returns m - o. The result may be negative; use FloorZero where a
// non-negative amount is required.
func (m Money) Sub(o Money) Money { return m - o }

// Mul returns m multiplied by an integer quantity.
func (m Money) Mul(qty int) Money { return m * Money(qty) }

// FloorZero clamps negative amounts to zero.
func (m Money) FloorZero() Money {
	if m < 0 {
		return Zero
	}
	return m
}

// Min returns the smaller of a and b.
func Min(a, b Money) Money {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b Money) Money {
	if a > b {
		return a
	}
	return b
}

// MarshalJSON encodes the amount as a JSON number with two fractional digits.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts either a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return errors.Wrap(err, "decode amount")
	}
	v, err := fromExact(d)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
