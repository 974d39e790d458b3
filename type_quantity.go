package cointax

import "github.com/shopspring/decimal"

// newDecimal is a convenient factory for decimal.Decimal
func newDecimal[T float64 | int | int64 | decimal.Decimal](value T) decimal.Decimal {
	switch v := any(value).(type) {
	case decimal.Decimal:
		return v
	case float64:
		return decimal.NewFromFloat(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	default:
		panic("unsupported type")
	}
}

// Quantity is an exact amount of an asset. Its sign carries the direction of a flow
// in an Operation, it is always positive in a Lot.
type Quantity struct {
	value decimal.Decimal
}

// Q returns a Quantity.
func Q[T float64 | int | int64 | decimal.Decimal](value T) Quantity {
	return Quantity{value: newDecimal(value)}
}

func (t Quantity) Equal(p Quantity) bool                  { return t.value.Equal(p.value) }
func (t Quantity) LessThan(quantity Quantity) bool        { return t.value.LessThan(quantity.value) }
func (t Quantity) LessThanOrEqual(quantity Quantity) bool { return t.value.LessThanOrEqual(quantity.value) }
func (t Quantity) GreaterThan(p Quantity) bool            { return t.value.GreaterThan(p.value) }
func (t Quantity) Div(p Quantity) Quantity                { return Quantity{value: t.value.Div(p.value)} }
func (t Quantity) Mul(p Quantity) Quantity                { return Quantity{value: t.value.Mul(p.value)} }
func (t Quantity) Add(p Quantity) Quantity                { return Quantity{value: t.value.Add(p.value)} }
func (t Quantity) Sub(p Quantity) Quantity                { return Quantity{value: t.value.Sub(p.value)} }
func (t Quantity) Neg() Quantity                          { return Quantity{value: t.value.Neg()} }
func (t Quantity) Abs() Quantity                          { return Quantity{value: t.value.Abs()} }
func (t Quantity) IsNegative() bool                       { return t.value.IsNegative() }
func (t Quantity) IsPositive() bool                       { return t.value.IsPositive() }
func (t Quantity) IsZero() bool                           { return t.value.IsZero() }
func (t Quantity) Decimal() decimal.Decimal               { return t.value }
func (q Quantity) String() string                         { return q.value.String() }

// Min returns the smallest of t and p.
func (t Quantity) Min(p Quantity) Quantity {
	if p.LessThan(t) {
		return p
	}
	return t
}

// Fits reports whether t has no more than precision decimal digits.
func (t Quantity) Fits(precision int32) bool {
	return t.value.Equal(t.value.Truncate(precision))
}

func (t Quantity) MarshalJSON() ([]byte, error) {
	return t.value.MarshalJSON()
}

func (t *Quantity) UnmarshalJSON(decimalBytes []byte) error {
	return t.value.UnmarshalJSON(decimalBytes)
}
