package cointax

import (
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Money represents a fiat value. Every Money of an evaluation is in the fiat asset
// of its RuleSet.
type Money struct {
	value decimal.Decimal // as major unit value
	cur   string
}

// M returns a Money.
func M[T float64 | int | int64 | decimal.Decimal](value T, currency string) Money {
	return Money{value: newDecimal(value), cur: currency}
}

// currency looks up the ISO 4217 definition of m's fiat. An unknown code gets two
// fraction digits and no grapheme, it is printed after the amount: "1,234.50XYZ".
func (m Money) currency() money.Currency {
	return *money.New(0, m.cur).Currency()
}

// String formats m with the grapheme and fraction digits of its fiat, like
// "€1,234.50" for EUR.
func (m Money) String() string {
	cur := m.currency()
	dec := m.value.Round(int32(cur.Fraction)).Shift(int32(cur.Fraction))
	return cur.Formatter().Format(dec.IntPart())
}

func (m Money) Decimal() decimal.Decimal        { return m.value }
func (m Money) Equal(n Money) bool              { return m.value.Equal(n.value) && m.cur == n.cur }
func (m Money) IsZero() bool                    { return m.value.IsZero() }
func (m Money) IsPositive() bool                { return m.value.IsPositive() }
func (m Money) IsNegative() bool                { return m.value.IsNegative() }
func (m Money) LessThan(amount Money) bool      { return m.value.LessThan(amount.value) }
func (m Money) LessThanOrEqual(n Money) bool    { return m.value.LessThanOrEqual(n.value) }
func (m Money) GreaterThan(n Money) bool        { return m.value.GreaterThan(n.value) }
func (m Money) Neg() Money                      { return Money{value: m.value.Neg(), cur: m.cur} }
func (m Money) Abs() Money                      { return Money{value: m.value.Abs(), cur: m.cur} }
func (m Money) Mul(n Quantity) Money            { return Money{value: m.value.Mul(n.value), cur: m.cur} }
func (m Money) Div(n Quantity) Money            { return Money{value: m.value.Div(n.value), cur: m.cur} }

func (m Money) Add(n Money) Money { return Money{value: m.value.Add(n.value), cur: sameFiat(m, n)} }
func (m Money) Sub(n Money) Money { return Money{value: m.value.Sub(n.value), cur: sameFiat(m, n)} }

// Min returns the smallest of m and n.
func (m Money) Min(n Money) Money {
	f := sameFiat(m, n)
	if n.LessThan(m) {
		return Money{value: n.value, cur: f}
	}
	return Money{value: m.value, cur: f}
}

// Prorate returns the share of m that part represents in whole.
//
// The multiplication happens first so that splitting an amount in round fractions
// stays exact.
func (m Money) Prorate(part, whole Quantity) Money {
	if whole.IsZero() {
		return Money{cur: m.cur}
	}
	if part.Equal(whole) {
		return m
	}
	return Money{value: m.value.Mul(part.value).Div(whole.value), cur: m.cur}
}

// sameFiat returns the fiat of an operation between a and b. The zero Money has no
// fiat and adopts the other one. Mixing two fiats is a programming error: an
// evaluation values everything in the fiat of its RuleSet.
func sameFiat(a, b Money) string {
	switch {
	case a.cur == "":
		return b.cur
	case b.cur == "" || a.cur == b.cur:
		return a.cur
	}
	panic(fmt.Sprintf("fiat mismatch: %s and %s", a.cur, b.cur))
}

// SignedString is String with an explicit "+" on gains. Zero is rendered "-" so that
// report tables stay readable.
func (m Money) SignedString() string {
	if m.value.IsZero() {
		return "-"
	}
	if m.value.IsPositive() {
		return "+" + m.String()
	}
	return m.String()
}

// MarshalJSON writes the amount rounded to the currency fraction digits.
//
// Unit prices and costs keep their full precision in memory, rounding only happens
// for display and persistence.
func (m Money) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Optional("currency", m.cur)
	w.Append("amount", m.value.Round(int32(m.currency().Fraction)))
	return w.MarshalJSON()
}
