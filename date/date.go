// Package date provides a day granularity Date and chronological series keyed by it.
//
// Operations carry second precision timestamps, but prices are quoted per day: Date is
// the key of the price cache and the unit of interpolation. Every day is a UTC day.
package date

import (
	"fmt"
	"time"
)

// Layout is the ISO 8601 layout of a Date.
const Layout = "2006-01-02"

// lenientLayout also accepts single digit months and days.
const lenientLayout = "2006-1-2"

// Date is a calendar day. The zero Date is not a valid day.
type Date struct {
	y int
	m time.Month
	d int
}

// New returns the Date of year, month and day, normalized like time.Date: October 32
// is November 1.
func New(year int, month time.Month, day int) Date {
	y, m, d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Date()
	return Date{y, m, d}
}

// Of returns the UTC day of t.
func Of(t time.Time) Date { return New(t.UTC().Date()) }

// Today returns the current UTC day.
func Today() Date { return Of(time.Now()) }

// midnight is the first instant of d, in UTC.
func (d Date) midnight() time.Time { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC) }

func (d Date) Year() int          { return d.y }
func (d Date) Month() time.Month  { return d.m }
func (d Date) Day() int           { return d.d }
func (d Date) IsZero() bool       { return d == Date{} }
func (d Date) Before(x Date) bool { return d.Compare(x) < 0 }
func (d Date) After(x Date) bool  { return d.Compare(x) > 0 }

// Compare returns -1, 0 or +1 depending on whether d is before, equal to or after x.
func (d Date) Compare(x Date) int {
	switch {
	case d.y != x.y:
		return cmpInt(d.y, x.y)
	case d.m != x.m:
		return cmpInt(int(d.m), int(x.m))
	default:
		return cmpInt(d.d, x.d)
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Add returns the day n days after d, or before it when n is negative.
func (d Date) Add(n int) Date { return New(d.y, d.m, d.d+n) }

// DaysUntil returns the number of days from d to x, negative if x is before d.
func (d Date) DaysUntil(x Date) int { return int(x.midnight().Sub(d.midnight()).Hours() / 24) }

func (d Date) String() string { return d.midnight().Format(Layout) }

// Parse parses a day like "2025-07-01". Single digit months and days are accepted.
func Parse(s string) (Date, error) {
	t, err := time.Parse(lenientLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, want %s: %w", s, Layout, err)
	}
	return Of(t), nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
