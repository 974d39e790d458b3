package date

import "time"

// Range represents a range of dates, boundaries included.
type Range struct{ From, To Date }

// Year returns the range covering the calendar year y.
func Year(y int) Range {
	return Range{From: New(y, time.January, 1), To: New(y, time.December, 31)}
}

// Contains return true date is included in the range (boundaries included)
func (r Range) Contains(date Date) bool { return !date.Before(r.From) && !date.After(r.To) }

// Years returns every calendar year touched by the range, in order. The zero Range
// touches none.
func (r Range) Years() []int {
	if r.From.IsZero() || r.To.Before(r.From) {
		return nil
	}
	years := make([]int, 0, r.To.Year()-r.From.Year()+1)
	for y := r.From.Year(); y <= r.To.Year(); y++ {
		years = append(years, y)
	}
	return years
}

// YearClose returns the last second of the calendar year y, in UTC.
//
// It is the instant at which remaining lots are valued for the year.
func YearClose(y int) time.Time {
	return time.Date(y, time.December, 31, 23, 59, 59, 0, time.UTC)
}
