package date

import (
	"slices"
)

// Point is a dated value.
type Point[T any] struct {
	Day   Date
	Value T
}

// History is a series of points with unique days, kept in chronological order. The
// zero value is an empty series.
//
// History is not safe for concurrent use.
type History[T any] struct {
	points []Point[T]
}

func (h *History[T]) find(day Date) (int, bool) {
	return slices.BinarySearchFunc(h.points, day, func(p Point[T], d Date) int { return p.Day.Compare(d) })
}

// Len returns the number of points.
func (h *History[T]) Len() int { return len(h.points) }

// Set records value on day, replacing the value already there.
func (h *History[T]) Set(day Date, value T) {
	i, found := h.find(day)
	if found {
		h.points[i].Value = value
		return
	}
	h.points = slices.Insert(h.points, i, Point[T]{day, value})
}

// Get returns the value on day.
func (h *History[T]) Get(day Date) (value T, ok bool) {
	if i, found := h.find(day); found {
		return h.points[i].Value, true
	}
	return value, false
}

// Points returns a copy of the series.
func (h *History[T]) Points() []Point[T] { return slices.Clone(h.points) }

// Bracket returns the nearest points strictly before and strictly after day.
//
// A missing side is reported with a false boolean. The point at day itself, if any,
// is ignored.
func (h *History[T]) Bracket(day Date) (before Point[T], hasBefore bool, after Point[T], hasAfter bool) {
	i, found := h.find(day)
	if i > 0 {
		before, hasBefore = h.points[i-1], true
	}
	if found {
		i++
	}
	if i < len(h.points) {
		after, hasAfter = h.points[i], true
	}
	return
}
