package temporal

import (
	"errors"
	"time"
)

var ErrMixedRangeVariants = errors.New("range start and end must both be dates or both be instants")

// Range is a validated (start, end) pair. Both endpoints always hold the same
// variant; NewRange is the only constructor, so code consuming a Range never
// needs a mixed-variant branch.
type Range struct {
	start Value
	end   Value
}

func NewRange(start, end Value) (Range, error) {
	if start.IsDate() != end.IsDate() {
		return Range{}, ErrMixedRangeVariants
	}
	return Range{start: start, end: end}, nil
}

func (r Range) Start() Value {
	return r.start
}

func (r Range) End() Value {
	return r.end
}

// IsAllDay reports whether the range holds date-only endpoints.
func (r Range) IsAllDay() bool {
	return r.start.IsDate()
}

// Either folds over the range: date ranges call dateFn, instant ranges call
// instantFn. Date endpoints are passed as midnight-UTC timestamps.
func (r Range) Either(dateFn, instantFn func(start, end time.Time)) {
	if r.start.IsDate() {
		dateFn(r.start.Instant(), r.end.Instant())
	} else {
		instantFn(r.start.Instant(), r.end.Instant())
	}
}

// Overlaps reports whether the range intersects the inclusive window
// [winStart, winEnd]. Instant ranges compare by instant, date ranges compare
// the window's calendar dates against the range's dates.
func (r Range) Overlaps(winStart, winEnd time.Time) bool {
	if r.start.IsDate() {
		return !dateOf(winEnd).Before(r.start.Instant()) && !dateOf(winStart).After(r.end.Instant())
	}
	return !winEnd.Before(r.start.Instant()) && !winStart.After(r.end.Instant())
}

// WithStart shifts the whole range so its start equals newStart, preserving
// both the duration and the variant. For date ranges newStart is truncated to
// its UTC calendar date.
func (r Range) WithStart(newStart time.Time) Range {
	duration := r.end.Instant().Sub(r.start.Instant())
	if r.start.IsDate() {
		start := dateOf(newStart)
		return Range{
			start: Value{t: start, dateOnly: true},
			end:   Value{t: start.Add(duration), dateOnly: true},
		}
	}
	start := newStart.UTC()
	return Range{
		start: Value{t: start},
		end:   Value{t: start.Add(duration)},
	}
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
