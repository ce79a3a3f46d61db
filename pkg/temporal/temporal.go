package temporal

import (
	"errors"
	"fmt"
	"time"
)

const (
	dateLayout        = "20060102"
	dateTimeLayout    = "20060102T150405"
	utcDateTimeLayout = "20060102T150405Z"
)

var (
	ErrMalformedValue         = errors.New("malformed date or datetime value")
	ErrMissingTimezoneContext = errors.New("datetime value requires exactly one TZID parameter")
)

// Resolver converts a naive local time under a named timezone into a UTC instant.
type Resolver interface {
	LocalToUTC(tzID string, local time.Time) (time.Time, error)
}

// Value is a point in time that is either a bare calendar date or an absolute
// UTC instant. Values are immutable; the only constructors are ParseValue,
// NewDate and NewInstant, so a Value is always one of the two variants.
type Value struct {
	t        time.Time
	dateOnly bool
}

// NewDate returns a date-only Value. The time of day is pinned to midnight UTC
// internally and is not observable through the date variant.
func NewDate(year int, month time.Month, day int) Value {
	return Value{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), dateOnly: true}
}

// NewInstant returns an instant Value in UTC.
func NewInstant(t time.Time) Value {
	return Value{t: t.UTC()}
}

// ParseValue decodes a raw property value together with its parameters.
// A VALUE=DATE parameter selects the date variant. Otherwise the value is a
// datetime: a trailing "Z" marks it as already UTC, and a naive value requires
// exactly one TZID parameter resolved through the given resolver.
func ParseValue(raw string, params map[string][]string, resolver Resolver) (Value, error) {
	if isDateValue(params) {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q", ErrMalformedValue, raw)
		}
		return Value{t: t, dateOnly: true}, nil
	}

	if len(raw) > 0 && raw[len(raw)-1] == 'Z' {
		t, err := time.Parse(utcDateTimeLayout, raw)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q", ErrMalformedValue, raw)
		}
		return Value{t: t}, nil
	}

	local, err := time.Parse(dateTimeLayout, raw)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %q", ErrMalformedValue, raw)
	}

	tzIDs := params["TZID"]
	if len(tzIDs) != 1 {
		return Value{}, fmt.Errorf("%w: got %d", ErrMissingTimezoneContext, len(tzIDs))
	}

	t, err := resolver.LocalToUTC(tzIDs[0], local)
	if err != nil {
		return Value{}, err
	}
	return Value{t: t.UTC()}, nil
}

func isDateValue(params map[string][]string) bool {
	for _, v := range params["VALUE"] {
		if v == "DATE" {
			return true
		}
	}
	return false
}

// IsDate reports whether the value is the date variant.
func (v Value) IsDate() bool {
	return v.dateOnly
}

// Instant converts the value to an absolute instant. A date converts to
// midnight UTC of its calendar day; this deliberately ignores any local
// offset and is the documented interpretation of date-only values.
func (v Value) Instant() time.Time {
	return v.t
}

// Equal reports exact equality of both variant and value.
func (v Value) Equal(other Value) bool {
	return v.dateOnly == other.dateOnly && v.t.Equal(other.t)
}

func (v Value) String() string {
	if v.dateOnly {
		return v.t.Format("2006-01-02")
	}
	return v.t.Format(time.RFC3339)
}
