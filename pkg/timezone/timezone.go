package timezone

import (
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	log "github.com/sirupsen/logrus"
	"github.com/teambition/rrule-go"
)

const naiveLayout = "20060102T150405"

var (
	ErrMissingID        = errors.New("timezone id is missing")
	ErrUnknownTimezone  = errors.New("unknown timezone id")
	ErrMissingOffset    = errors.New("transition is missing an offset")
	ErrMissingStart     = errors.New("transition is missing DTSTART")
	ErrMalformedOffset  = errors.New("malformed UTC offset")
	ErrMalformedRule    = errors.New("malformed transition rule")
	ErrMalformedInstant = errors.New("malformed transition datetime")
)

// Timezone holds the ordered transition table of one named zone, built from a
// VTIMEZONE component. Read-only after construction.
type Timezone struct {
	id          string
	transitions []transition
}

// transition is one recorded offset change. Its occurrences are kept as naive
// local clock readings pinned to a UTC-labeled time.Time: the UTC label is a
// computation device, not a claim about the offset.
type transition struct {
	occurrences *rrule.Set
	from        time.Duration
	to          time.Duration
}

func (t *Timezone) ID() string {
	return t.id
}

// LocalToUTC converts a naive local clock reading (passed pinned to UTC) into
// the absolute UTC instant under this zone's transition table.
//
// Across all transitions, the one with the most recent occurrence at or before
// the queried time wins and contributes its "to" offset. If the time predates
// every recorded occurrence, the transition whose first occurrence is earliest
// contributes its "from" offset instead: the offset in force before recorded
// history begins. Comparisons are strict, so on an exact tie the transition
// listed first wins.
func (t *Timezone) LocalToUTC(local time.Time) time.Time {
	var lastOccurrence time.Time
	var offset time.Duration
	found := false

	for _, tr := range t.transitions {
		occ := tr.occurrences.Before(local, true)
		if occ.IsZero() {
			continue
		}
		if !found || occ.After(lastOccurrence) {
			lastOccurrence = occ
			offset = tr.to
			found = true
		}
	}

	if !found {
		var firstOccurrence time.Time
		for _, tr := range t.transitions {
			occ := tr.occurrences.After(time.Time{}, true)
			if occ.IsZero() {
				continue
			}
			if firstOccurrence.IsZero() || occ.Before(firstOccurrence) {
				firstOccurrence = occ
				offset = tr.from
			}
		}
	}

	return local.Add(-offset)
}

// Parse builds a Timezone from a VTIMEZONE component. Each STANDARD/DAYLIGHT
// sub-component becomes one transition.
func Parse(vtz *ical.VTimezone) (*Timezone, error) {
	idProp := vtz.GetProperty("TZID")
	if idProp == nil || idProp.Value == "" {
		return nil, ErrMissingID
	}

	tz := &Timezone{id: idProp.Value}
	for _, sub := range vtz.Components {
		tr, err := parseTransition(sub.UnknownPropertiesIANAProperties())
		if err != nil {
			return nil, fmt.Errorf("timezone %s: %w", tz.id, err)
		}
		tz.transitions = append(tz.transitions, tr)
	}
	return tz, nil
}

func parseTransition(props []ical.IANAProperty) (transition, error) {
	var tr transition
	var start time.Time
	var dates []time.Time
	var ruleValue string
	hasFrom, hasTo := false, false

	for _, prop := range props {
		switch prop.IANAToken {
		case "TZOFFSETFROM":
			offset, err := parseOffset(prop.Value)
			if err != nil {
				return transition{}, err
			}
			tr.from = offset
			hasFrom = true
		case "TZOFFSETTO":
			offset, err := parseOffset(prop.Value)
			if err != nil {
				return transition{}, err
			}
			tr.to = offset
			hasTo = true
		case "DTSTART":
			t, err := time.Parse(naiveLayout, prop.Value)
			if err != nil {
				return transition{}, fmt.Errorf("%w: %q", ErrMalformedInstant, prop.Value)
			}
			start = t
		case "RDATE":
			for _, raw := range strings.Split(prop.Value, ",") {
				t, err := time.Parse(naiveLayout, raw)
				if err != nil {
					return transition{}, fmt.Errorf("%w: %q", ErrMalformedInstant, raw)
				}
				dates = append(dates, t)
			}
		case "RRULE":
			ruleValue = prop.Value
		}
	}

	if !hasFrom || !hasTo {
		return transition{}, ErrMissingOffset
	}
	if start.IsZero() {
		return transition{}, ErrMissingStart
	}

	set := &rrule.Set{}
	if ruleValue != "" {
		opt, err := rrule.StrToROption(ruleValue)
		if err != nil {
			return transition{}, fmt.Errorf("%w: %v", ErrMalformedRule, err)
		}
		opt.Dtstart = start
		if !opt.Until.IsZero() {
			// UNTIL is a real UTC instant; shift it by the "from" offset so it
			// lives on the same naive clock as the occurrences it bounds.
			opt.Until = opt.Until.UTC().Add(tr.from)
		}
		rule, err := rrule.NewRRule(*opt)
		if err != nil {
			return transition{}, fmt.Errorf("%w: %v", ErrMalformedRule, err)
		}
		set.RRule(rule)
	} else {
		set.RDate(start)
		for _, d := range dates {
			set.RDate(d)
		}
	}
	tr.occurrences = set

	return tr, nil
}

// parseOffset decodes a "+hhmm[ss]" / "-hhmm[ss]" UTC offset.
func parseOffset(raw string) (time.Duration, error) {
	if len(raw) != 5 && len(raw) != 7 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedOffset, raw)
	}

	var sign time.Duration
	switch raw[0] {
	case '+':
		sign = 1
	case '-':
		sign = -1
	default:
		return 0, fmt.Errorf("%w: %q", ErrMalformedOffset, raw)
	}

	var hours, minutes, seconds int
	if _, err := fmt.Sscanf(raw[1:5], "%02d%02d", &hours, &minutes); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedOffset, raw)
	}
	if len(raw) == 7 {
		if _, err := fmt.Sscanf(raw[5:7], "%02d", &seconds); err != nil {
			return 0, fmt.Errorf("%w: %q", ErrMalformedOffset, raw)
		}
	}

	offset := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second
	return sign * offset, nil
}

// Set holds all timezones of one calendar document, keyed by id. It satisfies
// the resolver contract consumed by value parsing and event normalization.
type Set map[string]*Timezone

// ParseAll collects every parseable VTIMEZONE of a document. A malformed
// timezone is logged and skipped so one bad block does not sink the document.
func ParseAll(cal *ical.Calendar) Set {
	set := Set{}
	for _, comp := range cal.Components {
		vtz, ok := comp.(*ical.VTimezone)
		if !ok {
			continue
		}
		tz, err := Parse(vtz)
		if err != nil {
			log.Errorf("Failed to parse timezone: %v", err)
			continue
		}
		set[tz.ID()] = tz
	}
	return set
}

func (s Set) LocalToUTC(tzID string, local time.Time) (time.Time, error) {
	tz, ok := s[tzID]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownTimezone, tzID)
	}
	return tz.LocalToUTC(local), nil
}
