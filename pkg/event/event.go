package event

import (
	"errors"
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"
	log "github.com/sirupsen/logrus"
	"github.com/teambition/rrule-go"

	"github.com/funbiscuit/icaliada/pkg/temporal"
)

var ErrMissingProperty = errors.New("required property is missing")

// CalendarEvent is one decoded VEVENT: a master/standalone event when
// RecurrenceID is nil, an override of a recurring series otherwise. It only
// lives between normalization and event set construction.
type CalendarEvent struct {
	Range        temporal.Range
	Summary      string
	Recurrence   *rrule.RRule
	RecurrenceID *temporal.Value
	UID          string
}

// Normalize converts a parsed VEVENT into a typed CalendarEvent, resolving
// its start/end through the given timezone resolver.
//
// UID, DTSTART, DTEND and SUMMARY are required. RRULE is optional and
// non-fatal: an unparsable or invalid rule is logged and the event proceeds
// without recurrence.
func Normalize(ve *ical.VEvent, resolver temporal.Resolver) (CalendarEvent, error) {
	uid, err := requireProperty(ve, ical.ComponentPropertyUniqueId, "UID")
	if err != nil {
		return CalendarEvent{}, err
	}
	summary, err := requireProperty(ve, ical.ComponentPropertySummary, "SUMMARY")
	if err != nil {
		return CalendarEvent{}, err
	}
	start, err := requireProperty(ve, ical.ComponentPropertyDtStart, "DTSTART")
	if err != nil {
		return CalendarEvent{}, err
	}
	end, err := requireProperty(ve, ical.ComponentPropertyDtEnd, "DTEND")
	if err != nil {
		return CalendarEvent{}, err
	}

	startValue, err := temporal.ParseValue(start.Value, start.ICalParameters, resolver)
	if err != nil {
		return CalendarEvent{}, fmt.Errorf("invalid DTSTART: %w", err)
	}
	endValue, err := temporal.ParseValue(end.Value, end.ICalParameters, resolver)
	if err != nil {
		return CalendarEvent{}, fmt.Errorf("invalid DTEND: %w", err)
	}
	eventRange, err := temporal.NewRange(startValue, endValue)
	if err != nil {
		return CalendarEvent{}, err
	}

	var recurrenceID *temporal.Value
	if prop := ve.GetProperty("RECURRENCE-ID"); prop != nil {
		value, err := temporal.ParseValue(prop.Value, prop.ICalParameters, resolver)
		if err != nil {
			return CalendarEvent{}, fmt.Errorf("invalid RECURRENCE-ID: %w", err)
		}
		recurrenceID = &value
	}

	var recurrence *rrule.RRule
	if prop := ve.GetProperty(ical.ComponentPropertyRrule); prop != nil {
		recurrence = parseRecurrence(uid.Value, prop.Value, eventRange)
	}

	return CalendarEvent{
		Range:        eventRange,
		Summary:      summary.Value,
		Recurrence:   recurrence,
		RecurrenceID: recurrenceID,
		UID:          uid.Value,
	}, nil
}

func requireProperty(ve *ical.VEvent, prop ical.ComponentProperty, name string) (*ical.IANAProperty, error) {
	p := ve.GetProperty(prop)
	if p == nil || p.Value == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingProperty, name)
	}
	return p, nil
}

// parseRecurrence builds the recurrence rule anchored at the range's start
// instant. For all-day events an UNTIL bound is re-pinned to midnight UTC of
// its calendar date, keeping it on the same clock as the date-only start.
// Any failure degrades the event to non-recurring.
func parseRecurrence(uid, value string, eventRange temporal.Range) *rrule.RRule {
	opt, err := rrule.StrToROption(value)
	if err != nil {
		log.Errorf("Failed to parse recurrence rule of %s: %v", uid, err)
		return nil
	}

	opt.Dtstart = eventRange.Start().Instant()
	if eventRange.IsAllDay() && !opt.Until.IsZero() {
		until := opt.Until
		opt.Until = time.Date(until.Year(), until.Month(), until.Day(), 0, 0, 0, 0, time.UTC)
	}

	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		log.Errorf("Failed to validate recurrence rule of %s: %v", uid, err)
		return nil
	}
	return rule
}
