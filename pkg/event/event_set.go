package event

import (
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/teambition/rrule-go"

	"github.com/funbiscuit/icaliada/pkg/temporal"
)

// maxOccurrences caps a single series' expansion inside one query window.
// Hitting the cap truncates the output with a diagnostic only.
const maxOccurrences = 100

var (
	ErrEmptySeries               = errors.New("series must contain at least one event")
	ErrMultipleMasters           = errors.New("series must contain only one event without recurrence id")
	ErrNoMaster                  = errors.New("series must contain one event without recurrence id")
	ErrOverrideWithoutRecurrence = errors.New("recurrence id specified for series without recurrence rule")
)

// PrimitiveEvent is the public output unit: a concrete range and a summary,
// stripped of series identity and recurrence metadata.
type PrimitiveEvent struct {
	Range   temporal.Range
	Summary string
}

// EventOverride replaces the single generated occurrence whose start matches
// RecurrenceID.
type EventOverride struct {
	Range        temporal.Range
	Summary      string
	RecurrenceID temporal.Value
}

// EventSet is one resolved series: the master event plus its overrides.
// Overrides are only present when the master has a recurrence rule.
type EventSet struct {
	UID        string
	Range      temporal.Range
	Summary    string
	Recurrence *rrule.RRule
	Overrides  []EventOverride
}

// NewEventSet groups all CalendarEvents sharing one UID into a series.
// Exactly one of them must lack a recurrence id; it becomes the master.
func NewEventSet(uid string, events []CalendarEvent) (*EventSet, error) {
	if len(events) == 0 {
		return nil, ErrEmptySeries
	}

	set := &EventSet{UID: uid}
	hasMaster := false
	for _, ev := range events {
		if ev.RecurrenceID != nil {
			set.Overrides = append(set.Overrides, EventOverride{
				Range:        ev.Range,
				Summary:      ev.Summary,
				RecurrenceID: *ev.RecurrenceID,
			})
			continue
		}
		if hasMaster {
			return nil, ErrMultipleMasters
		}
		hasMaster = true
		set.Range = ev.Range
		set.Summary = ev.Summary
		set.Recurrence = ev.Recurrence
	}

	if !hasMaster {
		return nil, ErrNoMaster
	}
	if len(set.Overrides) > 0 && set.Recurrence == nil {
		return nil, ErrOverrideWithoutRecurrence
	}
	return set, nil
}

// Occurrences expands the series into concrete events inside the window and
// splices overrides in place. The computation is pure: calling it twice with
// the same window yields identical output.
func (s *EventSet) Occurrences(winStart, winEnd time.Time) []PrimitiveEvent {
	events := s.initialEvents(winStart, winEnd)

	for i, ev := range events {
		for _, override := range s.Overrides {
			if override.RecurrenceID.Equal(ev.Range.Start()) {
				events[i] = PrimitiveEvent{Range: override.Range, Summary: override.Summary}
				break
			}
		}
	}
	return events
}

// initialEvents generates the series' occurrences before override splicing.
// A non-recurring master yields itself iff it overlaps the window; a
// recurring one yields the master range shifted to each occurrence start
// strictly inside (winStart, winEnd).
func (s *EventSet) initialEvents(winStart, winEnd time.Time) []PrimitiveEvent {
	if s.Recurrence == nil {
		if s.Range.Overlaps(winStart, winEnd) {
			return []PrimitiveEvent{{Range: s.Range, Summary: s.Summary}}
		}
		return nil
	}

	starts := s.Recurrence.Between(winStart, winEnd, false)
	if len(starts) > maxOccurrences {
		log.Warnf("Recurrence expansion of %s gave more than %d results, truncating", s.UID, maxOccurrences)
		starts = starts[:maxOccurrences]
	}

	events := make([]PrimitiveEvent, 0, len(starts))
	for _, start := range starts {
		events = append(events, PrimitiveEvent{Range: s.Range.WithStart(start), Summary: s.Summary})
	}
	return events
}
