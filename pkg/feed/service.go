package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"
	log "github.com/sirupsen/logrus"

	"github.com/funbiscuit/icaliada/internal/cache"
	"github.com/funbiscuit/icaliada/internal/config"
	"github.com/funbiscuit/icaliada/pkg/event"
	"github.com/funbiscuit/icaliada/pkg/timezone"
)

// busySummary replaces every event summary when a feed is requested with its
// public (free-busy) token.
const busySummary = "Busy"

var (
	ErrUnknownToken    = errors.New("unknown feed token")
	ErrSourceMalformed = errors.New("calendar source could not be parsed")
)

type Service interface {
	GetFeed(ctx context.Context, token string, start, end time.Time) ([]event.PrimitiveEvent, error)
}

// ServiceImpl aggregates all calendar sources of a feed into one flat,
// time-windowed occurrence list.
type ServiceImpl struct {
	cfg     config.Application
	fetcher Fetcher
	store   cache.Store
}

func NewService(cfg config.Application, fetcher Fetcher, store cache.Store) *ServiceImpl {
	return &ServiceImpl{cfg: cfg, fetcher: fetcher, store: store}
}

// GetFeed resolves the token to a feed, retrieves every configured calendar
// source concurrently and concatenates their occurrences in configuration
// order. A failed source is logged and excluded; only an unknown token fails
// the whole request. Public-token requests keep every range but replace all
// summaries with a fixed placeholder.
func (s *ServiceImpl) GetFeed(ctx context.Context, token string, start, end time.Time) ([]event.PrimitiveEvent, error) {
	feed, ok := s.cfg.FeedByToken(token)
	if !ok {
		return nil, ErrUnknownToken
	}
	isPublic := token == feed.Tokens.Public

	// One slot per source keeps the merge order deterministic regardless of
	// completion order.
	results := make([][]event.PrimitiveEvent, len(feed.Calendars))
	var wg sync.WaitGroup
	for i, calendar := range feed.Calendars {
		wg.Add(1)
		go func(i int, calendar config.Calendar) {
			defer wg.Done()
			events, err := s.calendarEvents(ctx, calendar, start, end)
			if err != nil {
				log.Errorf("Failed to fetch calendar: %v", err)
				return
			}
			results[i] = events
		}(i, calendar)
	}
	wg.Wait()

	events := make([]event.PrimitiveEvent, 0)
	for _, sourceEvents := range results {
		for _, ev := range sourceEvents {
			if isPublic {
				ev.Summary = busySummary
			}
			events = append(events, ev)
		}
	}
	return events, nil
}

// calendarEvents produces the occurrences of one calendar source, serving the
// raw body from cache when a fresh enough copy exists.
func (s *ServiceImpl) calendarEvents(ctx context.Context, calendar config.Calendar, start, end time.Time) ([]event.PrimitiveEvent, error) {
	body, ok := s.store.Get(calendar.URL)
	if ok {
		log.Debugf("Using cached calendar body: %d bytes", len(body))
	} else {
		var err error
		body, err = s.fetcher.Fetch(ctx, calendar.URL)
		if err != nil {
			return nil, err
		}
		log.Infof("Downloaded calendar: %d bytes", len(body))
		s.store.Put(calendar.URL, body)
	}

	document, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceMalformed, err)
	}
	return documentEvents(document, start, end), nil
}

// documentEvents runs one parsed calendar document through normalization,
// series grouping and expansion. Failing events and series are logged and
// dropped without affecting the rest of the document.
func documentEvents(document *ical.Calendar, start, end time.Time) []event.PrimitiveEvent {
	zones := timezone.ParseAll(document)

	groups := make(map[string][]event.CalendarEvent)
	var order []string
	for _, ve := range document.Events() {
		ev, err := event.Normalize(ve, zones)
		if err != nil {
			log.Errorf("Failed to normalize event: %v", err)
			continue
		}
		if _, ok := groups[ev.UID]; !ok {
			order = append(order, ev.UID)
		}
		groups[ev.UID] = append(groups[ev.UID], ev)
	}

	events := make([]event.PrimitiveEvent, 0)
	for _, uid := range order {
		set, err := event.NewEventSet(uid, groups[uid])
		if err != nil {
			log.Errorf("Failed to create event set %s: %v", uid, err)
			continue
		}
		events = append(events, set.Occurrences(start, end)...)
	}
	return events
}
