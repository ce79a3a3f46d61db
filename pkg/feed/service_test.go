package feed

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funbiscuit/icaliada/internal/cache"
	"github.com/funbiscuit/icaliada/internal/config"
	"github.com/funbiscuit/icaliada/internal/utils"
)

const (
	cal1URL = "https://calendars.example.com/work.ics"
	cal2URL = "https://calendars.example.com/personal.ics"

	privateToken = "private-token"
	publicToken  = "public-token"
)

func icsDoc(lines ...string) []byte {
	doc := append([]string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//EN"}, lines...)
	doc = append(doc, "END:VCALENDAR", "")
	return []byte(strings.Join(doc, "\r\n"))
}

func workCalendar() []byte {
	return icsDoc(
		"BEGIN:VTIMEZONE",
		"TZID:America/New_York",
		"BEGIN:DAYLIGHT",
		"TZOFFSETFROM:-0500",
		"TZOFFSETTO:-0400",
		"DTSTART:20070311T020000",
		"RRULE:FREQ=YEARLY;BYMONTH=3;BYDAY=2SU",
		"END:DAYLIGHT",
		"BEGIN:STANDARD",
		"TZOFFSETFROM:-0400",
		"TZOFFSETTO:-0500",
		"DTSTART:20071104T020000",
		"RRULE:FREQ=YEARLY;BYMONTH=11;BYDAY=1SU",
		"END:STANDARD",
		"END:VTIMEZONE",
		"BEGIN:VEVENT",
		"UID:meeting-1",
		"SUMMARY:Team meeting",
		"DTSTART;TZID=America/New_York:20240110T100000",
		"DTEND;TZID=America/New_York:20240110T110000",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:broken-1",
		"DTSTART:20240111T100000Z",
		"DTEND:20240111T110000Z",
		"END:VEVENT",
	)
}

func personalCalendar() []byte {
	return icsDoc(
		"BEGIN:VEVENT",
		"UID:away-1",
		"SUMMARY:Holiday",
		"DTSTART;VALUE=DATE:20240112",
		"DTEND;VALUE=DATE:20240113",
		"END:VEVENT",
	)
}

func testConfig() config.Application {
	return config.Application{
		Feeds: []config.Feed{
			{
				Name: "Test feed",
				Tokens: config.Tokens{
					Private: privateToken,
					Public:  publicToken,
				},
				Calendars: []config.Calendar{
					{URL: cal1URL},
					{URL: cal2URL},
				},
			},
		},
	}
}

func setupService(t *testing.T) (*ServiceImpl, *StubFetcher) {
	fetcher := NewStubFetcher()
	fetcher.Bodies[cal1URL] = workCalendar()
	fetcher.Bodies[cal2URL] = personalCalendar()

	store := cache.NewTTLStoreWithClock(time.Minute, &utils.MockClock{FixedNow: time.Now()})
	return NewService(testConfig(), fetcher, store), fetcher
}

func testWindow() (time.Time, time.Time) {
	return time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
}

func TestGetFeed(t *testing.T) {
	ctx := context.Background()
	winStart, winEnd := testWindow()

	t.Run("private token returns full events in source order", func(t *testing.T) {
		service, _ := setupService(t)

		events, err := service.GetFeed(ctx, privateToken, winStart, winEnd)

		require.NoError(t, err)
		require.Len(t, events, 2)
		// local 10:00 in New York resolves to 15:00 UTC in January
		assert.Equal(t, "Team meeting", events[0].Summary)
		assert.Equal(t, time.Date(2024, time.January, 10, 15, 0, 0, 0, time.UTC), events[0].Range.Start().Instant())
		assert.Equal(t, "Holiday", events[1].Summary)
		assert.True(t, events[1].Range.IsAllDay())
	})

	t.Run("public token anonymizes summaries only", func(t *testing.T) {
		service, _ := setupService(t)

		private, err := service.GetFeed(ctx, privateToken, winStart, winEnd)
		require.NoError(t, err)
		public, err := service.GetFeed(ctx, publicToken, winStart, winEnd)
		require.NoError(t, err)

		require.Len(t, public, len(private))
		for i, ev := range public {
			assert.Equal(t, "Busy", ev.Summary)
			assert.Equal(t, private[i].Range, ev.Range)
		}
	})

	t.Run("unknown token fails the request", func(t *testing.T) {
		service, _ := setupService(t)

		_, err := service.GetFeed(ctx, "nope", winStart, winEnd)
		assert.ErrorIs(t, err, ErrUnknownToken)
	})

	t.Run("unavailable source is excluded", func(t *testing.T) {
		service, fetcher := setupService(t)
		delete(fetcher.Bodies, cal2URL)

		events, err := service.GetFeed(ctx, privateToken, winStart, winEnd)

		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "Team meeting", events[0].Summary)
	})

	t.Run("malformed source is excluded", func(t *testing.T) {
		service, fetcher := setupService(t)
		fetcher.Bodies[cal2URL] = []byte("definitely not a calendar")

		events, err := service.GetFeed(ctx, privateToken, winStart, winEnd)

		require.NoError(t, err)
		require.Len(t, events, 1)
	})

	t.Run("second request is served from cache", func(t *testing.T) {
		service, fetcher := setupService(t)

		_, err := service.GetFeed(ctx, privateToken, winStart, winEnd)
		require.NoError(t, err)
		assert.Len(t, fetcher.Calls(), 2)

		_, err = service.GetFeed(ctx, privateToken, winStart, winEnd)
		require.NoError(t, err)
		assert.Len(t, fetcher.Calls(), 2)
	})

	t.Run("event without summary is dropped, rest kept", func(t *testing.T) {
		service, _ := setupService(t)

		events, err := service.GetFeed(ctx, privateToken, winStart, winEnd)

		require.NoError(t, err)
		for _, ev := range events {
			assert.NotEmpty(t, ev.Summary)
		}
	})
}
