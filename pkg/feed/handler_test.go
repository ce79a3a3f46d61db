package feed

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funbiscuit/icaliada/internal/cache"
	"github.com/funbiscuit/icaliada/internal/utils"
)

func setupHandler(t *testing.T) *Handler {
	service, _ := setupService(t)
	return NewHandler(service, testConfig())
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	var errResponse struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	err := json.NewDecoder(w.Body).Decode(&errResponse)
	require.NoError(t, err)
	return errResponse.Error
}

func TestGetEvents(t *testing.T) {
	t.Run("returns formatted events", func(t *testing.T) {
		handler := setupHandler(t)

		url := fmt.Sprintf("/api/feed/events?token=%s&start=2024-01-01T00:00:00Z&end=2024-02-01T00:00:00Z", privateToken)
		req := httptest.NewRequest(http.MethodGet, url, nil)
		w := httptest.NewRecorder()

		handler.GetEvents(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var events []EventDTO
		err := json.NewDecoder(w.Body).Decode(&events)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, EventDTO{
			Start: "2024-01-10T15:00:00Z",
			End:   "2024-01-10T16:00:00Z",
			Title: "Team meeting",
		}, events[0])
		assert.Equal(t, EventDTO{
			Start: "2024-01-12",
			End:   "2024-01-13",
			Title: "Holiday",
		}, events[1])
	})

	t.Run("missing token", func(t *testing.T) {
		handler := setupHandler(t)

		req := httptest.NewRequest(http.MethodGet, "/api/feed/events?start=2024-01-01T00:00:00Z&end=2024-02-01T00:00:00Z", nil)
		w := httptest.NewRecorder()

		handler.GetEvents(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Token not present", decodeError(t, w))
	})

	t.Run("invalid start time", func(t *testing.T) {
		handler := setupHandler(t)

		url := fmt.Sprintf("/api/feed/events?token=%s&start=yesterday&end=2024-02-01T00:00:00Z", privateToken)
		req := httptest.NewRequest(http.MethodGet, url, nil)
		w := httptest.NewRecorder()

		handler.GetEvents(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid start time format", decodeError(t, w))
	})

	t.Run("invalid end time", func(t *testing.T) {
		handler := setupHandler(t)

		url := fmt.Sprintf("/api/feed/events?token=%s&start=2024-01-01T00:00:00Z&end=tomorrow", privateToken)
		req := httptest.NewRequest(http.MethodGet, url, nil)
		w := httptest.NewRecorder()

		handler.GetEvents(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid end time format", decodeError(t, w))
	})

	t.Run("unknown token", func(t *testing.T) {
		handler := setupHandler(t)

		req := httptest.NewRequest(http.MethodGet, "/api/feed/events?token=nope&start=2024-01-01T00:00:00Z&end=2024-02-01T00:00:00Z", nil)
		w := httptest.NewRecorder()

		handler.GetEvents(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Invalid token", decodeError(t, w))
	})

	t.Run("public token returns busy placeholders", func(t *testing.T) {
		handler := setupHandler(t)

		url := fmt.Sprintf("/api/feed/events?token=%s&start=2024-01-01T00:00:00Z&end=2024-02-01T00:00:00Z", publicToken)
		req := httptest.NewRequest(http.MethodGet, url, nil)
		w := httptest.NewRecorder()

		handler.GetEvents(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var events []EventDTO
		err := json.NewDecoder(w.Body).Decode(&events)
		require.NoError(t, err)
		require.Len(t, events, 2)
		for _, ev := range events {
			assert.Equal(t, "Busy", ev.Title)
		}
	})
}

func TestGetFeedInfo(t *testing.T) {
	t.Run("single token", func(t *testing.T) {
		handler := setupHandler(t)

		req := httptest.NewRequest(http.MethodGet, "/api/feed?token="+privateToken, nil)
		w := httptest.NewRecorder()

		handler.GetFeedInfo(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var info FeedInfoDTO
		err := json.NewDecoder(w.Body).Decode(&info)
		require.NoError(t, err)
		assert.Equal(t, "Test feed", info.Title)
		assert.Equal(t, []string{privateToken}, info.Tokens)
		assert.NotEmpty(t, info.Colors)
	})

	t.Run("multiple tokens join feed names", func(t *testing.T) {
		cfg := testConfig()
		cfg.Feeds = append(cfg.Feeds, cfg.Feeds[0])
		cfg.Feeds[1].Name = "Second feed"
		cfg.Feeds[1].Tokens.Private = "second-token"
		cfg.Feeds[1].Tokens.Public = "second-public"

		store := cache.NewTTLStoreWithClock(time.Minute, &utils.MockClock{FixedNow: time.Now()})
		handler := NewHandler(NewService(cfg, NewStubFetcher(), store), cfg)

		req := httptest.NewRequest(http.MethodGet, "/api/feed?tokens="+privateToken+",second-token", nil)
		w := httptest.NewRecorder()

		handler.GetFeedInfo(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var info FeedInfoDTO
		err := json.NewDecoder(w.Body).Decode(&info)
		require.NoError(t, err)
		assert.Equal(t, "Test feed, Second feed", info.Title)
	})

	t.Run("missing token", func(t *testing.T) {
		handler := setupHandler(t)

		req := httptest.NewRequest(http.MethodGet, "/api/feed", nil)
		w := httptest.NewRecorder()

		handler.GetFeedInfo(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown token", func(t *testing.T) {
		handler := setupHandler(t)

		req := httptest.NewRequest(http.MethodGet, "/api/feed?tokens="+privateToken+",unknown", nil)
		w := httptest.NewRecorder()

		handler.GetFeedInfo(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
