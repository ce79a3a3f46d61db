package feed

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/funbiscuit/icaliada/internal/config"
	"github.com/funbiscuit/icaliada/internal/rest"
	"github.com/funbiscuit/icaliada/pkg/event"
)

const (
	instantFormat = "2006-01-02T15:04:05Z"
	dateFormat    = "2006-01-02"
)

// feedColors is the default palette assigned to feeds in display order.
var feedColors = []string{"#E3826F", "#E4A9A4", "#EFBA97", "#F1CCBB", "#E7D5C7"}

type EventDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Title string `json:"title"`
}

type FeedInfoDTO struct {
	Title  string   `json:"title"`
	Tokens []string `json:"tokens"`
	Colors []string `json:"colors"`
}

type Handler struct {
	service Service
	cfg     config.Application
}

func NewHandler(service Service, cfg config.Application) *Handler {
	return &Handler{service: service, cfg: cfg}
}

// GetEvents serves the normalized occurrence list of one feed inside the
// requested window.
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	log.Trace("Getting feed events")

	query := r.URL.Query()
	token := query.Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "Token not present", "")
		return
	}

	start, err := time.Parse(time.RFC3339, query.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start time format", "Start time must be in RFC3339 format")
		return
	}
	end, err := time.Parse(time.RFC3339, query.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end time format", "End time must be in RFC3339 format")
		return
	}

	events, err := h.service.GetFeed(r.Context(), token, start.UTC(), end.UTC())
	if err != nil {
		if errors.Is(err, ErrUnknownToken) {
			writeError(w, http.StatusNotFound, "Invalid token", "")
			return
		}
		log.Errorf("Failed to get feed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to get feed", "")
		return
	}

	dtos := make([]EventDTO, 0, len(events))
	for _, ev := range events {
		dtos = append(dtos, toEventDTO(ev))
	}
	if err := json.NewEncoder(w).Encode(dtos); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// GetFeedInfo resolves one or more tokens into feed display metadata.
func (h *Handler) GetFeedInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	log.Trace("Getting feed info")

	query := r.URL.Query()
	tokensParam := query.Get("tokens")
	if tokensParam == "" {
		tokensParam = query.Get("token")
	}
	if tokensParam == "" {
		writeError(w, http.StatusBadRequest, "Token not present", "")
		return
	}
	tokens := strings.Split(tokensParam, ",")

	names := make([]string, 0, len(tokens))
	for _, token := range tokens {
		feed, ok := h.cfg.FeedByToken(token)
		if !ok {
			writeError(w, http.StatusNotFound, "Invalid token", "")
			return
		}
		names = append(names, feed.Name)
	}

	info := FeedInfoDTO{
		Title:  strings.Join(names, ", "),
		Tokens: tokens,
		Colors: feedColors,
	}
	if err := json.NewEncoder(w).Encode(info); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// toEventDTO formats a primitive event: date ranges as calendar dates,
// instant ranges as UTC timestamps.
func toEventDTO(ev event.PrimitiveEvent) EventDTO {
	dto := EventDTO{Title: ev.Summary}
	ev.Range.Either(
		func(start, end time.Time) {
			dto.Start = start.Format(dateFormat)
			dto.End = end.Format(dateFormat)
		},
		func(start, end time.Time) {
			dto.Start = start.Format(instantFormat)
			dto.End = end.Format(instantFormat)
		},
	)
	return dto
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	w.WriteHeader(status)
	encodeErr := json.NewEncoder(w).Encode(rest.ErrorResponse{
		Error:   message,
		Details: details,
	})
	if encodeErr != nil {
		http.Error(w, encodeErr.Error(), http.StatusInternalServerError)
	}
}
