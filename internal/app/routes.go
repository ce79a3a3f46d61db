package app

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	// Feed
	r.HandleFunc("/api/feed/events", deps.FeedHandler.GetEvents).Methods("GET")
	r.HandleFunc("/api/feed", deps.FeedHandler.GetFeedInfo).Methods("GET")
}
