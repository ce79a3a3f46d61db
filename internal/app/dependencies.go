package app

import (
	"time"

	"github.com/funbiscuit/icaliada/internal/cache"
	"github.com/funbiscuit/icaliada/internal/config"
	"github.com/funbiscuit/icaliada/pkg/feed"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	FeedService feed.Service
	FeedHandler *feed.Handler
}

func BuildDependencies(cfg config.Application) *Dependencies {
	store := cache.NewTTLStore(time.Duration(cfg.Fetch.CacheTTLSeconds) * time.Second)
	fetcher := feed.NewHTTPFetcher(time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second)

	feedService := feed.NewService(cfg, fetcher, store)
	feedHandler := feed.NewHandler(feedService, cfg)

	return &Dependencies{
		FeedService: feedService,
		FeedHandler: feedHandler,
	}
}
