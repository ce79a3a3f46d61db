package feed

import (
	"context"
	"fmt"
	"sync"
)

// StubFetcher serves calendar bodies from memory and records every fetch.
// Safe for the concurrent fan-out the feed service performs.
type StubFetcher struct {
	mu     sync.Mutex
	Bodies map[string][]byte
	calls  []string
}

func NewStubFetcher() *StubFetcher {
	return &StubFetcher{Bodies: make(map[string][]byte)}
}

func (f *StubFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	body, ok := f.Bodies[url]
	f.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSourceUnavailable, url)
	}
	return body, nil
}

// Calls returns the URLs fetched so far, in call order.
func (f *StubFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
