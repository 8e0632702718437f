package app

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"time"
)

// Loader fetches the published events feed and renders it into a grid.
type Loader struct {
	Client *http.Client
	URL    string
	Grid   *Grid
}

// NewLoader returns a Loader with a tuned HTTP client.
func NewLoader(feedURL string, grid *Grid) *Loader {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &Loader{
		Client: &http.Client{Timeout: 10 * time.Second, Transport: tr},
		URL:    feedURL,
		Grid:   grid,
	}
}

// LoadEvents performs one GET against the feed, decodes the record
// sequence and hands it to the grid. Any failure (network, non-2xx
// status, malformed body) is logged once and absorbed: the grid keeps
// whatever it held before the call. No retries.
func (l *Loader) LoadEvents(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		FeedLoads.WithLabelValues("error").Inc()
		log.Printf("Error loading events feed: %v", err)
		return
	}

	resp, err := l.Client.Do(req)
	if err != nil {
		FeedLoads.WithLabelValues("error").Inc()
		log.Printf("Error loading events feed: %v", err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		FeedLoads.WithLabelValues("error").Inc()
		log.Printf("Error loading events feed: unexpected status %s", resp.Status)
		return
	}

	var events []EventRecord
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		FeedLoads.WithLabelValues("error").Inc()
		log.Printf("Error loading events feed: %v", err)
		return
	}

	l.Grid.DisplayEvents(events)
	FeedLoads.WithLabelValues("ok").Inc()
}

// Bootstrap triggers the initial feed load exactly once. The load runs in
// its own goroutine and is never joined; if it fails the grid stays empty
// until an admin refresh.
func Bootstrap(l *Loader) {
	go l.LoadEvents(context.Background())
}
