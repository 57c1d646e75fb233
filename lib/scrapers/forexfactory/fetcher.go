package forexfactory

import (
	"context"
)

// PageFetcher retrieves the raw calendar page for one week. Fetch errors
// are transient and retry-eligible; implementations may retry
// internally, callers add their own retry on top.
type PageFetcher interface {
	Fetch(ctx context.Context, week WeekWindow) ([]byte, error)
	Close() error
}

// FetcherFactory recreates a fetcher from scratch. The campaign loop
// disposes and recreates its fetcher between retries, assuming the
// previous instance may be in a poisoned or detected state.
type FetcherFactory func(ctx context.Context) (PageFetcher, error)

// rotated between fetcher instances to avoid presenting one fingerprint
// across a long campaign
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:106.0) Gecko/20100101 Firefox/106.0",
}
