package forexfactory

import (
	"context"
	"fmt"
	"net/http/cookiejar"
	"time"

	"fxlab/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/codes"
)

type HTTPFetcherOptions struct {
	// overrides the built-in rotation when non-empty
	UserAgents []string `json:"user_agents"`
	// request timeout in seconds, 30 when unset
	TimeoutSeconds int `json:"timeout_seconds"`
}

type httpFetcher struct {
	http *resty.Client
}

// NewHTTPFetcher builds a plain http fetcher. The calendar host sits
// behind cloudflare, so the transport is wrapped with the bypass
// round-tripper and requests carry a randomized browser user-agent.
func NewHTTPFetcher(opts HTTPFetcherOptions) (PageFetcher, error) {
	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	agents := opts.UserAgents
	if len(agents) == 0 {
		agents = defaultUserAgents
	}
	idx, err := random.IntRange(0, len(agents))
	if err != nil {
		return nil, err
	}
	client.SetHeader("user-agent", agents[idx])

	timeout := time.Second * 30
	if opts.TimeoutSeconds > 0 {
		timeout = time.Duration(opts.TimeoutSeconds) * time.Second
	}
	client.SetTimeout(timeout)

	telemetry.InstrumentResty(client, "scrapers/forexfactory/http")

	return &httpFetcher{http: client}, nil
}

func (f *httpFetcher) Fetch(ctx context.Context, week WeekWindow) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "httpFetcher.Fetch")
	defer span.End()

	res, err := f.http.R().
		SetContext(ctx).
		Get(week.URL())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch calendar week")
		return nil, err
	}
	if res.StatusCode() != 200 {
		err := fmt.Errorf("calendar week %s: unexpected status %d", week.Key(), res.StatusCode())
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return res.Body(), nil
}

func (f *httpFetcher) Close() error {
	return nil
}
