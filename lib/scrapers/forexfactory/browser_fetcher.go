package forexfactory

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/codes"
)

type BrowserFetcherOptions struct {
	Headless bool `json:"headless"`
	// path to a chrome binary, the launcher downloads one when empty
	Bin string `json:"bin"`
	// seconds to wait for the calendar table to render, 15 when unset
	RenderTimeoutSeconds int `json:"render_timeout_seconds"`
}

type browserFetcher struct {
	launcher      *launcher.Launcher
	browser       *rod.Browser
	renderTimeout time.Duration
}

// NewBrowserFetcher drives a real chrome instance through rod with the
// stealth page patches. The calendar host actively detects automation,
// so the plain http fetcher is the fallback and this is the default.
func NewBrowserFetcher(opts BrowserFetcherOptions) (PageFetcher, error) {
	l := launcher.New().
		Headless(opts.Headless).
		NoSandbox(true).
		Set("disable-blink-features", "AutomationControlled")
	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}

	renderTimeout := time.Second * 15
	if opts.RenderTimeoutSeconds > 0 {
		renderTimeout = time.Duration(opts.RenderTimeoutSeconds) * time.Second
	}

	return &browserFetcher{
		launcher:      l,
		browser:       browser,
		renderTimeout: renderTimeout,
	}, nil
}

func (f *browserFetcher) Fetch(ctx context.Context, week WeekWindow) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "browserFetcher.Fetch")
	defer span.End()

	page, err := stealth.Page(f.browser)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open stealth page")
		return nil, err
	}
	defer page.Close()
	page = page.Context(ctx)

	if err := page.Navigate(week.URL()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to navigate to calendar week")
		return nil, err
	}
	if err := page.WaitLoad(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "page never finished loading")
		return nil, err
	}

	// the calendar table is rendered client-side after load; a page
	// without it is an incomplete render and worth a retry upstream
	_, err = page.Timeout(f.renderTimeout).Element("table.calendar__table")
	if err != nil {
		span.SetStatus(codes.Error, "calendar table never rendered")
		return nil, fmt.Errorf("calendar table not rendered for week %s: %w", week.Key(), err)
	}

	// small human-ish settle pause, the source penalizes rapid scripted
	// navigation
	settle, err := random.IntRange(1, 3)
	if err == nil {
		time.Sleep(time.Duration(settle) * time.Second)
	}

	html, err := page.HTML()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read page html")
		return nil, err
	}
	return []byte(html), nil
}

func (f *browserFetcher) Close() error {
	err := f.browser.Close()
	f.launcher.Cleanup()
	return err
}
