package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	ff "fxlab/lib/scrapers/forexfactory"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/calendar")

const fetchAttempts = 3

// Controller drives the fetch/parse/save cycle for a single week:
// Pending -> Fetching -> Parsing -> Saved|Failed. It holds no state
// across weeks.
type Controller struct {
	weeks WeekStore
	debug DebugStore
}

func NewController(weeks WeekStore, debug DebugStore) Controller {
	return Controller{weeks: weeks, debug: debug}
}

// FetchWeek fetches and parses one week, writing the weekly table on
// success and returning the number of saved events. A transient fetch
// failure restarts the whole page load (stale bytes are never
// re-parsed: failures are usually incomplete renders, not parser bugs).
// Weeks already persisted are skipped without any network activity.
func (c Controller) FetchWeek(ctx context.Context, fetcher ff.PageFetcher, week ff.WeekWindow) (int, error) {
	ctx, span := tracer.Start(ctx, "FetchWeek")
	defer span.End()
	span.SetAttributes(attribute.String("week", week.Key()))

	if c.weeks.Has(week) {
		slog.InfoContext(ctx, "week already scraped", "week", week.Key())
		span.SetAttributes(attribute.Bool("cached", true))
		return 0, nil
	}

	var raw []byte
	var err error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		raw, err = fetcher.Fetch(ctx, week)
		if err == nil {
			break
		}
		slog.WarnContext(ctx, "fetch attempt failed", "week", week.Key(), "attempt", attempt, "err", err)
		if attempt < fetchAttempts {
			sleepJitter(ctx, 3, 6)
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "week fetch exhausted retries")
		return 0, fmt.Errorf("fetching week %s: %w", week.Key(), err)
	}

	events, err := ff.ParseWeek(ctx, raw, week)
	if err != nil || len(events) == 0 {
		c.debug.Write(week, raw)
		if err == nil {
			err = fmt.Errorf("no events parsed")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "week parse failed")
		return 0, fmt.Errorf("parsing week %s: %w", week.Key(), err)
	}

	err = c.weeks.Write(week, events)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist weekly table")
		return 0, err
	}

	slog.InfoContext(ctx, "saved week", "week", week.Key(), "events", len(events))
	span.SetAttributes(attribute.Int("events", len(events)))
	return len(events), nil
}

// shrunk by tests so retry paths don't sleep for real
var jitterUnit = time.Second

// sleepJitter pauses for a random duration in [minUnits, maxUnits)
// jitter units. The jitter is deliberate backpressure: the source
// penalizes rapid scripted access.
func sleepJitter(ctx context.Context, minUnits, maxUnits int) {
	units, err := random.IntRange(minUnits, maxUnits)
	if err != nil {
		units = minUnits
	}
	select {
	case <-time.After(time.Duration(units) * jitterUnit):
	case <-ctx.Done():
	}
}
