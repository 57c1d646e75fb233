package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	ff "fxlab/lib/scrapers/forexfactory"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const weekAttempts = 3

// MergedFilename is the merged calendar written next to the weekly
// tables after a campaign.
const MergedFilename = "fx_news.csv"

// RunReport summarizes one campaign so callers can assert on outcomes
// instead of scraping log lines.
type RunReport struct {
	WeeksAttempted int
	WeeksSkipped   int
	WeeksSucceeded int
	WeeksFailed    int
	FailedWeeks    []string
	EventsMerged   int
}

// Campaign iterates a date range week by week, fetching each unsatisfied
// week through a fetcher it exclusively owns, then merges all persisted
// weekly tables into one sorted deduplicated calendar.
type Campaign struct {
	factory    ff.FetcherFactory
	controller Controller
	weeks      WeekStore
	store      *EventStore // optional sqlite sink for the merged calendar
}

func NewCampaign(factory ff.FetcherFactory, weeks WeekStore, debug DebugStore) *Campaign {
	return &Campaign{
		factory:    factory,
		controller: NewController(weeks, debug),
		weeks:      weeks,
	}
}

// WithEventStore additionally upserts the merged calendar into a sqlite
// event store after the run.
func (c *Campaign) WithEventStore(store *EventStore) *Campaign {
	c.store = store
	return c
}

// Run processes every week window in [start, end] inclusive. A week that
// exhausts its retries is a terminal failure for that week only; the
// campaign carries on. Only failing to create the fetcher at all aborts
// the run.
func (c *Campaign) Run(ctx context.Context, start, end time.Time) (RunReport, error) {
	ctx, span := tracer.Start(ctx, "Campaign.Run")
	defer span.End()

	var report RunReport

	windows := ff.Weeks(start, end)
	span.SetAttributes(attribute.Int("weeks", len(windows)))

	fetcher, err := c.factory(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cannot create page fetcher")
		return report, fmt.Errorf("creating page fetcher: %w", err)
	}
	defer func() {
		if fetcher != nil {
			fetcher.Close()
		}
	}()

	for _, week := range windows {
		if ctx.Err() != nil {
			break
		}
		report.WeeksAttempted++

		if c.weeks.Has(week) {
			slog.InfoContext(ctx, "week already satisfied, skipping", "week", week.Key())
			report.WeeksSkipped++
			continue
		}

		saved := false
		for attempt := 1; attempt <= weekAttempts; attempt++ {
			_, err := c.controller.FetchWeek(ctx, fetcher, week)
			if err == nil {
				saved = true
				break
			}
			slog.ErrorContext(ctx, "week attempt failed", "week", week.Key(), "attempt", attempt, "err", err)

			if attempt < weekAttempts {
				// assume the fetcher is poisoned or detected and
				// rebuild it from scratch before the next page load
				fetcher.Close()
				fetcher, err = c.factory(ctx)
				if err != nil {
					fetcher = nil
					span.RecordError(err)
					span.SetStatus(codes.Error, "cannot recreate page fetcher")
					return report, fmt.Errorf("recreating page fetcher: %w", err)
				}
				sleepJitter(ctx, 3, 6)
			}
		}

		if saved {
			report.WeeksSucceeded++
		} else {
			slog.ErrorContext(ctx, "week failed all attempts", "week", week.Key(), "attempts", weekAttempts)
			report.WeeksFailed++
			report.FailedWeeks = append(report.FailedWeeks, week.Key())
		}

		sleepJitter(ctx, 2, 4)
	}

	merged, err := c.Merge(ctx)
	if err != nil {
		return report, err
	}
	report.EventsMerged = len(merged)

	return report, nil
}

// Merge concatenates all persisted weekly tables, deduplicates by
// identity key (last seen wins) and writes the sorted result. Zero
// weekly tables is a warning, not a failure.
func (c *Campaign) Merge(ctx context.Context) ([]ff.Event, error) {
	ctx, span := tracer.Start(ctx, "Campaign.Merge")
	defer span.End()

	all, err := c.weeks.ReadAll()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read weekly tables")
		return nil, err
	}
	if len(all) == 0 {
		slog.WarnContext(ctx, "no weekly tables to merge")
		return nil, nil
	}

	merged := MergeEvents(all)
	span.SetAttributes(attribute.Int("events", len(merged)))

	path := filepath.Join(c.weeks.dir, MergedFilename)
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := ff.WriteCSV(f, merged); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write merged calendar")
		return nil, err
	}
	slog.InfoContext(ctx, "merged calendar written", "path", path, "events", len(merged))

	if c.store != nil {
		if err := c.store.Put(ctx, merged); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to upsert merged calendar into event store")
			return nil, err
		}
	}

	return merged, nil
}
