package align

import (
	"context"
	"sort"
	"strings"
	"time"

	ff "fxlab/lib/scrapers/forexfactory"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("services/align")

// Join attaches to each candle the nearest calendar event within
// ±window, measured by absolute time distance. Candles with no event in
// their window keep empty news columns. Inputs are re-sorted by time, so
// callers may pass them in any order.
func Join(ctx context.Context, candles []Candle, events []ff.Event, window time.Duration) []Candle {
	ctx, span := tracer.Start(ctx, "Join")
	defer span.End()
	span.SetAttributes(
		attribute.Int("candles", len(candles)),
		attribute.Int("events", len(events)),
		attribute.Float64("window_minutes", window.Minutes()),
	)

	out := make([]Candle, len(candles))
	copy(out, candles)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })

	sorted := make([]ff.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	attached := 0
	for i := range out {
		ev, ok := nearestEvent(sorted, out[i].Time, window)
		if !ok {
			continue
		}
		// display copy like "High Impact Expected" reduces to its
		// leading word
		out[i].NewsImpact = strings.Fields(ev.Impact.String())[0]
		out[i].NewsEvent = ev.Name
		out[i].NewsCurrency = ev.Currency
		minutes := int(ev.Timestamp.Sub(out[i].Time).Minutes())
		out[i].MinutesFromNews = &minutes
		attached++
	}
	span.SetAttributes(attribute.Int("attached", attached))

	return out
}

// nearestEvent binary-searches the sorted event list for the event
// closest to t; ties break toward the earlier event. Returns false when
// nothing falls inside ±window.
func nearestEvent(events []ff.Event, t time.Time, window time.Duration) (ff.Event, bool) {
	if len(events) == 0 {
		return ff.Event{}, false
	}

	i := sort.Search(len(events), func(i int) bool {
		return !events[i].Timestamp.Before(t)
	})

	best := -1
	var bestDist time.Duration
	for _, j := range []int{i - 1, i} {
		if j < 0 || j >= len(events) {
			continue
		}
		dist := events[j].Timestamp.Sub(t)
		if dist < 0 {
			dist = -dist
		}
		if best == -1 || dist < bestDist {
			best = j
			bestDist = dist
		}
	}

	if best == -1 || bestDist > window {
		return ff.Event{}, false
	}
	return events[best], true
}
