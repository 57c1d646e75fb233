package label

import (
	"context"
	"math"

	"fxlab/services/align"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("services/label")

// FilterOptions narrows joined candles down to the ones worth labeling.
type FilterOptions struct {
	// news impact values that qualify, e.g. Medium and High
	AllowedImpacts []string
	// maximum |minutes_from_news| for a candle to count as news-adjacent
	MaxMinutesFromNews int
	// minimum high-low range, filters out flat candles
	MinCandleRange float64
}

var DefaultFilterOptions = FilterOptions{
	AllowedImpacts:     []string{"Medium", "High"},
	MaxMinutesFromNews: 60,
	MinCandleRange:     0.0003,
}

// LabelOptions controls the forward-looking delta labeling.
type LabelOptions struct {
	// how many candles ahead to compare against
	Horizon int
	// price delta beyond which a move counts as up or down
	Threshold float64
}

var DefaultLabelOptions = LabelOptions{
	Horizon:   3,
	Threshold: 0.0005,
}

// Filter keeps rows whose attached news is relevant to the traded symbol
// and whose candle moved enough to matter. A symbol like "EURUSDm"
// implies the currencies EUR and USD; news in any other currency is
// noise for that symbol.
func Filter(ctx context.Context, rows []align.Candle, symbol string, opts FilterOptions) []align.Candle {
	ctx, span := tracer.Start(ctx, "Filter")
	defer span.End()
	span.SetAttributes(attribute.Int("rows", len(rows)), attribute.String("symbol", symbol))

	if len(symbol) < 6 {
		return nil
	}
	base, quote := symbol[0:3], symbol[3:6]

	var out []align.Candle
	for _, row := range rows {
		if !newsRelevant(row, base, quote, opts) {
			continue
		}
		if math.Abs(row.High-row.Low) < opts.MinCandleRange {
			continue
		}
		out = append(out, row)
	}
	span.SetAttributes(attribute.Int("kept", len(out)))
	return out
}

func newsRelevant(row align.Candle, base, quote string, opts FilterOptions) bool {
	if row.MinutesFromNews == nil {
		return false
	}
	if row.NewsCurrency != base && row.NewsCurrency != quote {
		return false
	}
	if abs(*row.MinutesFromNews) > opts.MaxMinutesFromNews {
		return false
	}
	for _, impact := range opts.AllowedImpacts {
		if row.NewsImpact == impact {
			return true
		}
	}
	return false
}

// LabelRows marks each row up (+1), down (-1) or flat (0) by comparing
// its close against the close `horizon` rows ahead. The final horizon
// rows stay unlabeled: no future candle exists for them.
func LabelRows(ctx context.Context, rows []align.Candle, opts LabelOptions) []align.Candle {
	ctx, span := tracer.Start(ctx, "LabelRows")
	defer span.End()
	span.SetAttributes(attribute.Int("rows", len(rows)), attribute.Int("horizon", opts.Horizon))

	out := make([]align.Candle, len(rows))
	copy(out, rows)

	for i := 0; i+opts.Horizon < len(out); i++ {
		delta := out[i+opts.Horizon].Close - out[i].Close
		label := 0
		if delta > opts.Threshold {
			label = 1
		} else if delta < -opts.Threshold {
			label = -1
		}
		l := label
		out[i].Label = &l
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
