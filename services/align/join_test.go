package align

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	ff "fxlab/lib/scrapers/forexfactory"
	"fxlab/lib/timezone"

	"github.com/stretchr/testify/require"
)

func candleAt(ts time.Time) Candle {
	return Candle{Time: ts, Open: 1.1, High: 1.2, Low: 1.0, Close: 1.15, Volume: 100}
}

func eventAt(ts time.Time, name, currency string, impact ff.Impact) ff.Event {
	e := ff.Event{Timestamp: ts, Currency: currency, Impact: impact, Name: name}
	e.IdentityKey = ff.IdentityKey(ts, currency, e.NameOrFallback())
	return e
}

func TestJoinAttachesNearestEventInWindow(t *testing.T) {
	noon := time.Date(2024, 7, 1, 12, 0, 0, 0, timezone.Location)

	candles := []Candle{candleAt(noon)}
	events := []ff.Event{eventAt(noon.Add(45*time.Minute), "FOMC Statement", "USD", ff.ImpactHigh)}

	out := Join(context.Background(), candles, events, 60*time.Minute)
	require.Len(t, out, 1)
	require.Equal(t, "High", out[0].NewsImpact)
	require.Equal(t, "FOMC Statement", out[0].NewsEvent)
	require.Equal(t, "USD", out[0].NewsCurrency)
	require.NotNil(t, out[0].MinutesFromNews)
	require.Equal(t, 45, *out[0].MinutesFromNews)
}

func TestJoinLeavesCandleOutsideWindowUntouched(t *testing.T) {
	noon := time.Date(2024, 7, 1, 12, 0, 0, 0, timezone.Location)

	candles := []Candle{candleAt(noon)}
	events := []ff.Event{eventAt(noon.Add(90*time.Minute), "FOMC Statement", "USD", ff.ImpactHigh)}

	out := Join(context.Background(), candles, events, 60*time.Minute)
	require.Len(t, out, 1)
	require.Empty(t, out[0].NewsEvent)
	require.Nil(t, out[0].MinutesFromNews)
}

func TestJoinPicksNearestEvent(t *testing.T) {
	noon := time.Date(2024, 7, 1, 12, 0, 0, 0, timezone.Location)

	candles := []Candle{candleAt(noon)}
	events := []ff.Event{
		eventAt(noon.Add(-50*time.Minute), "Earlier Event", "EUR", ff.ImpactMedium),
		eventAt(noon.Add(20*time.Minute), "Closer Event", "USD", ff.ImpactHigh),
	}

	out := Join(context.Background(), candles, events, 60*time.Minute)
	require.Equal(t, "Closer Event", out[0].NewsEvent)
	require.Equal(t, 20, *out[0].MinutesFromNews)
}

func TestJoinAttributesEventToNearestCandle(t *testing.T) {
	noon := time.Date(2024, 7, 1, 12, 0, 0, 0, timezone.Location)

	// the 13:05 event is 65 minutes from the noon candle (outside ±60)
	// but 5 minutes from the 13:00 candle, which must claim it
	candles := []Candle{candleAt(noon), candleAt(noon.Add(time.Hour))}
	events := []ff.Event{eventAt(noon.Add(65*time.Minute), "Crude Oil Inventories", "USD", ff.ImpactLow)}

	out := Join(context.Background(), candles, events, 60*time.Minute)
	require.Len(t, out, 2)
	require.Empty(t, out[0].NewsEvent)
	require.Equal(t, "Crude Oil Inventories", out[1].NewsEvent)
	require.Equal(t, 5, *out[1].MinutesFromNews)
}

func TestJoinSortsUnorderedInput(t *testing.T) {
	noon := time.Date(2024, 7, 1, 12, 0, 0, 0, timezone.Location)

	candles := []Candle{candleAt(noon.Add(time.Hour)), candleAt(noon)}
	events := []ff.Event{eventAt(noon, "CPI y/y", "USD", ff.ImpactHigh)}

	out := Join(context.Background(), candles, events, 30*time.Minute)
	require.True(t, out[0].Time.Equal(noon))
	require.Equal(t, "CPI y/y", out[0].NewsEvent)
	require.Empty(t, out[1].NewsEvent)
}

func TestCandleCSVRoundTrip(t *testing.T) {
	noon := time.Date(2024, 7, 1, 12, 0, 0, 0, timezone.Location)
	minutes := 45
	label := -1

	candles := []Candle{
		{Time: noon, Open: 1.1, High: 1.2, Low: 1.0, Close: 1.15, Volume: 100},
		{
			Time: noon.Add(time.Minute), Open: 1.15, High: 1.25, Low: 1.05, Close: 1.2, Volume: 200,
			NewsImpact: "High", NewsEvent: "FOMC Statement", NewsCurrency: "USD",
			MinutesFromNews: &minutes, Label: &label,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCandles(&buf, candles))

	got, err := ReadCandles(&buf)
	require.NoError(t, err)
	require.Equal(t, candles, got)
}

func TestReadCandlesBareOHLCV(t *testing.T) {
	csv := strings.Join([]string{
		"time,open,high,low,close,volume",
		"2024-07-01 12:00:00,1.1,1.2,1.0,1.15,100",
		"2024-07-01 12:01:00,1.15,1.25,1.05,1.2,200",
	}, "\n")

	candles, err := ReadCandles(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, candles, 2)
	require.True(t, candles[0].Time.Equal(time.Date(2024, 7, 1, 12, 0, 0, 0, timezone.Location)))
	require.Equal(t, 1.15, candles[0].Close)
	require.Nil(t, candles[0].MinutesFromNews)
	require.Nil(t, candles[0].Label)
}
