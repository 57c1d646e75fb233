package align

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"fxlab/lib/timezone"
)

// Candle is one OHLCV bar, plus the news columns attached by the join
// and the label attached downstream. Pointer fields stay nil until the
// corresponding stage has run.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64

	NewsImpact      string
	NewsEvent       string
	NewsCurrency    string
	MinutesFromNews *int

	Label *int
}

const timeLayout = "2006-01-02 15:04:05"

var candleColumns = []string{
	"time", "open", "high", "low", "close", "volume",
	"news_impact", "news_event", "news_currency", "minutes_from_news", "label",
}

// ReadCandles accepts both bare OHLCV exports (6 columns) and tables
// that already carry the joined/labeled columns.
func ReadCandles(r io.Reader) ([]Candle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	var candles []Candle
	for _, rec := range records[1:] {
		if len(rec) < 6 {
			return nil, fmt.Errorf("malformed candle row: expected at least 6 columns, got %d", len(rec))
		}
		var c Candle
		c.Time, err = time.ParseInLocation(timeLayout, rec[0], timezone.Location)
		if err != nil {
			return nil, fmt.Errorf("malformed candle time %q: %w", rec[0], err)
		}
		for i, dst := range []*float64{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume} {
			*dst, err = strconv.ParseFloat(rec[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("malformed candle value %q: %w", rec[i+1], err)
			}
		}

		if len(rec) >= 10 {
			c.NewsImpact = rec[6]
			c.NewsEvent = rec[7]
			c.NewsCurrency = rec[8]
			if rec[9] != "" {
				minutes, err := strconv.Atoi(rec[9])
				if err != nil {
					return nil, fmt.Errorf("malformed minutes_from_news %q: %w", rec[9], err)
				}
				c.MinutesFromNews = &minutes
			}
		}
		if len(rec) >= 11 && rec[10] != "" {
			label, err := strconv.Atoi(rec[10])
			if err != nil {
				return nil, fmt.Errorf("malformed label %q: %w", rec[10], err)
			}
			c.Label = &label
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func WriteCandles(w io.Writer, candles []Candle) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(candleColumns); err != nil {
		return err
	}
	for _, c := range candles {
		minutes := ""
		if c.MinutesFromNews != nil {
			minutes = strconv.Itoa(*c.MinutesFromNews)
		}
		label := ""
		if c.Label != nil {
			label = strconv.Itoa(*c.Label)
		}
		err := cw.Write([]string{
			c.Time.In(timezone.Location).Format(timeLayout),
			formatFloat(c.Open), formatFloat(c.High), formatFloat(c.Low),
			formatFloat(c.Close), formatFloat(c.Volume),
			c.NewsImpact, c.NewsEvent, c.NewsCurrency, minutes, label,
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
