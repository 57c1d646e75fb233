package forexfactory

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"fxlab/lib/timezone"
)

type Impact int

const (
	ImpactUnknown Impact = iota
	ImpactLow
	ImpactMedium
	ImpactHigh
)

func (i Impact) String() string {
	switch i {
	case ImpactLow:
		return "Low"
	case ImpactMedium:
		return "Medium"
	case ImpactHigh:
		return "High"
	}
	return "Unknown"
}

// the source exposes impact both as css classes ("impact-high") and as
// display copy ("High Impact Expected"), this accepts either
func ParseImpact(s string) Impact {
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "high"):
		return ImpactHigh
	case strings.Contains(s, "medium"):
		return ImpactMedium
	case strings.Contains(s, "low"):
		return ImpactLow
	}
	return ImpactUnknown
}

// Event is one economic-calendar entry. Actual, Forecast and Previous
// are free text and legitimately change across re-scrapes as the
// real-world number gets revised; everything else is fixed at publish.
type Event struct {
	Timestamp time.Time
	// the source schedules some events on a day with no intraday time
	AllDay   bool
	Currency string
	Impact   Impact
	Name     string
	Actual   string
	Forecast string
	Previous string
	// raw day heading as shown by the source, kept for traceability
	DayLabel    string
	IdentityKey string
}

// NameOrFallback returns the event name, or a deterministic composite of
// the value labels when the source gives the event no name. Two unnamed
// events at the same slot with literally identical values collide on
// purpose.
func (e Event) NameOrFallback() string {
	if e.Name != "" {
		return e.Name
	}
	return fmt.Sprintf("actual:%s|forecast:%s|previous:%s", e.Actual, e.Forecast, e.Previous)
}

// IdentityKey hashes the immutable attributes of an event. Volatile
// fields (actual/forecast/previous) must never feed the hash of a named
// event: they mutate after publication while the event stays the same,
// hashing them would fork one real event into several rows across
// re-scrapes.
func IdentityKey(ts time.Time, currency, nameOrFallback string) string {
	input := ts.UTC().Format(time.RFC3339) + "|" + currency + "|" + nameOrFallback
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

func (e *Event) fillIdentity() {
	e.IdentityKey = IdentityKey(e.Timestamp, e.Currency, e.NameOrFallback())
}

const (
	timestampLayout = "2006-01-02 15:04:05"
	dateOnlyLayout  = "2006-01-02"
)

var csvColumns = []string{
	"timestamp", "currency", "impact", "event",
	"actual", "forecast", "previous", "day", "event_id",
}

func WriteCSV(w io.Writer, events []Event) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvColumns); err != nil {
		return err
	}
	for _, e := range events {
		ts := e.Timestamp.In(timezone.Location).Format(timestampLayout)
		if e.AllDay {
			ts = e.Timestamp.In(timezone.Location).Format(dateOnlyLayout)
		}
		err := cw.Write([]string{
			ts, e.Currency, e.Impact.String(), e.Name,
			e.Actual, e.Forecast, e.Previous, e.DayLabel, e.IdentityKey,
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ReadCSV(r io.Reader) ([]Event, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	var events []Event
	for _, rec := range records[1:] {
		if len(rec) != len(csvColumns) {
			return nil, fmt.Errorf("malformed event row: expected %d columns, got %d", len(csvColumns), len(rec))
		}
		e := Event{
			Currency:    rec[1],
			Impact:      ParseImpact(rec[2]),
			Name:        rec[3],
			Actual:      rec[4],
			Forecast:    rec[5],
			Previous:    rec[6],
			DayLabel:    rec[7],
			IdentityKey: rec[8],
		}
		e.Timestamp, err = time.ParseInLocation(timestampLayout, rec[0], timezone.Location)
		if err != nil {
			e.Timestamp, err = time.ParseInLocation(dateOnlyLayout, rec[0], timezone.Location)
			if err != nil {
				return nil, fmt.Errorf("malformed event timestamp %q: %w", rec[0], err)
			}
			e.AllDay = true
		}
		events = append(events, e)
	}
	return events, nil
}
