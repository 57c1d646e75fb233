package forexfactory

import (
	"fmt"
	"time"

	"fxlab/lib/timezone"
)

// WeekWindow is a monday-anchored 7-day period, the unit of fetch/cache
// granularity. Immutable once created.
type WeekWindow struct {
	Anchor time.Time
}

// NewWeekWindow normalizes any date to the monday of its week, at
// midnight in the source timezone.
func NewWeekWindow(d time.Time) WeekWindow {
	d = d.In(timezone.Location)
	offset := (int(d.Weekday()) + 6) % 7
	monday := time.Date(d.Year(), d.Month(), d.Day()-offset, 0, 0, 0, 0, timezone.Location)
	return WeekWindow{Anchor: monday}
}

// Key is the YYYYMMDD form of the anchor, used to name week artifacts.
func (w WeekWindow) Key() string {
	return w.Anchor.Format("20060102")
}

func (w WeekWindow) URL() string {
	return fmt.Sprintf("https://www.forexfactory.com/calendar?week=%s", w.Anchor.Format("Jan02.2006"))
}

func (w WeekWindow) Next() WeekWindow {
	return WeekWindow{Anchor: w.Anchor.AddDate(0, 0, 7)}
}

// Weeks returns the week windows covering [start, end] inclusive.
func Weeks(start, end time.Time) []WeekWindow {
	var out []WeekWindow
	for w := NewWeekWindow(start); !w.Anchor.After(end.In(timezone.Location)); w = w.Next() {
		out = append(out, w)
	}
	return out
}
