package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
}

// the calendar source publishes datelines in US eastern time, so every
// timestamp in the pipeline is pinned there regardless of where the
// scraper host runs, otherwise week anchors and day headings drift by a
// day around midnight.
func Now() time.Time {
	return time.Now().In(Location)
}
