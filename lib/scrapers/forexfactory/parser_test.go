package forexfactory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"fxlab/lib/timezone"

	"github.com/stretchr/testify/require"
)

func testWeek() WeekWindow {
	return NewWeekWindow(time.Date(2024, 7, 1, 0, 0, 0, 0, timezone.Location))
}

func TestParseWeekEmbeddedState(t *testing.T) {
	week := testWeek()
	cpi := time.Date(2024, 7, 1, 8, 30, 0, 0, timezone.Location)
	rate := time.Date(2024, 7, 2, 14, 0, 0, 0, timezone.Location)

	// the state literal is json5, not strict json: unquoted keys and
	// trailing commas are what the source actually serves
	page := fmt.Sprintf(`<html><head><script>
var other = {};
calendarComponentStates[1] = {
	days: [
		{
			date: "<strong>Monday</strong> <span>Jul 1</span>",
			events: [
				{dateline: %d, name: "CPI y/y", currency: "USD", impactTitle: "High Impact Expected", actual: "3.0%%", forecast: "3.1%%", previous: "3.2%%"},
				{dateline: 0, name: "no dateline", currency: "USD", impactTitle: ""},
			],
		},
		{
			date: "<strong>Tuesday</strong> <span>Jul 2</span>",
			events: [
				{dateline: %d, name: "Cash Rate", currency: "AUD", impactTitle: "Medium Impact Expected", actual: "", forecast: "4.35%%", previous: "4.35%%"},
			],
		},
	],
};
</script></head><body></body></html>`, cpi.Unix(), rate.Unix())

	events, err := ParseWeek(context.Background(), []byte(page), week)
	require.NoError(t, err)
	require.Len(t, events, 2)

	require.True(t, events[0].Timestamp.Equal(cpi))
	require.Equal(t, "USD", events[0].Currency)
	require.Equal(t, ImpactHigh, events[0].Impact)
	require.Equal(t, "CPI y/y", events[0].Name)
	require.Equal(t, "3.0%", events[0].Actual)
	require.Equal(t, "3.1%", events[0].Forecast)
	require.Equal(t, "3.2%", events[0].Previous)
	require.Equal(t, "Monday Jul 1", events[0].DayLabel)
	require.NotEmpty(t, events[0].IdentityKey)

	require.True(t, events[1].Timestamp.Equal(rate))
	require.Equal(t, "AUD", events[1].Currency)
	require.Equal(t, ImpactMedium, events[1].Impact)
	require.Equal(t, "Cash Rate", events[1].Name)
}

func TestParseWeekWindowStateVariant(t *testing.T) {
	week := testWeek()
	ts := time.Date(2024, 7, 3, 10, 0, 0, 0, timezone.Location)

	// some variants assign to window and nest the days under a "1" key
	page := fmt.Sprintf(`<html><script>
window.calendarComponentStates = {
	"1": {
		days: [
			{date: "Wednesday Jul 3", events: [{dateline: %d, name: "Crude Oil Inventories", currency: "USD", impactTitle: "Low Impact Expected"}]},
		],
	},
};
</script></html>`, ts.Unix())

	events, err := ParseWeek(context.Background(), []byte(page), week)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.True(t, events[0].Timestamp.Equal(ts))
	require.Equal(t, "Crude Oil Inventories", events[0].Name)
	require.Equal(t, ImpactLow, events[0].Impact)
}

func TestParseWeekFallsBackToDOMRows(t *testing.T) {
	week := testWeek()

	// state anchor present but malformed: the parser must fall through to
	// the dom strategy instead of escalating the decode failure
	page := `<html><head><script>calendarComponentStates[1] = {days: [{]};</script></head>
<body><table class="calendar__table">
<tr class="calendar__row">
	<td class="calendar__cell calendar__date"><span>MonJul 1</span></td>
	<td class="calendar__cell calendar__time">8:30am</td>
	<td class="calendar__cell calendar__currency">USD</td>
	<td class="calendar__cell calendar__impact"><span class="icon" title="High Impact Expected"></span></td>
	<td class="calendar__cell calendar__event"><span class="calendar__event-title">Non-Farm Employment Change</span></td>
	<td class="calendar__cell calendar__actual">206K</td>
	<td class="calendar__cell calendar__forecast">191K</td>
	<td class="calendar__cell calendar__previous">218K</td>
</tr>
<tr class="calendar__row">
	<td class="calendar__cell calendar__time">All Day</td>
	<td class="calendar__cell calendar__currency">EUR</td>
	<td class="calendar__cell calendar__impact"><span class="icon" title="Low Impact Expected"></span></td>
	<td class="calendar__cell calendar__event"><span class="calendar__event-title">French Bank Holiday</span></td>
</tr>
</table></body></html>`

	events, err := ParseWeek(context.Background(), []byte(page), week)
	require.NoError(t, err)
	require.Len(t, events, 2)

	require.True(t, events[0].Timestamp.Equal(time.Date(2024, 7, 1, 8, 30, 0, 0, timezone.Location)))
	require.False(t, events[0].AllDay)
	require.Equal(t, "USD", events[0].Currency)
	require.Equal(t, ImpactHigh, events[0].Impact)
	require.Equal(t, "Non-Farm Employment Change", events[0].Name)
	require.Equal(t, "206K", events[0].Actual)

	// second row carries no date cell and inherits the monday heading
	require.True(t, events[1].Timestamp.Equal(time.Date(2024, 7, 1, 0, 0, 0, 0, timezone.Location)))
	require.True(t, events[1].AllDay)
	require.Equal(t, "EUR", events[1].Currency)
	require.Equal(t, ImpactLow, events[1].Impact)
	require.Equal(t, "French Bank Holiday", events[1].Name)
}

func TestParseWeekDOMBlankTimeRow(t *testing.T) {
	week := testWeek()

	page := `<html><body><table class="calendar__table">
<tr class="calendar__row">
	<td class="calendar__cell calendar__date">Mon Jul 1</td>
	<td class="calendar__cell calendar__time">8:30am</td>
	<td class="calendar__cell calendar__currency">USD</td>
	<td class="calendar__cell calendar__event"><span class="calendar__event-title">ISM Manufacturing PMI</span></td>
</tr>
<tr class="calendar__row">
	<td class="calendar__cell calendar__time"></td>
	<td class="calendar__cell calendar__currency">EUR</td>
	<td class="calendar__cell calendar__event"><span class="calendar__event-title">German Bank Holiday</span></td>
</tr>
<tr class="calendar__row">
	<td class="calendar__cell calendar__time">9:00am</td>
</tr>
</table></body></html>`

	events, err := ParseWeek(context.Background(), []byte(page), week)
	require.NoError(t, err)
	require.Len(t, events, 2)

	require.Equal(t, "USD", events[0].Currency)
	require.False(t, events[0].AllDay)

	// a blank time cell with an inherited day heading is a date-only
	// event, not a dropped row
	require.Equal(t, "EUR", events[1].Currency)
	require.Equal(t, "German Bank Holiday", events[1].Name)
	require.True(t, events[1].AllDay)
	require.True(t, events[1].Timestamp.Equal(time.Date(2024, 7, 1, 0, 0, 0, 0, timezone.Location)))
}

func TestParseWeekLooseTableFallback(t *testing.T) {
	week := testWeek()

	page := `<html><body><table class="calendar__table">
<tr><td class="calendar__date">Tue Jul 2</td></tr>
<tr>
	<td class="calendar__time">9:00am</td>
	<td class="calendar__currency">GBP</td>
	<td class="calendar__impact"><span class="impact-medium" title="High Impact Expected"></span></td>
	<td class="calendar__event"><span class="calendar__event-title">Construction PMI</span></td>
</tr>
<tr>
	<td class="calendar__time">9:00am</td>
	<td class="calendar__currency">GBP</td>
	<td class="calendar__impact"><span class="impact-medium"></span></td>
	<td class="calendar__event"><span class="calendar__event-title">Construction PMI</span></td>
</tr>
<tr>
	<td class="calendar__time"></td>
	<td class="calendar__currency">CAD</td>
	<td class="calendar__event"><span class="calendar__event-title">Bank Holiday</span></td>
</tr>
<tr>
	<td class="calendar__time">10:00am</td>
	<td class="calendar__event"><span class="calendar__event-title">orphan row without a currency</span></td>
</tr>
</table></body></html>`

	events, err := ParseWeek(context.Background(), []byte(page), week)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// the css class wins over the conflicting display title
	require.Equal(t, ImpactMedium, events[0].Impact)
	require.Equal(t, "Construction PMI", events[0].Name)
	require.True(t, events[0].Timestamp.Equal(time.Date(2024, 7, 2, 9, 0, 0, 0, timezone.Location)))

	// a blank time cell defaults to the day's midnight
	require.Equal(t, "CAD", events[1].Currency)
	require.True(t, events[1].Timestamp.Equal(time.Date(2024, 7, 2, 0, 0, 0, 0, timezone.Location)))
}

func TestParseWeekStructureNotFound(t *testing.T) {
	page := `<html><body><p>checking your browser before accessing</p></body></html>`
	events, err := ParseWeek(context.Background(), []byte(page), testWeek())
	require.ErrorIs(t, err, ErrStructureNotFound)
	require.Empty(t, events)
}

func TestParseWeekAnchoredButEmpty(t *testing.T) {
	// the table anchor exists but holds no event rows: not a structural
	// failure, just an empty result the caller decides about
	page := `<html><body><table class="calendar__table">
<tr><td class="calendar__date">Mon Jul 1</td></tr>
</table></body></html>`
	events, err := ParseWeek(context.Background(), []byte(page), testWeek())
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestNormalizeDayHeading(t *testing.T) {
	day, err := normalizeDayHeading("MonJul01")
	require.NoError(t, err)
	require.Equal(t, "Mon Jul 1", day)

	day, err = normalizeDayHeading("Mon Jul01")
	require.NoError(t, err)
	require.Equal(t, "Mon Jul 1", day)

	day, err = normalizeDayHeading("Mon Jul 1")
	require.NoError(t, err)
	require.Equal(t, "Mon Jul 1", day)

	_, err = normalizeDayHeading("Upcoming Events")
	require.Error(t, err)
}

func TestParseDayTime(t *testing.T) {
	week := testWeek()

	ts, allDay, err := parseDayTime(week, "MonJul01", "8:30am")
	require.NoError(t, err)
	require.False(t, allDay)
	require.True(t, ts.Equal(time.Date(2024, 7, 1, 8, 30, 0, 0, timezone.Location)))

	ts, allDay, err = parseDayTime(week, "Tue Jul 2", "All Day")
	require.NoError(t, err)
	require.True(t, allDay)
	require.True(t, ts.Equal(time.Date(2024, 7, 2, 0, 0, 0, 0, timezone.Location)))

	ts, allDay, err = parseDayTime(week, "Wed Jul 3", "Tentative")
	require.NoError(t, err)
	require.True(t, allDay)
	require.True(t, ts.Equal(time.Date(2024, 7, 3, 0, 0, 0, 0, timezone.Location)))

	// non-clock copy like "Day 2" degrades to an all-day stamp
	ts, allDay, err = parseDayTime(week, "Thu Jul 4", "Day 2")
	require.NoError(t, err)
	require.True(t, allDay)
	require.True(t, ts.Equal(time.Date(2024, 7, 4, 0, 0, 0, 0, timezone.Location)))

	_, _, err = parseDayTime(week, "not a day", "8:30am")
	require.Error(t, err)
}
