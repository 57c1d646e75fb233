package forexfactory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"fxlab/lib/htmlutil"
	"fxlab/lib/timezone"

	"github.com/PuerkitoBio/goquery"
	"github.com/titanous/json5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/forexfactory")

// ErrStructureNotFound means no strategy could locate its anchor pattern
// in the page, as opposed to a missing field in an otherwise-located
// record. Fatal for the page.
var ErrStructureNotFound = errors.New("no calendar structure found in page")

type strategy struct {
	name    string
	attempt func(ctx context.Context, raw []byte, week WeekWindow) ([]Event, error)
}

var strategies = []strategy{
	{"embedded_state", parseEmbeddedState},
	{"dom_rows", parseDOMRows},
	{"loose_table", parseLooseTable},
}

// ParseWeek tries the extraction strategies in fixed priority order and
// returns the first non-empty result. A strategy failing to find its
// anchor is expected (the source returns the same data in several
// shapes) and never escalates past this boundary; only all strategies
// missing their anchors is an error.
func ParseWeek(ctx context.Context, raw []byte, week WeekWindow) ([]Event, error) {
	ctx, span := tracer.Start(ctx, "ParseWeek")
	defer span.End()
	span.SetAttributes(attribute.String("week", week.Key()))

	anchorsMissing := 0
	for _, s := range strategies {
		events, err := s.attempt(ctx, raw, week)
		if err != nil {
			slog.DebugContext(ctx, "parse strategy missed", "strategy", s.name, "week", week.Key(), "err", err)
			anchorsMissing++
			continue
		}
		if len(events) == 0 {
			slog.DebugContext(ctx, "parse strategy found anchor but no events", "strategy", s.name, "week", week.Key())
			continue
		}
		span.SetAttributes(
			attribute.String("strategy", s.name),
			attribute.Int("events", len(events)),
		)
		slog.InfoContext(ctx, "parsed week", "strategy", s.name, "week", week.Key(), "events", len(events))
		return events, nil
	}

	if anchorsMissing == len(strategies) {
		span.SetStatus(codes.Error, ErrStructureNotFound.Error())
		return nil, ErrStructureNotFound
	}
	return nil, nil
}

// --- strategy 1: embedded-state json ---

// the calendar ships its state as a script literal, not strict json, in
// one of two assignment shapes depending on the variant served
var stateAssignRegex = regexp.MustCompile(`(?s)calendarComponentStates\[\s*1\s*\]\s*=\s*(\{.*?\});`)
var windowStateRegex = regexp.MustCompile(`(?s)window\.calendarComponentStates\s*=\s*(\{.*?\});`)

type stateEvent struct {
	Dateline    int64  `json:"dateline"`
	Name        string `json:"name"`
	Currency    string `json:"currency"`
	ImpactTitle string `json:"impactTitle"`
	Actual      string `json:"actual"`
	Forecast    string `json:"forecast"`
	Previous    string `json:"previous"`
}

type stateDay struct {
	Date   string       `json:"date"`
	Events []stateEvent `json:"events"`
}

type stateBlob struct {
	Days   []stateDay `json:"days"`
	Nested *stateBlob `json:"1"`
}

func parseEmbeddedState(ctx context.Context, raw []byte, week WeekWindow) ([]Event, error) {
	ctx, span := tracer.Start(ctx, "parseEmbeddedState")
	defer span.End()

	match := stateAssignRegex.FindSubmatch(raw)
	if match == nil {
		match = windowStateRegex.FindSubmatch(raw)
	}
	if match == nil {
		return nil, fmt.Errorf("calendarComponentStates assignment not found")
	}

	var blob stateBlob
	err := json5.Unmarshal(match[1], &blob)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode embedded state")
		return nil, fmt.Errorf("decoding embedded state: %w", err)
	}

	days := blob.Days
	if len(days) == 0 && blob.Nested != nil {
		days = blob.Nested.Days
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("embedded state has no days collection")
	}

	var events []Event
	for _, day := range days {
		dayLabel := htmlutil.StripTags(day.Date)
		for _, se := range day.Events {
			if se.Dateline == 0 {
				slog.WarnContext(ctx, "skipping event without dateline", "week", week.Key(), "name", se.Name)
				continue
			}
			e := Event{
				Timestamp: time.Unix(se.Dateline, 0).In(timezone.Location),
				Currency:  strings.TrimSpace(se.Currency),
				Impact:    ParseImpact(se.ImpactTitle),
				Name:      strings.TrimSpace(se.Name),
				Actual:    strings.TrimSpace(se.Actual),
				Forecast:  strings.TrimSpace(se.Forecast),
				Previous:  strings.TrimSpace(se.Previous),
				DayLabel:  dayLabel,
			}
			e.fillIdentity()
			events = append(events, e)
		}
	}
	return events, nil
}

// --- strategy 2: dom rows ---

func parseDOMRows(ctx context.Context, raw []byte, week WeekWindow) ([]Event, error) {
	ctx, span := tracer.Start(ctx, "parseDOMRows")
	defer span.End()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	rows := doc.Find("tr.calendar__row")
	if len(rows.Nodes) == 0 {
		return nil, fmt.Errorf("no calendar rows found")
	}

	var events []Event
	// rows inherit the most recently seen date heading: the source
	// groups several events under one date cell in document order
	currentDay := ""

	rows.Each(func(_ int, row *goquery.Selection) {
		if dateCell := row.Find("td.calendar__cell.calendar__date"); len(dateCell.Nodes) > 0 {
			if label := htmlutil.CleanText(dateCell.Text()); label != "" {
				currentDay = label
			}
		}

		if currentDay == "" {
			return
		}

		// a blank time cell is still an event (date-only, like "All
		// Day"), so only rows with no event content at all are skipped
		timeStr := htmlutil.CleanText(row.Find("td.calendar__cell.calendar__time").Text())
		currency := htmlutil.CleanText(row.Find("td.calendar__cell.calendar__currency").Text())
		name := htmlutil.CleanText(row.Find("span.calendar__event-title").Text())
		if name == "" {
			name = htmlutil.CleanText(row.Find("td.calendar__cell.calendar__event").Text())
		}
		if currency == "" && name == "" {
			return
		}

		ts, allDay, err := parseDayTime(week, currentDay, timeStr)
		if err != nil {
			slog.WarnContext(ctx, "skipping row with unparseable date", "week", week.Key(), "day", currentDay, "time", timeStr, "err", err)
			return
		}

		e := Event{
			Timestamp: ts,
			AllDay:    allDay,
			Currency:  currency,
			Impact:    extractImpact(row.Find("td.calendar__cell.calendar__impact")),
			Name:      name,
			Actual:    htmlutil.CleanText(row.Find("td.calendar__cell.calendar__actual").Text()),
			Forecast:  htmlutil.CleanText(row.Find("td.calendar__cell.calendar__forecast").Text()),
			Previous:  htmlutil.CleanText(row.Find("td.calendar__cell.calendar__previous").Text()),
			DayLabel:  currentDay,
		}
		e.fillIdentity()
		events = append(events, e)
	})

	return events, nil
}

// --- strategy 3: loose table fallback ---

func parseLooseTable(ctx context.Context, raw []byte, week WeekWindow) ([]Event, error) {
	ctx, span := tracer.Start(ctx, "parseLooseTable")
	defer span.End()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	table := doc.Find("table.calendar__table")
	if len(table.Nodes) == 0 {
		return nil, fmt.Errorf("no calendar table found")
	}

	var events []Event
	seen := map[string]bool{}
	currentDay := ""

	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		if dateCell := row.Find("td.calendar__date"); len(dateCell.Nodes) > 0 {
			if label := htmlutil.CleanText(dateCell.Text()); label != "" {
				currentDay = label
			}
		}

		currency := htmlutil.CleanText(row.Find("td.calendar__currency").Text())
		if currentDay == "" || currency == "" {
			return
		}

		timeStr := htmlutil.CleanText(row.Find("td.calendar__time").Text())
		if timeStr == "" {
			timeStr = "12:00am"
		}

		ts, allDay, err := parseDayTime(week, currentDay, timeStr)
		if err != nil {
			slog.WarnContext(ctx, "skipping fallback row with unparseable date", "week", week.Key(), "day", currentDay, "err", err)
			return
		}

		e := Event{
			Timestamp: ts,
			AllDay:    allDay,
			Currency:  currency,
			Impact:    extractImpact(row.Find("td.calendar__impact")),
			Name:      htmlutil.CleanText(row.Find("span.calendar__event-title").Text()),
			Actual:    htmlutil.CleanText(row.Find("td.calendar__actual").Text()),
			Forecast:  htmlutil.CleanText(row.Find("td.calendar__forecast").Text()),
			Previous:  htmlutil.CleanText(row.Find("td.calendar__previous").Text()),
			DayLabel:  currentDay,
		}
		e.fillIdentity()

		if seen[e.IdentityKey] {
			return
		}
		seen[e.IdentityKey] = true
		events = append(events, e)
	})

	return events, nil
}

// extractImpact reads impact from css class names first and the span
// title attribute second. classes are machine-oriented and stable, the
// title is display copy; using one precedence everywhere keeps the dom
// and fallback strategies from disagreeing about the same event.
func extractImpact(cell *goquery.Selection) Impact {
	if len(cell.Nodes) == 0 {
		return ImpactUnknown
	}

	classes := cell.AttrOr("class", "")
	cell.Find("span").Each(func(_ int, span *goquery.Selection) {
		classes += " " + span.AttrOr("class", "")
	})
	switch {
	case strings.Contains(classes, "impact-high"):
		return ImpactHigh
	case strings.Contains(classes, "impact-medium"):
		return ImpactMedium
	case strings.Contains(classes, "impact-low"):
		return ImpactLow
	}

	if title := cell.Find("span").AttrOr("title", ""); title != "" {
		return ParseImpact(title)
	}
	return ParseImpact(cell.AttrOr("title", ""))
}

// --- day/time assembly ---

var weekdayAbbrevs = map[string]bool{
	"Mon": true, "Tue": true, "Wed": true, "Thu": true,
	"Fri": true, "Sat": true, "Sun": true,
}

// day headings sometimes fuse weekday and month with no separator
// ("MonJul 1" instead of "Mon Jul 1"), which breaks date parsing
func repairFusedDay(day string) string {
	if len(day) > 3 && weekdayAbbrevs[day[:3]] && day[3] != ' ' {
		return day[:3] + " " + day[3:]
	}
	return day
}

var dayHeadingRegex = regexp.MustCompile(`^([A-Za-z]{3}) ?([A-Za-z]{3}) ?(\d{1,2})$`)

// normalizeDayHeading reduces a heading like "MonJul01" or "Mon Jul 1"
// to the canonical "Mon Jul 1" form.
func normalizeDayHeading(day string) (string, error) {
	day = repairFusedDay(htmlutil.CleanText(day))
	groups := dayHeadingRegex.FindStringSubmatch(day)
	if groups == nil {
		return "", fmt.Errorf("unrecognized day heading %q", day)
	}
	return fmt.Sprintf("%s %s %s", groups[1], groups[2], strings.TrimLeft(groups[3], "0")), nil
}

// parseDayTime combines an inherited day heading, a time-of-day cell and
// the week anchor's year (the source omits year) into an absolute
// timestamp. "All Day", "Tentative" and blank times map to a date-only
// timestamp.
func parseDayTime(week WeekWindow, dayStr, timeStr string) (time.Time, bool, error) {
	day, err := normalizeDayHeading(dayStr)
	if err != nil {
		return time.Time{}, false, err
	}
	date := fmt.Sprintf("%s %d", day, week.Anchor.Year())

	timeStr = strings.ToLower(htmlutil.CleanText(timeStr))
	if timeStr != "" && timeStr != "all day" && timeStr != "tentative" {
		ts, err := time.ParseInLocation("Mon Jan 2 2006 3:04pm", date+" "+timeStr, timezone.Location)
		if err == nil {
			return ts, false, nil
		}
		// not a clock time ("Day 2" and friends), treat as all-day
	}

	ts, err := time.ParseInLocation("Mon Jan 2 2006", date, timezone.Location)
	if err != nil {
		return time.Time{}, false, err
	}
	return ts, true, nil
}
