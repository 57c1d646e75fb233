package calendar

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	ff "fxlab/lib/scrapers/forexfactory"
)

// WeekStore is a directory of per-week event tables, one csv per week
// keyed by the week's anchor date. A week's file is written exactly once
// on success and treated as immutable afterwards; its presence is the
// idempotency check that lets a campaign resume without touching the
// network.
type WeekStore struct {
	dir string
}

func NewWeekStore(dir string) (WeekStore, error) {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return WeekStore{}, err
	}
	return WeekStore{dir: dir}, nil
}

func (s WeekStore) path(week ff.WeekWindow) string {
	return filepath.Join(s.dir, fmt.Sprintf("week_%s.csv", week.Key()))
}

func (s WeekStore) Has(week ff.WeekWindow) bool {
	_, err := os.Stat(s.path(week))
	return err == nil
}

func (s WeekStore) Write(week ff.WeekWindow, events []ff.Event) error {
	f, err := os.Create(s.path(week))
	if err != nil {
		return err
	}
	defer f.Close()
	return ff.WriteCSV(f, events)
}

// ReadAll loads every persisted weekly table, ascending by anchor date
// (the filename key sorts chronologically), concatenated in that order
// so later weeks' revisions win the merge.
func (s WeekStore) ReadAll() ([]ff.Event, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "week_*.csv"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	var all []ff.Event
	for _, path := range matches {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		events, err := ff.ReadCSV(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		all = append(all, events...)
	}
	return all, nil
}

// DebugStore keeps raw page payloads captured on structural parse
// failure, keyed by week anchor date. Post-mortem material, never
// machine-read.
type DebugStore struct {
	dir string
}

func NewDebugStore(dir string) (DebugStore, error) {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return DebugStore{}, err
	}
	return DebugStore{dir: dir}, nil
}

func (s DebugStore) Write(week ff.WeekWindow, raw []byte) {
	path := filepath.Join(s.dir, fmt.Sprintf("raw_html_%s.html", week.Key()))
	err := os.WriteFile(path, raw, 0644)
	if err != nil {
		slog.Warn("failed to write debug artifact", "week", week.Key(), "err", err)
	}
}

// MergeEvents deduplicates by identity key with last-seen-wins (later
// scrapes carry revised actual/forecast values) and sorts ascending by
// timestamp. The sort is stable so equal timestamps keep input order.
func MergeEvents(events []ff.Event) []ff.Event {
	byKey := map[string]int{}
	var merged []ff.Event
	for _, e := range events {
		if i, ok := byKey[e.IdentityKey]; ok {
			merged[i] = e
			continue
		}
		byKey[e.IdentityKey] = len(merged)
		merged = append(merged, e)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	return merged
}
