package calendar

import (
	"context"
	"database/sql"
	"time"

	ff "fxlab/lib/scrapers/forexfactory"
	"fxlab/lib/timezone"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Schema backs the optional sqlite event store.
const Schema = `
CREATE TABLE IF NOT EXISTS events (
	event_id TEXT PRIMARY KEY,
	timestamp INTEGER NOT NULL,
	all_day INTEGER NOT NULL,
	currency TEXT NOT NULL,
	impact TEXT NOT NULL,
	name TEXT NOT NULL,
	actual TEXT NOT NULL,
	forecast TEXT NOT NULL,
	previous TEXT NOT NULL,
	day_label TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS events_timestamp ON events(timestamp);
`

// EventStore persists the merged calendar in sqlite so downstream
// consumers can query by time range instead of re-reading csv files.
type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

// Put upserts events by identity key; a revised event replaces its
// earlier observation.
func (s *EventStore) Put(ctx context.Context, events []ff.Event) error {
	ctx, span := tracer.Start(ctx, "EventStore.Put")
	defer span.End()
	span.SetAttributes(attribute.Int("events", len(events)))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (event_id, timestamp, all_day, currency, impact, name, actual, forecast, previous, day_label)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO UPDATE SET
			actual = excluded.actual,
			forecast = excluded.forecast,
			previous = excluded.previous,
			impact = excluded.impact
	`)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		allDay := 0
		if e.AllDay {
			allDay = 1
		}
		_, err := stmt.ExecContext(ctx,
			e.IdentityKey, e.Timestamp.Unix(), allDay, e.Currency,
			e.Impact.String(), e.Name, e.Actual, e.Forecast, e.Previous, e.DayLabel,
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}
	return tx.Commit()
}

// Between returns events with from <= timestamp < to, ascending.
func (s *EventStore) Between(ctx context.Context, from, to time.Time) ([]ff.Event, error) {
	ctx, span := tracer.Start(ctx, "EventStore.Between")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, timestamp, all_day, currency, impact, name, actual, forecast, previous, day_label
		FROM events
		WHERE timestamp >= ? AND timestamp < ?
		ORDER BY timestamp ASC
	`, from.Unix(), to.Unix())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer rows.Close()

	var events []ff.Event
	for rows.Next() {
		var e ff.Event
		var ts int64
		var allDay int
		var impact string
		err := rows.Scan(&e.IdentityKey, &ts, &allDay, &e.Currency, &impact, &e.Name, &e.Actual, &e.Forecast, &e.Previous, &e.DayLabel)
		if err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(ts, 0).In(timezone.Location)
		e.AllDay = allDay == 1
		e.Impact = ff.ParseImpact(impact)
		events = append(events, e)
	}
	return events, rows.Err()
}
