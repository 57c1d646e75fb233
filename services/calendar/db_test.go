package calendar

import (
	"context"
	"testing"
	"time"

	ff "fxlab/lib/scrapers/forexfactory"
	"fxlab/lib/testutil"
	"fxlab/lib/timezone"

	"github.com/stretchr/testify/require"
)

func TestEventStore(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/calendar",
		DbSchema: Schema,
	})
	defer cleanup()
	store := NewEventStore(setup.DB)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	ts1 := time.Date(2024, 7, 1, 8, 30, 0, 0, timezone.Location)
	ts2 := time.Date(2024, 7, 2, 14, 0, 0, 0, timezone.Location)
	ts3 := time.Date(2024, 7, 10, 0, 0, 0, 0, timezone.Location)

	cpi := ff.Event{Timestamp: ts1, Currency: "USD", Impact: ff.ImpactHigh, Name: "CPI y/y", Forecast: "3.1%", DayLabel: "Mon Jul 1"}
	cpi.IdentityKey = ff.IdentityKey(ts1, "USD", cpi.NameOrFallback())

	rate := ff.Event{Timestamp: ts2, Currency: "AUD", Impact: ff.ImpactMedium, Name: "Cash Rate", Forecast: "4.35%", DayLabel: "Tue Jul 2"}
	rate.IdentityKey = ff.IdentityKey(ts2, "AUD", rate.NameOrFallback())

	holiday := ff.Event{Timestamp: ts3, AllDay: true, Currency: "JPY", Impact: ff.ImpactLow, Name: "Bank Holiday", DayLabel: "Wed Jul 10"}
	holiday.IdentityKey = ff.IdentityKey(ts3, "JPY", holiday.NameOrFallback())

	require.NoError(t, store.Put(ctx, []ff.Event{cpi, rate, holiday}))

	{
		events, err := store.Between(ctx, ts1, ts3)
		require.NoError(t, err)
		require.Len(t, events, 2)
		require.Equal(t, "CPI y/y", events[0].Name)
		require.True(t, events[0].Timestamp.Equal(ts1))
		require.Equal(t, ff.ImpactHigh, events[0].Impact)
		require.Equal(t, "Cash Rate", events[1].Name)
	}

	// re-putting the same event with a landed actual revises in place
	revised := cpi
	revised.Actual = "3.0%"
	require.NoError(t, store.Put(ctx, []ff.Event{revised}))

	{
		events, err := store.Between(ctx, ts1, ts1.Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, events, 1)
		require.Equal(t, "3.0%", events[0].Actual)
	}

	{
		events, err := store.Between(ctx, ts3, ts3.Add(24*time.Hour))
		require.NoError(t, err)
		require.Len(t, events, 1)
		require.True(t, events[0].AllDay)
		require.Equal(t, "JPY", events[0].Currency)
	}
}
