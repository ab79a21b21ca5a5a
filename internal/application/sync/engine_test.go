package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nackswinget/calsync/internal/domain/activity"
	"github.com/nackswinget/calsync/internal/domain/calendar"
)

func calWith(events ...calendar.Event) *calendar.Calendar {
	cal := calendar.NewCalendar(testSubject(), "")
	for _, ev := range events {
		cal.Append(ev)
	}
	return cal
}

func ev(id int64, start time.Time) calendar.Event {
	return calendar.Event{ID: activity.NewEventID(id), Start: start, End: start.Add(90 * time.Minute)}
}

func cursor(t *testing.T, raw string) activity.EventID {
	t.Helper()
	id, err := activity.ParseEventID(raw)
	require.NoError(t, err)
	return id
}

func TestSelectPicksOldestNewEventNotSoonest(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	// Insertion order deliberately scrambled; 222 is the lowest unseen id
	// even though 444 starts sooner.
	cal := calWith(
		ev(333, now.Add(72*time.Hour)),
		ev(222, now.Add(48*time.Hour)),
		ev(444, now.Add(24*time.Hour)),
	)

	sel := Select(cal, cursor(t, "111"), now, DefaultLookahead)

	require.NotNil(t, sel.Chosen)
	assert.Equal(t, "222", sel.Chosen.ID.String())
	assert.Equal(t, 3, sel.Future)
	assert.Equal(t, 3, sel.InWindow)
	assert.Equal(t, 3, sel.New)
}

func TestSelectOrdersNumericallyNotLexically(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	cal := calWith(
		ev(10, now.Add(24*time.Hour)),
		ev(9, now.Add(48*time.Hour)),
	)

	sel := Select(cal, activity.EventID{}, now, DefaultLookahead)

	require.NotNil(t, sel.Chosen)
	assert.Equal(t, "9", sel.Chosen.ID.String())
}

func TestSelectWindowBoundaries(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	horizon := now.Add(DefaultLookahead)

	tests := []struct {
		name   string
		start  time.Time
		chosen bool
	}{
		{"one second before now", now.Add(-time.Second), false},
		{"exactly now", now, true},
		{"one second before horizon", horizon.Add(-time.Second), true},
		{"exactly at horizon", horizon, false},
		{"one second past horizon", horizon.Add(time.Second), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := Select(calWith(ev(100, tt.start)), activity.EventID{}, now, DefaultLookahead)
			if tt.chosen {
				require.NotNil(t, sel.Chosen)
				assert.Equal(t, "100", sel.Chosen.ID.String())
			} else {
				assert.Nil(t, sel.Chosen)
			}
		})
	}
}

func TestSelectCursorIsStrict(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	cal := calWith(ev(200, now.Add(24*time.Hour)))

	// An event equal to the cursor was already announced.
	sel := Select(cal, cursor(t, "200"), now, DefaultLookahead)
	assert.Nil(t, sel.Chosen)
	assert.Equal(t, 1, sel.InWindow)
	assert.Equal(t, 0, sel.New)

	sel = Select(cal, cursor(t, "199"), now, DefaultLookahead)
	require.NotNil(t, sel.Chosen)
}

func TestSelectAtMostOne(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	cal := calWith(
		ev(201, now.Add(24*time.Hour)),
		ev(202, now.Add(25*time.Hour)),
		ev(203, now.Add(26*time.Hour)),
	)

	sel := Select(cal, activity.EventID{}, now, DefaultLookahead)

	require.NotNil(t, sel.Chosen)
	assert.Equal(t, "201", sel.Chosen.ID.String())
	assert.Equal(t, 3, sel.New)
}

func TestSelectEmptyCalendar(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	sel := Select(calWith(), activity.EventID{}, now, DefaultLookahead)
	assert.Nil(t, sel.Chosen)
	assert.Zero(t, sel.Future)
}

func TestSelectDoesNotMutateCalendarOrder(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	cal := calWith(
		ev(300, now.Add(24*time.Hour)),
		ev(100, now.Add(48*time.Hour)),
	)

	_ = Select(cal, activity.EventID{}, now, DefaultLookahead)

	assert.Equal(t, "300", cal.Events()[0].ID.String())
	assert.Equal(t, "100", cal.Events()[1].ID.String())
}
