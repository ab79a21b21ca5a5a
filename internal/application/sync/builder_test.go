package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nackswinget/calsync/internal/domain/activity"
	"github.com/nackswinget/calsync/internal/domain/calendar"
)

var stockholm = mustLoadLocation("Europe/Stockholm")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func testSubject() calendar.Identity {
	return calendar.Identity{ID: "337667", Name: "Friträning", OrgID: "1140"}
}

func act(id int64, calendarID int64, shared bool) activity.Activity {
	return activity.Activity{
		ID:          id,
		CalendarID:  calendarID,
		Name:        "Friträning",
		Description: "Anna - 0701234567",
		VenueName:   "Ceylon",
		StartTime:   "2026-03-10T18:00:00.000Z",
		EndTime:     "2026-03-10T19:30:00.000Z",
		Shared:      shared,
	}
}

func TestBuildMapsActivities(t *testing.T) {
	cal, skipped := Build("https://portal/feed", []activity.Activity{act(111, 337667, false)}, testSubject(), stockholm)

	assert.Empty(t, skipped)
	require.Equal(t, 1, cal.Len())
	ev := cal.Events()[0]
	assert.Equal(t, "111", ev.ID.String())
	assert.Equal(t, "Friträning", ev.Summary)
	assert.Equal(t, "Ceylon", ev.Location)
	assert.Equal(t, "Anna", ev.Organizer)
	assert.Equal(t, stockholm, ev.Start.Location())
	// 18:00 UTC is 19:00 in Stockholm during CET.
	assert.Equal(t, 19, ev.Start.Hour())
	assert.Equal(t, "https://portal/feed", cal.SourceURL())
}

func TestBuildDropsForeignSharedActivities(t *testing.T) {
	activities := []activity.Activity{
		act(111, 337667, true),  // shared but owned by the subject: kept
		act(222, 999999, true),  // shared, foreign owner: dropped
		act(333, 999999, false), // foreign owner but not shared: kept
	}

	cal, skipped := Build("", activities, testSubject(), stockholm)

	assert.Empty(t, skipped)
	require.Equal(t, 2, cal.Len())
	assert.Equal(t, "111", cal.Events()[0].ID.String())
	assert.Equal(t, "333", cal.Events()[1].ID.String())
}

func TestBuildSkipsMalformedTimestamps(t *testing.T) {
	bad := act(222, 337667, false)
	bad.StartTime = "inte ett datum"

	badEnd := act(333, 337667, false)
	badEnd.EndTime = ""

	cal, skipped := Build("", []activity.Activity{act(111, 337667, false), bad, badEnd}, testSubject(), stockholm)

	assert.Equal(t, 1, cal.Len())
	require.Len(t, skipped, 2)
	assert.Equal(t, int64(222), skipped[0].ActivityID)
	assert.Contains(t, skipped[0].Reason, "startTime")
	assert.Equal(t, int64(333), skipped[1].ActivityID)
	assert.Contains(t, skipped[1].Reason, "endTime")
}

func TestBuildEmptyFeed(t *testing.T) {
	cal, skipped := Build("", nil, testSubject(), stockholm)
	assert.Equal(t, 0, cal.Len())
	assert.Empty(t, skipped)
}
