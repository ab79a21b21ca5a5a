package ical

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nackswinget/calsync/internal/domain/activity"
	"github.com/nackswinget/calsync/internal/domain/calendar"
)

func TestSerialize(t *testing.T) {
	subject := calendar.Identity{ID: "100", Name: "Friträning", OrgID: "1140"}
	cal := calendar.NewCalendar(subject, "https://portal/feed")
	start := time.Date(2026, 3, 12, 19, 0, 0, 0, time.UTC)
	cal.Append(calendar.Event{
		ID:          activity.NewEventID(222),
		Summary:     "Friträning",
		Description: "Anna - 0701234567",
		Location:    "Ceylon",
		Start:       start,
		End:         start.Add(90 * time.Minute),
		Organizer:   "Anna",
	})

	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	out := Serialize(cal, "Europe/Stockholm", now)

	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR"))
	assert.Contains(t, out, "METHOD:PUBLISH")
	assert.Contains(t, out, "X-WR-CALNAME:Friträning")
	assert.Contains(t, out, "X-WR-TIMEZONE:Europe/Stockholm")
	assert.Contains(t, out, "UID:222")
	assert.Contains(t, out, "SUMMARY:Friträning")
	assert.Contains(t, out, "LOCATION:Ceylon")
	assert.Contains(t, out, "DTSTART:20260312T190000Z")
	assert.Contains(t, out, "DTEND:20260312T203000Z")
}

func TestSerializeEmptyCalendar(t *testing.T) {
	subject := calendar.Identity{ID: "100", Name: "Tom", OrgID: "1140"}
	cal := calendar.NewCalendar(subject, "")

	out := Serialize(cal, "Europe/Stockholm", time.Now())

	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.NotContains(t, out, "BEGIN:VEVENT")
}

func TestSerializeUsesStableUIDs(t *testing.T) {
	subject := calendar.Identity{ID: "100", Name: "Friträning", OrgID: "1140"}
	build := func(summary string) string {
		cal := calendar.NewCalendar(subject, "")
		start := time.Date(2026, 3, 12, 19, 0, 0, 0, time.UTC)
		cal.Append(calendar.Event{ID: activity.NewEventID(222), Summary: summary, Start: start, End: start.Add(time.Hour)})
		return Serialize(cal, "Europe/Stockholm", start)
	}

	// A renamed booking keeps its UID so subscribers see an update, not a
	// delete plus re-add.
	assert.Contains(t, build("Gammalt namn"), "UID:222")
	assert.Contains(t, build("Nytt namn"), "UID:222")
}
