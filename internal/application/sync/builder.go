package sync

import (
	"time"

	"github.com/nackswinget/calsync/internal/domain/activity"
	"github.com/nackswinget/calsync/internal/domain/calendar"
)

// SkippedActivity records an activity that could not be mapped into the
// calendar. Partial data is strictly better than no feed, so a bad record
// fails only its own mapping; skips are surfaced in the run report.
type SkippedActivity struct {
	ActivityID int64
	Reason     string
}

// Build converts the fetched activity list into the normalized calendar
// document for subject.
//
// A shared activity owned by a different calendar is dropped: it is
// published only on its owning calendar's feed, which prevents one physical
// booking from producing duplicate calendar entries and, downstream,
// duplicate notifications. Everything else maps 1:1 into an Event with
// times normalized to loc.
func Build(sourceURL string, activities []activity.Activity, subject calendar.Identity, loc *time.Location) (*calendar.Calendar, []SkippedActivity) {
	cal := calendar.NewCalendar(subject, sourceURL)
	var skipped []SkippedActivity

	for _, a := range activities {
		if a.Shared && !a.OwnedBy(subject.ID) {
			continue
		}

		start, err := time.Parse(time.RFC3339, a.StartTime)
		if err != nil {
			skipped = append(skipped, SkippedActivity{ActivityID: a.ID, Reason: "bad startTime: " + a.StartTime})
			continue
		}
		end, err := time.Parse(time.RFC3339, a.EndTime)
		if err != nil {
			skipped = append(skipped, SkippedActivity{ActivityID: a.ID, Reason: "bad endTime: " + a.EndTime})
			continue
		}

		cal.Append(calendar.Event{
			ID:          a.EventID(),
			Summary:     a.Name,
			Description: a.Description,
			Location:    a.VenueName,
			Start:       start.In(loc),
			End:         end.In(loc),
			Organizer:   ExtractOrganizer(a.Description),
		})
	}

	return cal, skipped
}
