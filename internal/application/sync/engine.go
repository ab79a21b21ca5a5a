// Package sync implements the calendar synchronization core: building the
// normalized calendar document from fetched activities, selecting the event
// to announce, and orchestrating the per-calendar reconciliation run.
package sync

import (
	"sort"
	"time"

	"github.com/nackswinget/calsync/internal/domain/activity"
	"github.com/nackswinget/calsync/internal/domain/calendar"
)

// DefaultLookahead is the horizon beyond "now" within which an event is
// eligible to trigger a notification. The far boundary is exclusive.
const DefaultLookahead = 6 * 24 * time.Hour

// Selection is the outcome of one cursor evaluation: the event to announce
// (nil when nothing qualifies) plus the funnel counts for observability.
type Selection struct {
	Chosen *calendar.Event

	// Funnel counts after each filter stage.
	Future   int
	InWindow int
	New      int
}

// Select computes the single event eligible for notification this run.
//
// Events are ordered by identifier using numeric comparison, then narrowed
// to those starting at or after now, then to those starting strictly before
// now+lookahead, then to those whose id orders after the cursor. The chosen
// event is the first of the ascending id order: the oldest not-yet-seen
// event within the window, not the chronologically soonest and not the most
// recently added. The cursor advances one event per run by design.
func Select(cal *calendar.Calendar, cursor activity.EventID, now time.Time, lookahead time.Duration) Selection {
	events := make([]calendar.Event, len(cal.Events()))
	copy(events, cal.Events())
	sort.Slice(events, func(i, j int) bool {
		return events[i].ID.Less(events[j].ID)
	})

	horizon := now.Add(lookahead)
	var sel Selection
	for i := range events {
		ev := events[i]
		if ev.Start.Before(now) {
			continue
		}
		sel.Future++
		if !ev.Start.Before(horizon) {
			continue
		}
		sel.InWindow++
		if !ev.ID.After(cursor) {
			continue
		}
		sel.New++
		if sel.Chosen == nil {
			chosen := ev
			sel.Chosen = &chosen
		}
	}
	return sel
}
