package notify

import (
	"context"
	"time"

	"github.com/nackswinget/calsync/internal/domain/calendar"
)

// TopicFor returns the push topic for a calendar identity:
// "calendar-<calendarId>".
func TopicFor(cal calendar.Identity) string {
	return "calendar-" + cal.ID
}

// Dispatcher sends one rendered notification per chosen event to the push
// gateway. Implementations must return an error on transport failure so the
// engine can leave the notification cursor untouched; the same event then
// remains eligible on the next run.
type Dispatcher interface {
	// Send renders and dispatches a notification for ev on cal's topic.
	// creator may be empty. The returned Notification is the history record
	// to prepend to the calendar metadata; it is only valid when err is nil.
	Send(ctx context.Context, now time.Time, ev calendar.Event, creator string, cal calendar.Identity) (calendar.Notification, error)
}
