package sync

import (
	"context"
	"time"

	"github.com/nackswinget/calsync/internal/domain/activity"
	"github.com/nackswinget/calsync/internal/domain/calendar"
)

// FeedClient fetches raw bookable activities for one calendar over a date
// range using a previously established portal session. The second return
// value is the source URL the feed was fetched from, recorded on the built
// calendar document.
type FeedClient interface {
	Fetch(ctx context.Context, calendarID string, start, end time.Time, sess activity.Session) ([]activity.Activity, string, error)
}

// SessionSource supplies authenticated portal sessions. Login performs the
// full browser-automation flow and persists the captured cookies; Stored
// returns the cookies captured by a previous Login.
type SessionSource interface {
	Login(ctx context.Context, orgID string) (activity.Session, error)
	Stored(ctx context.Context, orgID string) (activity.Session, error)
}

// Directory lists the calendars belonging to an organization. Discover
// scrapes the portal's calendar index (requires a live session); Known
// replays the calendar list recorded in the metadata store by earlier runs.
type Directory interface {
	Discover(ctx context.Context, orgID string, sess activity.Session) ([]calendar.Identity, error)
	Known(ctx context.Context, orgID string) ([]calendar.Identity, error)
}

// MetadataStore reads and persists the per-calendar metadata record.
// Merge must only overwrite the fields the sync core owns; unrelated fields
// already in the store stay untouched. The store assigns UpdatedAt on every
// merge.
type MetadataStore interface {
	Get(ctx context.Context, calendarID string) (calendar.Metadata, bool, error)
	Merge(ctx context.Context, md calendar.Metadata) error
}

// Publisher writes the run's public artifacts to the blob store: the
// serialized iCalendar document, a 30-day JSON dump of upcoming activities,
// and the manifest listing all published calendars.
type Publisher interface {
	PublishCalendar(ctx context.Context, cal *calendar.Calendar, md calendar.Metadata) (publicURL string, err error)
	PublishActivities(ctx context.Context, id calendar.Identity, activities []activity.Activity, now time.Time) error
	PublishManifest(ctx context.Context) error
}
