package calendar

import (
	"time"

	"github.com/nackswinget/calsync/internal/domain/activity"
)

// HistoryCap bounds the per-calendar notification history.
const HistoryCap = 5

// Notification is one entry of the bounded notification history: what was
// announced, when, and for which event.
type Notification struct {
	// At is the capture time from the run's injected clock.
	At time.Time `json:"at"`

	Title   string `json:"title"`
	Body    string `json:"body"`
	Creator string `json:"creator"`

	EventID          string    `json:"event_id"`
	EventStart       time.Time `json:"event_start"`
	EventDescription string    `json:"event_description"`
}

// Metadata is the persisted per-calendar record. One record exists per
// calendar identity; it is created on the first successful run and updated
// in place thereafter, never deleted by the sync core.
type Metadata struct {
	CalendarName string `json:"calendar_name"`
	CalendarID   string `json:"calendar_id"`
	OrgID        string `json:"calendar_org_id"`

	// LastNotifiedEventID is the cursor: the identifier boundary below which
	// events are considered already announced. Monotonically non-decreasing
	// across runs under numeric ordering.
	LastNotifiedEventID activity.EventID `json:"calendar_last_uid"`

	// LastNotifiedEventDate is the start instant of the last notified event.
	LastNotifiedEventDate time.Time `json:"calendar_last_date"`

	// LastNotifications holds the most recent notifications, newest first,
	// capped at HistoryCap.
	LastNotifications []Notification `json:"last_notifications"`

	// UpdatedAt is written every run regardless of whether a notification
	// fired, so dashboards see a heartbeat even on no-op runs. Assigned by
	// the metadata store at persist time.
	UpdatedAt time.Time `json:"updated_at"`

	// Size is the event count of the most recently published document.
	Size int `json:"calendar_size"`

	// PublicURL is where the published iCalendar document can be fetched.
	PublicURL string `json:"public_url"`
}

// NewMetadata returns the first-run record for a calendar: empty cursor,
// empty history.
func NewMetadata(id Identity) Metadata {
	return Metadata{
		CalendarName: id.Name,
		CalendarID:   id.ID,
		OrgID:        id.OrgID,
	}
}

// WithNotification returns a copy of m advanced past ev: cursor and date
// updated, rec prepended to the history (trimmed to HistoryCap). The cursor
// never regresses; if ev does not order after the current cursor the
// receiver is returned unchanged.
func (m Metadata) WithNotification(ev Event, rec Notification) Metadata {
	if !ev.ID.After(m.LastNotifiedEventID) {
		return m
	}
	next := m
	next.LastNotifiedEventID = ev.ID
	next.LastNotifiedEventDate = ev.Start

	history := make([]Notification, 0, HistoryCap)
	history = append(history, rec)
	for _, old := range m.LastNotifications {
		if len(history) == HistoryCap {
			break
		}
		history = append(history, old)
	}
	next.LastNotifications = history
	return next
}

// WithPublished returns a copy of m recording the published document's size
// and public URL.
func (m Metadata) WithPublished(size int, publicURL string) Metadata {
	next := m
	next.Size = size
	next.PublicURL = publicURL
	return next
}
