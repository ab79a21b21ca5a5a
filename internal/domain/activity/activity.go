// Package activity holds the input-side domain model: the raw bookable
// activity records fetched from the external booking portal and the session
// material needed to fetch them.
package activity

import "strconv"

// Activity is a single bookable session record as listed by the portal.
// Timestamps are kept as the portal's raw ISO-8601 strings; parsing happens
// during calendar building so one malformed record fails only its own
// mapping, never the batch.
type Activity struct {
	// ID is unique within the owning calendar.
	ID int64 `json:"activityId"`

	// CalendarID identifies the calendar that owns the activity.
	CalendarID int64 `json:"calendarId"`

	Name        string `json:"name"`
	Description string `json:"description"`
	VenueName   string `json:"venueName"`

	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`

	// Shared marks an activity visible from calendars other than its owner.
	// A shared activity is published only on its owning calendar's feed.
	Shared bool `json:"shared"`
}

// EventID returns the activity's identity as a typed EventID.
func (a Activity) EventID() EventID { return NewEventID(a.ID) }

// OwnedBy reports whether calendarID (as used in calendar identities) owns
// this activity.
func (a Activity) OwnedBy(calendarID string) bool {
	return strconv.FormatInt(a.CalendarID, 10) == calendarID
}

// Session carries the authenticated cookies required by the activity feed.
// It is produced by the session provider (login automation) and consumed by
// the feed client; the sync core treats it as opaque.
type Session struct {
	Cookies []Cookie `json:"cookies"`
}

// Cookie is one browser cookie captured at login.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// Empty reports whether the session carries no cookies at all.
func (s Session) Empty() bool { return len(s.Cookies) == 0 }

// CookieHeader renders the Cookie request-header value.
func (s Session) CookieHeader() string {
	out := ""
	for i, c := range s.Cookies {
		if i > 0 {
			out += ";"
		}
		out += c.Name + "=" + c.Value
	}
	return out
}
