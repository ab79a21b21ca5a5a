// Package calendar holds the published-side domain model: normalized
// calendar events, the calendar document they form, and the per-calendar
// metadata record that survives between reconciliation runs.
package calendar

import (
	"time"

	"github.com/nackswinget/calsync/internal/domain/activity"
)

// Identity names one logical calendar on the portal.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	OrgID string `json:"org_id"`
}

// Event is the normalized projection of an Activity into the published
// calendar. Events are created fresh on every run from the current activity
// snapshot and never mutated; only derived metadata survives between runs.
type Event struct {
	ID          activity.EventID
	Summary     string
	Description string
	Location    string

	// Start and End are normalized to the display time zone.
	Start time.Time
	End   time.Time

	// Organizer is a best-effort extraction from the description's first
	// line ("<name> - <phone>" convention). Empty when the pattern is absent.
	Organizer string
}

// Calendar is the deduplicated in-memory document built from one fetch.
type Calendar struct {
	subject   Identity
	sourceURL string
	events    []Event
}

// NewCalendar creates an empty calendar for subject, recording the feed URL
// it was built from.
func NewCalendar(subject Identity, sourceURL string) *Calendar {
	return &Calendar{subject: subject, sourceURL: sourceURL}
}

// Append adds an event in input order.
func (c *Calendar) Append(ev Event) { c.events = append(c.events, ev) }

// Events returns the events in insertion order (input order post-filtering).
// The returned slice is shared; callers that sort must copy first.
func (c *Calendar) Events() []Event { return c.events }

// Len returns the event count after filtering.
func (c *Calendar) Len() int { return len(c.events) }

// Name returns the calendar display name.
func (c *Calendar) Name() string { return c.subject.Name }

// Subject returns the calendar identity this document was built for.
func (c *Calendar) Subject() Identity { return c.subject }

// SourceURL returns the feed URL the document was built from.
func (c *Calendar) SourceURL() string { return c.sourceURL }
