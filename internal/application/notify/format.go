// Package notify renders push notifications for newly booked events and
// defines the dispatch contract towards the push gateway.
package notify

import (
	"fmt"
	"strings"
	"time"
)

// Swedish day and month names, capitalized for display. The portal serves a
// Swedish-speaking club; notification copy follows its convention.
var (
	svWeekdays = [...]string{"Söndag", "Måndag", "Tisdag", "Onsdag", "Torsdag", "Fredag", "Lördag"}
	svMonths   = [...]string{"Januari", "Februari", "Mars", "April", "Maj", "Juni", "Juli", "Augusti", "September", "Oktober", "November", "December"}
)

// dateThresholdDays controls when the body includes the calendar date in
// addition to the weekday. Independent of, and larger than, the default
// reconciliation lookahead window; the window is tunable, so the date branch
// must still render correctly.
const dateThresholdDays = 7

// Formatter renders notification titles and bodies. Times are rendered in
// the configured display time zone regardless of the host zone.
type Formatter struct {
	loc *time.Location

	// openPracticeName is the distinguished calendar whose notifications get
	// creator-aware copy instead of the generic "<name> uppdaterad".
	openPracticeName string
}

// NewFormatter builds a Formatter for the given display zone and
// distinguished open-practice calendar name.
func NewFormatter(loc *time.Location, openPracticeName string) *Formatter {
	return &Formatter{loc: loc, openPracticeName: openPracticeName}
}

// Title renders the notification title for a calendar. The distinguished
// open-practice calendar gets booking-centric copy, creator-aware when the
// booking member is known; every other calendar gets a generic update title.
func (f *Formatter) Title(calendarName, creator string) string {
	if calendarName != f.openPracticeName {
		return fmt.Sprintf("%s uppdaterad", calendarName)
	}
	lowered := strings.ToLower(f.openPracticeName)
	if creator != "" {
		return fmt.Sprintf("%s har bokat en %s!", creator, lowered)
	}
	return fmt.Sprintf("Ny %s bokad!", lowered)
}

// Body renders the notification body for an event running start..end.
//
//	within a week:  "<Weekday>, kl HH:MM-HH:MM, <dur> min"
//	further out:    "<Weekday>, <day> <Month>\nkl HH:MM-HH:MM, <dur> min"
func (f *Formatter) Body(now, start, end time.Time) string {
	localStart := start.In(f.loc)
	localEnd := end.In(f.loc)

	weekday := svWeekdays[int(localStart.Weekday())]
	duration := int(end.Sub(start) / time.Minute)
	suffix := fmt.Sprintf("kl %s-%s, %d min",
		localStart.Format("15:04"), localEnd.Format("15:04"), duration)

	daysUntil := int(start.Sub(now) / (24 * time.Hour))
	if daysUntil < dateThresholdDays {
		return fmt.Sprintf("%s, %s", weekday, suffix)
	}
	date := fmt.Sprintf("%d %s", localStart.Day(), svMonths[int(localStart.Month())-1])
	return fmt.Sprintf("%s, %s\n%s", weekday, date, suffix)
}

// UpdatedAgo renders a coarse Swedish "time since" phrase for status output.
func UpdatedAgo(now, updatedAt time.Time) string {
	if updatedAt.IsZero() {
		return "aldrig"
	}
	d := now.Sub(updatedAt)
	switch {
	case d < time.Minute:
		return "just nu"
	case d < time.Hour:
		return fmt.Sprintf("för %d min sedan", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("för %d timmar sedan", int(d/time.Hour))
	default:
		return fmt.Sprintf("för %d dagar sedan", int(d/(24*time.Hour)))
	}
}
