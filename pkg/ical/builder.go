// Package ical serializes calendar documents to the iCalendar wire format.
package ical

import (
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/nackswinget/calsync/internal/domain/calendar"
)

const productID = "-//nackswinget//calsync//SV"

// Serialize renders cal as an iCalendar document. Event UIDs are the stable
// source event identifiers, so subscribers see updates to a booking as
// changes to one event rather than a delete and re-add.
func Serialize(cal *calendar.Calendar, tzName string, now time.Time) string {
	doc := ics.NewCalendar()
	doc.SetMethod(ics.MethodPublish)
	doc.SetProductId(productID)
	doc.SetXWRCalName(cal.Name())
	doc.SetXWRTimezone(tzName)

	for _, ev := range cal.Events() {
		ve := doc.AddEvent(ev.ID.String())
		ve.SetDtStampTime(now)
		ve.SetStartAt(ev.Start)
		ve.SetEndAt(ev.End)
		ve.SetSummary(ev.Summary)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}
		if ev.Organizer != "" {
			ve.SetOrganizer(ev.Organizer)
		}
	}
	return doc.Serialize()
}
