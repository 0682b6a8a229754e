// Package icalexport publishes a space's internal bookings as an iCalendar
// feed other calendars can subscribe to.
package icalexport

import (
	"cowork/internal/bookings/conflict"
	"cowork/pkg/model"

	ical "github.com/arran4/golang-ical"
)

const (
	productID = "-//cowork//bookings//EN"
	summary   = "Booked"
)

// RenderCalendar returns the feed for space. Only internal bookings that still
// hold their slot are published. Rendering the same bookings twice yields the
// same bytes.
func RenderCalendar(space *model.Space, bookings []*model.Booking) string {
	cal := ical.NewCalendarFor(productID)
	cal.SetMethod(ical.MethodPublish)
	cal.SetXWRCalName(space.Name)

	for _, b := range exportable(bookings) {
		ev := cal.AddEvent(b.ID)
		ev.SetDtStampTime(b.UpdatedAt.UTC())
		ev.SetStartAt(b.StartTime.UTC())
		ev.SetEndAt(b.EndTime.UTC())
		ev.SetSummary(summary)
		if b.Status.IsLive() {
			ev.SetStatus(ical.ObjectStatusConfirmed)
		} else {
			ev.SetStatus(ical.ObjectStatusTentative)
		}
	}

	return cal.Serialize(ical.WithNewLine("\r\n"))
}

func exportable(bookings []*model.Booking) []*model.Booking {
	out := make([]*model.Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.IsExternal || !b.Status.IsActive() {
			continue
		}
		out = append(out, b)
	}
	conflict.SortBookings(out)
	return out
}
