package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"eventhub/internal/model"
)

const uidDomain = "@eventhub"

// Export renders events as an iCalendar document. Events whose start has a
// time of day become timed events; the rest are all-day.
func Export(events []model.Event, loc *time.Location, stamp time.Time) string {
	if loc == nil {
		loc = time.UTC
	}
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//eventhub//events//EN")
	cal.SetXWRCalName("eventhub")

	for _, ev := range events {
		if ev.Date.IsZero() {
			continue
		}
		ve := cal.AddEvent(ev.ID + uidDomain)
		ve.SetDtStampTime(stamp)
		ve.SetSummary(ev.Name)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}
		if ev.Category != "" {
			ve.SetProperty(ical.ComponentPropertyCategories, ev.Category)
		}
		if ev.CreatorEmail != "" {
			ve.SetProperty(ical.ComponentPropertyOrganizer, "mailto:"+ev.CreatorEmail)
		}

		start := ev.StartsAt(loc)
		if ev.HasClock() {
			ve.SetStartAt(start)
			continue
		}
		day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
		ve.SetAllDayStartAt(day)
		ve.SetAllDayEndAt(day.AddDate(0, 0, 1))
	}
	return cal.Serialize()
}
