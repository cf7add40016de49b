package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "eventhub/internal/log"
)

// Entry is one VEVENT read from a calendar, before recurrence expansion.
type Entry struct {
	UID         string
	Summary     string
	Description string
	Location    string
	Categories  []string

	Start  time.Time
	AllDay bool

	RawRRule string
	ExDates  []time.Time
}

// Parse reads every VEVENT in body. Events that cannot be read are logged
// and skipped; RECURRENCE-ID overrides are skipped as well, since imported
// events are independent records.
func Parse(body []byte) ([]Entry, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0)
	for _, ve := range cal.Events() {
		if ve.GetProperty(ical.ComponentPropertyRecurrenceId) != nil {
			appLog.Debug("ics: skipping recurrence override", "uid", propValue(ve, ical.ComponentPropertyUniqueId))
			continue
		}
		e, perr := parseVEvent(ve)
		if perr != nil {
			appLog.Error("ics vevent parse failed", perr, "uid", propValue(ve, ical.ComponentPropertyUniqueId))
			continue
		}
		out = append(out, e)
	}
	appLog.Debug("ics parse completed", "event_count", len(out))
	return out, nil
}

func parseVEvent(ve *ical.VEvent) (Entry, error) {
	var out Entry
	out.UID = propValue(ve, ical.ComponentPropertyUniqueId)
	out.Summary = propValue(ve, ical.ComponentPropertySummary)
	out.Description = propValue(ve, ical.ComponentPropertyDescription)
	out.Location = propValue(ve, ical.ComponentPropertyLocation)

	for _, p := range ve.GetProperties(ical.ComponentPropertyCategories) {
		for _, c := range strings.Split(p.Value, ",") {
			if c = strings.TrimSpace(c); c != "" {
				out.Categories = append(out.Categories, c)
			}
		}
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || dtStart.Value == "" {
		return out, errors.New("missing DTSTART")
	}
	if vs, ok := dtStart.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		out.AllDay = true
	}
	if !strings.Contains(dtStart.Value, "T") {
		out.AllDay = true
	}

	var start time.Time
	var err error
	if out.AllDay {
		start, err = parseICSTime(dtStart.Value, time.UTC)
	} else {
		start, err = ve.GetStartAt()
		if err != nil || start.IsZero() {
			start, err = parseICSTime(dtStart.Value, time.UTC)
		}
	}
	if err != nil {
		return out, err
	}
	out.Start = start

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			if t, err := parseICSTime(part, start.Location()); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}
	return out, nil
}

func propValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return p.Value
	}
	return ""
}

// parseICSTime handles the basic DATE and DATE-TIME forms; values without a
// trailing Z are read in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
