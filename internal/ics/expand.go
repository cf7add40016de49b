package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "eventhub/internal/log"
	"eventhub/internal/model"
)

const (
	defaultMaxOccurrences = 500
	allDayTime            = "All day"
	defaultLocation       = "TBA"
)

// ExpandConfig controls how entries become event payloads.
type ExpandConfig struct {
	// Location is used to render the time-of-day field. Nil means UTC.
	Location *time.Location

	// RangeStart and RangeEnd bound recurring entries (inclusive). Single
	// entries are always kept.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrences caps each recurring entry.
	MaxOccurrences int

	// Category is used when an entry has no CATEGORIES.
	Category string
}

// ExpandResult is the outcome of Expand.
type ExpandResult struct {
	Fields []model.EventFields
	// Truncated lists UIDs that hit MaxOccurrences.
	Truncated []string
}

// Expand turns parsed entries into create payloads, one per occurrence.
// A missing description falls back to the summary and a missing location
// to "TBA" so that every payload carries all required fields.
func Expand(entries []Entry, cfg ExpandConfig) (ExpandResult, error) {
	var res ExpandResult
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return res, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxOccurrences <= 0 {
		cfg.MaxOccurrences = defaultMaxOccurrences
	}

	res.Fields = make([]model.EventFields, 0, len(entries))
	for _, e := range entries {
		if e.RawRRule == "" {
			res.Fields = append(res.Fields, toFields(e, e.Start, cfg))
			continue
		}
		starts, capped := occurrences(e, cfg)
		if capped {
			res.Truncated = append(res.Truncated, e.UID)
			appLog.Warn("expand: truncated occurrences", "uid", e.UID, "cap", cfg.MaxOccurrences)
		}
		for _, s := range starts {
			res.Fields = append(res.Fields, toFields(e, s, cfg))
		}
	}
	return res, nil
}

func occurrences(e Entry, cfg ExpandConfig) ([]time.Time, bool) {
	r, err := rrule.StrToRRule(e.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", e.UID, "rrule", e.RawRRule)
		return nil, false
	}
	r.DTStart(e.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range e.ExDates {
		set.ExDate(ex.In(e.Start.Location()))
	}

	loc := e.Start.Location()
	times := set.Between(cfg.RangeStart.In(loc), cfg.RangeEnd.In(loc), true)
	if len(times) > cfg.MaxOccurrences {
		return times[:cfg.MaxOccurrences], true
	}
	return times, false
}

func toFields(e Entry, start time.Time, cfg ExpandConfig) model.EventFields {
	f := model.EventFields{
		Name:        e.Summary,
		Description: e.Description,
		Location:    e.Location,
		Category:    cfg.Category,
	}
	if len(e.Categories) > 0 {
		f.Category = e.Categories[0]
	}
	if f.Description == "" {
		f.Description = e.Summary
	}
	if f.Location == "" {
		f.Location = defaultLocation
	}

	if e.AllDay {
		f.Date = model.NewDate(time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC))
		f.Time = allDayTime
		return f
	}
	f.Date = model.NewDate(start.UTC())
	f.Time = start.In(cfg.Location).Format("15:04")
	return f
}
