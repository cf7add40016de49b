package model

import (
	"errors"
	"strings"
	"time"
)

// DefaultCategories is the category list offered by the create/update forms.
// The server may return labels outside this set; they are kept as-is.
var DefaultCategories = []string{
	"Technology",
	"Music",
	"Food & Drink",
	"Sports",
	"Art",
	"Business",
	"Education",
	"Health",
	"Social",
}

// Event is one record of the remote event collection.
type Event struct {
	// ID is server-assigned and immutable once created.
	ID string `json:"_id"`

	Name        string `json:"name"`
	Date        Date   `json:"date"`
	Time        string `json:"time"` // display-only, usually "15:04"
	Location    string `json:"location"`
	Description string `json:"description"`
	Category    string `json:"category"`

	// CreatorEmail is set by the server at creation.
	CreatorEmail string `json:"createEmail"`
}

// StartsAt returns the moment the event begins in loc. When Date carries no
// time of day and Time parses as HH:MM, the two are combined.
func (e Event) StartsAt(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	d := e.Date.Time
	if d.IsZero() {
		return d
	}
	h, m, s := d.Clock()
	if h == 0 && m == 0 && s == 0 {
		if hhmm, ok := parseClock(e.Time); ok {
			y, mo, day := d.Date()
			return time.Date(y, mo, day, hhmm.Hour(), hhmm.Minute(), 0, 0, loc)
		}
		y, mo, day := d.Date()
		return time.Date(y, mo, day, 0, 0, 0, 0, loc)
	}
	return d.In(loc)
}

// HasClock reports whether StartsAt yields a concrete time of day.
func (e Event) HasClock() bool {
	h, m, s := e.Date.Clock()
	if h != 0 || m != 0 || s != 0 {
		return true
	}
	_, ok := parseClock(e.Time)
	return ok
}

// Fields returns the editable part of e, e.g. to pre-fill an update.
func (e Event) Fields() EventFields {
	return EventFields{
		Name:        e.Name,
		Date:        e.Date,
		Time:        e.Time,
		Location:    e.Location,
		Description: e.Description,
		Category:    e.Category,
	}
}

func parseClock(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "15:04:05", "3:04 PM", "3:04PM"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ErrMissingFields is returned by EventFields.Validate.
var ErrMissingFields = errors.New("missing required event fields")

// EventFields is the create/update payload.
type EventFields struct {
	Name        string `json:"name"`
	Date        Date   `json:"date"`
	Time        string `json:"time"`
	Location    string `json:"location"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// Validate checks that every field of the form is filled in.
func (f EventFields) Validate() error {
	if strings.TrimSpace(f.Name) == "" ||
		f.Date.IsZero() ||
		strings.TrimSpace(f.Time) == "" ||
		strings.TrimSpace(f.Location) == "" ||
		strings.TrimSpace(f.Description) == "" ||
		strings.TrimSpace(f.Category) == "" {
		return ErrMissingFields
	}
	return nil
}

// Session is the signed-in user's token and display identity.
type Session struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Email    string `json:"email"`
}
