// Package view derives presentation slices from the cached collection.
// Every function is pure: same (events, now) in, same result out, and the
// input slice is never modified.
package view

import (
	"slices"
	"strings"
	"time"

	"eventhub/internal/model"
)

// Upcoming returns the events dated strictly after now, sorted ascending
// by date. Events with equal dates keep their input order.
func Upcoming(events []model.Event, now time.Time) []model.Event {
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if ev.Date.After(now) {
			out = append(out, ev)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Event) int {
		return a.Date.Compare(b.Date.Time)
	})
	return out
}

// Categories returns the distinct category labels in first-seen order.
func Categories(events []model.Event) []string {
	seen := make(map[string]struct{}, len(events))
	out := make([]string, 0)
	for _, ev := range events {
		if _, ok := seen[ev.Category]; ok {
			continue
		}
		seen[ev.Category] = struct{}{}
		out = append(out, ev.Category)
	}
	return out
}

// ByCategory returns the events whose label equals category exactly.
func ByCategory(events []model.Event, category string) []model.Event {
	out := make([]model.Event, 0)
	for _, ev := range events {
		if ev.Category == category {
			out = append(out, ev)
		}
	}
	return out
}

// CategoryCount is one row of the dashboard's category summary.
type CategoryCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// CategoryCounts counts events per label, in first-seen order.
func CategoryCounts(events []model.Event) []CategoryCount {
	idx := make(map[string]int)
	out := make([]CategoryCount, 0)
	for _, ev := range events {
		i, ok := idx[ev.Category]
		if !ok {
			i = len(out)
			idx[ev.Category] = i
			out = append(out, CategoryCount{Label: ev.Category})
		}
		out[i].Count++
	}
	return out
}

// Owned returns the events created by email. Emails compare
// case-insensitively; an empty email owns nothing.
func Owned(events []model.Event, email string) []model.Event {
	out := make([]model.Event, 0)
	email = strings.TrimSpace(email)
	if email == "" {
		return out
	}
	for _, ev := range events {
		if strings.EqualFold(ev.CreatorEmail, email) {
			out = append(out, ev)
		}
	}
	return out
}

// Find scans events for id.
func Find(events []model.Event, id string) (model.Event, bool) {
	for _, ev := range events {
		if ev.ID == id {
			return ev, true
		}
	}
	return model.Event{}, false
}

// DashboardView bundles what the dashboard shows in one pass.
type DashboardView struct {
	Now        time.Time       `json:"now"`
	Total      int             `json:"total"`
	Upcoming   []model.Event   `json:"upcoming"`
	Categories []CategoryCount `json:"categories"`
	Mine       []model.Event   `json:"mine"`
}

func Dashboard(events []model.Event, now time.Time, email string) DashboardView {
	return DashboardView{
		Now:        now,
		Total:      len(events),
		Upcoming:   Upcoming(events, now),
		Categories: CategoryCounts(events),
		Mine:       Owned(events, email),
	}
}
