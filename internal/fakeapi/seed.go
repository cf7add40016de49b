package fakeapi

import (
	"time"

	"eventhub/internal/model"
)

// SampleEvents returns a small demo collection spread around now: two past
// events and several upcoming ones across a handful of categories.
func SampleEvents(now time.Time, creator string) []model.Event {
	day := func(offset int, hour int) model.Date {
		d := now.UTC().AddDate(0, 0, offset)
		return model.NewDate(time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, time.UTC))
	}
	return []model.Event{
		{
			Name: "Open Air Jazz Night", Date: day(12, 18), Time: "18:00",
			Location: "Riverside Park", Description: "Local trios and a late jam session.",
			Category: "Music", CreatorEmail: creator,
		},
		{
			Name: "Cloud Native Meetup", Date: day(30, 9), Time: "09:00",
			Location: "Convention Center, Hall B", Description: "Talks on operators, service meshes and platform teams.",
			Category: "Technology", CreatorEmail: creator,
		},
		{
			Name: "Street Food Weekend", Date: day(21, 12), Time: "12:00",
			Location: "Market Square", Description: "Food trucks, tastings and a cooking stage.",
			Category: "Food & Drink", CreatorEmail: creator,
		},
		{
			Name: "City Half Marathon", Date: day(45, 7), Time: "07:00",
			Location: "Old Town Start Line", Description: "21 km through the historic center.",
			Category: "Sports", CreatorEmail: creator,
		},
		{
			Name: "Modern Print Exhibition", Date: day(-3, 10), Time: "10:00",
			Location: "Gallery North", Description: "Screen prints and etchings from regional artists.",
			Category: "Art", CreatorEmail: creator,
		},
		{
			Name: "Sketch Club", Date: day(5, 17), Time: "17:00",
			Location: "Gallery North, Studio 2", Description: "Bring a pencil; models provided.",
			Category: "Art", CreatorEmail: creator,
		},
		{
			Name: "Founders Breakfast", Date: day(-10, 8), Time: "08:00",
			Location: "Harbor Hotel", Description: "Informal pitches over coffee.",
			Category: "Business", CreatorEmail: creator,
		},
	}
}
