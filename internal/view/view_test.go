package view

import (
	"math/rand"
	"reflect"
	"strconv"
	"testing"
	"time"

	"eventhub/internal/model"
)

var now = time.Date(2030, 6, 15, 12, 0, 0, 0, time.UTC)

func at(id string, d time.Time, category string) model.Event {
	return model.Event{ID: id, Name: id, Date: model.NewDate(d), Category: category}
}

func ids(events []model.Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.ID
	}
	return out
}

func randomEvents(r *rand.Rand, n int) []model.Event {
	labels := []string{"Music", "Art", "Sports", "music", "Food & Drink"}
	out := make([]model.Event, n)
	for i := range out {
		// Days in [-5, 5] so there are plenty of ties and past events.
		d := now.Add(time.Duration(r.Intn(11)-5) * 24 * time.Hour)
		out[i] = at(strconv.Itoa(i), d, labels[r.Intn(len(labels))])
	}
	return out
}

func TestUpcomingFiltersAndSorts(t *testing.T) {
	events := []model.Event{
		at("past", now.Add(-time.Hour), "Art"),
		at("exactly-now", now, "Art"),
		at("later", now.Add(48*time.Hour), "Art"),
		at("soon", now.Add(time.Hour), "Music"),
		at("later-tie", now.Add(48*time.Hour), "Music"),
	}
	got := ids(Upcoming(events, now))
	want := []string{"soon", "later", "later-tie"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Upcoming = %v, want %v", got, want)
	}
}

func TestUpcomingProperties(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		events := randomEvents(r, r.Intn(40))
		up := Upcoming(events, now)

		pos := make(map[string]int, len(events))
		for i, ev := range events {
			pos[ev.ID] = i
		}
		for i, ev := range up {
			if !ev.Date.After(now) {
				t.Fatalf("round %d: %s is not after now", round, ev.ID)
			}
			if i == 0 {
				continue
			}
			prev := up[i-1]
			if prev.Date.After(ev.Date.Time) {
				t.Fatalf("round %d: not sorted at %d", round, i)
			}
			if prev.Date.Equal(ev.Date.Time) && pos[prev.ID] > pos[ev.ID] {
				t.Fatalf("round %d: tie order not stable at %d", round, i)
			}
		}
		want := 0
		for _, ev := range events {
			if ev.Date.After(now) {
				want++
			}
		}
		if len(up) != want {
			t.Fatalf("round %d: len = %d, want %d", round, len(up), want)
		}
	}
}

func TestUpcomingDoesNotModifyInput(t *testing.T) {
	events := []model.Event{
		at("b", now.Add(2*time.Hour), "x"),
		at("a", now.Add(time.Hour), "x"),
	}
	_ = Upcoming(events, now)
	if got := ids(events); !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Fatalf("input reordered: %v", got)
	}
}

func TestCategoriesFirstSeenNoDuplicates(t *testing.T) {
	events := []model.Event{
		at("1", now, "Music"),
		at("2", now, "Art"),
		at("3", now, "Music"),
		at("4", now, "music"),
		at("5", now, "Art"),
	}
	got := Categories(events)
	want := []string{"Music", "Art", "music"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Categories = %v, want %v", got, want)
	}
}

func TestByCategoryPartition(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for round := 0; round < 50; round++ {
		events := randomEvents(r, r.Intn(40))
		counted := make(map[string]int)
		total := 0
		for _, c := range Categories(events) {
			subset := ByCategory(events, c)
			for _, ev := range subset {
				if ev.Category != c {
					t.Fatalf("round %d: %s has category %q, not %q", round, ev.ID, ev.Category, c)
				}
				counted[ev.ID]++
			}
			total += len(subset)
		}
		if total != len(events) {
			t.Fatalf("round %d: partition size %d, want %d", round, total, len(events))
		}
		for _, ev := range events {
			if counted[ev.ID] != 1 {
				t.Fatalf("round %d: %s counted %d times", round, ev.ID, counted[ev.ID])
			}
		}
	}
}

func TestByCategoryIsCaseSensitive(t *testing.T) {
	events := []model.Event{at("1", now, "Music"), at("2", now, "music")}
	if got := ids(ByCategory(events, "Music")); !reflect.DeepEqual(got, []string{"1"}) {
		t.Fatalf("ByCategory = %v", got)
	}
	if got := ByCategory(events, "Jazz"); got == nil || len(got) != 0 {
		t.Fatalf("unknown category = %#v", got)
	}
}

func TestCategoryCounts(t *testing.T) {
	events := []model.Event{
		at("1", now, "Music"),
		at("2", now, "Art"),
		at("3", now, "Music"),
	}
	got := CategoryCounts(events)
	want := []CategoryCount{{Label: "Music", Count: 2}, {Label: "Art", Count: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("CategoryCounts = %v, want %v", got, want)
	}
}

func TestOwnedAndFind(t *testing.T) {
	a := at("1", now, "Art")
	a.CreatorEmail = "Ana@Example.com"
	b := at("2", now, "Art")
	b.CreatorEmail = "bo@example.com"
	events := []model.Event{a, b}

	if got := ids(Owned(events, "ana@example.com")); !reflect.DeepEqual(got, []string{"1"}) {
		t.Fatalf("Owned = %v", got)
	}
	if got := Owned(events, ""); len(got) != 0 {
		t.Fatalf("empty email owns %v", ids(got))
	}

	if ev, ok := Find(events, "2"); !ok || ev.CreatorEmail != "bo@example.com" {
		t.Fatalf("Find = %+v, %v", ev, ok)
	}
	if _, ok := Find(events, "nope"); ok {
		t.Fatal("Find returned a missing id")
	}
}

func TestDashboard(t *testing.T) {
	a := at("1", now.Add(time.Hour), "Art")
	a.CreatorEmail = "ana@example.com"
	b := at("2", now.Add(-time.Hour), "Music")
	d := Dashboard([]model.Event{a, b}, now, "ana@example.com")

	if d.Total != 2 || len(d.Upcoming) != 1 || len(d.Categories) != 2 || len(d.Mine) != 1 {
		t.Fatalf("dashboard = %+v", d)
	}
}
