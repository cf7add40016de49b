package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"eventhub/internal/model"
)

func TestExportParseRoundTrip(t *testing.T) {
	events := []model.Event{
		{
			ID: "abc123", Name: "Jazz, Blues & More", Date: mustDate(t, "2030-01-02"), Time: "18:00",
			Location: "Riverside Park", Description: "Late set", Category: "Music",
			CreatorEmail: "ana@example.com",
		},
		{
			ID: "def456", Name: "Market Day", Date: mustDate(t, "2030-02-03"), Time: "whenever",
			Location: "Square", Description: "Stalls", Category: "Food & Drink",
		},
	}
	doc := Export(events, time.UTC, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	for _, want := range []string{"BEGIN:VCALENDAR", "UID:abc123@eventhub", "DTSTART:20300102T180000Z", "DTSTART;VALUE=DATE:20300203"} {
		if !strings.Contains(doc, want) {
			t.Fatalf("export missing %q:\n%s", want, doc)
		}
	}

	entries, err := Parse([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d", len(entries))
	}

	res, err := Expand(entries, ExpandConfig{Category: "Social"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Fields) != 2 {
		t.Fatalf("fields = %+v", res.Fields)
	}

	timed := res.Fields[0]
	if timed.Name != "Jazz, Blues & More" || timed.Category != "Music" || timed.Time != "18:00" {
		t.Fatalf("timed = %+v", timed)
	}
	if !timed.Date.Equal(time.Date(2030, 1, 2, 18, 0, 0, 0, time.UTC)) {
		t.Fatalf("timed date = %v", timed.Date)
	}
	if err := timed.Validate(); err != nil {
		t.Fatalf("timed payload invalid: %v", err)
	}

	allDay := res.Fields[1]
	if allDay.Time != allDayTime || allDay.Date.String() != "2030-02-03" || allDay.Category != "Food & Drink" {
		t.Fatalf("all-day = %+v (date %s)", allDay, allDay.Date)
	}
}

const weekly = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:weekly-1
DTSTAMP:20300101T000000Z
DTSTART:20300107T090000Z
RRULE:FREQ=WEEKLY;COUNT=6
EXDATE:20300121T090000Z
SUMMARY:Standup
END:VEVENT
BEGIN:VEVENT
UID:weekly-1
DTSTAMP:20300101T000000Z
RECURRENCE-ID:20300114T090000Z
DTSTART:20300114T100000Z
SUMMARY:Standup (moved)
END:VEVENT
END:VCALENDAR
`

func TestExpandRecurring(t *testing.T) {
	entries, err := Parse([]byte(strings.ReplaceAll(weekly, "\n", "\r\n")))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("override not skipped: %d entries", len(entries))
	}

	res, err := Expand(entries, ExpandConfig{
		RangeStart: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2030, 1, 31, 0, 0, 0, 0, time.UTC),
		Category:   "Business",
	})
	if err != nil {
		t.Fatal(err)
	}
	// Jan 7, 14, 28 (21 excluded); Feb 4+ outside the range.
	if len(res.Fields) != 3 {
		t.Fatalf("occurrences = %d: %+v", len(res.Fields), res.Fields)
	}
	for _, f := range res.Fields {
		if f.Category != "Business" || f.Location != defaultLocation || f.Description != "Standup" {
			t.Fatalf("defaults not applied: %+v", f)
		}
		if f.Date.Day() == 21 {
			t.Fatal("EXDATE occurrence kept")
		}
	}
}

func TestExpandCap(t *testing.T) {
	entries := []Entry{{
		UID: "daily", Summary: "Daily", Start: time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC),
		RawRRule: "FREQ=DAILY",
	}}
	res, err := Expand(entries, ExpandConfig{
		RangeStart:     time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:       time.Date(2030, 12, 31, 0, 0, 0, 0, time.UTC),
		MaxOccurrences: 10,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Fields) != 10 || len(res.Truncated) != 1 || res.Truncated[0] != "daily" {
		t.Fatalf("fields = %d, truncated = %v", len(res.Fields), res.Truncated)
	}
}

func TestExpandRejectsInvertedRange(t *testing.T) {
	_, err := Expand(nil, ExpandConfig{
		RangeStart: time.Date(2030, 2, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := Parse([]byte("  \n")); err == nil {
		t.Fatal("expected error for empty body")
	}
}

func TestFetcherReadsFileAndURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cal.ics")
	if err := os.WriteFile(path, []byte(weekly), 0o600); err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cal.ics" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(weekly))
	}))
	defer ts.Close()

	f := NewFetcher(time.Second)
	ctx := context.Background()
	for _, src := range []string{path, ts.URL + "/cal.ics"} {
		body, err := f.Read(ctx, src)
		if err != nil {
			t.Fatalf("%s: %v", src, err)
		}
		if !strings.Contains(string(body), "UID:weekly-1") {
			t.Fatalf("%s: unexpected body", src)
		}
	}
	if _, err := f.Read(ctx, ts.URL+"/missing.ics"); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestRedactURL(t *testing.T) {
	got := redactURL("https://cal.example.com/private/abc.ics?token=s3cret")
	if got != "https://cal.example.com/...(redacted)" {
		t.Fatalf("redactURL = %q", got)
	}
}

func mustDate(t *testing.T, s string) model.Date {
	t.Helper()
	d, err := model.ParseDate(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}
