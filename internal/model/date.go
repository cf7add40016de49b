package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const dateOnly = "2006-01-02"

// Date is an ISO-8601 calendar date, optionally with a time of day.
type Date struct {
	time.Time
}

// NewDate wraps t.
func NewDate(t time.Time) Date { return Date{Time: t} }

// ParseDate accepts RFC 3339 and the shorter forms the API and users send.
// Values without a zone are read as UTC.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, fmt.Errorf("empty date")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return Date{Time: t}, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05", dateOnly} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return Date{Time: t}, nil
		}
	}
	return Date{}, fmt.Errorf("unsupported date: %q", s)
}

// String renders date-only values as YYYY-MM-DD and everything else as RFC 3339.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	if d.isMidnightUTC() {
		return d.UTC().Format(dateOnly)
	}
	return d.Format(time.RFC3339)
}

func (d Date) isMidnightUTC() bool {
	u := d.UTC()
	h, m, s := u.Clock()
	return h == 0 && m == 0 && s == 0 && u.Nanosecond() == 0
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
