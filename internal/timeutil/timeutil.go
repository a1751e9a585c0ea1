// Package timeutil provides timezone-aware parsing and day-interval helpers
// used by the calendar tools. Nothing here consults the host's local zone.
package timeutil

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidTimeFormat is returned when a timestamp cannot be parsed.
var ErrInvalidTimeFormat = errors.New("invalid time format")

// Rendering layouts for user-facing strings.
const (
	ClockLayout    = "15:04"
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04"
)

// Layouts that carry their own offset.
var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04Z07:00",
}

// Layouts without offset; the reference zone is attached.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	DateLayout,
}

// Parse parses an ISO-8601-like timestamp. When the text carries no offset the
// reference location is attached; ref must be the zone that was declared to
// the model for the current session.
func Parse(text string, ref *time.Location) (time.Time, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty input", ErrInvalidTimeFormat)
	}
	if ref == nil {
		ref = time.UTC
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, ref); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, text)
}

// FloorDay returns the first instant of the calendar day containing t in loc.
func FloorDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// CeilDay returns the last representable instant of the calendar day
// containing t in loc.
func CeilDay(t time.Time, loc *time.Location) time.Time {
	return FloorDay(t, loc).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// InRange reports whether t lies in [start, end], inclusive on both ends.
func InRange(t, start, end time.Time) bool {
	t, start, end = t.UTC(), start.UTC(), end.UTC()
	return !t.Before(start) && !t.After(end)
}

// Format renders t with layout. Callers convert t into the session zone
// first so output never depends on the host zone.
func Format(t time.Time, layout string) string {
	return t.Format(layout)
}

// StartOfWeek returns Monday 00:00 of the week containing t in loc.
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	day := FloorDay(t, loc)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
