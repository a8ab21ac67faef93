package claimnorm

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// nullMarkers are textual stand-ins for "no value" seen in EMR exports.
var nullMarkers = map[string]bool{
	"":     true,
	"none": true,
	"null": true,
}

func normalizeText(raw string) string {
	return strings.TrimSpace(raw)
}

func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}

// normalizeOptional trims a nullable field and folds null markers to "".
func normalizeOptional(raw string, ok bool) string {
	if !ok {
		return ""
	}
	v := normalizeText(raw)
	if nullMarkers[strings.ToLower(v)] {
		return ""
	}
	return v
}

// normalizeDenialReason trims, collapses internal whitespace runs and
// lower-cases. Null markers become "".
func normalizeDenialReason(raw string, ok bool) string {
	v := normalizeOptional(raw, ok)
	if v == "" {
		return ""
	}
	return lower(strings.Join(strings.Fields(v), " "))
}

func normalizeStatus(raw string, ok bool) string {
	if !ok {
		return ""
	}
	return lower(normalizeText(raw))
}

// parseSubmittedAt parses a source date with a strict layout and truncates
// it to a UTC calendar date. present is false for a missing or blank field;
// err is set only when a value is present and does not match layout.
func parseSubmittedAt(raw string, ok bool, layout string) (d time.Time, present bool, err error) {
	if !ok {
		return time.Time{}, false, nil
	}
	v := normalizeText(raw)
	if v == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(layout, v)
	if err != nil {
		return time.Time{}, true, err
	}
	return CalendarDate(t), true, nil
}

// CalendarDate drops the time of day, keeping the date in t's own zone.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(CalendarDate(b).Sub(CalendarDate(a)) / (24 * time.Hour))
}
