// Package derive holds the pure calculators shared by both extractors:
// date formatting, tenor arithmetic, number parsing and comparison labels.
package derive

import (
	"strconv"
	"strings"
	"time"
)

// displayLayout renders dates as DD-Mon-YY.
const displayLayout = "02-Jan-06"

// dateLayouts are tried in order. Layouts without a zone are read as UTC.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// ParseDate parses a document date with or without a time component and
// returns it in UTC.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, raw, time.UTC)
		if err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// FormatDate renders raw as DD-Mon-YY, or "" when it cannot be parsed.
func FormatDate(raw string) string {
	t, ok := ParseDate(raw)
	if !ok {
		return ""
	}
	return t.Format(displayLayout)
}

// ParseDisplayDate parses a DD-Mon-YY value produced by FormatDate. Every
// two-digit year is read as 20YY.
func ParseDisplayDate(s string) (time.Time, bool) {
	if len(s) != len(displayLayout) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(displayLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	if t.Year() < 2000 {
		t = t.AddDate(100, 0, 0)
	}
	return t, true
}

// Tenor formats the whole-month distance between two raw dates.
//
// Months are counted from UTC year and month fields only. A negative span is
// clamped to "0M". A span inside one calendar month is "0M" when the end day
// is on or after the start day and "" otherwise. Spans that are a positive
// multiple of twelve months render in years.
func Tenor(startRaw, endRaw string) string {
	start, ok := ParseDate(startRaw)
	if !ok {
		return ""
	}
	end, ok := ParseDate(endRaw)
	if !ok {
		return ""
	}

	months := (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month())
	switch {
	case months < 0:
		return FormatMonths(0)
	case months == 0 && end.Day() < start.Day():
		return ""
	default:
		return FormatMonths(months)
	}
}

// FormatMonths renders a month count as "<n>Y" for positive whole years and
// "<n>M" otherwise. Negative counts clamp to zero.
func FormatMonths(months int) string {
	if months < 0 {
		months = 0
	}
	if months > 0 && months%12 == 0 {
		return strconv.Itoa(months/12) + "Y"
	}
	return strconv.Itoa(months) + "M"
}

// FormatMonthsText parses a month count from document text and formats it,
// returning "" when the text is not a number.
func FormatMonthsText(raw string) string {
	n, ok := ParseNumber(raw)
	if !ok {
		return ""
	}
	return FormatMonths(int(n))
}
