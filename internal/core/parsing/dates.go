package parsing

import (
	"regexp"
	"strings"
	"time"
)

// dateLayouts are tried in order; month/day/4-digit-year comes first.
var dateLayouts = []string{
	"1/2/2006",
	"2006-01-02",
	"1/2/06",
}

// ParseDate parses a single date value. Unparseable input reports false.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var parenthesizedDate = regexp.MustCompile(`\((\d{1,2}/\d{1,2}/\d{2,4}|\d{4}-\d{2}-\d{2})\)`)

var ignoredDateValues = map[string]struct{}{
	"x":           {},
	"missing":     {},
	"not checked": {},
}

// ParseLooseDate accepts spreadsheet-style values: a plain date, or a date
// inside parentheses anywhere in the text. Marker values are ignored.
func ParseLooseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if _, ignored := ignoredDateValues[strings.ToLower(raw)]; ignored || raw == "" {
		return time.Time{}, false
	}
	if t, ok := ParseDate(raw); ok {
		return t, true
	}
	if m := parenthesizedDate.FindStringSubmatch(raw); m != nil {
		return ParseDate(m[1])
	}
	return time.Time{}, false
}
