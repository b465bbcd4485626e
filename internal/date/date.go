// Package date parses the loose date fragments rendered on trip pages into
// calendar dates and formats them for filenames and range comparisons.
package date

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/goodsign/monday"
)

// ISOLayout is the canonical day format used for filenames, range
// comparisons and the CLI date flags.
const ISOLayout = "2006-01-02"

// monthDayPattern matches "<Month> <Day>" optionally followed by a four
// digit year. Long month names come first in the alternation so that eg.
// "March" does not match as "Mar".
var monthDayPattern = regexp.MustCompile(
	`\b(January|February|March|April|May|June|July|August|September|October|November|December|` +
		`Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+(\d{1,2})(?:\s+(\d{4}))?\b`)

var monthDayLayouts = []string{"January 2 2006", "Jan 2 2006"}

// Parse extracts a calendar date from a free text fragment. Two shapes are
// recognized: "<Month> <Day> <Year>" and "<Month> <Day>", with English month
// names in full or three-letter form ("March 6 2025", "Mar 6 • 2:25 PM").
// The canonical "2006-01-02" shape is accepted as well so that formatted
// dates round-trip. When the year is absent the current calendar year is
// substituted; trips older than about a year therefore end up in the wrong
// year, a known limitation of the source text. The second return value is
// false when no recognizable pattern is present or the day/year combination
// is not a valid calendar date.
func Parse(text string) (time.Time, bool) {
	if t, err := time.Parse(ISOLayout, strings.TrimSpace(text)); err == nil {
		return t, true
	}

	m := monthDayPattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	year := m[3]
	if year == "" {
		year = strconv.Itoa(time.Now().Year())
	}
	candidate := fmt.Sprintf("%s %s %s", m[1], m[2], year)
	for _, layout := range monthDayLayouts {
		if t, err := monday.Parse(layout, candidate, monday.LocaleEnUS); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Format renders a date as zero-padded YYYY-MM-DD.
func Format(t time.Time) string {
	return t.Format(ISOLayout)
}
