package date

import (
	"fmt"
	"testing"
	"time"
)

type parseTestStruct struct {
	input     string
	formatted string
	ok        bool
}

func TestParse(t *testing.T) {
	currentYear := time.Now().Year()
	dates := []parseTestStruct{
		{
			input:     "March 6 2025",
			formatted: "2025-03-06",
			ok:        true,
		},
		{
			input:     "Mar 6",
			formatted: fmt.Sprintf("%d-03-06", currentYear),
			ok:        true,
		},
		{
			input:     "Mar 6 • 2:25 PM",
			formatted: fmt.Sprintf("%d-03-06", currentYear),
			ok:        true,
		},
		{
			input:     "2:28 PM, Thursday March 6 2025",
			formatted: "2025-03-06",
			ok:        true,
		},
		{
			input:     "December 31 2024",
			formatted: "2024-12-31",
			ok:        true,
		},
		{
			input:     "2025-03-06",
			formatted: "2025-03-06",
			ok:        true,
		},
		{
			// no month name anywhere
			input: "12.50 some other text",
			ok:    false,
		},
		{
			input: "",
			ok:    false,
		},
		{
			// not a valid calendar date
			input: "February 30 2025",
			ok:    false,
		},
	}
	for _, d := range dates {
		parsed, ok := Parse(d.input)
		if ok != d.ok {
			t.Fatalf("parsing %q: expected ok=%t but got %t", d.input, d.ok, ok)
		}
		if !ok {
			continue
		}
		if Format(parsed) != d.formatted {
			t.Fatalf("parsing %q: expected %s but got %s", d.input, d.formatted, Format(parsed))
		}
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, formatted := range []string{"2023-01-01", "2024-02-29", "2025-12-31"} {
		parsed, ok := Parse(formatted)
		if !ok {
			t.Fatalf("expected %s to parse", formatted)
		}
		if Format(parsed) != formatted {
			t.Fatalf("expected %s to round-trip but got %s", formatted, Format(parsed))
		}
	}
}

func TestFormatZeroPadding(t *testing.T) {
	d := time.Date(2025, time.March, 6, 0, 0, 0, 0, time.UTC)
	if Format(d) != "2025-03-06" {
		t.Fatalf("expected 2025-03-06 but got %s", Format(d))
	}
}
