// Package extract pulls structured values (receipt amount, trip date) out of
// the rendered page content using layered heuristics. Extraction never
// fails: every contract degrades to a sentinel or fallback value because
// aborting a download over a cosmetic filename field would be wrong.
package extract

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/tripfetch/tripfetch/internal/browser"
	"github.com/tripfetch/tripfetch/internal/date"
	"github.com/tripfetch/tripfetch/internal/log"
	"github.com/tripfetch/tripfetch/internal/types"
)

// DateRegionSelector locates the date-labeled block on the trip detail
// page, as observed in production markup.
const DateRegionSelector = `div[data-baseweb="block"] div[data-baseweb="typo-labellarge"]`

var (
	// the "Tag" marker sits next to the fare in the trip detail block
	labeledAmountPattern = regexp.MustCompile(`Tag\s*\$(\d+\.\d{2})`)
	currencyPattern      = regexp.MustCompile(`\$(\d+\.\d{2})`)
	barePattern          = regexp.MustCompile(`\b\d+\.\d{2}\b`)
)

// AmountFromText applies the ordered amount heuristics to the visible text
// of a page: a label-anchored currency pattern first, then any currency
// pattern, then the second bare two-decimal number in document order (the
// first is assumed to be a distance, an approximation rather than a
// guarantee). No match yields the sentinel.
func AmountFromText(text string) string {
	if m := labeledAmountPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := currencyPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if ms := barePattern.FindAllString(text, -1); len(ms) >= 2 {
		return ms[1]
	}
	return types.AmountUnknown
}

// Extractor reads data values off the currently displayed page content.
type Extractor struct {
	page        browser.Page
	textTimeout time.Duration
}

func New(page browser.Page, textTimeout time.Duration) *Extractor {
	if textTimeout == 0 {
		textTimeout = 2 * time.Second
	}
	return &Extractor{page: page, textTimeout: textTimeout}
}

// Amount extracts the receipt amount from the page. It returns the
// two-decimal number as a string, or the "unknown" sentinel when no
// heuristic matched or the page text could not be read.
func (e *Extractor) Amount(ctx context.Context) string {
	logger := log.LoggerFromContext(ctx)
	text, err := e.page.Text(ctx, "body", e.textTimeout)
	if err != nil {
		logger.Warn(fmt.Sprintf("could not read page text for amount extraction: %v", err))
		return types.AmountUnknown
	}
	amount := AmountFromText(text)
	if amount == types.AmountUnknown {
		logger.Warn("could not extract amount from page")
	}
	return amount
}

// Date extracts the trip date from the date-labeled content region. When the
// region is absent or its text does not parse, the wall-clock date at
// extraction time is returned instead.
func (e *Extractor) Date(ctx context.Context) time.Time {
	logger := log.LoggerFromContext(ctx)
	text, err := e.page.Text(ctx, DateRegionSelector, e.textTimeout)
	if err != nil || text == "" {
		logger.Debug("date region not found, using current date")
		return time.Now()
	}
	if d, ok := date.Parse(text); ok {
		return d
	}
	logger.Debug(fmt.Sprintf("could not parse date from %q, using current date", text))
	return time.Now()
}
