// Package locate resolves logical UI actions ("click the View Receipt
// button") to concrete page elements. The host page markup is third-party
// and unstable, so every action carries an ordered list of candidate
// selectors: the ones validated against production markup rank first, a
// generic text scan over all buttons is the last resort.
package locate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tripfetch/tripfetch/internal/browser"
	"github.com/tripfetch/tripfetch/internal/log"
)

// Status tags the outcome of one locate-and-click attempt.
type Status int

const (
	// Success means an element was found and clicked.
	Success Status = iota
	// NotFound means all candidates and the text fallback were exhausted.
	// Callers must not retry with the same selector set.
	NotFound
	// Error means an interaction failed while an element was being handled.
	Error
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case NotFound:
		return "not found"
	default:
		return "error"
	}
}

// Outcome reports what a locate-and-click attempt did. Selector records the
// candidate that won, or a description of the text fallback match.
type Outcome struct {
	Status   Status
	Selector string
	Err      error
}

// Locator finds and activates page elements through ranked candidate
// selectors with a text-based fallback.
type Locator struct {
	page       browser.Page
	visTimeout time.Duration
}

func New(page browser.Page, visTimeout time.Duration) *Locator {
	if visTimeout == 0 {
		visTimeout = 2 * time.Second
	}
	return &Locator{page: page, visTimeout: visTimeout}
}

// Activate tries the candidate selectors in the given order and clicks the
// first one that resolves to a currently visible element. If none matches it
// scans all buttons for a case-insensitive substring match of logicalName in
// their visible text and clicks the first hit. The order of candidates
// encodes a stability ranking; the fallback tier trades specificity for
// resilience against markup churn.
func (l *Locator) Activate(ctx context.Context, logicalName string, candidates []string) Outcome {
	logger := log.LoggerFromContext(ctx).With(slog.String("control", logicalName))
	for _, sel := range candidates {
		if !l.page.IsVisible(ctx, sel, l.visTimeout) {
			continue
		}
		logger.Debug(fmt.Sprintf("found control with selector %s, clicking", sel))
		if err := l.page.Click(ctx, sel); err != nil {
			return Outcome{Status: Error, Selector: sel, Err: fmt.Errorf("clicking %s: %w", sel, err)}
		}
		return Outcome{Status: Success, Selector: sel}
	}

	logger.Debug("no candidate selector matched, scanning button texts")
	matched, err := l.page.ClickButtonByText(ctx, logicalName)
	if err != nil {
		return Outcome{Status: Error, Err: fmt.Errorf("scanning buttons for %q: %w", logicalName, err)}
	}
	if matched == "" {
		return Outcome{Status: NotFound}
	}
	logger.Debug(fmt.Sprintf("clicked button with text %q", matched))
	return Outcome{Status: Success, Selector: fmt.Sprintf("button with text %q", matched)}
}
