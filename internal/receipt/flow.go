// Package receipt drives the per-trip receipt download flow and the
// sequential batch around it.
package receipt

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/tripfetch/tripfetch/internal/browser"
	"github.com/tripfetch/tripfetch/internal/config"
	"github.com/tripfetch/tripfetch/internal/extract"
	"github.com/tripfetch/tripfetch/internal/locate"
	"github.com/tripfetch/tripfetch/internal/log"
	"github.com/tripfetch/tripfetch/internal/types"
)

// State is the position of the flow within one trip's download sequence.
type State int

const (
	StateNotStarted State = iota
	StatePageLoaded
	StateReceiptDialogOpen
	StateDownloadTriggered
	StateArtifactSaved
	StateDialogClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not started"
	case StatePageLoaded:
		return "page loaded"
	case StateReceiptDialogOpen:
		return "receipt dialog open"
	case StateDownloadTriggered:
		return "download triggered"
	case StateArtifactSaved:
		return "artifact saved"
	case StateDialogClosed:
		return "dialog closed"
	default:
		return "failed"
	}
}

// Candidate selectors, ranked: the ones validated against production markup
// first. The locator falls back to a button text scan when none matches.
var (
	viewReceiptSelectors = []string{
		`button[data-tracking-name="view-receipt-link"]`,
		`[data-test="view-receipt-button"]`,
	}
	downloadPDFSelectors = []string{
		`[data-test="download-pdf-button"]`,
		`button[data-tracking-name="download-pdf"]`,
	}
	closeDialogSelectors = []string{
		`button[aria-label="Close"]`,
		`.ReactModalPortal button`,
	}
)

// ArtifactFilename derives the deterministic receipt filename from amount,
// date and trip id. Identical triples overwrite each other silently.
func ArtifactFilename(amount string, day time.Time, tripID string) string {
	return fmt.Sprintf("%s-%s-%s.pdf", amount, day.Format("2006-01-02"), tripID)
}

// Flow walks one trip through the receipt download state machine. It owns
// the shared page handle for the duration of one trip; no state survives
// across trips besides that handle.
type Flow struct {
	page      browser.Page
	locator   *locate.Locator
	extractor *extract.Extractor
	cfg       *config.Config
	state     State
}

func NewFlow(page browser.Page, cfg *config.Config) *Flow {
	return &Flow{
		page:      page,
		locator:   locate.New(page, cfg.VisibilityWait()),
		extractor: extract.New(page, cfg.VisibilityWait()),
		cfg:       cfg,
	}
}

// State returns the state the flow reached during the last Download call.
func (f *Flow) State() State {
	return f.state
}

// Download runs the full sequence for one trip: navigate to the trip page,
// open the receipt dialog, trigger the PDF download with the download
// listener armed beforehand, persist the artifact and dismiss the dialog.
// Every error is returned to the caller for per-trip handling; none of them
// aborts the batch.
func (f *Flow) Download(ctx context.Context, trip types.TripRecord) (*types.ReceiptArtifact, error) {
	logger := log.LoggerFromContext(ctx).With(slog.String("trip", trip.ID))
	ctx = log.ContextWithLogger(ctx, logger)
	f.state = StateNotStarted

	tripURL := fmt.Sprintf("%s/%s", strings.TrimSuffix(f.cfg.TripsURL, "/"), trip.ID)
	logger.Info(fmt.Sprintf("navigating to %s", tripURL))
	if err := f.page.Navigate(ctx, tripURL, f.cfg.NavTimeout()); err != nil {
		return f.fail(logger, &NavigationError{URL: tripURL, Err: err})
	}
	f.transition(logger, StatePageLoaded)

	oc := f.locator.Activate(ctx, "View Receipt", viewReceiptSelectors)
	switch oc.Status {
	case locate.NotFound:
		return f.fail(logger, &ControlNotFoundError{Control: "View Receipt"})
	case locate.Error:
		return f.fail(logger, oc.Err)
	}
	// the dialog renders asynchronously and exposes no completion signal
	sleep(ctx, f.cfg.DialogSettle())
	f.transition(logger, StateReceiptDialogOpen)

	// The listener must be armed before the triggering click or the download
	// event is missed. Amount and date are extracted before the click too,
	// since the content may become unavailable once the download fires.
	downloads := f.page.ArmDownload()
	amount := f.extractor.Amount(ctx)
	day := f.extractor.Date(ctx)

	oc = f.locator.Activate(ctx, "Download PDF", downloadPDFSelectors)
	switch oc.Status {
	case locate.NotFound:
		return f.fail(logger, &ControlNotFoundError{Control: "Download PDF"})
	case locate.Error:
		return f.fail(logger, oc.Err)
	}
	f.transition(logger, StateDownloadTriggered)

	var artifact *types.ReceiptArtifact
	select {
	case d := <-downloads:
		dest := filepath.Join(f.cfg.OutputDir, ArtifactFilename(amount, day, trip.ID))
		if err := f.page.SaveDownload(d, dest); err != nil {
			return f.fail(logger, err)
		}
		artifact = &types.ReceiptArtifact{TripID: trip.ID, Amount: amount, Date: day, Path: dest}
		logger.Info(fmt.Sprintf("downloaded receipt to %s", dest))
	case <-time.After(f.cfg.DownloadTimeout()):
		return f.fail(logger, &DownloadTimeoutError{TripID: trip.ID, Timeout: f.cfg.DownloadTimeout()})
	case <-ctx.Done():
		return f.fail(logger, ctx.Err())
	}
	f.transition(logger, StateArtifactSaved)

	// the artifact is already saved; a stuck dialog is not a trip failure
	f.closeDialog(ctx, logger)
	f.transition(logger, StateDialogClosed)
	return artifact, nil
}

func (f *Flow) closeDialog(ctx context.Context, logger *slog.Logger) {
	oc := f.locator.Activate(ctx, "Close", closeDialogSelectors)
	if oc.Status == locate.Success {
		logger.Debug(fmt.Sprintf("closed receipt dialog via %s", oc.Selector))
		return
	}
	if err := f.page.PressKey(ctx, browser.KeyEscape); err != nil {
		logger.Warn(fmt.Sprintf("could not close receipt dialog: %v", err))
		return
	}
	logger.Debug("closed receipt dialog with escape key")
}

func (f *Flow) transition(logger *slog.Logger, next State) {
	logger.Debug(fmt.Sprintf("state: %s -> %s", f.state, next))
	f.state = next
}

func (f *Flow) fail(logger *slog.Logger, err error) (*types.ReceiptArtifact, error) {
	logger.Debug(fmt.Sprintf("state: %s -> %s", f.state, StateFailed))
	f.state = StateFailed
	return nil, err
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
