package receipt

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tripfetch/tripfetch/internal/browser"
	"github.com/tripfetch/tripfetch/internal/config"
	"github.com/tripfetch/tripfetch/internal/extract"
	"github.com/tripfetch/tripfetch/internal/types"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		TripsURL:          "https://riders.example.com/trips",
		OutputDir:         t.TempDir(),
		NavTimeoutMS:      1000,
		PageLoadWaitMS:    1,
		VisibilityWaitMS:  1,
		DialogSettleMS:    1,
		DownloadTimeoutMS: 200,
		TripPauseMS:       1,
	}
}

// receiptPage scripts a trip page on which the whole flow succeeds.
func receiptPage() *browser.MockPage {
	page := browser.NewMockPage()
	page.Visible[viewReceiptSelectors[0]] = true
	page.Visible[downloadPDFSelectors[0]] = true
	page.Visible[closeDialogSelectors[0]] = true
	page.DownloadTriggers[downloadPDFSelectors[0]] = browser.Download{GUID: "g1", SuggestedFilename: "receipt.pdf"}
	page.Texts["body"] = "5.20 mi • 18 min\nTag$24.06\n"
	page.Texts[extract.DateRegionSelector] = "2:28 PM, Thursday March 6 2025"
	return page
}

func TestDownloadSuccess(t *testing.T) {
	cfg := testConfig(t)
	page := receiptPage()
	flow := NewFlow(page, cfg)

	artifact, err := flow.Download(context.Background(), types.TripRecord{ID: "trip-1"})
	require.NoError(t, err)
	require.NotNil(t, artifact)

	wantPath := filepath.Join(cfg.OutputDir, "24.06-2025-03-06-trip-1.pdf")
	require.Equal(t, wantPath, artifact.Path)
	require.Equal(t, "24.06", artifact.Amount)
	require.Equal(t, "trip-1", artifact.TripID)
	require.Equal(t, wantPath, page.Saved["g1"])
	require.Equal(t, StateDialogClosed, flow.State())
}

func TestDownloadArmsListenerBeforeTriggeringClick(t *testing.T) {
	page := receiptPage()
	flow := NewFlow(page, testConfig(t))

	_, err := flow.Download(context.Background(), types.TripRecord{ID: "trip-1"})
	require.NoError(t, err)

	arm := slices.Index(page.Calls, "arm")
	click := slices.Index(page.Calls, "click "+downloadPDFSelectors[0])
	require.GreaterOrEqual(t, arm, 0, "download listener was never armed")
	require.GreaterOrEqual(t, click, 0, "download control was never clicked")
	require.Less(t, arm, click, "listener must be armed before the triggering click")

	// content is extracted before the click dismisses the dialog
	bodyText := slices.Index(page.Calls, "text body")
	require.Less(t, bodyText, click, "amount must be extracted before the triggering click")
}

func TestDownloadControlNotFound(t *testing.T) {
	page := browser.NewMockPage() // nothing visible, no buttons
	flow := NewFlow(page, testConfig(t))

	artifact, err := flow.Download(context.Background(), types.TripRecord{ID: "trip-1"})
	require.Nil(t, artifact)

	var cnf *ControlNotFoundError
	require.ErrorAs(t, err, &cnf)
	require.Equal(t, "View Receipt", cnf.Control)
	require.Equal(t, StateFailed, flow.State())
}

func TestDownloadTimeout(t *testing.T) {
	page := receiptPage()
	// the click never produces a download event
	delete(page.DownloadTriggers, downloadPDFSelectors[0])
	flow := NewFlow(page, testConfig(t))

	artifact, err := flow.Download(context.Background(), types.TripRecord{ID: "trip-1"})
	require.Nil(t, artifact)

	var dte *DownloadTimeoutError
	require.ErrorAs(t, err, &dte)
	require.Equal(t, "trip-1", dte.TripID)
	require.Equal(t, StateFailed, flow.State())
}

func TestDownloadNavigationError(t *testing.T) {
	page := receiptPage()
	page.NavigateErr = errors.New("net::ERR_TIMED_OUT")
	flow := NewFlow(page, testConfig(t))

	_, err := flow.Download(context.Background(), types.TripRecord{ID: "trip-1"})

	var nav *NavigationError
	require.ErrorAs(t, err, &nav)
	require.Equal(t, "https://riders.example.com/trips/trip-1", nav.URL)
}

func TestDownloadSucceedsWhenDialogWontClose(t *testing.T) {
	page := receiptPage()
	delete(page.Visible, closeDialogSelectors[0])
	flow := NewFlow(page, testConfig(t))

	artifact, err := flow.Download(context.Background(), types.TripRecord{ID: "trip-1"})
	require.NoError(t, err, "a stuck dialog must not fail the trip")
	require.NotNil(t, artifact)

	// the escape key is the last resort
	require.Contains(t, page.Calls, `presskey "\x1b"`)
}

func TestDownloadUnknownAmountFlowsIntoFilename(t *testing.T) {
	cfg := testConfig(t)
	page := receiptPage()
	page.Texts["body"] = "nothing to extract here"
	flow := NewFlow(page, cfg)

	artifact, err := flow.Download(context.Background(), types.TripRecord{ID: "trip-1"})
	require.NoError(t, err, "extraction failure must not abort the download")
	require.Equal(t, filepath.Join(cfg.OutputDir, "unknown-2025-03-06-trip-1.pdf"), artifact.Path)
}

func TestArtifactFilename(t *testing.T) {
	day := time.Date(2025, time.March, 6, 14, 25, 0, 0, time.UTC)
	require.Equal(t, "24.06-2025-03-06-abc.pdf", ArtifactFilename("24.06", day, "abc"))
	require.Equal(t, "unknown-2025-03-06-abc.pdf", ArtifactFilename(types.AmountUnknown, day, "abc"))
}
