// Package browser connects to an already running Chrome instance over the
// DevTools protocol and exposes the small page capability surface the rest
// of the application is written against.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// KeyEscape is the escape key for Page.PressKey.
const KeyEscape = kb.Escape

// Download describes one completed browser download, still sitting in the
// staging directory under its GUID name.
type Download struct {
	GUID              string
	SuggestedFilename string
}

// Page is the capability surface of a single browser tab. The receipt flow
// depends on this interface only, not on how the connection was established.
type Page interface {
	// Navigate loads the given url and waits for the page to settle.
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// IsVisible reports whether the selector matches a currently visible
	// element within the given timeout.
	IsVisible(ctx context.Context, selector string, timeout time.Duration) bool
	// Click clicks the first element matching the selector.
	Click(ctx context.Context, selector string) error
	// ClickButtonByText scans all buttons and clicks the first whose visible
	// text contains the given text, case-insensitively. It returns the
	// matched button text, or "" when no button matched.
	ClickButtonByText(ctx context.Context, text string) (string, error)
	// Text returns the visible text of the first element matching the selector.
	Text(ctx context.Context, selector string, timeout time.Duration) (string, error)
	// HTML returns the full rendered html of the page.
	HTML(ctx context.Context) (string, error)
	// PressKey sends a key event to the page.
	PressKey(ctx context.Context, key string) error
	// ArmDownload returns the channel on which the next completed download
	// will be delivered, discarding leftovers from earlier attempts. It must
	// be called before the click that triggers the download.
	ArmDownload() <-chan Download
	// SaveDownload moves a completed download to its destination path,
	// creating the destination directory if necessary.
	SaveDownload(d Download, dest string) error
}

// ConnectionError means no browser session could be established. It is
// fatal: nothing else can proceed without a session.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connecting to browser at %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Options configures a session.
type Options struct {
	// DownloadDir is where completed downloads are staged before being
	// renamed to their final destination.
	DownloadDir string
	// PageLoadWait is slept after every navigation since the page keeps
	// rendering after the load event.
	PageLoadWait time.Duration
}

// Session is a connection to a running Chrome instance with one tab
// attached. The tab is exclusively owned by the receipt flow and reused
// across trips.
type Session struct {
	cancelAlloc context.CancelFunc
	cancelPage  context.CancelFunc
	page        *ChromePage
}

// Connect attaches to the Chrome instance listening at cdpURL (start it with
// --remote-debugging-port=9222), opens a fresh tab and routes its downloads
// into the staging directory. A *ConnectionError is returned when the
// browser cannot be reached.
func Connect(ctx context.Context, cdpURL string, opts Options) (*Session, error) {
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(ctx, cdpURL)
	pageCtx, cancelPage := chromedp.NewContext(allocCtx)

	s := &Session{
		cancelAlloc: cancelAlloc,
		cancelPage:  cancelPage,
	}

	// probe the connection and log what we are talking to
	err := chromedp.Run(pageCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		protocolVersion, product, revision, userAgent, jsVersion, err := cdpbrowser.GetVersion().Do(ctx)
		if err != nil {
			return err
		}
		slog.Debug(fmt.Sprintf("chrome version: protocolVersion=%s, product=%s, revision=%s, userAgent=%s, jsVersion=%s",
			protocolVersion, product, revision, userAgent, jsVersion))
		return nil
	}))
	if err != nil {
		s.Close()
		return nil, &ConnectionError{URL: cdpURL, Err: err}
	}

	page, err := newChromePage(pageCtx, opts)
	if err != nil {
		s.Close()
		return nil, &ConnectionError{URL: cdpURL, Err: err}
	}
	s.page = page
	return s, nil
}

// Page returns the single tab owned by this session.
func (s *Session) Page() Page {
	return s.page
}

func (s *Session) Close() {
	s.cancelPage()
	s.cancelAlloc()
}
