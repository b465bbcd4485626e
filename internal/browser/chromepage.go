package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
)

// clickButtonByTextJS clicks the first button whose visible text contains
// the wanted string and returns the matched text. The broad match is the
// last resort of the element locator; it may hit an unintended same-labeled
// control, which is accepted.
const clickButtonByTextJS = `(() => {
	const want = %s;
	for (const b of document.querySelectorAll('button')) {
		const t = (b.innerText || '').trim();
		if (t.toLowerCase().includes(want)) {
			b.click();
			return t;
		}
	}
	return '';
})()`

// ChromePage drives one tab of the attached Chrome instance.
type ChromePage struct {
	ctx          context.Context
	stagingDir   string
	pageLoadWait time.Duration

	mu        sync.Mutex
	pending   map[string]Download
	completed chan Download
}

func newChromePage(pageCtx context.Context, opts Options) (*ChromePage, error) {
	stagingDir, err := filepath.Abs(filepath.Join(opts.DownloadDir, ".staging"))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory %s: %w", stagingDir, err)
	}

	pageLoadWait := opts.PageLoadWait
	if pageLoadWait == 0 {
		pageLoadWait = 2 * time.Second // default
	}

	p := &ChromePage{
		ctx:          pageCtx,
		stagingDir:   stagingDir,
		pageLoadWait: pageLoadWait,
		pending:      map[string]Download{},
		completed:    make(chan Download, 4),
	}

	// The listener lives for the whole session; ArmDownload hands out the
	// completion channel per attempt.
	chromedp.ListenTarget(pageCtx, func(ev any) {
		switch e := ev.(type) {
		case *cdpbrowser.EventDownloadWillBegin:
			p.mu.Lock()
			p.pending[e.GUID] = Download{GUID: e.GUID, SuggestedFilename: e.SuggestedFilename}
			p.mu.Unlock()
		case *cdpbrowser.EventDownloadProgress:
			if e.State != cdpbrowser.DownloadProgressStateCompleted {
				return
			}
			p.mu.Lock()
			d, ok := p.pending[e.GUID]
			delete(p.pending, e.GUID)
			p.mu.Unlock()
			if !ok {
				d = Download{GUID: e.GUID}
			}
			select {
			case p.completed <- d:
			default:
			}
		}
	})

	err = chromedp.Run(pageCtx,
		cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(stagingDir).
			WithEventsEnabled(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set download behavior: %w", err)
	}
	return p, nil
}

// run executes chromedp actions on the tab context, bounded by the given
// timeout and cancelable through the caller's context.
func (p *ChromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	rctx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if timeout > 0 {
		var tcancel context.CancelFunc
		rctx, tcancel = context.WithTimeout(rctx, timeout)
		defer tcancel()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(rctx, actions...)
}

func (p *ChromePage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	return p.run(ctx, timeout,
		chromedp.Navigate(url),
		chromedp.Sleep(p.pageLoadWait),
	)
}

func (p *ChromePage) IsVisible(ctx context.Context, selector string, timeout time.Duration) bool {
	err := p.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
	return err == nil
}

func (p *ChromePage) Click(ctx context.Context, selector string) error {
	return p.run(ctx, 0, chromedp.Click(selector, chromedp.ByQuery))
}

func (p *ChromePage) ClickButtonByText(ctx context.Context, text string) (string, error) {
	js := fmt.Sprintf(clickButtonByTextJS, strconv.Quote(strings.ToLower(text)))
	var matched string
	if err := p.run(ctx, 0, chromedp.Evaluate(js, &matched)); err != nil {
		return "", err
	}
	return matched, nil
}

func (p *ChromePage) Text(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	var text string
	if err := p.run(ctx, timeout, chromedp.Text(selector, &text, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return text, nil
}

func (p *ChromePage) HTML(ctx context.Context) (string, error) {
	var body string
	err := p.run(ctx, 0, chromedp.ActionFunc(func(ctx context.Context) error {
		node, err := dom.GetDocument().Do(ctx)
		if err != nil {
			return err
		}
		body, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
		return err
	}))
	return body, err
}

func (p *ChromePage) PressKey(ctx context.Context, key string) error {
	return p.run(ctx, 0, chromedp.KeyEvent(key))
}

func (p *ChromePage) ArmDownload() <-chan Download {
	// discard completions left over from a previous attempt
	for {
		select {
		case <-p.completed:
		default:
			return p.completed
		}
	}
}

func (p *ChromePage) SaveDownload(d Download, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(dest), err)
	}
	staged := filepath.Join(p.stagingDir, d.GUID)
	if err := os.Rename(staged, dest); err != nil {
		return fmt.Errorf("failed to move download %s: %w", d.GUID, err)
	}
	return nil
}
