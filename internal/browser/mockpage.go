package browser

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// MockPage is a scripted Page implementation for tests. Besides canned
// visibility, text and download behavior it keeps an ordered journal of all
// calls so tests can assert interaction ordering.
type MockPage struct {
	// Visible lists the selectors that resolve to a visible element.
	Visible map[string]bool
	// Texts maps selectors to the visible text returned by Text.
	Texts map[string]string
	// PageHTML is returned by HTML. If HTMLQueue is non-empty its entries
	// are returned first, one per call.
	PageHTML  string
	HTMLQueue []string
	// Buttons are the visible texts of all buttons on the page, scanned by
	// ClickButtonByText.
	Buttons []string
	// DownloadTriggers maps a selector (or matched button text) to the
	// download delivered when it is clicked.
	DownloadTriggers map[string]Download

	NavigateErr error
	// NavigateErrFor fails navigation for specific urls only.
	NavigateErrFor map[string]error
	ClickErr       error

	// Calls is the ordered journal of all page interactions.
	Calls []string
	// Saved maps download GUIDs to the destination they were saved to.
	Saved map[string]string

	completed chan Download
}

func NewMockPage() *MockPage {
	return &MockPage{
		Visible:          map[string]bool{},
		Texts:            map[string]string{},
		DownloadTriggers: map[string]Download{},
		NavigateErrFor:   map[string]error{},
		Saved:            map[string]string{},
		completed:        make(chan Download, 4),
	}
}

func (p *MockPage) record(format string, args ...any) {
	p.Calls = append(p.Calls, fmt.Sprintf(format, args...))
}

func (p *MockPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	p.record("navigate %s", url)
	if err, ok := p.NavigateErrFor[url]; ok {
		return err
	}
	return p.NavigateErr
}

func (p *MockPage) IsVisible(ctx context.Context, selector string, timeout time.Duration) bool {
	p.record("isvisible %s", selector)
	return p.Visible[selector]
}

func (p *MockPage) Click(ctx context.Context, selector string) error {
	p.record("click %s", selector)
	if p.ClickErr != nil {
		return p.ClickErr
	}
	p.trigger(selector)
	return nil
}

func (p *MockPage) ClickButtonByText(ctx context.Context, text string) (string, error) {
	p.record("clickbytext %s", text)
	for _, b := range p.Buttons {
		if strings.Contains(strings.ToLower(b), strings.ToLower(text)) {
			p.trigger(b)
			return b, nil
		}
	}
	return "", nil
}

func (p *MockPage) trigger(key string) {
	if d, ok := p.DownloadTriggers[key]; ok {
		select {
		case p.completed <- d:
		default:
		}
	}
}

func (p *MockPage) Text(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	p.record("text %s", selector)
	if t, ok := p.Texts[selector]; ok {
		return t, nil
	}
	return "", fmt.Errorf("no text for selector %s", selector)
}

func (p *MockPage) HTML(ctx context.Context) (string, error) {
	p.record("html")
	if len(p.HTMLQueue) > 0 {
		h := p.HTMLQueue[0]
		p.HTMLQueue = p.HTMLQueue[1:]
		return h, nil
	}
	return p.PageHTML, nil
}

func (p *MockPage) PressKey(ctx context.Context, key string) error {
	p.record("presskey %q", key)
	return nil
}

func (p *MockPage) ArmDownload() <-chan Download {
	p.record("arm")
	for {
		select {
		case <-p.completed:
		default:
			return p.completed
		}
	}
}

func (p *MockPage) SaveDownload(d Download, dest string) error {
	p.record("save %s %s", d.GUID, dest)
	p.Saved[d.GUID] = dest
	return nil
}
