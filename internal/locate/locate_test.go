package locate

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/tripfetch/tripfetch/internal/browser"
)

func TestActivateTriesCandidatesInOrder(t *testing.T) {
	page := browser.NewMockPage()
	page.Visible["#b"] = true

	l := New(page, time.Millisecond)
	oc := l.Activate(context.Background(), "Download PDF", []string{"#a", "#b"})

	if oc.Status != Success {
		t.Fatalf("expected success but got %s", oc.Status)
	}
	if oc.Selector != "#b" {
		t.Fatalf("expected selector #b to be recorded but got %q", oc.Selector)
	}
	// #a must have been probed before #b, and #a must never have been clicked
	wantCalls := []string{"isvisible #a", "isvisible #b", "click #b"}
	if len(page.Calls) != len(wantCalls) {
		t.Fatalf("expected calls %v but got %v", wantCalls, page.Calls)
	}
	for i, c := range wantCalls {
		if page.Calls[i] != c {
			t.Fatalf("expected call %d to be %q but got %q", i, c, page.Calls[i])
		}
	}
}

func TestActivateFallsBackToButtonText(t *testing.T) {
	page := browser.NewMockPage()
	page.Buttons = []string{"Help", "View Receipt Details"}

	l := New(page, time.Millisecond)
	oc := l.Activate(context.Background(), "View Receipt", []string{"#nope"})

	if oc.Status != Success {
		t.Fatalf("expected success but got %s", oc.Status)
	}
	if !strings.Contains(oc.Selector, "View Receipt Details") {
		t.Fatalf("expected the matched button text to be recorded but got %q", oc.Selector)
	}
}

func TestActivateNotFound(t *testing.T) {
	page := browser.NewMockPage()
	page.Buttons = []string{"Help"}

	l := New(page, time.Millisecond)
	oc := l.Activate(context.Background(), "Download PDF", []string{"#a", "#b"})

	if oc.Status != NotFound {
		t.Fatalf("expected not found but got %s", oc.Status)
	}
	// the candidate set is exhausted at this point, including the text scan
	last := page.Calls[len(page.Calls)-1]
	if last != "clickbytext Download PDF" {
		t.Fatalf("expected the text scan to be the last attempt but got %q", last)
	}
}

func TestActivateClickError(t *testing.T) {
	page := browser.NewMockPage()
	page.Visible["#a"] = true
	page.ClickErr = context.DeadlineExceeded

	l := New(page, time.Millisecond)
	oc := l.Activate(context.Background(), "More", []string{"#a"})

	if oc.Status != Error {
		t.Fatalf("expected error but got %s", oc.Status)
	}
	if oc.Err == nil {
		t.Fatal("expected a cause to be recorded")
	}
}
