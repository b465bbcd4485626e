package receipt

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/tripfetch/tripfetch/internal/browser"
	"github.com/tripfetch/tripfetch/internal/config"
	"github.com/tripfetch/tripfetch/internal/date"
	"github.com/tripfetch/tripfetch/internal/locate"
	"github.com/tripfetch/tripfetch/internal/log"
	"github.com/tripfetch/tripfetch/internal/types"
)

var tripIDPattern = regexp.MustCompile(`/trips/([^/?]+)`)

var moreTripsSelectors = []string{
	`button[data-tracking-name="load-more-trips"]`,
}

// Batch downloads receipts for a list of trips, one at a time on the single
// shared page. It also discovers trips from the listing page.
type Batch struct {
	page    browser.Page
	flow    *Flow
	locator *locate.Locator
	cfg     *config.Config
}

func NewBatch(page browser.Page, cfg *config.Config) *Batch {
	return &Batch{
		page:    page,
		flow:    NewFlow(page, cfg),
		locator: locate.New(page, cfg.VisibilityWait()),
		cfg:     cfg,
	}
}

// Run processes the trips strictly sequentially and returns one result per
// input trip, in input order. A failed trip is recorded and the batch moves
// on; the fixed pause between trips reduces the chance of upstream rate
// limiting.
func (b *Batch) Run(ctx context.Context, trips []types.TripRecord) []types.TripResult {
	logger := log.LoggerFromContext(ctx)
	results := make([]types.TripResult, 0, len(trips))
	for i, trip := range trips {
		logger.Info(fmt.Sprintf("downloading receipt %d/%d", i+1, len(trips)), slog.String("trip", trip.ID))
		artifact, err := b.flow.Download(ctx, trip)
		if err != nil {
			logger.Error(fmt.Sprintf("trip %s: %v", trip.ID, err))
			results = append(results, types.TripResult{TripID: trip.ID, Err: err})
		} else {
			results = append(results, types.TripResult{TripID: trip.ID, Path: artifact.Path})
		}
		if i < len(trips)-1 {
			sleep(ctx, b.cfg.TripPause())
		}
	}
	return results
}

// FetchTrips scrapes the trips listing page for trip records, loading more
// entries until the "More" control disappears or stops adding records. The
// result is deduplicated by trip id (first occurrence wins, order preserved)
// and filtered to [start, end]; a zero bound is open-ended. Records whose
// date text cannot be parsed are kept rather than dropped.
func (b *Batch) FetchTrips(ctx context.Context, start, end time.Time) ([]types.TripRecord, error) {
	logger := log.LoggerFromContext(ctx)
	logger.Info(fmt.Sprintf("fetching trips from %s", b.cfg.TripsURL))
	if err := b.page.Navigate(ctx, b.cfg.TripsURL, b.cfg.NavTimeout()); err != nil {
		return nil, &NavigationError{URL: b.cfg.TripsURL, Err: err}
	}

	linkSelector := fmt.Sprintf(`div[href^=%q]`, strings.TrimSuffix(b.cfg.TripsURL, "/")+"/")
	if !b.page.IsVisible(ctx, linkSelector, 10*time.Second) {
		logger.Warn("no trip entries visible on the listing page")
	}

	html, err := b.page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading trips page: %w", err)
	}
	trips, err := ParseTrips(html, b.cfg.TripsURL)
	if err != nil {
		return nil, err
	}
	logger.Info(fmt.Sprintf("found %d trip entries on the first page", len(trips)))

	for {
		oc := b.locator.Activate(ctx, "More", moreTripsSelectors)
		if oc.Status != locate.Success {
			break
		}
		sleep(ctx, b.cfg.PageLoadWait())
		html, err = b.page.HTML(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading trips page: %w", err)
		}
		more, err := ParseTrips(html, b.cfg.TripsURL)
		if err != nil {
			return nil, err
		}
		if len(more) <= len(trips) {
			logger.Debug("no new trips after clicking More, stopping")
			break
		}
		logger.Info(fmt.Sprintf("loaded more trips, now found %d", len(more)))
		trips = more
	}

	trips = types.Dedupe(trips)
	filtered := FilterByDate(trips, start, end)
	logger.Info(fmt.Sprintf("selected %d of %d trips after date filtering", len(filtered), len(trips)))
	return filtered, nil
}

// ParseTrips extracts trip records from the rendered listing page html. Trip
// entries are divs carrying an href into the trips url; the raw date text
// sits in the first block div underneath.
func ParseTrips(html, tripsURL string) ([]types.TripRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing trips page: %w", err)
	}
	selector := fmt.Sprintf(`div[href^=%q]`, strings.TrimSuffix(tripsURL, "/")+"/")
	var trips []types.TripRecord
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		m := tripIDPattern.FindStringSubmatch(s.AttrOr("href", ""))
		if m == nil {
			return
		}
		dateText := strings.TrimSpace(s.Find(`div[data-baseweb="block"] div`).First().Text())
		trips = append(trips, types.TripRecord{ID: m[1], RawDateText: dateText})
	})
	return trips, nil
}

// FilterByDate keeps the trips whose parsed date falls within [start, end].
// Zero bounds are open-ended. Trips without a date text, or whose date text
// does not parse, are included to err on the safe side.
func FilterByDate(trips []types.TripRecord, start, end time.Time) []types.TripRecord {
	if start.IsZero() && end.IsZero() {
		return trips
	}
	kept := make([]types.TripRecord, 0, len(trips))
	for _, t := range trips {
		d, ok := date.Parse(t.RawDateText)
		if !ok {
			kept = append(kept, t)
			continue
		}
		if !start.IsZero() && d.Before(start) {
			continue
		}
		if !end.IsZero() && d.After(end) {
			continue
		}
		kept = append(kept, t)
	}
	return kept
}
