// Package types defines shared types used across the application.
package types

import "time"

// AmountUnknown is the sentinel used when the receipt amount could not be
// extracted from the page. It flows into the output filename instead of
// aborting the download.
const AmountUnknown = "unknown"

// TripRecord is one trip entry discovered on the trips listing page.
// The ID is an opaque token from the upstream system. RawDateText is the
// date fragment rendered next to the trip, if any; it may be empty.
type TripRecord struct {
	ID          string `yaml:"id"`
	RawDateText string `yaml:"dateText,omitempty"`
}

// ReceiptArtifact describes one receipt PDF that was actually downloaded.
// It is only constructed after the browser reported a completed download.
type ReceiptArtifact struct {
	TripID string
	Amount string
	Date   time.Time
	Path   string
}

// TripResult is the per-trip outcome threaded through the batch loop.
// Path is empty and Err non-nil when the trip failed; a failed trip never
// removes its entry from the result sequence.
type TripResult struct {
	TripID string
	Path   string
	Err    error
}

// Dedupe removes duplicate trip records by ID, keeping the first occurrence
// and preserving the original discovery order.
func Dedupe(trips []TripRecord) []TripRecord {
	seen := make(map[string]bool, len(trips))
	unique := make([]TripRecord, 0, len(trips))
	for _, t := range trips {
		if t.ID == "" || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		unique = append(unique, t)
	}
	return unique
}
