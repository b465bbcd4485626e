package receipt

import (
	"fmt"
	"time"
)

// NavigationError indicates that a trip page could not be loaded in time.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// ControlNotFoundError indicates that a control could not be located with
// any of its candidate selectors nor the text fallback.
type ControlNotFoundError struct {
	Control string
}

func (e *ControlNotFoundError) Error() string {
	return fmt.Sprintf("control not found: %s", e.Control)
}

// DownloadTimeoutError indicates that no download event fired within the
// bound after the triggering click. There is one download attempt per trip.
type DownloadTimeoutError struct {
	TripID  string
	Timeout time.Duration
}

func (e *DownloadTimeoutError) Error() string {
	return fmt.Sprintf("download for trip %s did not start within %s", e.TripID, e.Timeout)
}
