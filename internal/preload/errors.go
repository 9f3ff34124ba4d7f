package preload

import (
	"fmt"
	"time"
)

// FetchError represents a non-fatal preload failure. The asset simply stays
// cold; callers must never propagate this as a request failure.
type FetchError struct {
	URL     string
	Message string
	RetryAt time.Time
	Cause   error
}

func (e *FetchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("preload failed for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("preload failed for %s: %s", e.URL, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}
