// Package resolver orchestrates image resolution: querying providers,
// filtering banned candidates, scoring, and selecting a winner or failing by
// policy.
package resolver

import (
	"errors"
	"fmt"
)

// NoCandidateError means no provider returned anything usable for the
// context. Callers render a neutral placeholder, never an error page.
type NoCandidateError struct {
	Key string
}

func (e *NoCandidateError) Error() string {
	return fmt.Sprintf("no image candidate for %s", e.Key)
}

// BelowThresholdError means the best candidate scored under the historical
// content minimum. Surfaced to callers identically to NoCandidateError, but
// logged distinctly: an absent image is preferable to a culturally wrong one.
type BelowThresholdError struct {
	Key       string
	Score     int
	Threshold int
}

func (e *BelowThresholdError) Error() string {
	return fmt.Sprintf("best candidate for %s scored %d, below threshold %d", e.Key, e.Score, e.Threshold)
}

// IsPolicyFailure reports whether err is a no-image outcome rather than an
// infrastructure problem.
func IsPolicyFailure(err error) bool {
	var noCand *NoCandidateError
	var below *BelowThresholdError
	return errors.As(err, &noCand) || errors.As(err, &below)
}
