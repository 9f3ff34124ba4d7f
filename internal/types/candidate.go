// Package types provides type definitions for structured data used throughout the course-illustrator system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "fmt"

// ImageCandidate is a single image returned by a provider query, before scoring.
// Immutable once fetched from a provider.
type ImageCandidate struct {
	URL            string `json:"url"`
	Title          string `json:"title"`
	PageURL        string `json:"page_url"`
	Width          int    `json:"width,omitempty"`
	Height         int    `json:"height,omitempty"`
	SourceProvider string `json:"source_provider"`
}

// RejectionReason explains why a candidate was not selected.
type RejectionReason string

const (
	// RejectionBanned means the candidate matched an active ban pattern.
	RejectionBanned RejectionReason = "banned"
	// RejectionMismatch means the candidate contained civilization mismatch terms.
	RejectionMismatch RejectionReason = "civilization_mismatch"
	// RejectionBelowThreshold means the winning score did not clear the minimum.
	RejectionBelowThreshold RejectionReason = "below_threshold"
)

// ScoredCandidate pairs a candidate with its relevance score.
// Score is deterministic given (candidate, context); negative scores are valid
// and signal strong rejection.
type ScoredCandidate struct {
	ImageCandidate
	Score           int             `json:"score"`
	RejectionReason RejectionReason `json:"rejection_reason,omitempty"`
}

func (s ScoredCandidate) String() string {
	return fmt.Sprintf("%s (score=%d, provider=%s)", s.Title, s.Score, s.SourceProvider)
}
