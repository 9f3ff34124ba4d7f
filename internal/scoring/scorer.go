// Package scoring provides deterministic relevance scoring of image
// candidates against a course context, driven by configurable civilization
// word lists.
package scoring

import (
	"strings"

	"github.com/jonathan/course-illustrator/internal/types"
)

// Default scoring parameters
const (
	// overlapWeight is added per context title word found in the candidate text.
	overlapWeight = 15
	// allowBonus is added per civilization allow-list term found in the candidate text.
	allowBonus = 25
	// mismatchPenalty is subtracted when any mismatch term appears. Large
	// enough to override any plausible positive overlap score: a single
	// cultural mismatch must always lose to a neutral or correct candidate.
	mismatchPenalty = 1000

	// minWordLength filters trivial title words out of overlap matching.
	minWordLength = 3
)

// stopwords are title words too generic to signal relevance.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "lesson": true,
	"unit": true, "chapter": true, "introduction": true,
}

// Scorer computes relevance scores. It holds only configuration data and is
// safe for concurrent use.
type Scorer struct {
	tables Tables
}

// NewScorer creates a scorer over the given civilization tables. A nil tables
// argument uses the embedded defaults.
func NewScorer(tables Tables) *Scorer {
	if tables == nil {
		tables = DefaultTables()
	}
	return &Scorer{tables: tables}
}

// Score returns the relevance score of a candidate for a context. The result
// is deterministic given (candidate, context): no I/O, no randomness, no
// clamping. Negative scores are valid and signal strong rejection.
func (s *Scorer) Score(candidate types.ImageCandidate, ctx types.CourseContext) int {
	candidateText := strings.ToLower(candidate.Title + " " + candidate.PageURL)

	score := s.overlapScore(candidateText, ctx.Title)

	if ctx.CivilizationHint == "" || ctx.CivilizationHint == types.CivilizationNone {
		return score
	}

	table, ok := s.tables[ctx.CivilizationHint]
	if !ok {
		return score
	}

	if containsTerm(candidateText, table.MismatchTerms) {
		score -= mismatchPenalty
	}
	for _, term := range table.AllowTerms {
		if strings.Contains(candidateText, strings.ToLower(term)) {
			score += allowBonus
		}
	}

	return score
}

// HasMismatch reports whether the text contains any mismatch term for the
// hinted civilization. The resolver uses this to strip search phrases that
// would summon mismatched results in the first place.
func (s *Scorer) HasMismatch(text string, hint types.CivilizationHint) bool {
	table, ok := s.tables[hint]
	if !ok {
		return false
	}
	return containsTerm(strings.ToLower(text), table.MismatchTerms)
}

// AllowTerms returns the allow-list for a civilization tag, used to build
// targeted search phrases.
func (s *Scorer) AllowTerms(hint types.CivilizationHint) []string {
	return s.tables[hint].AllowTerms
}

func (s *Scorer) overlapScore(candidateText, contextTitle string) int {
	score := 0
	for _, word := range strings.Fields(strings.ToLower(contextTitle)) {
		word = strings.Trim(word, ".,:;!?'\"()")
		if len(word) < minWordLength || stopwords[word] {
			continue
		}
		if strings.Contains(candidateText, word) {
			score += overlapWeight
		}
	}
	return score
}

func containsTerm(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, strings.ToLower(term)) {
			return true
		}
	}
	return false
}
