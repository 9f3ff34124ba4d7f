package resolver

import (
	"strings"

	"github.com/jonathan/course-illustrator/internal/scoring"
	"github.com/jonathan/course-illustrator/internal/types"
)

// buildSearchPhrases derives provider queries from a context. When a
// civilization hint is set, any phrase containing a mismatch term for that
// civilization is dropped before querying: better not to summon mismatched
// results in the first place.
func buildSearchPhrases(course types.CourseContext, scorer *scoring.Scorer) []string {
	raw := []string{
		course.Title,
		strings.TrimSpace(course.Title + " " + course.Subject),
	}
	if course.CivilizationHint != "" && course.CivilizationHint != types.CivilizationNone {
		raw = append(raw, strings.TrimSpace("ancient "+string(course.CivilizationHint)+" "+course.Subject))
	}

	hinted := course.CivilizationHint != "" && course.CivilizationHint != types.CivilizationNone

	seen := make(map[string]bool)
	phrases := make([]string, 0, len(raw))
	for _, phrase := range raw {
		phrase = strings.TrimSpace(phrase)
		if phrase == "" || seen[strings.ToLower(phrase)] {
			continue
		}
		if hinted && scorer.HasMismatch(phrase, course.CivilizationHint) {
			continue
		}
		seen[strings.ToLower(phrase)] = true
		phrases = append(phrases, phrase)
	}
	return phrases
}
