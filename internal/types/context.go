package types

import (
	"fmt"
	"strings"
)

// CivilizationHint is the inferred cultural/historical category of a course,
// used to drive mismatch penalties during scoring.
type CivilizationHint string

const (
	CivilizationEgypt CivilizationHint = "egypt"
	CivilizationRome  CivilizationHint = "rome"
	CivilizationGreek CivilizationHint = "greek"
	CivilizationNone  CivilizationHint = "none"
)

// CourseContext describes the lesson being illustrated. It is derived once per
// resolution request and never mutated afterwards.
type CourseContext struct {
	CourseID         string           `json:"course_id"`
	LessonID         string           `json:"lesson_id"`
	Title            string           `json:"title"`
	Subject          string           `json:"subject"`
	CivilizationHint CivilizationHint `json:"civilization_hint"`
}

// InferCivilization derives the civilization hint from title and subject text.
// The tag set is closed: unknown content maps to CivilizationNone.
func InferCivilization(title, subject string) CivilizationHint {
	text := strings.ToLower(title + " " + subject)
	switch {
	case containsAny(text, "egypt", "pharaoh", "nile", "pyramid", "hieroglyph"):
		return CivilizationEgypt
	case containsAny(text, "rome", "roman", "caesar", "colosseum", "gladiator"):
		return CivilizationRome
	case containsAny(text, "greek", "greece", "athens", "sparta", "olympus"):
		return CivilizationGreek
	default:
		return CivilizationNone
	}
}

// NewCourseContext builds a context for a resolution request, inferring the
// civilization hint from the lesson text.
func NewCourseContext(courseID, lessonID, title, subject string) CourseContext {
	return CourseContext{
		CourseID:         courseID,
		LessonID:         lessonID,
		Title:            title,
		Subject:          subject,
		CivilizationHint: InferCivilization(title, subject),
	}
}

func containsAny(text string, terms ...string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

// ResolutionKey uniquely identifies a cacheable resolution request. Two
// requests with the same key must yield the same cached result while the
// entry is valid.
type ResolutionKey struct {
	CourseID        string `json:"course_id"`
	LessonID        string `json:"lesson_id"`
	NormalizedTitle string `json:"normalized_title"`
}

// KeyFor derives the resolution key for a context.
func KeyFor(ctx CourseContext) ResolutionKey {
	return ResolutionKey{
		CourseID:        ctx.CourseID,
		LessonID:        ctx.LessonID,
		NormalizedTitle: NormalizeTitle(ctx.Title),
	}
}

// String renders the key in a stable form usable as a map key or log field.
func (k ResolutionKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.CourseID, k.LessonID, k.NormalizedTitle)
}

// NormalizeTitle lowercases a lesson title and collapses runs of
// non-alphanumeric characters to single dashes.
func NormalizeTitle(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
