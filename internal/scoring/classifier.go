package scoring

import (
	"context"
	"strings"

	"github.com/jonathan/course-illustrator/internal/types"
)

// Classifier decides whether a course context is historical/cultural content.
// The minimum score threshold only applies to contexts the classifier
// matches: an absent image is preferable to a culturally wrong one, but that
// policy is pointless for, say, a fractions lesson.
//
// Implementations must treat a classification failure as "not historical"
// rather than blocking resolution.
type Classifier interface {
	IsHistorical(ctx context.Context, course types.CourseContext) (bool, error)
}

// DefaultHistoricalKeywords is the configurable allow-list backing the
// keyword classifier when no override is supplied.
func DefaultHistoricalKeywords() []string {
	return []string{
		"history", "historical", "ancient", "civilization", "empire",
		"archaeology", "mythology", "egypt", "rome", "roman", "greek", "greece",
	}
}

// KeywordClassifier matches a context against a keyword allow-list over its
// subject and title. It is the default, fully deterministic implementation.
type KeywordClassifier struct {
	keywords []string
}

// NewKeywordClassifier creates a classifier over the given keywords; an empty
// list falls back to the defaults.
func NewKeywordClassifier(keywords []string) *KeywordClassifier {
	if len(keywords) == 0 {
		keywords = DefaultHistoricalKeywords()
	}
	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}
	return &KeywordClassifier{keywords: lowered}
}

// IsHistorical reports whether any allow-list keyword appears in the course
// subject or title. Never returns an error.
func (c *KeywordClassifier) IsHistorical(_ context.Context, course types.CourseContext) (bool, error) {
	text := strings.ToLower(course.Subject + " " + course.Title)
	for _, kw := range c.keywords {
		if strings.Contains(text, kw) {
			return true, nil
		}
	}
	return false, nil
}
