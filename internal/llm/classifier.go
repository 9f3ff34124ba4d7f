package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/jonathan/course-illustrator/internal/types"
)

// Generator produces a JSON response for a prompt. Satisfied by
// *GeminiClient; injectable for tests.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// TopicClassifier decides whether a course covers historical content by
// asking a model. It satisfies the classifier seam in the scoring package and
// can replace the keyword default when an API key is available.
type TopicClassifier struct {
	gen     Generator
	verbose bool
}

// NewTopicClassifier wraps a generator as a historical-content classifier.
func NewTopicClassifier(gen Generator, verbose bool) *TopicClassifier {
	return &TopicClassifier{gen: gen, verbose: verbose}
}

type classification struct {
	Historical bool `json:"historical"`
}

// IsHistorical asks the model whether the course's subject matter is
// historical. Malformed responses are errors; callers decide the fallback.
func (c *TopicClassifier) IsHistorical(ctx context.Context, course types.CourseContext) (bool, error) {
	prompt := fmt.Sprintf(`Classify whether this e-learning course lesson covers historical content (ancient civilizations, historical events, archaeology, or history as a school subject).

Course subject: %q
Lesson title: %q

Respond with JSON only: {"historical": true} or {"historical": false}`, course.Subject, course.Title)

	raw, err := c.gen.GenerateJSON(ctx, prompt)
	if err != nil {
		return false, fmt.Errorf("classification request failed: %w", err)
	}

	var result classification
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return false, fmt.Errorf("failed to parse classification response: %w", err)
	}

	if c.verbose {
		log.Printf("[CLASSIFY] %q / %q -> historical=%v", course.Subject, course.Title, result.Historical)
	}
	return result.Historical, nil
}
