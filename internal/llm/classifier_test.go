package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/course-illustrator/internal/types"
)

type fakeGenerator struct {
	response string
	err      error
}

func (f *fakeGenerator) GenerateJSON(context.Context, string) (string, error) {
	return f.response, f.err
}

func historyCourse() types.CourseContext {
	return types.NewCourseContext("c1", "l1", "Ancient Egypt", "history")
}

func TestIsHistorical_ParsesResponse(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     bool
	}{
		{"historical true", `{"historical": true}`, true},
		{"historical false", `{"historical": false}`, false},
		{"fenced response", "```json\n{\"historical\": true}\n```", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// The real client strips fences before handing JSON over.
			raw := cleanJSONBlock(tt.response)
			c := NewTopicClassifier(&fakeGenerator{response: raw}, false)

			got, err := c.IsHistorical(context.Background(), historyCourse())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsHistorical_MalformedResponse(t *testing.T) {
	c := NewTopicClassifier(&fakeGenerator{response: "not json"}, false)

	_, err := c.IsHistorical(context.Background(), historyCourse())
	assert.Error(t, err)
}

func TestIsHistorical_GeneratorFailure(t *testing.T) {
	c := NewTopicClassifier(&fakeGenerator{err: errors.New("quota exceeded")}, false)

	_, err := c.IsHistorical(context.Background(), historyCourse())
	assert.Error(t, err)
}

func TestCleanJSONBlock(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanJSONBlock("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanJSONBlock(`{"a":1}`))
}
