package scoring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/course-illustrator/internal/types"
)

func egyptContext() types.CourseContext {
	return types.NewCourseContext("c1", "l1", "Ancient Egypt Lesson", "history")
}

func TestScore_MismatchPenaltyDominates(t *testing.T) {
	scorer := NewScorer(nil)
	ctx := egyptContext()

	thor := types.ImageCandidate{
		Title:   "Thor's Hammer Mjolnir Norse mythology",
		PageURL: "https://example.com/thor",
	}
	pyramid := types.ImageCandidate{
		Title:   "Great Pyramid of Giza",
		PageURL: "https://example.com/giza",
	}

	thorScore := scorer.Score(thor, ctx)
	pyramidScore := scorer.Score(pyramid, ctx)

	assert.Negative(t, thorScore, "mismatch penalty must push the score negative")
	assert.Positive(t, pyramidScore, "allow-list terms must earn a positive score")
	assert.Greater(t, pyramidScore, thorScore)
}

func TestScore_Deterministic(t *testing.T) {
	scorer := NewScorer(nil)
	ctx := egyptContext()
	candidate := types.ImageCandidate{Title: "Pharaoh's tomb in the Valley of the Kings"}

	first := scorer.Score(candidate, ctx)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, scorer.Score(candidate, ctx))
	}
}

func TestScore_OverlapOnly_NoHint(t *testing.T) {
	scorer := NewScorer(nil)
	ctx := types.CourseContext{
		Title:            "Water Cycle Diagram",
		Subject:          "science",
		CivilizationHint: types.CivilizationNone,
	}

	match := types.ImageCandidate{Title: "The water cycle explained with a diagram"}
	miss := types.ImageCandidate{Title: "A bridge at sunset"}

	assert.Greater(t, scorer.Score(match, ctx), scorer.Score(miss, ctx))
	assert.Equal(t, 0, scorer.Score(miss, ctx))
}

func TestScore_NoClampingBelowZero(t *testing.T) {
	scorer := NewScorer(nil)
	ctx := egyptContext()

	// Mismatch term with zero overlap and no allow terms.
	candidate := types.ImageCandidate{Title: "Viking longship"}
	assert.Equal(t, -1000, scorer.Score(candidate, ctx))
}

func TestScore_PageURLContributes(t *testing.T) {
	scorer := NewScorer(nil)
	ctx := egyptContext()

	// Allow term appears only in the page URL.
	candidate := types.ImageCandidate{
		Title:   "Stone monument at dusk",
		PageURL: "https://commons.example.org/wiki/File:pyramid_giza.jpg",
	}
	assert.Positive(t, scorer.Score(candidate, ctx))
}

func TestHasMismatch(t *testing.T) {
	scorer := NewScorer(nil)

	assert.True(t, scorer.HasMismatch("Thor and the Norse gods", types.CivilizationEgypt))
	assert.False(t, scorer.HasMismatch("The Nile delta", types.CivilizationEgypt))
	assert.False(t, scorer.HasMismatch("anything", types.CivilizationNone))
}

func TestKeywordClassifier(t *testing.T) {
	classifier := NewKeywordClassifier(nil)

	historical, err := classifier.IsHistorical(context.Background(), egyptContext())
	require.NoError(t, err)
	assert.True(t, historical)

	mathCtx := types.CourseContext{Title: "Fractions", Subject: "math"}
	historical, err = classifier.IsHistorical(context.Background(), mathCtx)
	require.NoError(t, err)
	assert.False(t, historical)
}

func TestKeywordClassifier_CustomKeywords(t *testing.T) {
	classifier := NewKeywordClassifier([]string{"renaissance"})

	ctx := types.CourseContext{Title: "Renaissance Art", Subject: "art"}
	historical, err := classifier.IsHistorical(context.Background(), ctx)
	require.NoError(t, err)
	assert.True(t, historical)

	historical, err = classifier.IsHistorical(context.Background(), egyptContext())
	require.NoError(t, err)
	assert.False(t, historical, "custom keywords replace the defaults")
}
