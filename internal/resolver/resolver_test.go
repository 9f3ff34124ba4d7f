package resolver

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/course-illustrator/internal/ban"
	"github.com/jonathan/course-illustrator/internal/providers"
	"github.com/jonathan/course-illustrator/internal/scoring"
	"github.com/jonathan/course-illustrator/internal/types"
)

type stubProvider struct {
	name       string
	candidates []types.ImageCandidate
	err        error
	calls      int64
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Search(context.Context, string) ([]types.ImageCandidate, error) {
	atomic.AddInt64(&p.calls, 1)
	if p.err != nil {
		return nil, p.err
	}
	return p.candidates, nil
}

func egyptContext() types.CourseContext {
	return types.NewCourseContext("c1", "l1", "Ancient Egypt Lesson", "history")
}

func thorCandidate() types.ImageCandidate {
	return types.ImageCandidate{
		URL:            "https://img.example.com/thor.jpg",
		Title:          "Thor's Hammer Mjolnir Norse mythology",
		PageURL:        "https://example.com/thor",
		SourceProvider: "stub",
	}
}

func pyramidCandidate() types.ImageCandidate {
	return types.ImageCandidate{
		URL:            "https://img.example.com/pyramid.jpg",
		Title:          "Great Pyramid of Giza",
		PageURL:        "https://example.com/giza",
		SourceProvider: "stub",
	}
}

func newResolver(t *testing.T, cfg Config) *Resolver {
	t.Helper()
	r := New(cfg)
	t.Cleanup(r.Stop)
	return r
}

func TestResolve_PrefersCulturallyCorrectCandidate(t *testing.T) {
	provider := &stubProvider{
		name:       "stub",
		candidates: []types.ImageCandidate{thorCandidate(), pyramidCandidate()},
	}
	r := newResolver(t, Config{Providers: []providers.Provider{provider}})

	got, err := r.Resolve(context.Background(), egyptContext())
	require.NoError(t, err)
	assert.Equal(t, pyramidCandidate().URL, got.URL)
	assert.Positive(t, got.Score)
}

func TestResolve_ProviderFailureIsSkipped(t *testing.T) {
	broken := &stubProvider{name: "broken", err: errors.New("connection refused")}
	working := &stubProvider{name: "working", candidates: []types.ImageCandidate{pyramidCandidate()}}
	r := newResolver(t, Config{Providers: []providers.Provider{broken, working}})

	got, err := r.Resolve(context.Background(), egyptContext())
	require.NoError(t, err)
	assert.Equal(t, pyramidCandidate().URL, got.URL)
}

func TestResolve_NoCandidates(t *testing.T) {
	r := newResolver(t, Config{Providers: []providers.Provider{&stubProvider{name: "empty"}}})

	_, err := r.Resolve(context.Background(), egyptContext())
	require.Error(t, err)

	var noCand *NoCandidateError
	assert.ErrorAs(t, err, &noCand)
	assert.True(t, IsPolicyFailure(err))
}

func TestResolve_BelowThresholdForHistoricalContent(t *testing.T) {
	// A candidate with no overlap and no allow terms scores 0, below the
	// historical threshold of 50.
	weak := types.ImageCandidate{URL: "https://img.example.com/x.jpg", Title: "A bridge at sunset"}
	r := newResolver(t, Config{Providers: []providers.Provider{
		&stubProvider{name: "stub", candidates: []types.ImageCandidate{weak}},
	}})

	_, err := r.Resolve(context.Background(), egyptContext())
	require.Error(t, err)

	var below *BelowThresholdError
	require.ErrorAs(t, err, &below)
	assert.Equal(t, 0, below.Score)
	assert.Equal(t, DefaultScoreThreshold, below.Threshold)
	assert.True(t, IsPolicyFailure(err))
}

func TestResolve_ThresholdSkippedForNonHistoricalContent(t *testing.T) {
	weak := types.ImageCandidate{URL: "https://img.example.com/x.jpg", Title: "Fractions worksheet"}
	r := newResolver(t, Config{Providers: []providers.Provider{
		&stubProvider{name: "stub", candidates: []types.ImageCandidate{weak}},
	}})

	mathCtx := types.NewCourseContext("c1", "l1", "Fractions", "math")
	got, err := r.Resolve(context.Background(), mathCtx)
	require.NoError(t, err)
	assert.Equal(t, weak.URL, got.URL)
}

func TestResolve_NeverReturnsBannedCandidate(t *testing.T) {
	registry := ban.NewRegistry(context.Background(), nil, false)
	registry.Ban(context.Background(), ban.Pattern{Substring: "pyramid"})

	provider := &stubProvider{name: "stub", candidates: []types.ImageCandidate{pyramidCandidate(), thorCandidate()}}
	r := newResolver(t, Config{Providers: []providers.Provider{provider}, Bans: registry})

	got, err := r.Resolve(context.Background(), egyptContext())
	if err == nil {
		assert.NotContains(t, got.URL, "pyramid")
	}
}

func TestResolve_MemoizesOutcome(t *testing.T) {
	provider := &stubProvider{name: "stub", candidates: []types.ImageCandidate{pyramidCandidate()}}
	r := newResolver(t, Config{Providers: []providers.Provider{provider}})

	for i := 0; i < 5; i++ {
		_, err := r.Resolve(context.Background(), egyptContext())
		require.NoError(t, err)
	}

	// One call per search phrase, not per Resolve.
	phrases := buildSearchPhrases(egyptContext(), scoring.NewScorer(nil))
	assert.Equal(t, int64(len(phrases)), atomic.LoadInt64(&provider.calls))
}

func TestResolve_MemoizesFailures(t *testing.T) {
	provider := &stubProvider{name: "empty"}
	r := newResolver(t, Config{Providers: []providers.Provider{provider}})

	_, err1 := r.Resolve(context.Background(), egyptContext())
	callsAfterFirst := atomic.LoadInt64(&provider.calls)
	_, err2 := r.Resolve(context.Background(), egyptContext())

	assert.Error(t, err1)
	assert.Error(t, err2)
	assert.Equal(t, callsAfterFirst, atomic.LoadInt64(&provider.calls),
		"failed resolution must not be retried within the TTL")
}

func TestResolve_BanCascadeInvalidatesCachedDecision(t *testing.T) {
	registry := ban.NewRegistry(context.Background(), nil, false)
	thorOnly := &stubProvider{name: "stub", candidates: []types.ImageCandidate{
		{URL: "https://img.example.com/thor.jpg", Title: "Thor exhibit poster", PageURL: "https://example.com/thor"},
	}}
	r := newResolver(t, Config{Providers: []providers.Provider{thorOnly}, Bans: registry})

	artCtx := types.NewCourseContext("c1", "l1", "Thor exhibit", "art")
	got, err := r.Resolve(context.Background(), artCtx)
	require.NoError(t, err)
	require.Contains(t, got.Title, "Thor")

	purged := registry.Ban(context.Background(), ban.Pattern{Substring: "thor"})
	assert.Equal(t, 1, purged, "cached decision must be invalidated immediately")

	// Within the TTL, a new resolve must not return the banned result.
	_, err = r.Resolve(context.Background(), artCtx)
	require.Error(t, err)
	assert.True(t, IsPolicyFailure(err))
}

func TestInvalidateMatching_CourseScoped(t *testing.T) {
	provider := &stubProvider{name: "stub", candidates: []types.ImageCandidate{pyramidCandidate()}}
	r := newResolver(t, Config{Providers: []providers.Provider{provider}})

	ctxC1 := types.NewCourseContext("c1", "l1", "Ancient Egypt Lesson", "history")
	ctxC2 := types.NewCourseContext("c2", "l1", "Ancient Egypt Lesson", "history")
	_, err := r.Resolve(context.Background(), ctxC1)
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), ctxC2)
	require.NoError(t, err)

	purged := r.InvalidateMatching(ban.Pattern{CourseID: "c1"})
	assert.Equal(t, 1, purged)
	assert.Equal(t, 1, r.CacheLen())
}

func TestPurgeAll(t *testing.T) {
	provider := &stubProvider{name: "stub", candidates: []types.ImageCandidate{pyramidCandidate()}}
	r := newResolver(t, Config{Providers: []providers.Provider{provider}})

	_, err := r.Resolve(context.Background(), egyptContext())
	require.NoError(t, err)
	require.Equal(t, 1, r.CacheLen())

	assert.Equal(t, 1, r.PurgeAll())
	assert.Equal(t, 0, r.CacheLen())

	// Recomputes after the purge.
	before := atomic.LoadInt64(&provider.calls)
	_, err = r.Resolve(context.Background(), egyptContext())
	require.NoError(t, err)
	assert.Greater(t, atomic.LoadInt64(&provider.calls), before)
}

func TestBuildSearchPhrases_StripsMismatchedPhrases(t *testing.T) {
	scorer := scoring.NewScorer(nil)

	course := types.CourseContext{
		CourseID:         "c1",
		LessonID:         "l1",
		Title:            "Thor and Ancient Egypt",
		Subject:          "history",
		CivilizationHint: types.CivilizationEgypt,
	}

	phrases := buildSearchPhrases(course, scorer)
	require.NotEmpty(t, phrases)
	for _, phrase := range phrases {
		assert.NotContains(t, phrase, "Thor", "mismatch terms must not reach providers")
	}
}

func TestBuildSearchPhrases_Deduplicates(t *testing.T) {
	scorer := scoring.NewScorer(nil)
	course := types.CourseContext{Title: "Fractions", Subject: "", CivilizationHint: types.CivilizationNone}

	phrases := buildSearchPhrases(course, scorer)
	assert.Equal(t, []string{"Fractions"}, phrases)
}
