package resolver

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/jonathan/course-illustrator/internal/ban"
	"github.com/jonathan/course-illustrator/internal/cache"
	"github.com/jonathan/course-illustrator/internal/providers"
	"github.com/jonathan/course-illustrator/internal/scoring"
	"github.com/jonathan/course-illustrator/internal/types"
)

// DefaultScoreThreshold is the minimum winning score for historical/cultural
// content. Below it, resolution fails rather than returning a poor match.
const DefaultScoreThreshold = 50

// Result is what the resolution cache memoizes: either a selected candidate
// or the reason there is none. Both outcomes are cached so a failed lookup is
// not retried on every request within the TTL.
type Result struct {
	Candidate *types.ScoredCandidate `json:"candidate"`
	Reason    types.RejectionReason  `json:"reason,omitempty"`
	// BestScore records the losing score of a below-threshold decision.
	BestScore int `json:"best_score,omitempty"`
}

// Config assembles a Resolver.
type Config struct {
	Providers  []providers.Provider
	Scorer     *scoring.Scorer
	Bans       *ban.Registry
	Classifier scoring.Classifier
	Threshold  int
	CacheSize  int
	CacheTTL   time.Duration
	Verbose    bool
}

// Resolver picks one image per course context, memoizing decisions.
type Resolver struct {
	providers  []providers.Provider
	scorer     *scoring.Scorer
	bans       *ban.Registry
	classifier scoring.Classifier
	cache      *cache.Cache[Result]
	threshold  int
	verbose    bool
}

// New creates a resolver and registers its cache with the ban registry so a
// new ban invalidates matching memoized decisions before Ban returns.
func New(cfg Config) *Resolver {
	if cfg.Scorer == nil {
		cfg.Scorer = scoring.NewScorer(nil)
	}
	if cfg.Classifier == nil {
		cfg.Classifier = scoring.NewKeywordClassifier(nil)
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultScoreThreshold
	}

	r := &Resolver{
		providers:  cfg.Providers,
		scorer:     cfg.Scorer,
		bans:       cfg.Bans,
		classifier: cfg.Classifier,
		cache: cache.New[Result](cache.Config{
			Capacity: cfg.CacheSize,
			TTL:      cfg.CacheTTL,
		}),
		threshold: cfg.Threshold,
		verbose:   cfg.Verbose,
	}

	if r.bans != nil {
		r.bans.RegisterInvalidator(r.InvalidateMatching)
	}
	return r
}

// Resolve returns the best-matching image for the context, or a typed policy
// failure (NoCandidateError, BelowThresholdError). Concurrent calls for the
// same resolution key share one computation; outcomes are memoized either way.
func (r *Resolver) Resolve(ctx context.Context, course types.CourseContext) (*types.ScoredCandidate, error) {
	key := types.KeyFor(course).String()

	result, err := r.cache.GetOrCompute(ctx, key, func(ctx context.Context) (Result, bool, error) {
		return r.resolveUncached(ctx, course, key)
	})
	if err != nil {
		return nil, err
	}

	if result.Candidate != nil {
		return result.Candidate, nil
	}
	if result.Reason == types.RejectionBelowThreshold {
		return nil, &BelowThresholdError{Key: key, Score: result.BestScore, Threshold: r.threshold}
	}
	return nil, &NoCandidateError{Key: key}
}

// resolveUncached runs the full provider query / filter / score / select
// pipeline. The cacheable flag goes false only when the winner became banned
// while the computation was in flight: the decision completes but is not
// memoized.
func (r *Resolver) resolveUncached(ctx context.Context, course types.CourseContext, key string) (Result, bool, error) {
	candidates := r.gatherCandidates(ctx, course)
	if len(candidates) == 0 {
		if r.verbose {
			log.Printf("[RESOLVER] No candidates for %s", key)
		}
		return Result{}, true, nil
	}

	winner := r.selectBest(candidates, course)

	historical, err := r.classifier.IsHistorical(ctx, course)
	if err != nil {
		// Classification failure must not block resolution; treat as non-historical.
		log.Printf("[RESOLVER] Classifier failed for %s, skipping threshold: %v", key, err)
		historical = false
	}
	if historical && winner.Score < r.threshold {
		log.Printf("[RESOLVER] Best candidate for %s below threshold (%d < %d): %s",
			key, winner.Score, r.threshold, winner.Title)
		return Result{Reason: types.RejectionBelowThreshold, BestScore: winner.Score}, true, nil
	}

	// Re-check just before insert: a ban registered while we were querying
	// providers must win over this in-flight decision.
	if r.bans != nil && r.bans.IsBanned(winner.ImageCandidate, course.CourseID) {
		if r.verbose {
			log.Printf("[RESOLVER] Winner for %s banned mid-flight, not caching", key)
		}
		return Result{Reason: types.RejectionBanned}, false, nil
	}

	if r.verbose {
		log.Printf("[RESOLVER] Selected for %s: %s", key, winner)
	}
	return Result{Candidate: &winner}, true, nil
}

// gatherCandidates queries providers in priority order. A provider failure is
// logged and skipped, never fatal. Banned candidates are filtered out here.
func (r *Resolver) gatherCandidates(ctx context.Context, course types.CourseContext) []types.ScoredCandidate {
	phrases := buildSearchPhrases(course, r.scorer)

	var candidates []types.ScoredCandidate
	seen := make(map[string]bool)

	for _, provider := range r.providers {
		for _, phrase := range phrases {
			found, err := provider.Search(ctx, phrase)
			if err != nil {
				log.Printf("[RESOLVER] Provider %s unavailable for %q, skipping: %v",
					provider.Name(), phrase, err)
				continue
			}
			for _, c := range found {
				if c.URL == "" || seen[c.URL] {
					continue
				}
				seen[c.URL] = true
				if r.bans != nil && r.bans.IsBanned(c, course.CourseID) {
					if r.verbose {
						log.Printf("[RESOLVER] Skipping banned candidate: %s", c.URL)
					}
					continue
				}
				candidates = append(candidates, types.ScoredCandidate{ImageCandidate: c})
			}
		}
	}
	return candidates
}

// selectBest scores all candidates and returns the maximum. Candidates arrive
// in provider-priority then discovery order, so keeping the first strict
// maximum implements both tie-breaks.
func (r *Resolver) selectBest(candidates []types.ScoredCandidate, course types.CourseContext) types.ScoredCandidate {
	best := candidates[0]
	best.Score = r.scorer.Score(best.ImageCandidate, course)

	for _, c := range candidates[1:] {
		c.Score = r.scorer.Score(c.ImageCandidate, course)
		if c.Score > best.Score {
			best = c
		}
	}
	return best
}

// InvalidateMatching purges memoized decisions matching a ban pattern and
// returns the count removed. Registered with the ban registry at construction.
func (r *Resolver) InvalidateMatching(p ban.Pattern) int {
	return r.cache.Purge(func(key string, v Result) bool {
		courseID := courseIDFromKey(key)
		if p.CourseID != "" && p.CourseID != courseID {
			return false
		}
		if p.ExactURL == "" && p.Substring == "" {
			// Bare course-scoped pattern: purge the whole course.
			return p.CourseID != ""
		}
		if v.Candidate == nil {
			return false
		}
		return p.Matches(courseID, v.Candidate.URL, v.Candidate.PageURL, v.Candidate.Title)
	})
}

// PurgeAll empties the resolution cache and returns the count removed.
func (r *Resolver) PurgeAll() int {
	return r.cache.Purge(func(string, Result) bool { return true })
}

// CacheLen reports the number of memoized decisions.
func (r *Resolver) CacheLen() int {
	return r.cache.Len()
}

// Stop halts the cache's background sweep.
func (r *Resolver) Stop() {
	r.cache.Stop()
}

// courseIDFromKey extracts the course segment of a resolution key
// ("courseID/lessonID/normalizedTitle").
func courseIDFromKey(key string) string {
	if idx := strings.Index(key, "/"); idx >= 0 {
		return key[:idx]
	}
	return key
}
