// Package ban maintains the durable set of banned URLs and substrings
// consulted during image resolution. Registering a ban cascades synchronously
// into every cache that holds matching entries.
package ban

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jonathan/course-illustrator/internal/types"
)

// Pattern is a single exclusion rule. Exactly one of ExactURL or Substring is
// normally set; CourseID optionally scopes the rule to one course.
type Pattern struct {
	ExactURL  string    `json:"exact_url,omitempty"`
	Substring string    `json:"substring,omitempty"`
	CourseID  string    `json:"course_id,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Matches reports whether the pattern applies to the given text fields within
// the given course. Matching is case-insensitive; an unscoped pattern matches
// every course.
func (p Pattern) Matches(courseID string, fields ...string) bool {
	if p.CourseID != "" && p.CourseID != courseID {
		return false
	}
	for _, field := range fields {
		lowered := strings.ToLower(field)
		if p.ExactURL != "" && lowered == strings.ToLower(p.ExactURL) {
			return true
		}
		if p.Substring != "" && strings.Contains(lowered, strings.ToLower(p.Substring)) {
			return true
		}
	}
	return false
}

// Store persists ban patterns across process restarts.
type Store interface {
	SaveBan(ctx context.Context, p Pattern) error
	ListBans(ctx context.Context) ([]Pattern, error)
}

// Invalidator removes cache entries matching a pattern and returns the count
// removed. ResolutionCache and Preloader each register one.
type Invalidator func(p Pattern) int

// Registry is the process-wide ban set. Reads are lock-free enough for the
// hot path (RWMutex); writes persist to the store and run the invalidation
// cascade before returning.
type Registry struct {
	mu           sync.RWMutex
	patterns     []Pattern
	store        Store
	invalidators []Invalidator
	verbose      bool
}

// NewRegistry creates a registry, loading existing patterns from the store.
// A nil store degrades to memory-only operation; a store read failure is
// logged and treated the same way so resolution keeps working when the
// database is down.
func NewRegistry(ctx context.Context, store Store, verbose bool) *Registry {
	r := &Registry{store: store, verbose: verbose}
	if store != nil {
		patterns, err := store.ListBans(ctx)
		if err != nil {
			log.Printf("[BAN] Failed to load patterns from store, starting empty: %v", err)
		} else {
			r.patterns = patterns
			if verbose {
				log.Printf("[BAN] Loaded %d patterns from store", len(patterns))
			}
		}
	}
	return r
}

// RegisterInvalidator adds a cache invalidation hook run on every new ban.
func (r *Registry) RegisterInvalidator(fn Invalidator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidators = append(r.invalidators, fn)
}

// Ban registers a pattern, persists it, and synchronously invalidates every
// cached entry matching it. Returns the number of entries purged. A store
// write failure is logged, not fatal: the in-memory pattern still applies.
func (r *Registry) Ban(ctx context.Context, p Pattern) int {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	r.mu.Lock()
	r.patterns = append(r.patterns, p)
	invalidators := make([]Invalidator, len(r.invalidators))
	copy(invalidators, r.invalidators)
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.SaveBan(ctx, p); err != nil {
			log.Printf("[BAN] Failed to persist pattern, keeping in memory: %v", err)
		}
	}

	purged := 0
	for _, fn := range invalidators {
		purged += fn(p)
	}
	if r.verbose {
		log.Printf("[BAN] Registered pattern (exact=%q substring=%q course=%q), purged %d cached entries",
			p.ExactURL, p.Substring, p.CourseID, purged)
	}
	return purged
}

// IsBanned reports whether a candidate matches any active pattern for the
// given course. Checked against url, pageURL, and title, case-insensitively.
func (r *Registry) IsBanned(candidate types.ImageCandidate, courseID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.patterns {
		if p.Matches(courseID, candidate.URL, candidate.PageURL, candidate.Title) {
			return true
		}
	}
	return false
}

// PurgeMatching runs the invalidation cascade for an ad-hoc pattern without
// registering it. Used by the administrative purge operation.
func (r *Registry) PurgeMatching(p Pattern) int {
	r.mu.RLock()
	invalidators := make([]Invalidator, len(r.invalidators))
	copy(invalidators, r.invalidators)
	r.mu.RUnlock()

	purged := 0
	for _, fn := range invalidators {
		purged += fn(p)
	}
	return purged
}

// Patterns returns a copy of the active pattern list.
func (r *Registry) Patterns() []Pattern {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Pattern, len(r.patterns))
	copy(out, r.patterns)
	return out
}
