// Package session isolates per-visitor state for anonymous course access:
// quiz scores, lesson progress, and cached resolution keys live under a
// session id with activity-based idle expiry.
package session

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Defaults for session lifecycle.
const (
	DefaultTimeout       = 30 * time.Minute
	DefaultSweepInterval = 5 * time.Minute
)

// Session is one visitor's state scope. A session belongs to exactly one
// course. All fields are guarded by mu; the store hands out pointers but
// callers go through Store methods.
type Session struct {
	ID        string
	CourseID  string
	CreatedAt time.Time

	mu             sync.Mutex
	lastActivity   time.Time
	quizScores     map[string]int
	lessonProgress map[string]float64
	// resolutionKeys is a secondary index lessonID -> resolution cache key,
	// replacing substring scans over the cache.
	resolutionKeys map[string]string
}

// NotFoundError indicates an unknown session id on a mutating operation.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("session not found: %s", e.ID)
}

// Config holds store tuning parameters. Zero values use defaults.
type Config struct {
	Timeout       time.Duration
	SweepInterval time.Duration
	Verbose       bool
}

// Store owns all live sessions. Operations on different sessions do not
// block each other; the periodic sweep skips sessions mid-mutation and
// catches them on a later pass.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	timeout time.Duration
	verbose bool

	totalCreated int64

	sweepTicker *time.Ticker
	sweepStop   chan struct{}
	stopOnce    sync.Once

	now func() time.Time
}

// NewStore creates a session store and starts its expiry sweep.
func NewStore(cfg Config) *Store {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}

	s := &Store{
		sessions: make(map[string]*Session),
		timeout:  cfg.Timeout,
		verbose:  cfg.Verbose,
		now:      time.Now,
	}

	s.sweepTicker = time.NewTicker(cfg.SweepInterval)
	s.sweepStop = make(chan struct{})
	go s.sweepLoop()

	return s
}

// Create starts a fresh session for a course and returns its id.
func (s *Store) Create(courseID string) string {
	now := s.now()
	sess := &Session{
		ID:             uuid.NewString(),
		CourseID:       courseID,
		CreatedAt:      now,
		lastActivity:   now,
		quizScores:     make(map[string]int),
		lessonProgress: make(map[string]float64),
		resolutionKeys: make(map[string]string),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.totalCreated++
	s.mu.Unlock()

	if s.verbose {
		log.Printf("[SESSION] Created %s for course %s", sess.ID, courseID)
	}
	return sess.ID
}

// RestoreOrCreate returns the existing session id when it resolves to a live
// session for the same course, refreshing its activity. An unknown id, or an
// id belonging to a different course, silently yields a fresh session; a
// course mismatch is not an error surfaced to the caller.
func (s *Store) RestoreOrCreate(courseID, sessionID string) string {
	if sessionID != "" {
		s.mu.RLock()
		sess, ok := s.sessions[sessionID]
		s.mu.RUnlock()

		if ok && sess.CourseID == courseID {
			sess.mu.Lock()
			sess.lastActivity = s.now()
			sess.mu.Unlock()
			return sessionID
		}
		if ok && s.verbose {
			log.Printf("[SESSION] Course mismatch for %s (have %s, want %s), issuing new session",
				sessionID, sess.CourseID, courseID)
		}
	}
	return s.Create(courseID)
}

// SaveQuizScore records a lesson quiz score, refreshing activity.
func (s *Store) SaveQuizScore(sessionID, lessonID string, score int) error {
	return s.withSession(sessionID, func(sess *Session) {
		sess.quizScores[lessonID] = score
	})
}

// GetQuizScore returns a recorded quiz score.
func (s *Store) GetQuizScore(sessionID, lessonID string) (int, bool) {
	sess := s.lookup(sessionID)
	if sess == nil {
		return 0, false
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	score, ok := sess.quizScores[lessonID]
	return score, ok
}

// UpdateLessonProgress records progress through a lesson, refreshing activity.
func (s *Store) UpdateLessonProgress(sessionID, lessonID string, progress float64) error {
	return s.withSession(sessionID, func(sess *Session) {
		sess.lessonProgress[lessonID] = progress
	})
}

// GetLessonProgress returns recorded lesson progress.
func (s *Store) GetLessonProgress(sessionID, lessonID string) (float64, bool) {
	sess := s.lookup(sessionID)
	if sess == nil {
		return 0, false
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	progress, ok := sess.lessonProgress[lessonID]
	return progress, ok
}

// SetResolutionKey records which cache key answered a lesson's image,
// refreshing activity.
func (s *Store) SetResolutionKey(sessionID, lessonID, key string) error {
	return s.withSession(sessionID, func(sess *Session) {
		sess.resolutionKeys[lessonID] = key
	})
}

// ResolutionKey looks up the cache key for a lesson via the secondary index.
func (s *Store) ResolutionKey(sessionID, lessonID string) (string, bool) {
	sess := s.lookup(sessionID)
	if sess == nil {
		return "", false
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	key, ok := sess.resolutionKeys[lessonID]
	return key, ok
}

// Stats reports total sessions ever created and currently active sessions.
func (s *Store) Stats() (total int64, active int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalCreated, len(s.sessions)
}

// ClearAll removes every session and returns the count. This administrative
// operation is the only destruction path besides the expiry sweep.
func (s *Store) ClearAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.sessions)
	s.sessions = make(map[string]*Session)
	return n
}

// Stop halts the expiry sweep. The store remains usable afterwards.
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		s.sweepTicker.Stop()
		close(s.sweepStop)
	})
}

func (s *Store) lookup(sessionID string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[sessionID]
}

func (s *Store) withSession(sessionID string, mutate func(*Session)) error {
	sess := s.lookup(sessionID)
	if sess == nil {
		return &NotFoundError{ID: sessionID}
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	mutate(sess)
	sess.lastActivity = s.now()
	return nil
}

func (s *Store) sweepLoop() {
	for {
		select {
		case <-s.sweepTicker.C:
			s.sweepExpired()
		case <-s.sweepStop:
			return
		}
	}
}

// sweepExpired removes sessions idle longer than the timeout. A session whose
// lock is held by an in-flight mutation is skipped this pass: that mutation
// is refreshing its activity anyway. The session lock is held through the
// delete so an activity refresh can never land between the expiry check and
// the removal.
func (s *Store) sweepExpired() {
	cutoff := s.now().Add(-s.timeout)

	s.mu.Lock()
	removed := 0
	for id, sess := range s.sessions {
		if !sess.mu.TryLock() {
			continue
		}
		if sess.lastActivity.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
		sess.mu.Unlock()
	}
	s.mu.Unlock()

	if removed > 0 && s.verbose {
		log.Printf("[SESSION] Swept %d expired sessions", removed)
	}
}
