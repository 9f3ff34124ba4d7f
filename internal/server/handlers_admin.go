package server

import (
	"encoding/json"
	"net/http"

	"github.com/jonathan/course-illustrator/internal/ban"
)

// ---------------------------------------------------------------------
// Administrative Handlers
// ---------------------------------------------------------------------

type CreateBanRequest struct {
	ExactURL  string `json:"exact_url"`
	Substring string `json:"substring"`
	CourseID  string `json:"course_id"`
}

// handleCreateBan registers a ban pattern. The invalidation cascade runs
// before the response is written, so the returned purge count is final.
func (s *Server) handleCreateBan(w http.ResponseWriter, r *http.Request) {
	var req CreateBanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ExactURL == "" && req.Substring == "" {
		s.errorResponse(w, http.StatusBadRequest, "One of exact_url or substring is required")
		return
	}

	purged := s.bans.Ban(r.Context(), ban.Pattern{
		ExactURL:  req.ExactURL,
		Substring: req.Substring,
		CourseID:  req.CourseID,
	})

	s.jsonResponse(w, http.StatusCreated, map[string]int{"purged": purged})
}

func (s *Server) handleListBans(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{"patterns": s.bans.Patterns()})
}

type PurgeRequest struct {
	Substring     string   `json:"substring"`
	Substrings    []string `json:"substrings"`
	CourseID      string   `json:"course_id"`
	UseDisallowed bool     `json:"use_disallowed"`
	All           bool     `json:"all"`
	ClearSessions bool     `json:"clear_sessions"`
}

// handlePurge removes cached entries without registering new bans. `all`
// empties both caches; a bare `course_id` empties one course's memoized
// decisions; `use_disallowed` re-runs the cascade for every registered
// pattern, catching entries that predate their bans.
func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	var req PurgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	substrings := req.Substrings
	if req.Substring != "" {
		substrings = append(substrings, req.Substring)
	}
	if !req.All && !req.UseDisallowed && len(substrings) == 0 && req.CourseID == "" && !req.ClearSessions {
		s.errorResponse(w, http.StatusBadRequest, "Nothing to purge: set all, use_disallowed, substring(s), course_id or clear_sessions")
		return
	}

	purged := 0
	if req.All {
		purged += s.resolver.PurgeAll()
		purged += s.preloader.PurgeAll()
	} else {
		for _, sub := range substrings {
			purged += s.bans.PurgeMatching(ban.Pattern{Substring: sub, CourseID: req.CourseID})
		}
		if len(substrings) == 0 && req.CourseID != "" {
			purged += s.bans.PurgeMatching(ban.Pattern{CourseID: req.CourseID})
		}
		if req.UseDisallowed {
			for _, p := range s.bans.Patterns() {
				purged += s.bans.PurgeMatching(p)
			}
		}
	}

	sessionsCleared := 0
	if req.ClearSessions {
		sessionsCleared = s.sessions.ClearAll()
	}

	s.jsonResponse(w, http.StatusOK, map[string]int{
		"purged":           purged,
		"sessions_cleared": sessionsCleared,
	})
}
