package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/course-illustrator/internal/resolver"
	"github.com/jonathan/course-illustrator/internal/types"
)

var validate = validator.New()

// ---------------------------------------------------------------------
// Resolution
// ---------------------------------------------------------------------

type ResolveRequest struct {
	CourseID  string `json:"course_id" validate:"required"`
	LessonID  string `json:"lesson_id" validate:"required"`
	Title     string `json:"title" validate:"required"`
	Subject   string `json:"subject"`
	SessionID string `json:"session_id"`
}

type ResolveResponse struct {
	Image     *types.ScoredCandidate `json:"image"`
	Reason    string                 `json:"reason,omitempty"`
	SessionID string                 `json:"session_id"`
}

// handleResolve answers a lesson's image request. Policy failures (no
// candidate, below threshold) are successful responses with a null image:
// the client renders a placeholder, not an error page.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "course_id, lesson_id and title are required")
		return
	}

	sessionID := s.sessions.RestoreOrCreate(req.CourseID, req.SessionID)
	course := types.NewCourseContext(req.CourseID, req.LessonID, req.Title, req.Subject)

	candidate, err := s.resolver.Resolve(r.Context(), course)
	if err != nil {
		if resolver.IsPolicyFailure(err) {
			s.jsonResponse(w, http.StatusOK, ResolveResponse{
				Reason:    policyReason(err),
				SessionID: sessionID,
			})
			return
		}
		s.errorResponse(w, HTTPStatus(err), "Resolution failed: "+err.Error())
		return
	}

	key := types.KeyFor(course).String()
	if err := s.sessions.SetResolutionKey(sessionID, req.LessonID, key); err != nil {
		log.Printf("Failed to index resolution key for session %s: %v", sessionID, err)
	}

	// Warm the winning asset off the request path. A preload failure only
	// means the asset stays cold.
	go func(url string) {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		if _, err := s.preloader.Preload(ctx, url); err != nil && s.verbose {
			log.Printf("[PRELOAD] Background warm failed for %s: %v", url, err)
		}
	}(candidate.URL)

	s.jsonResponse(w, http.StatusOK, ResolveResponse{Image: candidate, SessionID: sessionID})
}

func policyReason(err error) string {
	var below *resolver.BelowThresholdError
	if errors.As(err, &below) {
		return "below_threshold"
	}
	return "no_candidate"
}

// ---------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------

type CreateSessionRequest struct {
	CourseID string `json:"course_id" validate:"required"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "course_id is required")
		return
	}

	id := s.sessions.Create(req.CourseID)
	s.jsonResponse(w, http.StatusCreated, map[string]string{"session_id": id})
}

func (s *Server) handleSessionStats(w http.ResponseWriter, _ *http.Request) {
	total, active := s.sessions.Stats()
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"total_sessions":  total,
		"active_sessions": active,
	})
}

type QuizScoreRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	LessonID  string `json:"lesson_id" validate:"required"`
	Score     int    `json:"score" validate:"min=0,max=100"`
}

func (s *Server) handleSaveQuizScore(w http.ResponseWriter, r *http.Request) {
	var req QuizScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "session_id, lesson_id and a score in [0,100] are required")
		return
	}

	if err := s.sessions.SaveQuizScore(req.SessionID, req.LessonID, req.Score); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Server) handleGetQuizScore(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	lessonID := r.URL.Query().Get("lesson_id")
	if sessionID == "" || lessonID == "" {
		s.errorResponse(w, http.StatusBadRequest, "session_id and lesson_id are required")
		return
	}

	score, ok := s.sessions.GetQuizScore(sessionID, lessonID)
	if !ok {
		s.errorResponse(w, http.StatusNotFound, "No score recorded")
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]int{"score": score})
}

type ProgressRequest struct {
	SessionID string  `json:"session_id" validate:"required"`
	LessonID  string  `json:"lesson_id" validate:"required"`
	Progress  float64 `json:"progress" validate:"min=0,max=1"`
}

func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	var req ProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "session_id, lesson_id and progress in [0,1] are required")
		return
	}

	if err := s.sessions.UpdateLessonProgress(req.SessionID, req.LessonID, req.Progress); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	lessonID := r.URL.Query().Get("lesson_id")
	if sessionID == "" || lessonID == "" {
		s.errorResponse(w, http.StatusBadRequest, "session_id and lesson_id are required")
		return
	}

	progress, ok := s.sessions.GetLessonProgress(sessionID, lessonID)
	if !ok {
		s.errorResponse(w, http.StatusNotFound, "No progress recorded")
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]float64{"progress": progress})
}
