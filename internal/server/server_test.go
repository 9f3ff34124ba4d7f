package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/course-illustrator/internal/ban"
	"github.com/jonathan/course-illustrator/internal/fetch"
	"github.com/jonathan/course-illustrator/internal/preload"
	"github.com/jonathan/course-illustrator/internal/providers"
	"github.com/jonathan/course-illustrator/internal/resolver"
	"github.com/jonathan/course-illustrator/internal/session"
	"github.com/jonathan/course-illustrator/internal/types"
)

type stubProvider struct {
	candidates []types.ImageCandidate
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Search(context.Context, string) ([]types.ImageCandidate, error) {
	return p.candidates, nil
}

func newTestServer(t *testing.T, candidates []types.ImageCandidate) *Server {
	t.Helper()

	registry := ban.NewRegistry(context.Background(), nil, false)
	res := resolver.New(resolver.Config{
		Providers: []providers.Provider{&stubProvider{candidates: candidates}},
		Bans:      registry,
	})
	pre := preload.New(preload.Config{
		Fetcher: func(_ context.Context, url string) (*fetch.Result, error) {
			return &fetch.Result{URL: url, Body: []byte("x"), StatusCode: 200}, nil
		},
	})
	sessions := session.NewStore(session.Config{})

	t.Cleanup(func() {
		res.Stop()
		pre.Stop()
		sessions.Stop()
	})

	return New(Config{
		Resolver:  res,
		Preloader: pre,
		Sessions:  sessions,
		Bans:      registry,
	})
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, into any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), into))
}

func pyramidCandidate() types.ImageCandidate {
	return types.ImageCandidate{
		URL:            "https://img.example.com/pyramid.jpg",
		Title:          "Great Pyramid of Giza",
		PageURL:        "https://example.com/giza",
		SourceProvider: "stub",
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestResolve_Success(t *testing.T) {
	s := newTestServer(t, []types.ImageCandidate{pyramidCandidate()})

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/resolve", ResolveRequest{
		CourseID: "c1", LessonID: "l1", Title: "Ancient Egypt", Subject: "history",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ResolveResponse
	decodeBody(t, rec, &resp)
	require.NotNil(t, resp.Image)
	assert.Equal(t, pyramidCandidate().URL, resp.Image.URL)
	assert.NotEmpty(t, resp.SessionID)
}

func TestResolve_PolicyFailureIsNotAnError(t *testing.T) {
	s := newTestServer(t, nil) // no candidates

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/resolve", ResolveRequest{
		CourseID: "c1", LessonID: "l1", Title: "Ancient Egypt", Subject: "history",
	})
	require.Equal(t, http.StatusOK, rec.Code, "policy failures must not surface as HTTP errors")

	var resp ResolveResponse
	decodeBody(t, rec, &resp)
	assert.Nil(t, resp.Image)
	assert.Equal(t, "no_candidate", resp.Reason)
	assert.NotEmpty(t, resp.SessionID)
}

func TestResolve_BelowThresholdReason(t *testing.T) {
	weak := types.ImageCandidate{URL: "https://img.example.com/x.jpg", Title: "A bridge at sunset"}
	s := newTestServer(t, []types.ImageCandidate{weak})

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/resolve", ResolveRequest{
		CourseID: "c1", LessonID: "l1", Title: "Ancient Egypt", Subject: "history",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ResolveResponse
	decodeBody(t, rec, &resp)
	assert.Nil(t, resp.Image)
	assert.Equal(t, "below_threshold", resp.Reason)
}

func TestResolve_MissingFields(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/resolve", ResolveRequest{CourseID: "c1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolve_ReusesSession(t *testing.T) {
	s := newTestServer(t, []types.ImageCandidate{pyramidCandidate()})
	handler := s.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/resolve", ResolveRequest{
		CourseID: "c1", LessonID: "l1", Title: "Ancient Egypt",
	})
	var first ResolveResponse
	decodeBody(t, rec, &first)

	rec = doJSON(t, handler, http.MethodPost, "/api/resolve", ResolveRequest{
		CourseID: "c1", LessonID: "l2", Title: "Ancient Egypt", SessionID: first.SessionID,
	})
	var second ResolveResponse
	decodeBody(t, rec, &second)

	assert.Equal(t, first.SessionID, second.SessionID)
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	handler := s.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/sessions", CreateSessionRequest{CourseID: "c1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]string
	decodeBody(t, rec, &created)
	sessionID := created["session_id"]
	require.NotEmpty(t, sessionID)

	rec = doJSON(t, handler, http.MethodPost, "/api/quiz-scores", QuizScoreRequest{
		SessionID: sessionID, LessonID: "l1", Score: 88,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/quiz-scores?session_id="+sessionID+"&lesson_id=l1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var score map[string]int
	decodeBody(t, rec, &score)
	assert.Equal(t, 88, score["score"])

	rec = doJSON(t, handler, http.MethodPost, "/api/progress", ProgressRequest{
		SessionID: sessionID, LessonID: "l1", Progress: 0.5,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/progress?session_id="+sessionID+"&lesson_id=l1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/sessions/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]int
	decodeBody(t, rec, &stats)
	assert.Equal(t, 1, stats["active_sessions"])
}

func TestQuizScore_UnknownSession(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/quiz-scores", QuizScoreRequest{
		SessionID: "missing", LessonID: "l1", Score: 50,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateBan_CascadesBeforeResponding(t *testing.T) {
	s := newTestServer(t, []types.ImageCandidate{pyramidCandidate()})
	handler := s.Handler()

	// Populate the resolution cache.
	rec := doJSON(t, handler, http.MethodPost, "/api/resolve", ResolveRequest{
		CourseID: "c1", LessonID: "l1", Title: "Ancient Egypt", Subject: "history",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/api/admin/bans", CreateBanRequest{Substring: "pyramid"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]int
	decodeBody(t, rec, &resp)
	assert.Equal(t, 1, resp["purged"], "cached decision must be purged by the cascade")

	// Subsequent resolution cannot return the banned image.
	rec = doJSON(t, handler, http.MethodPost, "/api/resolve", ResolveRequest{
		CourseID: "c1", LessonID: "l1", Title: "Ancient Egypt", Subject: "history",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var resolveResp ResolveResponse
	decodeBody(t, rec, &resolveResp)
	assert.Nil(t, resolveResp.Image)
}

func TestCreateBan_RequiresPattern(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/admin/bans", CreateBanRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPurge_All(t *testing.T) {
	s := newTestServer(t, []types.ImageCandidate{pyramidCandidate()})
	handler := s.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/resolve", ResolveRequest{
		CourseID: "c1", LessonID: "l1", Title: "Ancient Egypt",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/api/admin/purge", PurgeRequest{All: true})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]int
	decodeBody(t, rec, &resp)
	assert.GreaterOrEqual(t, resp["purged"], 1)
}

func TestPurge_CourseScoped(t *testing.T) {
	s := newTestServer(t, []types.ImageCandidate{pyramidCandidate()})
	handler := s.Handler()

	for _, courseID := range []string{"c1", "c2"} {
		rec := doJSON(t, handler, http.MethodPost, "/api/resolve", ResolveRequest{
			CourseID: courseID, LessonID: "l1", Title: "Ancient Egypt", Subject: "history",
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doJSON(t, handler, http.MethodPost, "/api/admin/purge", PurgeRequest{CourseID: "c1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]int
	decodeBody(t, rec, &resp)
	assert.Equal(t, 1, resp["purged"], "only the named course's cached decision is purged")
}

func TestPurge_NothingRequested(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/admin/purge", PurgeRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
