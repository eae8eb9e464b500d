package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"hatedog.dev/hate-filter/internal/auth"
	"hatedog.dev/hate-filter/internal/core"
	"hatedog.dev/hate-filter/internal/index"
	"hatedog.dev/hate-filter/internal/store"
)

type stubAnalyzer struct {
	missing []string
	got     []string
	results func(comments []string) []core.AnalysisResult
}

func (s *stubAnalyzer) AnalyzeBatch(_ context.Context, comments []string, _ int) []core.AnalysisResult {
	s.got = comments
	return s.results(comments)
}
func (s *stubAnalyzer) MissingCollaborators() []string { return s.missing }
func (s *stubAnalyzer) Ready() bool                    { return len(s.missing) == 0 }

type stubReporter struct {
	err     error
	outcome core.ReportOutcome
	words   []string
}

func (s *stubReporter) Submit(_ context.Context, word, reason string) (core.ReportOutcome, error) {
	if strings.TrimSpace(word) == "" || strings.TrimSpace(reason) == "" {
		return core.ReportOutcome{}, fmt.Errorf("%w: missing", core.ErrValidation)
	}
	s.words = append(s.words, word)
	return s.outcome, s.err
}

type stubIndex struct{ examples []index.Example }

func (s *stubIndex) Available() bool { return true }
func (s *stubIndex) Len() int        { return len(s.examples) }
func (s *stubIndex) Examples(limit int) []index.Example {
	if limit < len(s.examples) {
		return s.examples[:limit]
	}
	return s.examples
}

type stubReports struct{}

func (stubReports) Summary(_ context.Context, word string) (*store.WordReportSummary, error) {
	return &store.WordReportSummary{Word: word, Count: 2, Reasons: []string{"a", "b"}}, nil
}

const testSecret = "test-secret"

func newTestRouter(a *stubAnalyzer, rep *stubReporter) http.Handler {
	h := NewAPIHandler(HandlerDeps{
		Analyzer:       a,
		Reporter:       rep,
		Index:          &stubIndex{examples: []index.Example{{Text: "틀딱"}, {Text: "한남"}, {Text: "김치녀"}}},
		Reports:        stubReports{},
		JWTSecret:      testSecret,
		MaxConcurrency: 3,
		Logger:         zap.NewNop(),
	})
	return NewRouter(h)
}

func echoAnalyzer() *stubAnalyzer {
	return &stubAnalyzer{results: func(comments []string) []core.AnalysisResult {
		out := make([]core.AnalysisResult, len(comments))
		for i, c := range comments {
			if strings.Contains(c, "충") {
				out[i] = core.AnalysisResult{Classification: core.Hateful, Rationale: "비하 표현"}
			} else {
				out[i] = core.AnalysisResult{Classification: core.Normal, Rationale: "일상 대화"}
			}
		}
		return out
	}}
}

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAnalyzeHandler(t *testing.T) {
	a := echoAnalyzer()
	router := newTestRouter(a, &stubReporter{})

	body := `{"comments":[{"id":"c1","text":"이 한남충들"},{"text":"점심 뭐 먹지"},{"id":7,"text":42},{"id":"c4"}]}`
	rec := do(t, router, http.MethodPost, "/analyze", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Comments, 4)

	assert.Equal(t, "c1", resp.Comments[0].ID)
	assert.True(t, resp.Comments[0].IsHateful)
	assert.Equal(t, maskedText, resp.Comments[0].Text)
	assert.Equal(t, core.Hateful, resp.Comments[0].Classification)

	assert.Equal(t, "unknown_id_1", resp.Comments[1].ID)
	assert.Equal(t, "[정상] 일상 대화", resp.Comments[1].Text)
	assert.Empty(t, resp.Comments[1].Error)

	assert.EqualValues(t, 7, resp.Comments[2].ID)
	assert.Equal(t, invalidTextMessage, resp.Comments[2].Error)
	assert.Equal(t, core.Errored, resp.Comments[2].Classification)
	assert.False(t, resp.Comments[2].IsHateful)

	assert.Equal(t, invalidTextMessage, resp.Comments[3].Error)

	assert.Equal(t, []string{"이 한남충들", "점심 뭐 먹지"}, a.got)
}

func TestAnalyzeHandlerErroredItem(t *testing.T) {
	a := &stubAnalyzer{results: func(comments []string) []core.AnalysisResult {
		return []core.AnalysisResult{{Classification: core.Errored, Rationale: "분석 중 오류 발생: timeout"}}
	}}
	rec := do(t, newTestRouter(a, &stubReporter{}), http.MethodPost, "/analyze", `{"comments":[{"id":"x","text":"댓글"}]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "분석 중 오류 발생: timeout", resp.Comments[0].Error)
	assert.Equal(t, "[오류] 분석 중 오류 발생: timeout", resp.Comments[0].Text)
}

func TestAnalyzeHandlerRequestErrors(t *testing.T) {
	router := newTestRouter(echoAnalyzer(), &stubReporter{})

	for _, body := range []string{`not json`, `{}`, `{"comments":null}`, `{"comments":[]}`} {
		rec := do(t, router, http.MethodPost, "/analyze", body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Contains(t, rec.Body.String(), `"error"`)
	}
}

func TestAnalyzeHandlerNotReady(t *testing.T) {
	a := echoAnalyzer()
	a.missing = []string{"example store"}
	rec := do(t, newTestRouter(a, &stubReporter{}), http.MethodPost, "/analyze", `{"comments":[{"text":"a"}]}`, nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "example store")
	assert.Nil(t, a.got)
}

func TestReportWordHandler(t *testing.T) {
	rep := &stubReporter{outcome: core.ReportOutcome{Count: 10, Triggered: true, WorkflowErr: errors.New("generation failed")}}
	router := newTestRouter(echoAnalyzer(), rep)

	rec := do(t, router, http.MethodPost, "/report_word", `{"word":"틀딱","reason":"노인 비하"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, []string{"틀딱"}, rep.words)

	rec = do(t, router, http.MethodPost, "/report_word", `{"word":"틀딱"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/report_word", `{`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rep.err = errors.New("disk full")
	rec = do(t, router, http.MethodPost, "/report_word", `{"word":"a","reason":"b"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk full")
}

func TestHealthAndCORS(t *testing.T) {
	a := echoAnalyzer()
	router := newTestRouter(a, &stubReporter{})

	rec := do(t, router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","ready":true}`, rec.Body.String())

	rec = do(t, router, http.MethodOptions, "/analyze", "", map[string]string{
		"Origin":                        "https://www.youtube.com",
		"Access-Control-Request-Method": http.MethodPost,
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAdminRoutes(t *testing.T) {
	router := newTestRouter(echoAnalyzer(), &stubReporter{})

	rec := do(t, router, http.MethodGet, "/admin/index", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, router, http.MethodGet, "/admin/index", "", map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := auth.GenerateAdminToken(testSecret, "moderator")
	require.NoError(t, err)
	bearer := map[string]string{"Authorization": "Bearer " + token}

	rec = do(t, router, http.MethodGet, "/admin/index?limit=2", "", bearer)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing IndexListing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.True(t, listing.Available)
	assert.Equal(t, 3, listing.Total)
	assert.Len(t, listing.Examples, 2)

	rec = do(t, router, http.MethodGet, "/admin/index?limit=-1", "", bearer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/admin/reports/틀딱", "", bearer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"word":"틀딱","count":2,"reasons":["a","b"]}`, rec.Body.String())
}

func TestJWTAuthMiddlewareSetsSubject(t *testing.T) {
	h := NewAPIHandler(HandlerDeps{JWTSecret: testSecret, Logger: zap.NewNop()})
	token, err := auth.GenerateAdminToken(testSecret, "moderator")
	require.NoError(t, err)

	var seen string
	protected := h.JWTAuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = adminSubject(r.Context())
	}))
	do(t, protected, http.MethodGet, "/admin/index", "", map[string]string{"Authorization": "Bearer " + token})

	assert.Equal(t, "moderator", seen)
	assert.Empty(t, adminSubject(context.Background()))
}

func TestAdminRoutesDisabledWithoutSecret(t *testing.T) {
	h := NewAPIHandler(HandlerDeps{Analyzer: echoAnalyzer(), Reporter: &stubReporter{}, Logger: zap.NewNop()})
	rec := do(t, NewRouter(h), http.MethodGet, "/admin/index", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
