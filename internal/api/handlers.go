package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"hatedog.dev/hate-filter/internal/auth"
	"hatedog.dev/hate-filter/internal/core"
	"hatedog.dev/hate-filter/internal/index"
	"hatedog.dev/hate-filter/internal/store"
)

const (
	maskedText          = "[혐오 발언 의심되어 내용 가림]"
	invalidTextMessage  = "Invalid or missing text field"
	defaultIndexListing = 10
)

type Analyzer interface {
	AnalyzeBatch(ctx context.Context, comments []string, maxConcurrency int) []core.AnalysisResult
	MissingCollaborators() []string
	Ready() bool
}

type Reporter interface {
	Submit(ctx context.Context, word, reason string) (core.ReportOutcome, error)
}

type IndexInspector interface {
	Available() bool
	Len() int
	Examples(limit int) []index.Example
}

type ReportInspector interface {
	Summary(ctx context.Context, word string) (*store.WordReportSummary, error)
}

type APIHandler struct {
	analyzer       Analyzer
	reporter       Reporter
	index          IndexInspector
	reports        ReportInspector
	jwtSecret      string
	maxConcurrency int
	logger         *zap.Logger
}

type HandlerDeps struct {
	Analyzer       Analyzer
	Reporter       Reporter
	Index          IndexInspector
	Reports        ReportInspector
	JWTSecret      string
	MaxConcurrency int
	Logger         *zap.Logger
}

func NewAPIHandler(deps HandlerDeps) *APIHandler {
	return &APIHandler{
		analyzer:       deps.Analyzer,
		reporter:       deps.Reporter,
		index:          deps.Index,
		reports:        deps.Reports,
		jwtSecret:      deps.JWTSecret,
		maxConcurrency: deps.MaxConcurrency,
		logger:         deps.Logger,
	}
}

type ctxKey string

const adminSubjectKey ctxKey = "adminSubject"

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		subject, err := auth.ValidateAdminToken(h.jwtSecret, tokenString)
		if err != nil {
			h.logger.Warn("Rejected admin token", zap.Error(err))
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), adminSubjectKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func adminSubject(ctx context.Context) string {
	sub, _ := ctx.Value(adminSubjectKey).(string)
	return sub
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

type commentInput struct {
	ID   any `json:"id"`
	Text any `json:"text"`
}

type AnalyzeRequest struct {
	Comments *[]commentInput `json:"comments"`
}

type CommentResult struct {
	ID             any                 `json:"id"`
	Text           string              `json:"text"`
	IsHateful      bool                `json:"is_hateful"`
	Classification core.Classification `json:"classification"`
	Reason         string              `json:"reason"`
	Error          string              `json:"error,omitempty"`
}

type AnalyzeResponse struct {
	Comments []CommentResult `json:"comments"`
}

func (h *APIHandler) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Comments == nil || len(*req.Comments) == 0 {
		writeError(w, http.StatusBadRequest, "Request body must contain a non-empty 'comments' list")
		return
	}

	if missing := h.analyzer.MissingCollaborators(); len(missing) > 0 {
		h.logger.Error("Analyze request while not ready", zap.Strings("missing", missing))
		writeError(w, http.StatusServiceUnavailable, "Analyzer is not ready: "+strings.Join(missing, ", "))
		return
	}

	comments := *req.Comments
	out := make([]CommentResult, len(comments))

	// only well-formed items go to the model; positions map back into out
	var texts []string
	var positions []int
	for i, c := range comments {
		id := commentID(c.ID, i)
		text, ok := c.Text.(string)
		if !ok || strings.TrimSpace(text) == "" {
			out[i] = CommentResult{
				ID:             id,
				Text:           fmt.Sprintf("[%s] %s", core.Errored, invalidTextMessage),
				Classification: core.Errored,
				Reason:         invalidTextMessage,
				Error:          invalidTextMessage,
			}
			continue
		}
		out[i] = CommentResult{ID: id}
		texts = append(texts, text)
		positions = append(positions, i)
	}

	h.logger.Info("Analyze request", zap.Int("comments", len(comments)), zap.Int("valid", len(texts)))

	if len(texts) > 0 {
		results := h.analyzer.AnalyzeBatch(r.Context(), texts, h.maxConcurrency)
		for j, res := range results {
			out[positions[j]] = toCommentResult(out[positions[j]].ID, res)
		}
	}

	writeJSON(w, http.StatusOK, AnalyzeResponse{Comments: out})
}

func commentID(raw any, i int) any {
	switch v := raw.(type) {
	case nil:
		return fmt.Sprintf("unknown_id_%d", i)
	case string:
		if v == "" {
			return fmt.Sprintf("unknown_id_%d", i)
		}
	}
	return raw
}

func toCommentResult(id any, res core.AnalysisResult) CommentResult {
	cr := CommentResult{
		ID:             id,
		IsHateful:      res.IsHateful(),
		Classification: res.Classification,
		Reason:         res.Rationale,
	}
	if cr.IsHateful {
		cr.Text = maskedText
	} else {
		cr.Text = fmt.Sprintf("[%s] %s", res.Classification, res.Rationale)
	}
	if res.Classification == core.Errored {
		cr.Error = res.Rationale
	}
	return cr
}

type ReportWordRequest struct {
	Word   string `json:"word"`
	Reason string `json:"reason"`
}

func (h *APIHandler) ReportWordHandler(w http.ResponseWriter, r *http.Request) {
	var req ReportWordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	outcome, err := h.reporter.Submit(r.Context(), req.Word, req.Reason)
	if err != nil {
		if errors.Is(err, core.ErrValidation) {
			writeError(w, http.StatusBadRequest, "Both 'word' and 'reason' are required")
			return
		}
		h.logger.Error("Failed to record report", zap.String("word", req.Word), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to record report")
		return
	}
	if outcome.WorkflowErr != nil {
		// the report is stored; the corpus update will be retried by a later trigger or by hand
		h.logger.Warn("Corpus update did not complete", zap.String("word", req.Word), zap.Error(outcome.WorkflowErr))
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "ready": h.analyzer.Ready()})
}

type IndexListing struct {
	Available bool            `json:"available"`
	Total     int             `json:"total"`
	Examples  []index.Example `json:"examples"`
}

func (h *APIHandler) IndexListingHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultIndexListing
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	h.logger.Info("Admin index listing", zap.String("admin", adminSubject(r.Context())), zap.Int("limit", limit))
	examples := h.index.Examples(limit)
	if examples == nil {
		examples = []index.Example{}
	}
	writeJSON(w, http.StatusOK, IndexListing{
		Available: h.index.Available(),
		Total:     h.index.Len(),
		Examples:  examples,
	})
}

func (h *APIHandler) WordReportsHandler(w http.ResponseWriter, r *http.Request) {
	word := chi.URLParam(r, "word")
	h.logger.Info("Admin report lookup", zap.String("admin", adminSubject(r.Context())), zap.String("word", word))
	summary, err := h.reports.Summary(r.Context(), word)
	if err != nil {
		h.logger.Error("Failed to load report summary", zap.String("word", word), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load reports")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
