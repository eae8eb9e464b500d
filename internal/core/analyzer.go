package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"hatedog.dev/hate-filter/internal/index"
)

// ExampleSearcher is the read side of the example store used during analysis.
type ExampleSearcher interface {
	Search(ctx context.Context, query string, k int) (index.RetrievalResult, error)
	Available() bool
}

type AnalyzerConfig struct {
	K                   int
	SimilarityThreshold float64
	MaxConcurrency      int
	JudgeTimeout        time.Duration
}

// Analyzer runs the retrieval-augmented classification pipeline.
type Analyzer struct {
	examples   ExampleSearcher
	classifier Classifier
	judge      Judge
	cfg        AnalyzerConfig
	logger     *zap.Logger
}

type preparedComment struct {
	prompt            string
	classifierSummary string
}

func NewAnalyzer(examples ExampleSearcher, classifier Classifier, judge Judge, cfg AnalyzerConfig, logger *zap.Logger) *Analyzer {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	return &Analyzer{
		examples:   examples,
		classifier: classifier,
		judge:      judge,
		cfg:        cfg,
		logger:     logger,
	}
}

// MissingCollaborators names every collaborator that is not ready, in a fixed order.
func (a *Analyzer) MissingCollaborators() []string {
	var missing []string
	if a.examples == nil || !a.examples.Available() {
		missing = append(missing, "example store")
	}
	if a.classifier == nil || !a.classifier.Ready() {
		missing = append(missing, "auxiliary classifier")
	}
	if a.judge == nil {
		missing = append(missing, "judgment model")
	}
	return missing
}

func (a *Analyzer) Ready() bool {
	return len(a.MissingCollaborators()) == 0
}

func unavailableRationale(missing []string) string {
	return "분석기 초기화 실패. 누락된 구성 요소: " + strings.Join(missing, ", ")
}

// AnalyzeOne classifies a single comment. Failures become an Errored result.
func (a *Analyzer) AnalyzeOne(ctx context.Context, comment string) (result AnalysisResult) {
	if missing := a.MissingCollaborators(); len(missing) > 0 {
		a.logger.Error("Analyzer not ready", zap.Strings("missing", missing))
		return errorResult(unavailableRationale(missing), "")
	}

	var classifierSummary string
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Panic during analysis", zap.Any("panic", r), zap.String("comment", truncate(comment, 50)))
			result = errorResult(fmt.Sprintf("분석 중 오류 발생: %v", r), classifierSummary)
		}
	}()

	prepared, failed := a.prepare(ctx, comment)
	if failed != nil {
		return *failed
	}
	classifierSummary = prepared.classifierSummary

	raw, err := a.callJudge(ctx, prepared.prompt)
	if err != nil {
		a.logger.Error("Judgment call failed", zap.String("comment", truncate(comment, 50)), zap.Error(err))
		return errorResult(fmt.Sprintf("분석 중 오류 발생: %v", err), classifierSummary)
	}
	return a.finish(comment, raw, classifierSummary)
}

// AnalyzeBatch classifies comments with at most maxConcurrency judgment calls in
// flight. Results are in input order. If the judgment service reports itself
// unavailable mid-batch every element becomes Errored.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, comments []string, maxConcurrency int) []AnalysisResult {
	results := make([]AnalysisResult, len(comments))
	if len(comments) == 0 {
		return results
	}
	if missing := a.MissingCollaborators(); len(missing) > 0 {
		a.logger.Error("Analyzer not ready for batch", zap.Strings("missing", missing))
		for i := range results {
			results[i] = errorResult(unavailableRationale(missing), "")
		}
		return results
	}
	if maxConcurrency <= 0 {
		maxConcurrency = a.cfg.MaxConcurrency
	}

	a.logger.Info("Starting batch analysis", zap.Int("comments", len(comments)), zap.Int("max_concurrency", maxConcurrency))

	prepared := make([]*preparedComment, len(comments))
	summaries := make([]string, len(comments))
	for i, comment := range comments {
		p, failed := a.safePrepare(ctx, comment)
		if failed != nil {
			results[i] = *failed
			summaries[i] = failed.ClassifierContext
			continue
		}
		prepared[i] = p
		summaries[i] = p.classifierSummary
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)
	for i, p := range prepared {
		if p == nil {
			continue
		}
		i, p := i, p
		g.Go(func() error {
			raw, err := a.safeJudge(gctx, p.prompt)
			if err != nil {
				if errors.Is(err, ErrCollaboratorUnavailable) {
					return err
				}
				a.logger.Error("Judgment call failed in batch", zap.Int("index", i), zap.Error(err))
				results[i] = errorResult(fmt.Sprintf("분석 중 오류 발생: %v", err), p.classifierSummary)
				return nil
			}
			results[i] = a.finish(comments[i], raw, p.classifierSummary)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		a.logger.Error("Batch judgment failed", zap.Error(err))
		rationale := fmt.Sprintf("배치 처리 중 오류 발생: %v", err)
		for i := range results {
			results[i] = errorResult(rationale, summaries[i])
		}
		return results
	}

	a.logger.Info("Batch analysis finished", zap.Int("comments", len(comments)))
	return results
}

func (a *Analyzer) safePrepare(ctx context.Context, comment string) (p *preparedComment, failed *AnalysisResult) {
	defer func() {
		if r := recover(); r != nil {
			res := errorResult(fmt.Sprintf("분석 중 오류 발생: %v", r), "")
			p, failed = nil, &res
		}
	}()
	return a.prepare(ctx, comment)
}

func (a *Analyzer) safeJudge(ctx context.Context, prompt string) (raw string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("judgment call panicked: %v", r)
		}
	}()
	return a.callJudge(ctx, prompt)
}

// prepare computes classifier context, retrieves examples and assembles the prompt.
func (a *Analyzer) prepare(ctx context.Context, comment string) (*preparedComment, *AnalysisResult) {
	if strings.TrimSpace(comment) == "" {
		res := errorResult("Invalid or missing text field", "")
		return nil, &res
	}

	cc := a.classifier.Classify(ctx, comment)
	include := cc.Include()

	examples := a.retrieve(ctx, comment)

	a.logger.Debug("Assembling prompt",
		zap.String("comment", truncate(comment, 30)),
		zap.Bool("include_classifier", include),
		zap.Int("examples", len(examples)))

	prompt := AssemblePrompt(PromptInput{
		Comment:           comment,
		Examples:          examples,
		IncludeClassifier: include,
		ClassifierSummary: cc.Summary,
	})
	return &preparedComment{prompt: prompt, classifierSummary: cc.Summary}, nil
}

// retrieve degrades to no examples on any store failure.
func (a *Analyzer) retrieve(ctx context.Context, comment string) []index.Example {
	results, err := a.examples.Search(ctx, comment, a.cfg.K)
	if err != nil {
		a.logger.Warn("Example retrieval failed, proceeding without examples",
			zap.Error(fmt.Errorf("%w: %v", ErrRetrieval, err)))
		return nil
	}
	return index.FilterByThreshold(results, a.cfg.SimilarityThreshold).Examples()
}

func (a *Analyzer) callJudge(ctx context.Context, prompt string) (string, error) {
	if a.cfg.JudgeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.JudgeTimeout)
		defer cancel()
	}
	return a.judge.Judge(ctx, prompt)
}

func (a *Analyzer) finish(comment, raw, classifierSummary string) AnalysisResult {
	classification, rationale := ParseJudgment(raw)
	a.logger.Info("Comment analyzed",
		zap.String("comment", truncate(comment, 50)),
		zap.String("classification", string(classification)),
		zap.String("reason", truncate(rationale, 50)))
	return AnalysisResult{
		Classification:    classification,
		Rationale:         rationale,
		RawModelOutput:    raw,
		ClassifierContext: classifierSummary,
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
