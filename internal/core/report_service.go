package core

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

type ReportOutcome struct {
	Count     int
	Triggered bool
	Run       *WorkflowRun
	// WorkflowErr is set when the triggered update stopped early; the report itself was stored.
	WorkflowErr error
}

// ReportService records community reports and starts the corpus update on the
// report that brings a word's count to exactly the threshold.
type ReportService struct {
	reports   ReportRepository
	updater   *CorpusUpdater
	threshold int
	logger    *zap.Logger
}

func NewReportService(reports ReportRepository, updater *CorpusUpdater, threshold int, logger *zap.Logger) *ReportService {
	return &ReportService{
		reports:   reports,
		updater:   updater,
		threshold: threshold,
		logger:    logger,
	}
}

func (s *ReportService) Submit(ctx context.Context, word, reason string) (ReportOutcome, error) {
	word = strings.TrimSpace(word)
	reason = strings.TrimSpace(reason)
	if word == "" || reason == "" {
		return ReportOutcome{}, fmt.Errorf("%w: word and reason are required", ErrValidation)
	}

	_, count, err := s.reports.AddReport(ctx, word, reason)
	if err != nil {
		return ReportOutcome{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	s.logger.Info("Word reported", zap.String("word", word), zap.Int("count", count))

	outcome := ReportOutcome{Count: count}
	if count != s.threshold {
		return outcome, nil
	}

	outcome.Triggered = true
	s.logger.Info("Report threshold reached, updating corpus", zap.String("word", word), zap.Int("threshold", s.threshold))
	// the client leaving must not abort a half-finished update
	run, werr := s.updater.Run(context.WithoutCancel(ctx), word)
	outcome.Run = run
	outcome.WorkflowErr = werr
	return outcome, nil
}
