package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"hatedog.dev/hate-filter/internal/corpus"
	"hatedog.dev/hate-filter/internal/index"
	"hatedog.dev/hate-filter/internal/store"
)

type WorkflowState string

const (
	StateCollecting WorkflowState = "COLLECTING"
	StateTriggered  WorkflowState = "TRIGGERED"
	StateGenerating WorkflowState = "GENERATING"
	StateAppended   WorkflowState = "APPENDED"
	StateIndexed    WorkflowState = "INDEXED"
	StateCleared    WorkflowState = "CLEARED"
)

// KnownCategories are offered to the generation model.
var KnownCategories = []string{"정치", "게임", "젠더", "인종", "기타 (계층/직업)", "기타 (일반)"}

type ReportRepository interface {
	AddReport(ctx context.Context, word, reason string) (*store.Report, int, error)
	ReasonsForWord(ctx context.Context, word string) ([]string, error)
	DeleteReports(ctx context.Context, word string) (int64, error)
}

type CorpusAppender interface {
	Append(entry corpus.Entry) error
	Contains(text string) (bool, error)
}

// ExampleInserter adds one example and persists the index as a single unit.
type ExampleInserter interface {
	Insert(ctx context.Context, ex index.Example) error
}

type WorkflowRun struct {
	ID    string
	Word  string
	State WorkflowState
	Entry *corpus.Entry
}

// CorpusUpdater turns a word's accumulated reports into a new corpus entry.
type CorpusUpdater struct {
	reports           ReportRepository
	generator         Generator
	corpus            CorpusAppender
	examples          ExampleInserter
	generationTimeout time.Duration
	logger            *zap.Logger
}

func NewCorpusUpdater(reports ReportRepository, generator Generator, corpusFile CorpusAppender, examples ExampleInserter, generationTimeout time.Duration, logger *zap.Logger) *CorpusUpdater {
	return &CorpusUpdater{
		reports:           reports,
		generator:         generator,
		corpus:            corpusFile,
		examples:          examples,
		generationTimeout: generationTimeout,
		logger:            logger,
	}
}

// Run drives one triggered word to CLEARED. It stops at the first failure and
// returns a *WorkflowError; completed steps are left in place.
func (u *CorpusUpdater) Run(ctx context.Context, word string) (*WorkflowRun, error) {
	run := &WorkflowRun{ID: uuid.NewString(), Word: word, State: StateTriggered}
	logger := u.logger.With(zap.String("run_id", run.ID), zap.String("word", word))
	logger.Info("Corpus update started")

	fail := func(next WorkflowState, err error) (*WorkflowRun, error) {
		werr := &WorkflowError{Word: word, LastCompleted: run.State, Failed: next, Err: err}
		logger.Error("Corpus update halted",
			zap.String("last_completed", string(run.State)),
			zap.String("failed", string(next)),
			zap.Error(err))
		return run, werr
	}

	reasons, err := u.reports.ReasonsForWord(ctx, word)
	if err != nil {
		return fail(StateGenerating, fmt.Errorf("%w: %v", ErrPersistence, err))
	}
	if len(reasons) == 0 {
		return fail(StateGenerating, fmt.Errorf("%w: no report reasons for %q", ErrGeneration, word))
	}

	entry, err := u.generate(ctx, word, reasons, logger)
	if err != nil {
		return fail(StateGenerating, err)
	}
	run.Entry = &entry
	run.State = StateGenerating

	if dup, err := u.corpus.Contains(entry.ExampleText); err != nil {
		logger.Warn("Could not check corpus for an existing entry", zap.Error(err))
	} else if dup {
		logger.Warn("Corpus already contains this word; appending another entry")
	}

	if err := u.corpus.Append(entry); err != nil {
		return fail(StateAppended, fmt.Errorf("%w: %v", ErrPersistence, err))
	}
	run.State = StateAppended
	logger.Info("Corpus entry appended", zap.String("category", entry.Category))

	ex := index.Example{Text: entry.ExampleText, Category: entry.Category, Rationale: entry.Rationale, Label: entry.Label}
	if err := u.examples.Insert(ctx, ex); err != nil {
		return fail(StateIndexed, fmt.Errorf("%w: %v", ErrPersistence, err))
	}
	run.State = StateIndexed

	deleted, err := u.reports.DeleteReports(ctx, word)
	if err != nil {
		return fail(StateCleared, fmt.Errorf("%w: %v", ErrPersistence, err))
	}
	run.State = StateCleared
	logger.Info("Corpus update completed", zap.Int64("reports_cleared", deleted))
	return run, nil
}

func (u *CorpusUpdater) generate(ctx context.Context, word string, reasons []string, logger *zap.Logger) (corpus.Entry, error) {
	if u.generator == nil {
		return corpus.Entry{}, fmt.Errorf("%w: %w: generation model", ErrGeneration, ErrCollaboratorUnavailable)
	}
	if u.generationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.generationTimeout)
		defer cancel()
	}

	prompt := BuildGenerationPrompt(word, reasons)
	logger.Debug("Requesting corpus entry", zap.String("prompt", prompt))

	raw, err := u.generator.Generate(ctx, prompt)
	if err != nil {
		return corpus.Entry{}, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	logger.Info("Generation model responded", zap.String("response", strings.TrimSpace(raw)))

	entry, err := ParseGeneratedEntry(raw, word)
	if err != nil {
		return corpus.Entry{}, err
	}
	if entry.ExampleText != word {
		logger.Warn("Generated example differs from reported word, correcting",
			zap.String("generated", entry.ExampleText))
		entry.ExampleText = word
	}
	return entry, nil
}

// BuildGenerationPrompt asks for one `category,example,rationale` line.
func BuildGenerationPrompt(word string, reasons []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "다음은 사용자들이 '%s' 단어에 대해 신고한 내용과 그 사유들입니다.\n", word)
	b.WriteString("이 정보를 바탕으로 해당 단어가 어떤 범주의 혐오 표현인지, 어떤 맥락과 의미로 쓰이는지 정리하여 CSV 데이터를 한 줄 생성해 주세요.\n\n")
	fmt.Fprintf(&b, "[신고된 단어]: %s\n\n", word)
	b.WriteString("[신고 사유 목록]:\n")
	for _, r := range reasons {
		fmt.Fprintf(&b, "- %s\n", r)
	}
	b.WriteString("\n[출력 형식 (정확히 이 형식으로만 응답)]:\n")
	fmt.Fprintf(&b, "%s,%s,%s\n\n", corpus.ColumnCategory, corpus.ColumnExample, corpus.ColumnRationale)
	b.WriteString("[세부 지침]:\n")
	fmt.Fprintf(&b, "1. '%s'은 주어진 [신고된 단어]를 그대로 사용합니다.\n", corpus.ColumnExample)
	fmt.Fprintf(&b, "2. '%s'는 다음 중 가장 적절한 것을 고릅니다: %s. 적절한 항목이 없으면 '기타 (일반)'으로 지정하고 정의/맥락에 그 이유를 포함합니다.\n",
		corpus.ColumnCategory, strings.Join(KnownCategories, ", "))
	fmt.Fprintf(&b, "3. '%s'은 신고 사유를 종합해 이 단어가 왜 혐오 표현인지 한두 문장으로 간결하게 설명합니다.\n\n", corpus.ColumnRationale)
	b.WriteString("[생성된 CSV 데이터 (한 줄)]:\n")
	return b.String()
}

// ParseGeneratedEntry splits the first content line on at most two commas, so the
// rationale may itself contain commas. Exactly three fields are required.
func ParseGeneratedEntry(raw, word string) (corpus.Entry, error) {
	line := firstContentLine(raw)
	parts := strings.SplitN(line, ",", 3)
	if len(parts) != 3 {
		return corpus.Entry{}, fmt.Errorf("%w: expected 3 fields, got %d in %q", ErrGeneration, len(parts), line)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(strings.ReplaceAll(parts[i], `"`, ""))
	}
	return corpus.Entry{
		Category:    parts[0],
		ExampleText: parts[1],
		Rationale:   parts[2],
		Label:       corpus.LabelHateful,
	}, nil
}

func firstContentLine(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		return line
	}
	return ""
}
