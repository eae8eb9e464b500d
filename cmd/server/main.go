package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"hatedog.dev/hate-filter/internal/api"
	"hatedog.dev/hate-filter/internal/auth"
	"hatedog.dev/hate-filter/internal/config"
	"hatedog.dev/hate-filter/internal/core"
	"hatedog.dev/hate-filter/internal/corpus"
	"hatedog.dev/hate-filter/internal/index"
	"hatedog.dev/hate-filter/internal/store"
)

// delay between embedding calls so a full rebuild stays under 1500 requests/min
const ingestPace = 40 * time.Millisecond

func main() {
	ingest := flag.Bool("ingest", false, "Rebuild the example index from the corpus CSV and exit")
	adminToken := flag.String("admin-token", "", "Print a signed admin token for the given subject and exit")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if *adminToken != "" {
		token, err := auth.GenerateAdminToken(cfg.JWTSecret, *adminToken)
		if err != nil {
			logger.Fatal("Failed to generate admin token", zap.Error(err))
		}
		fmt.Println(token)
		return
	}

	ctx := context.Background()

	reportStore, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to initialize report database", zap.Error(err))
	}
	defer reportStore.Close()

	llmService, err := core.NewLLMService(ctx, core.LLMConfig{
		APIKey:          cfg.GeminiAPIKey,
		JudgeModel:      cfg.JudgeModel,
		GenerationModel: cfg.GenerationModel,
		EmbeddingModel:  cfg.EmbeddingModel,
		MaxNewTokens:    cfg.MaxNewTokens,
		Temperature:     cfg.Temperature,
		TopP:            cfg.TopP,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize LLM service", zap.Error(err))
	}
	defer llmService.Close()

	corpusFile := corpus.NewFile(cfg.CSVFilePath)

	examples, err := index.Load(cfg.IndexDir, llmService, logger)
	if err != nil {
		logger.Error("Saved example index is unreadable; analysis stays unavailable until rebuilt with -ingest",
			zap.String("dir", cfg.IndexDir), zap.Error(err))
	}
	defer examples.Close()

	if *ingest {
		n, err := buildIndex(ctx, examples, corpusFile, logger)
		if err != nil {
			logger.Fatal("Index ingestion failed", zap.Error(err))
		}
		logger.Info("Index ingestion complete. Exiting.", zap.Int("examples", n))
		return
	}
	if err == nil && !examples.Available() && cfg.BuildIndexOnStart {
		if _, err := buildIndex(ctx, examples, corpusFile, logger); err != nil {
			logger.Error("Failed to build example index from corpus", zap.Error(err))
		}
	}

	classifier := core.NewClassifierClient(cfg.ClassifierURL, cfg.ClassifierThreshold, cfg.ClassifierTimeout, logger)
	healthCtx, cancelHealth := context.WithTimeout(ctx, cfg.ClassifierTimeout)
	if err := classifier.Health(healthCtx); err != nil {
		logger.Warn("Auxiliary classifier is not answering; analysis continues without it", zap.Error(err))
	}
	cancelHealth()

	analyzer := core.NewAnalyzer(examples, classifier, llmService, core.AnalyzerConfig{
		K:                   cfg.FewShotK,
		SimilarityThreshold: cfg.SimilarityThreshold,
		MaxConcurrency:      cfg.MaxConcurrency,
		JudgeTimeout:        cfg.JudgeTimeout,
	}, logger)
	if missing := analyzer.MissingCollaborators(); len(missing) > 0 {
		logger.Warn("Analyzer starting degraded", zap.Strings("missing", missing))
	}

	updater := core.NewCorpusUpdater(reportStore, llmService, corpusFile, examples, cfg.GenerationTimeout, logger)
	reporter := core.NewReportService(reportStore, updater, cfg.ReportThreshold, logger)

	apiHandler := api.NewAPIHandler(api.HandlerDeps{
		Analyzer:       analyzer,
		Reporter:       reporter,
		Index:          examples,
		Reports:        reportStore,
		JWTSecret:      cfg.JWTSecret,
		MaxConcurrency: cfg.MaxConcurrency,
		Logger:         logger,
	})
	router := api.NewRouter(apiHandler)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // a triggering report runs the whole corpus update inline
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("Starting server. Press Ctrl+C to quit.", zap.String("addr", serverAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Could not listen", zap.String("addr", serverAddr), zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exiting gracefully")
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "DEBUG" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func buildIndex(ctx context.Context, examples *index.Store, corpusFile *corpus.File, logger *zap.Logger) (int, error) {
	entries, err := corpusFile.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("failed to read corpus %s: %w", corpusFile.Path(), err)
	}
	if len(entries) == 0 {
		return 0, fmt.Errorf("corpus %s has no usable rows", corpusFile.Path())
	}

	logger.Info("Embedding corpus (this may take a while)...", zap.Int("rows", len(entries)))
	rows := make([]index.Example, len(entries))
	for i, e := range entries {
		rows[i] = index.Example{Text: e.ExampleText, Category: e.Category, Rationale: e.Rationale, Label: e.Label}
	}
	return examples.Build(ctx, rows, ingestPace)
}
