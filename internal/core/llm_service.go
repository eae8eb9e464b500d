package core

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const (
	judgeSystemInstruction = "You classify Korean comments for a moderation service. " +
		"Answer only in the two-line format requested by the user prompt, in Korean."

	generationSystemInstruction = "You maintain a Korean hate-speech example corpus. " +
		"Reply with exactly one CSV line and nothing else."

	generationTemperature = float32(0.3)
	generationMaxTokens   = int32(256)
)

// Judge sends an assembled prompt to the judgment model.
type Judge interface {
	Judge(ctx context.Context, prompt string) (string, error)
}

// Generator asks a generation model for free text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type LLMConfig struct {
	APIKey          string
	JudgeModel      string
	GenerationModel string
	EmbeddingModel  string
	MaxNewTokens    int
	Temperature     float64
	TopP            float64
}

// LLMService wraps one Gemini client for judgment, generation and embeddings.
type LLMService struct {
	client *genai.Client
	cfg    LLMConfig
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
}

func NewLLMService(ctx context.Context, cfg LLMConfig, logger *zap.Logger) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key is required", ErrCollaboratorUnavailable)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	logger.Info("GenAI client initialized",
		zap.String("judge_model", cfg.JudgeModel),
		zap.String("generation_model", cfg.GenerationModel),
		zap.String("embedding_model", cfg.EmbeddingModel))

	return &LLMService{client: client, cfg: cfg, logger: logger}, nil
}

func (s *LLMService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.client == nil {
		return
	}
	s.closed = true
	if err := s.client.Close(); err != nil {
		s.logger.Warn("Error closing GenAI client", zap.Error(err))
	} else {
		s.logger.Info("GenAI client closed.")
	}
}

func (s *LLMService) usable() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.client == nil {
		return fmt.Errorf("%w: GenAI client closed", ErrCollaboratorUnavailable)
	}
	return nil
}

func (s *LLMService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}
	em := s.client.EmbeddingModel(s.cfg.EmbeddingModel)
	em.TaskType = genai.TaskTypeSemanticSimilarity
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request failed: %w", err)
	}

	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding data received from gemini")
	}
	return res.Embedding.Values, nil
}

func (s *LLMService) Judge(ctx context.Context, prompt string) (string, error) {
	if err := s.usable(); err != nil {
		return "", err
	}
	model := s.client.GenerativeModel(s.cfg.JudgeModel)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(judgeSystemInstruction)},
	}

	temp := float32(s.cfg.Temperature)
	topP := float32(s.cfg.TopP)
	maxTokens := int32(s.cfg.MaxNewTokens)
	model.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: &maxTokens,
		Temperature:     &temp,
		TopP:            &topP,
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini judgment request failed: %w", err)
	}
	return responseText(resp)
}

func (s *LLMService) Generate(ctx context.Context, prompt string) (string, error) {
	if err := s.usable(); err != nil {
		return "", err
	}
	model := s.client.GenerativeModel(s.cfg.GenerationModel)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(generationSystemInstruction)},
	}

	temp := generationTemperature
	maxTokens := generationMaxTokens
	model.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: &maxTokens,
		Temperature:     &temp,
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation request failed: %w", err)
	}
	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini response was empty or had no valid candidates")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("gemini response contained no text parts")
	}
	return text.String(), nil
}
