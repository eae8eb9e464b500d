package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ClassifierLabels is the output order of the fine-tuned multi-label model.
var ClassifierLabels = []string{"출신차별", "외모차별", "정치성향차별", "욕설", "연령차별", "성차별", "인종차별", "종교차별"}

const ClassifierUnavailableSummary = "[보조 분류기 로드 실패]"

// Classifier produces the auxiliary per-category context for a text.
type Classifier interface {
	Classify(ctx context.Context, text string) ClassifierContext
	Ready() bool
}

// ClassifierClient calls the inference service hosting the multi-label encoder.
type ClassifierClient struct {
	baseURL    string
	httpClient *http.Client
	threshold  float64
	timeout    time.Duration
	logger     *zap.Logger
}

type predictRequest struct {
	Text string `json:"text"`
}

type predictResponse struct {
	Probabilities []float64 `json:"probabilities"`
}

const defaultClassifierTimeout = 10 * time.Second

// NewClassifierClient uses timeout for every request; zero or negative falls back to 10s.
func NewClassifierClient(baseURL string, threshold float64, timeout time.Duration, logger *zap.Logger) *ClassifierClient {
	if timeout <= 0 {
		timeout = defaultClassifierTimeout
	}
	return &ClassifierClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		threshold:  threshold,
		timeout:    timeout,
		logger:     logger,
	}
}

func (c *ClassifierClient) Ready() bool {
	return c != nil && c.baseURL != ""
}

// Health checks that the inference service is answering.
func (c *ClassifierClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("classifier health request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("classifier health returned status %d", resp.StatusCode)
	}
	return nil
}

// Classify never fails: transport or decoding problems yield an unavailable context.
func (c *ClassifierClient) Classify(ctx context.Context, text string) ClassifierContext {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	probs, err := c.predict(ctx, text)
	if err != nil {
		c.logger.Warn("Auxiliary classifier unavailable", zap.Error(err))
		return ClassifierContext{Summary: ClassifierUnavailableSummary}
	}
	return BuildClassifierContext(text, probs, c.threshold)
}

func (c *ClassifierClient) predict(ctx context.Context, text string) ([]float64, error) {
	jsonData, err := json.Marshal(predictRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier returned status %d: %s", resp.StatusCode, string(body))
	}

	var result predictResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(result.Probabilities) != len(ClassifierLabels) {
		return nil, fmt.Errorf("classifier returned %d probabilities, want %d", len(result.Probabilities), len(ClassifierLabels))
	}
	return result.Probabilities, nil
}

// BuildClassifierContext applies threshold (inclusive) to probs and renders the summary.
func BuildClassifierContext(text string, probs []float64, threshold float64) ClassifierContext {
	cc := ClassifierContext{
		Probabilities: make(map[string]float64, len(ClassifierLabels)),
		Available:     true,
	}

	lines := []string{fmt.Sprintf("입력 문장: %q", text), "카테고리별 확률:"}
	for i, label := range ClassifierLabels {
		if i >= len(probs) {
			break
		}
		p := probs[i]
		cc.Probabilities[label] = p
		lines = append(lines, fmt.Sprintf(" - %-10s: %.3f", label, p))
		if p >= threshold {
			cc.Active = append(cc.Active, label)
		}
	}

	if len(cc.Active) == 0 {
		lines = append(lines, fmt.Sprintf("판단 유보: 어떤 혐오 카테고리도 threshold(%g)를 넘지 않음.", threshold))
	} else {
		lines = append(lines, "혐오 탐지됨! 속성: "+strings.Join(cc.Active, ", "))
	}
	cc.Summary = strings.Join(lines, "\n")
	return cc
}
