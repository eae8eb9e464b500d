package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.FewShotK)
	assert.Equal(t, 0.2, cfg.SimilarityThreshold)
	assert.Equal(t, 0.4, cfg.ClassifierThreshold)
	assert.Equal(t, 10, cfg.ReportThreshold)
	assert.Equal(t, 5, cfg.MaxConcurrency)
	assert.Equal(t, 30*time.Second, cfg.JudgeTimeout)
	assert.True(t, cfg.BuildIndexOnStart)
	assert.Equal(t, "INFO", cfg.LogLevel)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("FEW_SHOT_K", "3")
	t.Setenv("SIMILARITY_THRESHOLD", "0.55")
	t.Setenv("JUDGE_TIMEOUT", "5s")
	t.Setenv("BUILD_INDEX_ON_START", "false")
	t.Setenv("CLASSIFIER_URL", "http://classifier:9000/")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.FewShotK)
	assert.Equal(t, 0.55, cfg.SimilarityThreshold)
	assert.Equal(t, 5*time.Second, cfg.JudgeTimeout)
	assert.False(t, cfg.BuildIndexOnStart)
	assert.Equal(t, "http://classifier:9000", cfg.ClassifierURL)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
}

func TestLoadConfigRequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	base := Config{GeminiAPIKey: "k", FewShotK: 1, MaxConcurrency: 1, ReportThreshold: 10}

	bad := base
	bad.SimilarityThreshold = 1.5
	assert.Error(t, bad.Validate())

	bad = base
	bad.MaxConcurrency = 0
	assert.Error(t, bad.Validate())

	bad = base
	bad.ReportThreshold = -1
	assert.Error(t, bad.Validate())

	assert.NoError(t, base.Validate())
}
