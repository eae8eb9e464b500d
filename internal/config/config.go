package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	GeminiAPIKey    string
	JudgeModel      string
	GenerationModel string
	EmbeddingModel  string
	ClassifierURL   string

	DatabaseURL string
	CSVFilePath string
	IndexDir    string

	HTTPPort  string
	LogLevel  string
	JWTSecret string

	FewShotK            int
	SimilarityThreshold float64
	ClassifierThreshold float64
	MaxNewTokens        int
	Temperature         float64
	TopP                float64
	MaxConcurrency      int
	ReportThreshold     int

	ClassifierTimeout time.Duration
	JudgeTimeout      time.Duration
	GenerationTimeout time.Duration

	BuildIndexOnStart bool
}

func LoadConfig() (Config, error) {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := Config{
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		JudgeModel:      getEnv("JUDGE_MODEL", "gemini-1.5-flash-latest"),
		GenerationModel: getEnv("GENERATION_MODEL", "gemini-1.5-pro-latest"),
		EmbeddingModel:  getEnv("EMBEDDING_MODEL", "text-embedding-004"),
		ClassifierURL:   strings.TrimRight(getEnv("CLASSIFIER_URL", "http://localhost:8000"), "/"),

		DatabaseURL: getEnv("DATABASE_URL", "reports.db"),
		CSVFilePath: getEnv("CSV_FILE_PATH", "data/mz_hate_speech.csv"),
		IndexDir:    getEnv("INDEX_DIR", "faissDB_clovax"),

		HTTPPort:  getEnv("HTTP_PORT", "5000"),
		LogLevel:  strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),
		JWTSecret: getEnv("JWT_SECRET", ""),

		FewShotK:            getEnvAsInt("FEW_SHOT_K", 1),
		SimilarityThreshold: getEnvAsFloat("SIMILARITY_THRESHOLD", 0.2),
		ClassifierThreshold: getEnvAsFloat("CLASSIFIER_THRESHOLD", 0.4),
		MaxNewTokens:        getEnvAsInt("MAX_NEW_TOKENS", 50),
		Temperature:         getEnvAsFloat("TEMPERATURE", 0.1),
		TopP:                getEnvAsFloat("TOP_P", 0.9),
		MaxConcurrency:      getEnvAsInt("MAX_CONCURRENCY", 5),
		ReportThreshold:     getEnvAsInt("REPORT_THRESHOLD", 10),

		ClassifierTimeout: getEnvAsDuration("CLASSIFIER_TIMEOUT", 10*time.Second),
		JudgeTimeout:      getEnvAsDuration("JUDGE_TIMEOUT", 30*time.Second),
		GenerationTimeout: getEnvAsDuration("GENERATION_TIMEOUT", 60*time.Second),

		BuildIndexOnStart: getEnvAsBool("BUILD_INDEX_ON_START", true),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first setting that would make the service misbehave.
func (c Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}
	if c.FewShotK <= 0 {
		return fmt.Errorf("FEW_SHOT_K must be positive, got %d", c.FewShotK)
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("MAX_CONCURRENCY must be positive, got %d", c.MaxConcurrency)
	}
	if c.ReportThreshold <= 0 {
		return fmt.Errorf("REPORT_THRESHOLD must be positive, got %d", c.ReportThreshold)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be within [0,1], got %g", c.SimilarityThreshold)
	}
	if c.ClassifierThreshold < 0 || c.ClassifierThreshold > 1 {
		return fmt.Errorf("CLASSIFIER_THRESHOLD must be within [0,1], got %g", c.ClassifierThreshold)
	}
	return nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
