package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	LLMBaseURL         string
	LLMModelName       string
	LLMAPIKey          string
	EmbeddingBaseURL   string
	EmbeddingModelName string
	DBPath             string
	QdrantURL          string
	QdrantCollection   string
	QdrantVectorSize   int
	APIPort            string
	AdminToken         string
	LogLevel           slog.Level
	LogFormat          string

	// Retrieval tuning. Zero values fall back to the pipeline defaults.
	MinSimilarity     float64
	FetchK            int
	MaxChunks         int
	MaxVariants       int
	StitchWindow      int
	ContextCharBudget int
	CoverageMaxPasses int
	CoverageExtraK    int
	VectorWeight      float64
	KeywordWeight     float64
	MultiQueryBoost   float64
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or project root, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	// Try the current directory first, then walk up toward the project root.
	_ = godotenv.Load()
	if wd, err := os.Getwd(); err == nil {
		dir := wd
		for i := 0; i < 5; i++ {
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	cfg := &Config{
		LLMBaseURL:         getEnv("LLM_BASE_URL", "http://localhost:8080"),
		LLMModelName:       getEnv("LLM_MODEL", "Llama-3.1-8B-Instruct"),
		LLMAPIKey:          getEnv("LLM_API_KEY", "dummy-key"),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "granite-embedding-278m-multilingual"),
		DBPath:             getEnv("DB_PATH", "./data/juris-ai.db"),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "legal_chunks"),
		APIPort:            getEnv("API_PORT", "9000"),
		AdminToken:         getEnv("ADMIN_TOKEN", ""),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	switch strings.ToLower(getEnv("LOG_LEVEL", "info")) {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "info":
		cfg.LogLevel = slog.LevelInfo
	case "warn", "warning":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error")
	}

	// Must match the embeddings model's output dimension. If it changes,
	// the Qdrant collection has to be recreated.
	vectorSizeStr := getEnv("QDRANT_VECTOR_SIZE", "")
	if vectorSizeStr == "" {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE is required")
	}
	vectorSize, err := strconv.Atoi(vectorSizeStr)
	if err != nil {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be a valid integer: %w", err)
	}
	if vectorSize <= 0 {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be greater than 0")
	}
	cfg.QdrantVectorSize = vectorSize

	if cfg.MinSimilarity, err = getEnvFloat("MIN_SIMILARITY", 0.25); err != nil {
		return nil, err
	}
	if cfg.MinSimilarity < 0 || cfg.MinSimilarity > 1 {
		return nil, fmt.Errorf("MIN_SIMILARITY must be between 0 and 1")
	}
	if cfg.FetchK, err = getEnvInt("FETCH_K", 50); err != nil {
		return nil, err
	}
	if cfg.MaxChunks, err = getEnvInt("MAX_CHUNKS", 12); err != nil {
		return nil, err
	}
	if cfg.MaxVariants, err = getEnvInt("MAX_VARIANTS", 12); err != nil {
		return nil, err
	}
	if cfg.StitchWindow, err = getEnvInt("STITCH_WINDOW", 1); err != nil {
		return nil, err
	}
	if cfg.ContextCharBudget, err = getEnvInt("CONTEXT_CHAR_BUDGET", 24000); err != nil {
		return nil, err
	}
	if cfg.CoverageMaxPasses, err = getEnvInt("COVERAGE_MAX_PASSES", 2); err != nil {
		return nil, err
	}
	if cfg.CoverageExtraK, err = getEnvInt("COVERAGE_EXTRA_K", 4); err != nil {
		return nil, err
	}
	if cfg.VectorWeight, err = getEnvFloat("VECTOR_WEIGHT", 1.0); err != nil {
		return nil, err
	}
	if cfg.KeywordWeight, err = getEnvFloat("KEYWORD_WEIGHT", 0.8); err != nil {
		return nil, err
	}
	if cfg.MultiQueryBoost, err = getEnvFloat("MULTI_QUERY_BOOST", 0.012); err != nil {
		return nil, err
	}

	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid number: %w", key, err)
	}
	return f, nil
}
