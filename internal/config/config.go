// Package config loads configuration from environment variables and .env files.
package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the EchoSage service.
type Config struct {
	// Server
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Index persistence
	DataDir   string `env:"DATA_DIR" envDefault:"./data"`
	BlobStore string `env:"BLOB_STORE" envDefault:"bolt"` // bolt or file

	// Document registry; in-memory when empty
	DatabaseURL string `env:"DATABASE_URL"`

	// Embedding service; deterministic hash embedder when URL is empty
	EmbeddingURL       string `env:"EMBEDDING_URL"`
	EmbeddingAPIKey    string `env:"EMBEDDING_API_KEY"`
	EmbeddingModel     string `env:"EMBEDDING_MODEL" envDefault:"embedding-2"`
	EmbeddingDimension int    `env:"EMBEDDING_DIMENSION" envDefault:"1024"`

	// Generation service
	LLMURL    string `env:"LLM_URL"`
	LLMAPIKey string `env:"LLM_API_KEY"`
	LLMModel  string `env:"LLM_MODEL" envDefault:"glm-4"`

	// Retrieval
	TopK int `env:"TOP_K" envDefault:"5"`

	// Segmentation
	SegmentStrategy string `env:"SEGMENT_STRATEGY" envDefault:"sentence"`
	SegmentTarget   int    `env:"SEGMENT_TARGET_WORDS" envDefault:"256"`
	SegmentMax      int    `env:"SEGMENT_MAX_WORDS" envDefault:"512"`
	SegmentOverlap  int    `env:"SEGMENT_OVERLAP_WORDS" envDefault:"32"`

	// Auth
	JWTSecret string        `env:"JWT_SECRET" envDefault:"change-this-in-production"`
	JWTExpiry time.Duration `env:"JWT_EXPIRY" envDefault:"24h"`
}

// Load loads configuration from .env file (if present) and environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
