package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Ollama  OllamaConfig
	Extract ExtractConfig
	Export  ExportConfig
	Runs    RunsConfig
	RAG     RAGConfig
	OpenAI  OpenAIConfig
}

// OllamaConfig holds settings for the local model-serving daemon.
type OllamaConfig struct {
	BaseURL     string
	VisionModel string
	ChatModel   string
	EmbedModel  string
	Timeout     time.Duration
}

// ExtractConfig holds settings for the extraction pipeline.
type ExtractConfig struct {
	DataDir     string
	OutputDir   string
	JPEGQuality int
}

// ExportConfig holds settings for table export.
type ExportConfig struct {
	Format string // "xlsx" or "csv"
}

// RunsConfig holds settings for the local run index.
type RunsConfig struct {
	DBPath string
}

// RAGConfig holds settings for the retrieval helper.
type RAGConfig struct {
	QdrantHost     string
	QdrantPort     int
	Collection     string
	VectorSize     int
	ChunkSize      int
	ChunkOverlap   int
	EmbedBatchSize int
	TopN           int
}

// OpenAIConfig holds settings for the OpenAI-compatible record formatter.
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Ollama: OllamaConfig{
			BaseURL:     getEnv("OLLAMA_URL", "http://localhost:11434"),
			VisionModel: getEnv("VISION_MODEL", "glm4v:9b"),
			ChatModel:   getEnv("CHAT_MODEL", "qwen2.5:14b"),
			EmbedModel:  getEnv("EMBED_MODEL", "nomic-embed-text"),
			Timeout:     getEnvAsDuration("OLLAMA_TIMEOUT", 120*time.Second),
		},
		Extract: ExtractConfig{
			DataDir:     getEnv("DATA_DIR", "./data"),
			OutputDir:   getEnv("OUTPUT_DIR", "./output"),
			JPEGQuality: getEnvAsInt("JPEG_QUALITY", 90),
		},
		Export: ExportConfig{
			Format: getEnv("EXPORT_FORMAT", "xlsx"),
		},
		Runs: RunsConfig{
			DBPath: getEnv("RUNS_DB_PATH", "./output/scantab.db"),
		},
		RAG: RAGConfig{
			QdrantHost:     getEnv("QDRANT_HOST", "localhost"),
			QdrantPort:     getEnvAsInt("QDRANT_PORT", 6334),
			Collection:     getEnv("RAG_COLLECTION", "corpus"),
			VectorSize:     getEnvAsInt("RAG_VECTOR_SIZE", 768),
			ChunkSize:      getEnvAsInt("RAG_CHUNK_SIZE", 3000),
			ChunkOverlap:   getEnvAsInt("RAG_CHUNK_OVERLAP", 300),
			EmbedBatchSize: getEnvAsInt("RAG_EMBED_BATCH", 32),
			TopN:           getEnvAsInt("RAG_TOP_N", 3),
		},
		OpenAI: OpenAIConfig{
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.3),
			MaxTokens:   getEnvAsInt("OPENAI_MAX_TOKENS", 2000),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Ollama.BaseURL == "" {
		return NewAppError("CONFIG_ERROR", "OLLAMA_URL is required", ErrInvalidInput)
	}
	if c.Extract.DataDir == "" {
		return NewAppError("CONFIG_ERROR", "DATA_DIR is required", ErrInvalidInput)
	}
	if c.Extract.OutputDir == "" {
		return NewAppError("CONFIG_ERROR", "OUTPUT_DIR is required", ErrInvalidInput)
	}
	if c.Export.Format != "xlsx" && c.Export.Format != "csv" {
		return NewAppError("CONFIG_ERROR", "EXPORT_FORMAT must be xlsx or csv", ErrInvalidInput)
	}
	if c.Extract.JPEGQuality < 1 || c.Extract.JPEGQuality > 100 {
		return NewAppError("CONFIG_ERROR", "JPEG_QUALITY must be between 1 and 100", ErrInvalidInput)
	}
	return nil
}

// ValidateRAG checks the subset of configuration the RAG binaries need.
func (c *Config) ValidateRAG() error {
	if c.RAG.QdrantHost == "" {
		return NewAppError("CONFIG_ERROR", "QDRANT_HOST is required", ErrInvalidInput)
	}
	if c.RAG.Collection == "" {
		return NewAppError("CONFIG_ERROR", "RAG_COLLECTION is required", ErrInvalidInput)
	}
	if c.RAG.ChunkSize <= c.RAG.ChunkOverlap {
		return NewAppError("CONFIG_ERROR", "RAG_CHUNK_SIZE must exceed RAG_CHUNK_OVERLAP", ErrInvalidInput)
	}
	return nil
}
