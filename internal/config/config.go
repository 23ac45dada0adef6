package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Neo4j graph store
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	// HTTP server
	Port        string
	GinMode     string
	CORSOrigins []string
	MaxFileSize int64

	// Gemini (completion + embeddings). An empty key puts the system in
	// embedding-degraded mode; it is not a startup error.
	GeminiAPIKey    string
	GeminiModel     string
	GeminiTier      string
	EmbeddingsModel string

	// Chunking
	ChunkSize    int
	ChunkOverlap int

	// Vector index over Chunk nodes
	VectorIndexName  string
	VectorDimensions int

	// Retrieval and answer synthesis
	PerFileChunkCap   int
	GlobalChunkCap    int
	SimilarityTopK    int
	MinSimilarity     float64
	MaxContextChars   int
	AnswerMaxTokens   int32
	AnswerCacheTTLSec int

	// URL ingestion
	URLMaxSizeMB int

	// OCR collaborator for image uploads
	OCRServiceURL     string
	OCRServiceEnabled bool

	// Redis (asynq queue + answer cache)
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// OpenTelemetry
	TracingEnabled bool
	OTLPEndpoint   string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Neo4jURI:      getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:     getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword: getEnv("NEO4J_PASS", ""),
		Neo4jDatabase: getEnv("NEO4J_DATABASE", "neo4j"),

		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),
		MaxFileSize: getEnvInt64("MAX_FILE_SIZE", 104857600), // 100MB upload cap

		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiTier:      getEnv("GEMINI_TIER", "free"),
		EmbeddingsModel: getEnv("EMBEDDINGS_MODEL", "text-embedding-004"),

		ChunkSize:    getEnvInt("CHUNK_SIZE", 2000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 400),

		VectorIndexName:  getEnv("VECTOR_INDEX_NAME", "pdf_chunks"),
		VectorDimensions: getEnvInt("VECTOR_DIM", 1536),

		PerFileChunkCap:   getEnvInt("PER_FILE_CHUNK_CAP", 5),
		GlobalChunkCap:    getEnvInt("GLOBAL_CHUNK_CAP", 10),
		SimilarityTopK:    getEnvInt("SIMILARITY_TOP_K", 5),
		MinSimilarity:     getEnvFloat64("MIN_SIMILARITY", 0.7),
		MaxContextChars:   getEnvInt("MAX_CONTEXT_CHARS", 16000),
		AnswerMaxTokens:   int32(getEnvInt("ANSWER_MAX_TOKENS", 2000)),
		AnswerCacheTTLSec: getEnvInt("ANSWER_CACHE_TTL", 3600),

		URLMaxSizeMB: getEnvInt("URL_MAX_SIZE_MB", 100),

		OCRServiceURL:     getEnv("OCR_SERVICE_URL", "http://localhost:8001"),
		OCRServiceEnabled: getEnvBool("OCR_SERVICE_ENABLED", true),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", "localhost:4317"),
	}

	// Validate required fields
	if cfg.Neo4jURI == "" {
		return nil, fmt.Errorf("NEO4J_URI is required - set it in .env file")
	}

	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
