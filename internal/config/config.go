package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string
	MaxFileSize int64

	// MongoDB (document blob backend)
	MongoURI     string
	DBName       string
	MongoEnabled bool

	// Redis (key-value backend, version counter, vector chunks)
	RedisURL      string
	RedisPassword string
	RedisDB       int
	RedisEnabled  bool

	// Gemini
	GeminiAPIKey          string
	GeminiModel           string
	GoogleEmbeddingsModel string
	GeminiTier            string

	// Corpus and retrieval
	SeedCorpusPath      string
	RetrievalTablesPath string
	CorpusCacheTTL      time.Duration
	VectorChunkSize     int
	SimilarityFloor     float64

	// Background vectorization
	QueueEnabled         bool
	VectorEnsureInterval time.Duration
	VectorEnsureBatch    int

	// Chat
	ChatContextTokens int

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow int

	// Telemetry
	OTelEnabled     bool
	OTelEndpoint    string
	OTelSampleRatio float64
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),
		MaxFileSize: getEnvInt64("MAX_FILE_SIZE", 52428800), // 50MB

		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017/lab_dashboard"),
		DBName:       getEnv("DB_NAME", "lab_dashboard"),
		MongoEnabled: getEnvBool("MONGO_ENABLED", true),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisEnabled:  getEnvBool("REDIS_ENABLED", true),

		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GeminiModel:           getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		GeminiTier:            getEnv("GEMINI_TIER", "free"),

		SeedCorpusPath:      getEnv("SEED_CORPUS_PATH", "data/seed_corpus.json"),
		RetrievalTablesPath: getEnv("RETRIEVAL_TABLES_PATH", ""),
		CorpusCacheTTL:      getEnvDuration("CORPUS_CACHE_TTL", 5*time.Minute),
		VectorChunkSize:     getEnvInt("VECTOR_CHUNK_SIZE", 1000),
		SimilarityFloor:     getEnvFloat64("SIMILARITY_FLOOR", 0.3),

		QueueEnabled:         getEnvBool("QUEUE_ENABLED", false),
		VectorEnsureInterval: getEnvDuration("VECTOR_ENSURE_INTERVAL", 10*time.Minute),
		VectorEnsureBatch:    getEnvInt("VECTOR_ENSURE_BATCH", 5),

		ChatContextTokens: getEnvInt("CHAT_CONTEXT_TOKENS", 6000),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		OTelEnabled:     getEnvBool("OTEL_ENABLED", false),
		OTelEndpoint:    getEnv("OTEL_ENDPOINT", "localhost:4317"),
		OTelSampleRatio: getEnvFloat64("OTEL_SAMPLE_RATIO", 1.0),
	}

	if cfg.VectorChunkSize <= 0 {
		return nil, fmt.Errorf("VECTOR_CHUNK_SIZE must be positive, got %d", cfg.VectorChunkSize)
	}
	if cfg.CorpusCacheTTL < 0 {
		return nil, fmt.Errorf("CORPUS_CACHE_TTL must not be negative")
	}

	// GEMINI_API_KEY is checked per request so the dashboard still serves
	// document listings and uploads without oracle credentials.
	return cfg, nil
}

// HasGeminiKey reports whether the completion and embedding oracles are usable
func (c *Config) HasGeminiKey() bool {
	return c.GeminiAPIKey != ""
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

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
