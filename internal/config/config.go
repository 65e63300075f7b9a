package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Ai       AIConfig
	Rag      RagConfig
	Store    StoreConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string // empty disables the NATS publisher
	RedisURL           string // empty disables the history archive
	EventsTopic        string
}

type DatabaseConfig struct {
	Connection string
	Debug      bool
}

type AIConfig struct {
	EmbeddingProvider string // "ollama", "openai", "gemini", "jina" or "hash"
	EmbeddingModel    string
	EmbeddingBaseURL  string
	EmbeddingAPIKey   string
	EmbedCacheSize    int64
	LLMProvider       string // "ollama", "openai", "huggingface", "anthropic" or "mock"
	LLMModel          string
	LLMBaseURL        string
	LLMAPIKey         string
}

// RagConfig holds the engine tunables. Every field may be overridden by the
// YAML file named in RAG_CONFIG_FILE.
type RagConfig struct {
	ShortTermSize         int           `yaml:"short_term_size"`
	MinFold               int           `yaml:"min_fold"`
	SummaryMaxTokens      int           `yaml:"summary_max_tokens"`
	ChunkSize             int           `yaml:"chunk_size"`
	ChunkOverlap          int           `yaml:"chunk_overlap"`
	EmbedBatchSize        int           `yaml:"embed_batch_size"`
	EmbedConcurrency      int           `yaml:"embed_concurrency"`
	EmbedDimensions       int           `yaml:"embed_dimensions"`
	IngestTimeout         time.Duration `yaml:"ingest_timeout"`
	RetrievalTopK         int           `yaml:"retrieval_top_k"`
	RetrievalMinScore     float64       `yaml:"retrieval_min_score"`
	CompletionMaxTokens   int           `yaml:"completion_max_tokens"`
	CompletionTemperature float64       `yaml:"completion_temperature"`
	CompletionTimeout     time.Duration `yaml:"completion_timeout"`
	RetryMaxAttempts      int           `yaml:"retry_max_attempts"`
	SessionIdleTTL        time.Duration `yaml:"session_idle_ttl"`
	JanitorInterval       time.Duration `yaml:"janitor_interval"`
	DefaultSessionID      string        `yaml:"default_session_id"`
	HistoryMaxTurns       int64         `yaml:"history_max_turns"`
	HistoryTTL            time.Duration `yaml:"history_ttl"`
}

type StoreConfig struct {
	Backend           string // "memory", "chromem" or "postgres"
	ChromemPath       string // empty keeps the collection in memory
	ChromemCollection string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	cfg := &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log.csv"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			EventsTopic:        getEnv("EVENTS_TOPIC_NAME", "CHATBOT_EVENTS"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
			Debug:      getEnvAsBool("DB_DEBUG", false),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			EmbeddingModel:    getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
			EmbeddingBaseURL:  getEnv("EMBEDDING_BASE_URL", "http://localhost:11434"),
			EmbeddingAPIKey:   getEnv("EMBEDDING_API_KEY", ""),
			EmbedCacheSize:    int64(getEnvAsInt("EMBEDDING_CACHE_SIZE", 10000)),
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
			LLMBaseURL:        getEnv("LLM_BASE_URL", ""),
			LLMAPIKey:         getEnv("LLM_API_KEY", ""),
		},
		Rag: RagConfig{
			ShortTermSize:         getEnvAsInt("RAG_SHORT_TERM_SIZE", 10),
			MinFold:               getEnvAsInt("RAG_MIN_FOLD", 1),
			SummaryMaxTokens:      getEnvAsInt("RAG_SUMMARY_MAX_TOKENS", 256),
			ChunkSize:             getEnvAsInt("RAG_CHUNK_SIZE", 1000),
			ChunkOverlap:          getEnvAsInt("RAG_CHUNK_OVERLAP", 200),
			EmbedBatchSize:        getEnvAsInt("RAG_EMBED_BATCH_SIZE", 32),
			EmbedConcurrency:      getEnvAsInt("RAG_EMBED_CONCURRENCY", 4),
			EmbedDimensions:       getEnvAsInt("RAG_EMBED_DIMENSIONS", 768),
			IngestTimeout:         getEnvAsDuration("RAG_INGEST_TIMEOUT", 5*time.Minute),
			RetrievalTopK:         getEnvAsInt("RAG_RETRIEVAL_TOP_K", 3),
			RetrievalMinScore:     getEnvAsFloat("RAG_RETRIEVAL_MIN_SCORE", 0.3),
			CompletionMaxTokens:   getEnvAsInt("RAG_COMPLETION_MAX_TOKENS", 1024),
			CompletionTemperature: getEnvAsFloat("RAG_COMPLETION_TEMPERATURE", 0.7),
			CompletionTimeout:     getEnvAsDuration("RAG_COMPLETION_TIMEOUT", 60*time.Second),
			RetryMaxAttempts:      getEnvAsInt("RAG_RETRY_MAX_ATTEMPTS", 4),
			SessionIdleTTL:        getEnvAsDuration("RAG_SESSION_IDLE_TTL", time.Hour),
			JanitorInterval:       getEnvAsDuration("RAG_JANITOR_INTERVAL", 10*time.Minute),
			DefaultSessionID:      getEnv("RAG_DEFAULT_SESSION_ID", "default"),
			HistoryMaxTurns:       int64(getEnvAsInt("RAG_HISTORY_MAX_TURNS", 1000)),
			HistoryTTL:            getEnvAsDuration("RAG_HISTORY_TTL", 7*24*time.Hour),
		},
		Store: StoreConfig{
			Backend:           getEnv("VECTOR_STORE", "chromem"),
			ChromemPath:       getEnv("CHROMEM_PATH", ""),
			ChromemCollection: getEnv("CHROMEM_COLLECTION", "chunks"),
		},
	}

	if path := getEnv("RAG_CONFIG_FILE", ""); path != "" {
		if err := cfg.Rag.Overlay(path); err != nil {
			log.Fatalf("Failed to load %s: %v", path, err)
		}
	}

	if err := cfg.Rag.Validate(); err != nil {
		log.Fatalf("Invalid RAG configuration: %v", err)
	}

	return cfg
}

// Overlay reads a YAML file and overrides the fields it sets.
func (r *RagConfig) Overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, r); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

func (r RagConfig) Validate() error {
	switch {
	case r.ShortTermSize < 2:
		return fmt.Errorf("short_term_size must be at least 2, got %d", r.ShortTermSize)
	case r.MinFold < 1 || r.MinFold >= r.ShortTermSize:
		return fmt.Errorf("min_fold must be in [1, %d), got %d", r.ShortTermSize, r.MinFold)
	case r.ChunkSize <= 0:
		return fmt.Errorf("chunk_size must be positive, got %d", r.ChunkSize)
	case r.ChunkOverlap < 0 || r.ChunkOverlap >= r.ChunkSize:
		return fmt.Errorf("chunk_overlap must be in [0, %d), got %d", r.ChunkSize, r.ChunkOverlap)
	case r.EmbedBatchSize <= 0:
		return fmt.Errorf("embed_batch_size must be positive, got %d", r.EmbedBatchSize)
	case r.RetrievalTopK < 0:
		return fmt.Errorf("retrieval_top_k must not be negative, got %d", r.RetrievalTopK)
	case r.RetryMaxAttempts < 1:
		return fmt.Errorf("retry_max_attempts must be at least 1, got %d", r.RetryMaxAttempts)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
