package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string `yaml:"port"`

	// Corpus and manifest locations.
	DataPath     string `yaml:"data_path"`
	ManifestPath string `yaml:"manifest_path"`

	// Qdrant connection.
	QdrantURL     string `yaml:"qdrant_url"`
	QdrantAPIKey  string `yaml:"-"`
	Collection    string `yaml:"collection"`
	EmbeddingDims int    `yaml:"embedding_dims"`

	// Ollama collaborators.
	OllamaURL  string `yaml:"ollama_url"`
	EmbedModel string `yaml:"embed_model"`
	ChatModel  string `yaml:"chat_model"`

	// Auth for the HTTP API. Empty disables auth.
	APIKey string `yaml:"-"`

	// Worker pool
	WorkerCount int `yaml:"workers"`

	// Chunking defaults (characters).
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`

	// Retry policy for collaborator calls.
	MaxRetries     int           `yaml:"max_retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	CallTimeout    time.Duration `yaml:"call_timeout"`

	// OCR / video extraction.
	OCRLanguages  string        `yaml:"ocr_languages"`
	FrameInterval time.Duration `yaml:"frame_interval"`

	// Query defaults.
	DefaultFetchK   int `yaml:"fetch_k"`
	DefaultK        int `yaml:"k"`
	MaxContextChars int `yaml:"max_context_chars"`
	PerSourceLimit  int `yaml:"per_source_limit"`
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8091"),

		DataPath:     envOr("DATA_PATH", "data"),
		ManifestPath: envOr("MANIFEST_PATH", ".corpusrag/manifest.json"),

		QdrantURL:     envOr("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey:  os.Getenv("QDRANT_API_KEY"),
		Collection:    envOr("QDRANT_COLLECTION", "corpusrag"),
		EmbeddingDims: envInt("EMBEDDING_DIMS", 768),

		OllamaURL:  envOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel: envOr("EMBED_MODEL", "nomic-embed-text"),
		ChatModel:  envOr("CHAT_MODEL", "mistral"),

		APIKey: os.Getenv("CORPUSRAG_API_KEY"),

		WorkerCount: envInt("WORKER_COUNT", 4),

		ChunkSize:    envInt("CHUNK_SIZE", 800),
		ChunkOverlap: envInt("CHUNK_OVERLAP", 80),

		MaxRetries:     envInt("MAX_RETRIES", 3),
		RetryBaseDelay: envDuration("RETRY_BASE_DELAY", 1*time.Second),
		CallTimeout:    envDuration("CALL_TIMEOUT", 120*time.Second),

		OCRLanguages:  envOr("OCR_LANGUAGES", "eng"),
		FrameInterval: envDuration("FRAME_INTERVAL", 10*time.Second),

		DefaultFetchK:   envInt("FETCH_K", 48),
		DefaultK:        envInt("K", 12),
		MaxContextChars: envInt("MAX_CONTEXT_CHARS", 12000),
		PerSourceLimit:  envInt("PER_SOURCE_LIMIT", 2),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 800
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 80
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 1 * time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 120 * time.Second
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = 10 * time.Second
	}

	return cfg
}

// FromFile overlays values from a YAML config file onto c. Fields absent
// from the file keep their current values.
func (c *Config) FromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c Config) Validate() error {
	if c.DataPath == "" {
		return fmt.Errorf("data_path is required")
	}
	if c.QdrantURL == "" {
		return fmt.Errorf("qdrant_url is required")
	}
	if c.OllamaURL == "" {
		return fmt.Errorf("ollama_url is required")
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	if c.DefaultK > c.DefaultFetchK {
		return fmt.Errorf("k (%d) must not exceed fetch_k (%d)", c.DefaultK, c.DefaultFetchK)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
