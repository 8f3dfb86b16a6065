package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for docrag.
type Config struct {
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Retrieve   RetrieveConfig   `yaml:"retrieve"`
	Index      IndexConfig      `yaml:"index"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Store      StoreConfig      `yaml:"store"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Privacy    PrivacyConfig    `yaml:"privacy"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK             int           `yaml:"top_k"`
	MaxContextLength int           `yaml:"max_context_length"` // Context budget in words
	CacheSize        int           `yaml:"cache_size"`         // 0 disables the query cache
	CacheTTL         time.Duration `yaml:"cache_ttl"`
	Expander         string        `yaml:"expander"` // "trim" or "keywords"
}

// IndexConfig selects and locates the vector backend.
type IndexConfig struct {
	Backend    string `yaml:"backend"` // "flat", "chromem", "pgvector"
	Dir        string `yaml:"dir"`
	Collection string `yaml:"collection"`
	Compress   bool   `yaml:"compress"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // "hash", "openai", "compatible", "ollama"
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"` // Environment variable for API key
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

// GenerationConfig holds answer generation configuration.
type GenerationConfig struct {
	Provider    string        `yaml:"provider"` // "openai", "compatible", "ollama", "echo"
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// StoreConfig selects where documents, chunks and conversations are kept.
type StoreConfig struct {
	Driver string `yaml:"driver"` // "bolt", "postgres", "memory"
	Path   string `yaml:"path"`
	DSNEnv string `yaml:"dsn_env"`
	Debug  bool   `yaml:"debug"`
}

type IngestConfig struct {
	Includes      []string `yaml:"includes"`
	Excludes      []string `yaml:"excludes"`
	Workers       int      `yaml:"workers"`
	MaxFileSizeMB int      `yaml:"max_file_size_mb"`
}

type PrivacyConfig struct {
	AllowCloudModels bool `yaml:"allow_cloud_models"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Chunking: ChunkingConfig{
			ChunkSize:    512,
			ChunkOverlap: 50,
		},
		Retrieve: RetrieveConfig{
			TopK:             5,
			MaxContextLength: 2000,
			CacheSize:        128,
			CacheTTL:         5 * time.Minute,
			Expander:         "trim",
		},
		Index: IndexConfig{
			Backend:    "flat",
			Dir:        filepath.Join(".docrag", "vector_store"),
			Collection: "documents",
		},
		Embedding: EmbeddingConfig{
			Provider:  "hash",
			Model:     "all-MiniLM-L6-v2",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 384,
			BatchSize: 64,
		},
		Generation: GenerationConfig{
			Provider:    "ollama",
			Model:       "llama3",
			APIKeyEnv:   "OPENAI_API_KEY",
			MaxTokens:   512,
			Temperature: 0.7,
			Timeout:     120 * time.Second,
		},
		Store: StoreConfig{
			Driver: "bolt",
			Path:   filepath.Join(".docrag", "docrag.db"),
			DSNEnv: "DOCRAG_PG_DSN",
		},
		Ingest: IngestConfig{
			Includes:      []string{"**/*.pdf", "**/*.docx", "**/*.xlsx", "**/*.md", "**/*.txt"},
			Excludes:      []string{"**/.git/**", "**/.docrag/**", "**/node_modules/**"},
			Workers:       5,
			MaxFileSizeMB: 500,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir loads .env and then docrag.yaml or .docrag/config.yaml from dir.
func LoadFromDir(dir string) (*Config, error) {
	if err := LoadEnv(dir); err != nil {
		return nil, err
	}

	path := filepath.Join(dir, "docrag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".docrag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// LoadEnv loads dir/.env into the process environment if present.
// Variables already set take precedence.
func LoadEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Validate checks values that would otherwise fail deep inside a component.
func (c *Config) Validate() error {
	var errs []error
	if c.Chunking.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunking.chunk_size must be positive, got %d", c.Chunking.ChunkSize))
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		errs = append(errs, fmt.Errorf("chunking.chunk_overlap must be in [0, chunk_size), got %d", c.Chunking.ChunkOverlap))
	}
	if c.Retrieve.TopK <= 0 {
		errs = append(errs, fmt.Errorf("retrieve.top_k must be positive, got %d", c.Retrieve.TopK))
	}
	if c.Retrieve.MaxContextLength <= 0 {
		errs = append(errs, fmt.Errorf("retrieve.max_context_length must be positive, got %d", c.Retrieve.MaxContextLength))
	}
	switch c.Retrieve.Expander {
	case "", "trim", "keywords":
	default:
		errs = append(errs, fmt.Errorf("retrieve.expander must be trim or keywords, got %q", c.Retrieve.Expander))
	}
	if c.Ingest.Workers <= 0 {
		errs = append(errs, fmt.Errorf("ingest.workers must be positive, got %d", c.Ingest.Workers))
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ResolvePath makes a configured relative path relative to the project dir.
func ResolvePath(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// EnsureDataDir ensures the .docrag directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".docrag"), 0755)
}
