// Package config provides configuration loading and structs for the recall server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/recall/internal/resilience"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every Validate error.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all configuration for the application.
type Config struct {
	Debug       bool              `yaml:"debug"`
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Vector      VectorConfig      `yaml:"vector"`
	Session     SessionConfig     `yaml:"session"`
	Translation TranslationConfig `yaml:"translation"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Resilience  resilience.Config `yaml:"resilience"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// StorageConfig holds paths for the document database and vector checkpoint.
type StorageConfig struct {
	DatabasePath  string `yaml:"database_path"`
	CheckpointDir string `yaml:"checkpoint_dir"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider          string        `yaml:"provider"`
	ModelPath         string        `yaml:"model_path"`
	Dimensions        int           `yaml:"dimensions"`
	MaxTokens         int           `yaml:"max_tokens"`
	CacheSize         int           `yaml:"cache_size"`
	OllamaURL         string        `yaml:"ollama_url"`
	Model             string        `yaml:"model"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

// RetrievalConfig holds ranking and fusion settings.
type RetrievalConfig struct {
	DefaultMode         string  `yaml:"default_mode"`
	TopK                int     `yaml:"top_k"`
	MaxTopK             int     `yaml:"max_top_k"`
	LexicalScorer       string  `yaml:"lexical_scorer"`
	LexicalWeight       float64 `yaml:"lexical_weight"`
	VectorWeight        float64 `yaml:"vector_weight"`
	CandidateMultiplier int     `yaml:"candidate_multiplier"`
}

// VectorConfig holds vector index build settings.
type VectorConfig struct {
	Enabled      *bool         `yaml:"enabled"`
	IndexType    string        `yaml:"index_type"`
	BatchSize    int           `yaml:"batch_size"`
	MaxChars     int           `yaml:"max_chars"`
	ForceRebuild bool          `yaml:"force_rebuild"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

// EnabledOrDefault returns whether the vector index is used; defaults to true when unset.
func (v *VectorConfig) EnabledOrDefault() bool {
	if v.Enabled != nil {
		return *v.Enabled
	}
	return true
}

// SessionConfig selects the session memory backend.
type SessionConfig struct {
	Backend string `yaml:"backend"`
	// TTL is the idle expiry of a session; 0 keeps sessions forever.
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	Redis           RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis connection settings for the session store.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	PoolSize  int    `yaml:"pool_size"`
	KeyPrefix string `yaml:"key_prefix"`
}

// TranslationConfig configures the optional query translator.
type TranslationConfig struct {
	Enabled   bool          `yaml:"enabled"`
	OllamaURL string        `yaml:"ollama_url"`
	Model     string        `yaml:"model"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxWords  int           `yaml:"max_words"`
}

// IngestConfig holds dataset defaults for the ingest command.
type IngestConfig struct {
	Dataset   string `yaml:"dataset"`
	Domain    string `yaml:"domain"`
	BatchSize int    `yaml:"batch_size"`
}

// Load reads and parses the config file at path, expands paths, applies defaults
// and environment overrides. A .env file next to the config is loaded first
// when present; variables already set in the environment win.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	if err := LoadDotEnv(filepath.Join(configDir, ".env")); err != nil {
		return nil, err
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)

	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.CheckpointDir = expandPath(cfg.Storage.CheckpointDir, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	if cfg.Ingest.Dataset != "" {
		cfg.Ingest.Dataset = expandPath(cfg.Ingest.Dataset, configDir)
	}

	return &cfg, nil
}

// Default returns a config with defaults and environment overrides applied,
// for running without a config file.
func Default() (*Config, error) {
	var cfg Config
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// LoadDotEnv loads variables from the given files into the process
// environment without overriding existing ones. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
