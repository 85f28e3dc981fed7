package config

import (
	"fmt"
	"strconv"
	"time"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RECALL_"

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

type envBinding struct {
	key   string
	apply func(cfg *Config, value string) error
}

func envString(get func(*Config) *string) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		*get(cfg) = v
		return nil
	}
}

func envInt(get func(*Config) *int) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*get(cfg) = n
		return nil
	}
}

func envFloat(get func(*Config) *float64) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*get(cfg) = f
		return nil
	}
}

func envBool(get func(*Config) *bool) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*get(cfg) = b
		return nil
	}
}

func envDuration(get func(*Config) *time.Duration) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*get(cfg) = d
		return nil
	}
}

var envBindings = []envBinding{
	{"DEBUG", envBool(func(c *Config) *bool { return &c.Debug })},
	{"SERVER_HOST", envString(func(c *Config) *string { return &c.Server.Host })},
	{"SERVER_PORT", envInt(func(c *Config) *int { return &c.Server.Port })},
	{"DATABASE_PATH", envString(func(c *Config) *string { return &c.Storage.DatabasePath })},
	{"CHECKPOINT_DIR", envString(func(c *Config) *string { return &c.Storage.CheckpointDir })},
	{"EMBEDDING_PROVIDER", envString(func(c *Config) *string { return &c.Embedding.Provider })},
	{"EMBEDDING_MODEL", envString(func(c *Config) *string { return &c.Embedding.Model })},
	{"EMBEDDING_MODEL_PATH", envString(func(c *Config) *string { return &c.Embedding.ModelPath })},
	{"EMBEDDING_DIMENSIONS", envInt(func(c *Config) *int { return &c.Embedding.Dimensions })},
	{"OLLAMA_URL", envString(func(c *Config) *string { return &c.Embedding.OllamaURL })},
	{"RETRIEVAL_MODE", envString(func(c *Config) *string { return &c.Retrieval.DefaultMode })},
	{"TOP_K", envInt(func(c *Config) *int { return &c.Retrieval.TopK })},
	{"LEXICAL_SCORER", envString(func(c *Config) *string { return &c.Retrieval.LexicalScorer })},
	{"LEXICAL_WEIGHT", envFloat(func(c *Config) *float64 { return &c.Retrieval.LexicalWeight })},
	{"VECTOR_WEIGHT", envFloat(func(c *Config) *float64 { return &c.Retrieval.VectorWeight })},
	{"VECTOR_INDEX_TYPE", envString(func(c *Config) *string { return &c.Vector.IndexType })},
	{"VECTOR_BATCH_SIZE", envInt(func(c *Config) *int { return &c.Vector.BatchSize })},
	{"FORCE_REBUILD", envBool(func(c *Config) *bool { return &c.Vector.ForceRebuild })},
	{"SESSION_BACKEND", envString(func(c *Config) *string { return &c.Session.Backend })},
	{"SESSION_TTL", envDuration(func(c *Config) *time.Duration { return &c.Session.TTL })},
	{"REDIS_ADDR", envString(func(c *Config) *string { return &c.Session.Redis.Addr })},
	{"REDIS_PASSWORD", envString(func(c *Config) *string { return &c.Session.Redis.Password })},
	{"REDIS_DB", envInt(func(c *Config) *int { return &c.Session.Redis.DB })},
	{"TRANSLATION_ENABLED", envBool(func(c *Config) *bool { return &c.Translation.Enabled })},
	{"TRANSLATION_MODEL", envString(func(c *Config) *string { return &c.Translation.Model })},
	{"DATASET", envString(func(c *Config) *string { return &c.Ingest.Dataset })},
}

// ApplyEnv overrides cfg from RECALL_* variables found by lookup.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	for _, b := range envBindings {
		v, ok := lookup(EnvPrefix + b.key)
		if !ok || v == "" {
			continue
		}
		if err := b.apply(cfg, v); err != nil {
			return fmt.Errorf("invalid %s%s=%q: %w", EnvPrefix, b.key, v, err)
		}
	}
	if v, ok := lookup(EnvPrefix + "VECTOR_ENABLED"); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sVECTOR_ENABLED=%q: %w", EnvPrefix, v, err)
		}
		cfg.Vector.Enabled = &enabled
	}
	return nil
}
