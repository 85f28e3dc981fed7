package config

import (
	"time"

	"github.com/hyperjump/recall/internal/resilience"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/recall/data/db/documents.db"
	}
	if cfg.Storage.CheckpointDir == "" {
		cfg.Storage.CheckpointDir = "/usr/local/var/recall/data/indices/vector"
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "mock"
	}
	if cfg.Embedding.Dimensions == 0 && cfg.Embedding.Provider != "ollama" {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.OllamaURL == "" {
		cfg.Embedding.OllamaURL = "http://localhost:11434"
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 60 * time.Second
	}

	if cfg.Retrieval.DefaultMode == "" {
		cfg.Retrieval.DefaultMode = "hybrid"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 20
	}
	if cfg.Retrieval.MaxTopK == 0 {
		cfg.Retrieval.MaxTopK = 100
	}
	if cfg.Retrieval.LexicalScorer == "" {
		cfg.Retrieval.LexicalScorer = "bleve"
	}
	// Weights are only defaulted together so that 0 on one side stays meaningful.
	if cfg.Retrieval.LexicalWeight == 0 && cfg.Retrieval.VectorWeight == 0 {
		cfg.Retrieval.LexicalWeight = 0.6
		cfg.Retrieval.VectorWeight = 0.4
	}
	if cfg.Retrieval.CandidateMultiplier == 0 {
		cfg.Retrieval.CandidateMultiplier = 5
	}

	if cfg.Vector.IndexType == "" {
		cfg.Vector.IndexType = "memory"
	}
	if cfg.Vector.BatchSize == 0 {
		cfg.Vector.BatchSize = 256
	}
	if cfg.Vector.MaxChars == 0 {
		cfg.Vector.MaxChars = 2000
	}
	if cfg.Vector.BatchTimeout == 0 {
		cfg.Vector.BatchTimeout = 2 * time.Minute
	}
	if cfg.Vector.QueryTimeout == 0 {
		cfg.Vector.QueryTimeout = 10 * time.Second
	}
	if cfg.Vector.Enabled == nil {
		t := true
		cfg.Vector.Enabled = &t
	}

	if cfg.Session.Backend == "" {
		cfg.Session.Backend = "memory"
	}
	if cfg.Session.CleanupInterval == 0 {
		cfg.Session.CleanupInterval = 10 * time.Minute
	}
	if cfg.Session.Redis.Addr == "" {
		cfg.Session.Redis.Addr = "localhost:6379"
	}
	if cfg.Session.Redis.PoolSize == 0 {
		cfg.Session.Redis.PoolSize = 10
	}
	if cfg.Session.Redis.KeyPrefix == "" {
		cfg.Session.Redis.KeyPrefix = "recall:session:"
	}

	if cfg.Translation.OllamaURL == "" {
		cfg.Translation.OllamaURL = cfg.Embedding.OllamaURL
	}
	if cfg.Translation.Model == "" {
		cfg.Translation.Model = "gemma3:4b"
	}
	if cfg.Translation.Timeout == 0 {
		cfg.Translation.Timeout = 10 * time.Second
	}
	if cfg.Translation.MaxWords == 0 {
		cfg.Translation.MaxWords = 50
	}

	if cfg.Ingest.Domain == "" {
		cfg.Ingest.Domain = "structured_text"
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 1000
	}

	if cfg.Resilience == (resilience.Config{}) {
		cfg.Resilience = resilience.DefaultConfig()
	}
}
