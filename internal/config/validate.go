package config

import (
	"fmt"
	"strings"

	"github.com/hyperjump/recall/internal/keyword"
	"github.com/hyperjump/recall/internal/search"
	"github.com/hyperjump/recall/internal/vector"
)

// Validate rejects settings that would otherwise fail at request time.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		add("server.port %d out of range", c.Server.Port)
	}
	mode, modeErr := search.ParseMode(c.Retrieval.DefaultMode)
	if modeErr != nil {
		add("retrieval.default_mode: %v", modeErr)
	}
	if _, err := keyword.ParseScorer(c.Retrieval.LexicalScorer); err != nil {
		add("retrieval.lexical_scorer: %v", err)
	}
	fusion := search.FusionOptions{
		LexicalWeight:       c.Retrieval.LexicalWeight,
		VectorWeight:        c.Retrieval.VectorWeight,
		CandidateMultiplier: c.Retrieval.CandidateMultiplier,
	}
	if err := fusion.Validate(); err != nil {
		add("retrieval weights: %v", err)
	}
	if c.Retrieval.TopK <= 0 || c.Retrieval.MaxTopK <= 0 || c.Retrieval.TopK > c.Retrieval.MaxTopK {
		add("retrieval.top_k %d must be in [1, max_top_k=%d]", c.Retrieval.TopK, c.Retrieval.MaxTopK)
	}
	if c.Retrieval.CandidateMultiplier < 1 {
		add("retrieval.candidate_multiplier must be at least 1")
	}

	switch strings.ToLower(c.Embedding.Provider) {
	case "mock", "onnx":
		if c.Embedding.Dimensions <= 0 {
			add("embedding.dimensions must be positive for provider %q", c.Embedding.Provider)
		}
	case "ollama":
	default:
		add("embedding.provider %q (supported: mock, ollama, onnx)", c.Embedding.Provider)
	}

	if _, err := vector.ParseIndexType(c.Vector.IndexType); err != nil {
		add("vector.index_type: %v", err)
	}
	if !c.Vector.EnabledOrDefault() && modeErr == nil && mode != search.ModeLexical {
		add("retrieval.default_mode %q requires the vector index (vector.enabled is false)", mode)
	}
	if c.Vector.BatchSize <= 0 {
		add("vector.batch_size must be positive")
	}

	switch strings.ToLower(c.Session.Backend) {
	case "memory":
	case "redis":
		if c.Session.Redis.Addr == "" {
			add("session.redis.addr is required for the redis backend")
		}
	default:
		add("session.backend %q (supported: memory, redis)", c.Session.Backend)
	}
	if c.Session.TTL < 0 {
		add("session.ttl must not be negative")
	}

	if c.Translation.Enabled && c.Translation.MaxWords <= 0 {
		add("translation.max_words must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}
