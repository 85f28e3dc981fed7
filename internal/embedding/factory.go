package embedding

import (
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/recall/internal/ollama"
	"github.com/hyperjump/recall/internal/resilience"
	"go.uber.org/zap"
)

// Provider names accepted by New.
const (
	ProviderMock   = "mock"
	ProviderOllama = "ollama"
	ProviderONNX   = "onnx"
)

// Options selects and configures an embedding provider.
type Options struct {
	Provider          string
	Dimensions        int
	ModelPath         string
	MaxTokens         int
	CacheSize         int
	OllamaURL         string
	Model             string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// New builds the configured provider, wrapped in a query cache when
// CacheSize is positive. exec may be nil.
func New(opts Options, exec *resilience.Executor, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var inner Embedder
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case "", ProviderMock:
		inner = NewMockEmbedder(opts.Dimensions)
	case ProviderOllama:
		client := ollama.New(opts.OllamaURL, ollama.WithExecutor(exec), ollama.WithLogger(logger))
		inner = NewOllamaEmbedder(client, OllamaOptions{
			Model:             opts.Model,
			Dimensions:        opts.Dimensions,
			Timeout:           opts.Timeout,
			RequestsPerSecond: opts.RequestsPerSecond,
		})
	case ProviderONNX:
		e, err := NewONNXEmbedder(opts.ModelPath, opts.Dimensions, opts.MaxTokens)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize onnx embedder: %w", err)
		}
		inner = e
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", opts.Provider)
	}
	logger.Info("embedding provider ready",
		zap.String("provider", opts.Provider),
		zap.Int("dimensions", inner.Dimensions()))
	if opts.CacheSize > 0 {
		return NewCachedEmbedder(inner, opts.CacheSize), nil
	}
	return inner, nil
}
