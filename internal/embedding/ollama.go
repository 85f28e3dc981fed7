package embedding

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hyperjump/recall/internal/ollama"
	"golang.org/x/time/rate"
)

// DefaultOllamaModel is the embedding model used when none is configured.
const DefaultOllamaModel = "nomic-embed-text"

// OllamaEmbedder embeds text through an Ollama daemon. Requests are rate
// limited and each call runs under its own timeout.
type OllamaEmbedder struct {
	client  *ollama.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter

	mu         sync.RWMutex
	dimensions int
}

// OllamaOptions configures an OllamaEmbedder.
type OllamaOptions struct {
	Model string
	// Dimensions is the expected vector size; 0 learns it from the first response.
	Dimensions int
	Timeout    time.Duration
	// RequestsPerSecond limits outgoing calls; 0 disables limiting.
	RequestsPerSecond float64
	Burst             int
}

// NewOllamaEmbedder returns an embedder backed by client.
func NewOllamaEmbedder(client *ollama.Client, opts OllamaOptions) *OllamaEmbedder {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultOllamaModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return &OllamaEmbedder{
		client:     client,
		model:      model,
		timeout:    opts.Timeout,
		limiter:    limiter,
		dimensions: opts.Dimensions,
	}
}

// Embed returns the embedding of a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in one request.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedding rate limiter: %w", err)
	}
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	vectors, err := e.client.Embed(callCtx, e.model, texts)
	if err != nil {
		return nil, err
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("input %d: %w", i, ErrEmptyEmbedding)
		}
	}
	e.learnDimensions(len(vectors[0]))
	return vectors, nil
}

func (e *OllamaEmbedder) learnDimensions(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dimensions == 0 {
		e.dimensions = n
	}
}

// Dimensions returns the configured or learned vector size (0 before the first call).
func (e *OllamaEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dimensions
}

// Close is a no-op; the HTTP client is shared.
func (e *OllamaEmbedder) Close() error {
	return nil
}
