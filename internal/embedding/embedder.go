// Package embedding provides text embedding providers (mock, Ollama, ONNX) and caching.
package embedding

import (
	"context"
	"errors"
)

// ErrEmptyEmbedding is returned when a provider yields no vector for an input.
var ErrEmptyEmbedding = errors.New("empty embedding result")

// Embedder produces vector embeddings for text.
// EmbedBatch returns exactly one vector per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
