// Package vector provides the dense-vector index: similarity backends, the
// checkpoint artifacts, and the resumable batch build.
package vector

import (
	"context"
	"errors"
)

var (
	// ErrNotReady is returned by searches before any build or checkpoint load.
	ErrNotReady = errors.New("vector index not ready")
	// ErrDimensionMismatch is returned when vectors of different sizes meet in one index generation.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrCheckpointCorrupt is returned when persisted artifacts cannot be reconciled.
	ErrCheckpointCorrupt = errors.New("vector checkpoint corrupt")
)

// Backend is a similarity-searchable structure addressed by row number.
// Row i is the i-th vector ever added. Scores are inner products, which equal
// cosine similarity for unit-length inputs.
type Backend interface {
	Add(ctx context.Context, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]Neighbor, error)
	Save(path string) error
	Load(path string) error
	Size() int
	Dimensions() int
	Type() string
	Close() error
}

// Neighbor is a single backend search hit.
type Neighbor struct {
	Row   int
	Score float64
}
