package vector

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
)

// scanCheckEvery is how many rows Search scores between context checks.
const scanCheckEvery = 4096

// MemoryIndex keeps every vector in one contiguous slice and answers queries
// with an exact linear scan. Row i occupies data[i*dim : (i+1)*dim].
type MemoryIndex struct {
	mu   sync.RWMutex
	dim  int
	data []float32
}

func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("memory index needs positive dimensions, got %d", dimensions)
	}
	return &MemoryIndex{dim: dimensions}, nil
}

func (m *MemoryIndex) Type() string { return string(IndexTypeMemory) }

func (m *MemoryIndex) Dimensions() int { return m.dim }

func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data) / m.dim
}

func (m *MemoryIndex) row(i int) []float32 {
	return m.data[i*m.dim : (i+1)*m.dim]
}

// Add appends vectors as new rows. The batch is rejected whole when any
// vector has the wrong size.
func (m *MemoryIndex) Add(_ context.Context, vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) != m.dim {
			return fmt.Errorf("%w: vector %d has %d, expected %d", ErrDimensionMismatch, i, len(v), m.dim)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range vectors {
		m.data = append(m.data, v...)
	}
	return nil
}

// Search scores every row against query and returns the k best. Rows with
// equal scores come back in insertion order.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	if len(query) != m.dim {
		return nil, fmt.Errorf("%w: query has %d, expected %d", ErrDimensionMismatch, len(query), m.dim)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.data) / m.dim
	if k <= 0 || n == 0 {
		return nil, nil
	}
	hits := make([]Neighbor, n)
	for i := 0; i < n; i++ {
		if i%scanCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		hits[i] = Neighbor{Row: i, Score: InnerProduct(query, m.row(i))}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })
	if k < n {
		hits = hits[:k]
	}
	return hits, nil
}

// Save writes the rows in the compressed matrix format shared with the
// embeddings checkpoint.
func (m *MemoryIndex) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create memory index file: %w", err)
	}
	rows := make([][]float32, len(m.data)/m.dim)
	for i := range rows {
		rows[i] = m.row(i)
	}
	if err := writeMatrix(f, m.dim, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load replaces the contents with a file written by Save.
func (m *MemoryIndex) Load(path string) error {
	dim, rows, err := readMatrix(path)
	if err != nil {
		return err
	}
	if dim != m.dim {
		return fmt.Errorf("%w: file has %d, index expects %d", ErrDimensionMismatch, dim, m.dim)
	}
	data := make([]float32, 0, len(rows)*dim)
	for _, r := range rows {
		data = append(data, r...)
	}
	m.mu.Lock()
	m.data = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryIndex) Close() error { return nil }
