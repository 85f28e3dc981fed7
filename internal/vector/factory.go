package vector

import (
	"fmt"
	"strings"
)

// IndexType represents the type of similarity backend to use.
type IndexType string

const (
	// IndexTypeMemory uses in-memory brute-force search. Good for small datasets (<100k vectors).
	IndexTypeMemory IndexType = "memory"
	// IndexTypeFAISS uses a FAISS flat inner-product index.
	// Requires FAISS library and build tag -tags=faiss.
	IndexTypeFAISS IndexType = "faiss"
)

// ParseIndexType maps a config value to an IndexType. Empty selects memory.
func ParseIndexType(s string) (IndexType, error) {
	switch IndexType(strings.ToLower(strings.TrimSpace(s))) {
	case "", IndexTypeMemory:
		return IndexTypeMemory, nil
	case IndexTypeFAISS:
		return IndexTypeFAISS, nil
	}
	return "", fmt.Errorf("unknown index type: %s (supported: memory, faiss)", s)
}

// NewBackend creates a similarity backend of the specified type.
func NewBackend(indexType IndexType, dimensions int) (Backend, error) {
	t, err := ParseIndexType(string(indexType))
	if err != nil {
		return nil, err
	}
	if t == IndexTypeFAISS {
		return NewFAISSIndex(dimensions)
	}
	return NewMemoryIndex(dimensions)
}

// IsFAISSAvailable returns true if FAISS support is compiled in.
func IsFAISSAvailable() bool {
	idx, err := NewFAISSIndex(1)
	if err != nil {
		return false
	}
	_ = idx.Close()
	return true
}
