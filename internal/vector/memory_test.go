package vector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryIndex_AddSearch(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	}
	if err := idx.Add(ctx, vecs); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 {
		t.Errorf("Size=%d", idx.Size())
	}

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Row != 0 || results[1].Row != 1 {
		t.Errorf("unexpected order %+v", results)
	}
}

func TestMemoryIndex_TiesKeepRowOrder(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, [][]float32{{0, 1}, {1, 0}, {1, 0}})
	results, _ := idx.Search(ctx, []float32{1, 0}, 3)
	if results[0].Row != 1 || results[1].Row != 2 || results[2].Row != 0 {
		t.Errorf("unexpected order %+v", results)
	}
}

func TestMemoryIndex_DimensionMismatch(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	if err := idx.Add(ctx, [][]float32{{1, 0, 0}}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Add err = %v, want ErrDimensionMismatch", err)
	}
	if _, err := idx.Search(ctx, []float32{1}, 1); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Search err = %v, want ErrDimensionMismatch", err)
	}
	if _, err := NewMemoryIndex(0); err == nil {
		t.Error("expected error for zero dimensions")
	}
}

func TestMemoryIndex_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.index")
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, [][]float32{{1, 0}, {0, 1}})
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, _ := NewMemoryIndex(2)
	if err := loaded.Load(path); err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != 2 {
		t.Errorf("loaded Size=%d, want 2", loaded.Size())
	}
	results, _ := loaded.Search(ctx, []float32{0, 1}, 1)
	if len(results) != 1 || results[0].Row != 1 {
		t.Errorf("unexpected results %+v", results)
	}

	wrong, _ := NewMemoryIndex(3)
	if err := wrong.Load(path); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Load err = %v, want ErrDimensionMismatch", err)
	}
	if err := loaded.Load(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestNewBackend(t *testing.T) {
	b, err := NewBackend(IndexTypeMemory, 4)
	if err != nil {
		t.Fatal(err)
	}
	if b.Type() != "memory" || b.Dimensions() != 4 {
		t.Errorf("unexpected backend %s/%d", b.Type(), b.Dimensions())
	}
	if _, err := NewBackend("hnsw", 4); err == nil {
		t.Error("expected error for unknown type")
	}
	if !IsFAISSAvailable() {
		if _, err := NewBackend(IndexTypeFAISS, 4); err == nil {
			t.Error("expected error when FAISS is not compiled in")
		}
	}
}

func TestSimilarity(t *testing.T) {
	if got := InnerProduct([]float32{1, 2}, []float32{3, 4}); got != 11 {
		t.Errorf("InnerProduct = %v", got)
	}
	if got := InnerProduct([]float32{1}, []float32{1, 2}); got != 0 {
		t.Errorf("mismatched InnerProduct = %v", got)
	}
	if got := L2Norm([]float32{3, 4}); got != 5 {
		t.Errorf("L2Norm = %v", got)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{-2, 0}); got != -1 {
		t.Errorf("CosineSimilarity = %v", got)
	}
	if got := CosineSimilarity([]float32{0, 0}, []float32{1, 0}); got != 0 {
		t.Errorf("zero CosineSimilarity = %v", got)
	}
}

func TestMemoryIndex_SearchHonorsCancel(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	_ = idx.Add(context.Background(), [][]float32{{1, 0}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := idx.Search(ctx, []float32{1, 0}, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("Search err = %v, want context.Canceled", err)
	}
}

func TestMemoryIndex_LoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.index")
	if err := os.WriteFile(path, []byte("not a matrix"), 0o644); err != nil {
		t.Fatal(err)
	}
	idx, _ := NewMemoryIndex(2)
	if err := idx.Load(path); !errors.Is(err, ErrCheckpointCorrupt) {
		t.Errorf("Load err = %v, want ErrCheckpointCorrupt", err)
	}
}
