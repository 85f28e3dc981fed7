package vector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Default artifact file names inside the checkpoint directory.
const (
	DefaultEmbeddingsFile = "embeddings.bin.zst"
	DefaultIndexFile      = "vectors.index"
	DefaultIDMapFile      = "id_map.json"
)

// Artifacts are the three files that make up a checkpoint.
type Artifacts struct {
	EmbeddingsPath string
	IndexPath      string
	IDMapPath      string
}

// DefaultArtifacts places the artifacts under dir with the default names.
func DefaultArtifacts(dir string) Artifacts {
	return Artifacts{
		EmbeddingsPath: filepath.Join(dir, DefaultEmbeddingsFile),
		IndexPath:      filepath.Join(dir, DefaultIndexFile),
		IDMapPath:      filepath.Join(dir, DefaultIDMapFile),
	}
}

// Paths returns the artifact paths in commit order.
func (a Artifacts) Paths() []string {
	return []string{a.EmbeddingsPath, a.IndexPath, a.IDMapPath}
}

// Exists reports whether all three artifacts are present.
func (a Artifacts) Exists() (bool, error) {
	for _, p := range a.Paths() {
		ok, err := fileExists(p)
		if err != nil {
			return false, fmt.Errorf("stat %s: %w", p, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Remove deletes every artifact; missing files are ignored.
func (a Artifacts) Remove() error {
	for _, p := range a.Paths() {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return nil
}

// checkpoint is one consistent index generation: ids[i] is the document of
// embeddings[i] and of backend row i.
type checkpoint struct {
	dim        int
	ids        []string
	embeddings [][]float32
	backend    Backend
}

func (c *checkpoint) size() int {
	return len(c.ids)
}

func (c *checkpoint) close() {
	if c != nil && c.backend != nil {
		_ = c.backend.Close()
	}
}

// save writes the embeddings, then the similarity index, then the id map.
// The id map is the commit marker: a crash before it is renamed leaves the
// previous id map in place, which loadCheckpoint reconciles by prefix.
func (c *checkpoint) save(a Artifacts) error {
	if err := writeFileAtomic(a.EmbeddingsPath, func(w io.Writer) error {
		return writeMatrix(w, c.dim, c.embeddings)
	}); err != nil {
		return fmt.Errorf("save embeddings: %w", err)
	}
	if err := saveBackendAtomic(c.backend, a.IndexPath); err != nil {
		return err
	}
	if err := writeFileAtomic(a.IDMapPath, func(w io.Writer) error {
		return json.NewEncoder(w).Encode(c.ids)
	}); err != nil {
		return fmt.Errorf("save id map: %w", err)
	}
	return nil
}

// loadCheckpoint returns nil, nil when any artifact is missing.
// Row counts that disagree are truncated to the shortest common prefix, and
// the backend is rebuilt from the embeddings when its own file is unusable.
func loadCheckpoint(ctx context.Context, a Artifacts, indexType IndexType, logger *zap.Logger) (*checkpoint, error) {
	ok, err := a.Exists()
	if err != nil || !ok {
		return nil, err
	}

	dim, embeddings, err := readMatrix(a.EmbeddingsPath)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(a.IDMapPath)
	if err != nil {
		return nil, fmt.Errorf("read id map: %w", err)
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("%w: id map: %v", ErrCheckpointCorrupt, err)
	}

	n := len(ids)
	if len(embeddings) < n {
		n = len(embeddings)
	}
	if n != len(ids) || n != len(embeddings) {
		logger.Warn("checkpoint artifacts disagree, truncating to common prefix",
			zap.Int("ids", len(ids)),
			zap.Int("embeddings", len(embeddings)),
			zap.Int("kept", n))
		ids = ids[:n]
		embeddings = embeddings[:n]
	}
	if dim <= 0 {
		return nil, fmt.Errorf("%w: no dimension recorded", ErrCheckpointCorrupt)
	}

	backend, err := NewBackend(indexType, dim)
	if err != nil {
		return nil, err
	}
	if err := backend.Load(a.IndexPath); err != nil {
		if isDimensionMismatch(err) {
			backend.Close()
			return nil, fmt.Errorf("%w: %v", ErrCheckpointCorrupt, err)
		}
		logger.Warn("similarity index unreadable, rebuilding from embeddings", zap.Error(err))
		backend.Close()
		if backend, err = NewBackend(indexType, dim); err != nil {
			return nil, err
		}
	}
	if backend.Dimensions() != dim {
		backend.Close()
		return nil, fmt.Errorf("%w: index has %d dimensions, embeddings have %d", ErrCheckpointCorrupt, backend.Dimensions(), dim)
	}
	if backend.Size() != n {
		if backend.Size() != 0 {
			logger.Warn("similarity index size differs from id map, rebuilding from embeddings",
				zap.Int("index_rows", backend.Size()),
				zap.Int("ids", n))
		}
		backend.Close()
		if backend, err = NewBackend(indexType, dim); err != nil {
			return nil, err
		}
		if err := backend.Add(ctx, embeddings); err != nil {
			backend.Close()
			return nil, fmt.Errorf("rebuild similarity index: %w", err)
		}
	}

	return &checkpoint{dim: dim, ids: ids, embeddings: embeddings, backend: backend}, nil
}

func isDimensionMismatch(err error) bool {
	return errors.Is(err, ErrDimensionMismatch)
}
