package vector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/recall/internal/embedding"
	"github.com/hyperjump/recall/internal/models"
	"github.com/hyperjump/recall/pkg/utils"
	"go.uber.org/zap"
)

// Build defaults.
const (
	DefaultBatchSize    = 256
	DefaultMaxChars     = 2000
	DefaultBatchTimeout = 2 * time.Minute
	DefaultQueryTimeout = 10 * time.Second
)

// Batch outcomes reported to an Observer.
const (
	BatchCommitted = "committed"
	BatchSkipped   = "skipped"
)

// Observer receives build progress, typically to export metrics.
type Observer interface {
	ObserveBatch(status string, documents int)
	SetIndexSize(n int)
}

type nopObserver struct{}

func (nopObserver) ObserveBatch(string, int) {}
func (nopObserver) SetIndexSize(int)         {}

// Hit is a single vector search hit.
type Hit struct {
	DocumentID string
	Score      float64
}

// BuildOptions control BuildAndSave.
type BuildOptions struct {
	BatchSize    int
	MaxChars     int
	ForceRebuild bool
	// BatchTimeout bounds each provider call; a timed out batch is skipped.
	BatchTimeout time.Duration
}

func (o BuildOptions) withDefaults() BuildOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.MaxChars <= 0 {
		o.MaxChars = DefaultMaxChars
	}
	if o.BatchTimeout <= 0 {
		o.BatchTimeout = DefaultBatchTimeout
	}
	return o
}

// BuildReport summarizes a build run. A run with skipped batches still
// succeeds; BatchesSkipped tells the caller the index is partial.
type BuildReport struct {
	RunID             string        `json:"run_id"`
	Total             int           `json:"total"`
	Resumed           bool          `json:"resumed"`
	StartOffset       int           `json:"start_offset"`
	BatchesProcessed  int           `json:"batches_processed"`
	BatchesSkipped    int           `json:"batches_skipped"`
	DocumentsEmbedded int           `json:"documents_embedded"`
	DocumentsEmpty    int           `json:"documents_empty"`
	Dimension         int           `json:"dimension"`
	Size              int           `json:"size"`
	Duration          time.Duration `json:"duration"`
}

// Partial reports whether any batch was skipped.
func (r *BuildReport) Partial() bool {
	return r.BatchesSkipped > 0
}

// Index is the checkpointed dense-vector index. Builds are exclusive; searches
// run concurrently and see either the previous generation or the new one.
type Index struct {
	embedder     embedding.Embedder
	artifacts    Artifacts
	indexType    IndexType
	queryTimeout time.Duration
	logger       *zap.Logger
	observer     Observer

	buildMu sync.Mutex

	mu      sync.RWMutex
	current *checkpoint
	ready   bool
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(ix *Index) {
		if l != nil {
			ix.logger = l
		}
	}
}

// WithIndexType selects the similarity backend.
func WithIndexType(t IndexType) Option {
	return func(ix *Index) { ix.indexType = t }
}

// WithQueryTimeout bounds the query embedding call made by SearchText.
func WithQueryTimeout(d time.Duration) Option {
	return func(ix *Index) {
		if d > 0 {
			ix.queryTimeout = d
		}
	}
}

// WithObserver reports build progress to o.
func WithObserver(o Observer) Option {
	return func(ix *Index) {
		if o != nil {
			ix.observer = o
		}
	}
}

// NewIndex returns an index that is not ready until BuildAndSave or LoadIfExists succeeds.
func NewIndex(embedder embedding.Embedder, artifacts Artifacts, opts ...Option) (*Index, error) {
	if embedder == nil {
		return nil, errors.New("vector index requires an embedder")
	}
	if artifacts.EmbeddingsPath == "" || artifacts.IndexPath == "" || artifacts.IDMapPath == "" {
		return nil, errors.New("vector index requires all three artifact paths")
	}
	ix := &Index{
		embedder:     embedder,
		artifacts:    artifacts,
		indexType:    IndexTypeMemory,
		queryTimeout: DefaultQueryTimeout,
		logger:       zap.NewNop(),
		observer:     nopObserver{},
	}
	for _, o := range opts {
		o(ix)
	}
	if _, err := ParseIndexType(string(ix.indexType)); err != nil {
		return nil, err
	}
	return ix, nil
}

// LoadIfExists loads a persisted checkpoint. It returns false with no error
// when any artifact is missing.
func (ix *Index) LoadIfExists(ctx context.Context) (bool, error) {
	ix.buildMu.Lock()
	defer ix.buildMu.Unlock()

	cp, err := loadCheckpoint(ctx, ix.artifacts, ix.indexType, ix.logger)
	if err != nil {
		return false, err
	}
	if cp == nil {
		return false, nil
	}
	ix.install(cp)
	ix.logger.Info("vector checkpoint loaded",
		zap.Int("size", cp.size()),
		zap.Int("dimension", cp.dim))
	return true, nil
}

// BuildAndSave embeds docs in fixed windows and persists a checkpoint after
// every committed batch. Without ForceRebuild it resumes after the last
// committed document of an existing checkpoint.
//
// Provider failures and timeouts skip the batch. A vector whose dimension
// differs from the first committed batch aborts the build with
// ErrDimensionMismatch; batches committed before that stay on disk.
func (ix *Index) BuildAndSave(ctx context.Context, docs []models.Document, opts BuildOptions) (*BuildReport, error) {
	ix.buildMu.Lock()
	defer ix.buildMu.Unlock()

	opts = opts.withDefaults()
	start := time.Now()
	report := &BuildReport{RunID: uuid.NewString(), Total: len(docs)}
	log := ix.logger.With(zap.String("run_id", report.RunID))

	var cp *checkpoint
	if opts.ForceRebuild {
		if err := ix.artifacts.Remove(); err != nil {
			return report, err
		}
	} else {
		loaded, err := loadCheckpoint(ctx, ix.artifacts, ix.indexType, log)
		if err != nil {
			return report, err
		}
		cp = loaded
	}
	if cp == nil {
		cp = &checkpoint{}
	}
	owned := true
	defer func() {
		if owned {
			cp.close()
		}
	}()

	report.Resumed = cp.size() > 0
	report.StartOffset = resumeOffset(docs, cp.ids, log)
	indexed := make(map[string]struct{}, cp.size())
	for _, id := range cp.ids {
		indexed[id] = struct{}{}
	}
	log.Info("vector build started",
		zap.Int("total", len(docs)),
		zap.Int("start_offset", report.StartOffset),
		zap.Bool("resumed", report.Resumed),
		zap.Int("batch_size", opts.BatchSize))

	for batchStart := report.StartOffset; batchStart < len(docs); batchStart += opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		end := batchStart + opts.BatchSize
		if end > len(docs) {
			end = len(docs)
		}

		ids := make([]string, 0, end-batchStart)
		texts := make([]string, 0, end-batchStart)
		for _, d := range docs[batchStart:end] {
			text := prepareText(d.Text, opts.MaxChars)
			if text == "" {
				report.DocumentsEmpty++
				continue
			}
			if _, dup := indexed[d.ID]; dup {
				continue
			}
			ids = append(ids, d.ID)
			texts = append(texts, text)
		}
		if len(texts) == 0 {
			continue
		}

		vectors, err := ix.embedBatch(ctx, texts, opts.BatchTimeout)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, ctxErr
			}
			report.BatchesSkipped++
			ix.observer.ObserveBatch(BatchSkipped, len(texts))
			log.Warn("embedding batch skipped",
				zap.Int("batch_start", batchStart),
				zap.Int("batch_len", len(texts)),
				zap.Error(err))
			continue
		}

		if cp.dim == 0 {
			cp.dim = len(vectors[0])
		}
		for i, v := range vectors {
			if len(v) != cp.dim {
				return report, fmt.Errorf("%w: document %q has %d dimensions, index has %d",
					ErrDimensionMismatch, ids[i], len(v), cp.dim)
			}
			vectors[i] = utils.NormalizedCopy(v)
		}
		if cp.backend == nil {
			backend, err := NewBackend(ix.indexType, cp.dim)
			if err != nil {
				return report, err
			}
			cp.backend = backend
		}
		if err := cp.backend.Add(ctx, vectors); err != nil {
			return report, fmt.Errorf("add batch to similarity index: %w", err)
		}
		cp.ids = append(cp.ids, ids...)
		cp.embeddings = append(cp.embeddings, vectors...)
		if err := cp.save(ix.artifacts); err != nil {
			return report, fmt.Errorf("persist checkpoint: %w", err)
		}
		for _, id := range ids {
			indexed[id] = struct{}{}
		}

		report.BatchesProcessed++
		report.DocumentsEmbedded += len(ids)
		ix.observer.ObserveBatch(BatchCommitted, len(ids))
		log.Debug("embedding batch committed",
			zap.Int("batch_start", batchStart),
			zap.Int("batch_len", len(ids)),
			zap.Int("size", cp.size()))
	}

	owned = false
	ix.install(cp)
	report.Dimension = cp.dim
	report.Size = cp.size()
	report.Duration = time.Since(start)
	log.Info("vector build finished",
		zap.Int("size", report.Size),
		zap.Int("batches_processed", report.BatchesProcessed),
		zap.Int("batches_skipped", report.BatchesSkipped),
		zap.Int("documents_empty", report.DocumentsEmpty),
		zap.Duration("duration", report.Duration))
	return report, nil
}

func (ix *Index) embedBatch(ctx context.Context, texts []string, timeout time.Duration) ([][]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	vectors, err := ix.embedder.EmbedBatch(callCtx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("provider returned %d vectors for %d texts", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("provider returned an empty vector for text %d", i)
		}
	}
	return vectors, nil
}

// install makes cp the searchable generation.
func (ix *Index) install(cp *checkpoint) {
	ix.mu.Lock()
	old := ix.current
	ix.current = cp
	ix.ready = true
	ix.mu.Unlock()
	if old != nil && old != cp {
		old.close()
	}
	ix.observer.SetIndexSize(cp.size())
}

// Search returns up to topK documents most similar to queryEmbedding, best first.
// The query is normalized to unit length before the inner-product search.
func (ix *Index) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Hit, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if !ix.ready {
		return nil, ErrNotReady
	}
	if topK <= 0 || ix.current.backend == nil || ix.current.size() == 0 {
		return []Hit{}, nil
	}
	if len(queryEmbedding) != ix.current.dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(queryEmbedding), ix.current.dim)
	}
	neighbors, err := ix.current.backend.Search(ctx, utils.NormalizedCopy(queryEmbedding), topK)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	hits := make([]Hit, 0, len(neighbors))
	for _, n := range neighbors {
		if n.Row < 0 || n.Row >= len(ix.current.ids) {
			continue
		}
		hits = append(hits, Hit{DocumentID: ix.current.ids[n.Row], Score: n.Score})
	}
	return hits, nil
}

// SearchText embeds query with a bounded timeout and searches with the result.
// A blank query yields no hits.
func (ix *Index) SearchText(ctx context.Context, query string, topK int) ([]Hit, error) {
	if !ix.IsReady() {
		return nil, ErrNotReady
	}
	if strings.TrimSpace(query) == "" || topK <= 0 {
		return []Hit{}, nil
	}
	callCtx, cancel := context.WithTimeout(ctx, ix.queryTimeout)
	defer cancel()
	q, err := ix.embedder.Embed(callCtx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return ix.Search(ctx, q, topK)
}

// IsReady reports whether a build or load has completed.
func (ix *Index) IsReady() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.ready
}

// Size returns the number of indexed documents.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.current == nil {
		return 0
	}
	return ix.current.size()
}

// Dimension returns the embedding dimension, 0 before the first committed batch.
func (ix *Index) Dimension() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.current == nil {
		return 0
	}
	return ix.current.dim
}

// Artifacts returns the checkpoint file locations.
func (ix *Index) Artifacts() Artifacts {
	return ix.artifacts
}

// Close releases the similarity backend.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.current.close()
	ix.current = nil
	ix.ready = false
	return nil
}

// resumeOffset is the position after the last committed document. When that
// document is no longer in docs, the committed count is used instead.
func resumeOffset(docs []models.Document, ids []string, logger *zap.Logger) int {
	if len(ids) == 0 {
		return 0
	}
	last := ids[len(ids)-1]
	for i := len(docs) - 1; i >= 0; i-- {
		if docs[i].ID == last {
			return i + 1
		}
	}
	offset := len(ids)
	if offset > len(docs) {
		offset = len(docs)
	}
	logger.Warn("last committed document not found, resuming by count",
		zap.String("last_id", last),
		zap.Int("offset", offset))
	return offset
}

// prepareText trims text and cuts it to maxChars runes.
func prepareText(text string, maxChars int) string {
	return strings.TrimSpace(utils.Prefix(strings.TrimSpace(text), maxChars))
}
