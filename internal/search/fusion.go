// Package search combines lexical and vector retrieval: score fusion and
// per-request mode routing.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hyperjump/recall/internal/keyword"
	"github.com/hyperjump/recall/internal/models"
	"github.com/hyperjump/recall/internal/vector"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidWeights is returned for negative fusion weights or when both are zero.
var ErrInvalidWeights = errors.New("invalid fusion weights")

// LexicalRetriever is the lexical side of retrieval.
type LexicalRetriever interface {
	Search(ctx context.Context, query string, topK int) ([]keyword.Hit, error)
}

// VectorRetriever is the dense side of retrieval.
type VectorRetriever interface {
	SearchText(ctx context.Context, query string, topK int) ([]vector.Hit, error)
}

// FusedResult holds a document ID and fused lexical/vector scores.
type FusedResult struct {
	DocumentID   string
	Score        float64
	LexicalScore float64
	VectorScore  float64
}

// NormalizeKeywordScores scales lexical scores into [0,1] by dividing by the
// maximum. When every score is zero the divisor is 1.
func NormalizeKeywordScores(hits []keyword.Hit) map[string]float64 {
	normalized := make(map[string]float64, len(hits))
	if len(hits) == 0 {
		return normalized
	}
	maxScore := 0.0
	for _, h := range hits {
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}
	if maxScore <= 0 {
		maxScore = 1
	}
	for _, h := range hits {
		if _, seen := normalized[h.Document.ID]; seen {
			continue
		}
		normalized[h.Document.ID] = h.Score / maxScore
	}
	return normalized
}

// NormalizeSemanticScores maps cosine similarity from [-1,1] into [0,1] via (s+1)/2.
func NormalizeSemanticScores(hits []vector.Hit) map[string]float64 {
	normalized := make(map[string]float64, len(hits))
	for _, h := range hits {
		if _, seen := normalized[h.DocumentID]; seen {
			continue
		}
		normalized[h.DocumentID] = clamp01((h.Score + 1) / 2)
	}
	return normalized
}

// Fuse merges lexical and vector score maps with weights. A document missing
// from one side scores 0 for that side. The result is sorted by score, then id;
// callers with load-order ordinals re-sort with SortFused.
func Fuse(lexicalScores, vectorScores map[string]float64, lexicalWeight, vectorWeight float64) []*FusedResult {
	scoreMap := make(map[string]*FusedResult, len(lexicalScores)+len(vectorScores))
	for id, score := range lexicalScores {
		scoreMap[id] = &FusedResult{DocumentID: id, LexicalScore: score}
	}
	for id, score := range vectorScores {
		if result, exists := scoreMap[id]; exists {
			result.VectorScore = score
		} else {
			scoreMap[id] = &FusedResult{DocumentID: id, VectorScore: score}
		}
	}
	results := make([]*FusedResult, 0, len(scoreMap))
	for _, result := range scoreMap {
		result.Score = (lexicalWeight * result.LexicalScore) + (vectorWeight * result.VectorScore)
		results = append(results, result)
	}
	SortFused(results, nil)
	return results
}

// SortFused orders results by score descending, then ordinal ascending, then
// id. A nil ordinal function skips the ordinal step.
func SortFused(results []*FusedResult, ordinal func(id string) int) {
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if ordinal != nil {
			oa, ob := ordinal(a.DocumentID), ordinal(b.DocumentID)
			if oa != ob {
				return oa < ob
			}
		}
		return a.DocumentID < b.DocumentID
	})
}

// FusionOptions configure hybrid retrieval.
type FusionOptions struct {
	LexicalWeight float64
	VectorWeight  float64
	// CandidateMultiplier widens each side's candidate pool to topK*CandidateMultiplier.
	CandidateMultiplier int
}

// DefaultFusionOptions returns weights 0.6/0.4 and a 5x candidate pool.
func DefaultFusionOptions() FusionOptions {
	return FusionOptions{LexicalWeight: 0.6, VectorWeight: 0.4, CandidateMultiplier: 5}
}

// Validate rejects negative weights and an all-zero weighting.
func (o FusionOptions) Validate() error {
	if o.LexicalWeight < 0 || o.VectorWeight < 0 {
		return fmt.Errorf("%w: lexical=%v vector=%v", ErrInvalidWeights, o.LexicalWeight, o.VectorWeight)
	}
	if o.LexicalWeight == 0 && o.VectorWeight == 0 {
		return fmt.Errorf("%w: both weights are zero", ErrInvalidWeights)
	}
	return nil
}

// Fusion runs lexical and vector retrieval concurrently and fuses their scores.
type Fusion struct {
	lexical LexicalRetriever
	vector  VectorRetriever
	catalog *Catalog
	opts    FusionOptions
	logger  *zap.Logger
}

// NewFusion validates opts and returns a hybrid retriever.
func NewFusion(lexical LexicalRetriever, vec VectorRetriever, catalog *Catalog, opts FusionOptions, logger *zap.Logger) (*Fusion, error) {
	if lexical == nil || vec == nil || catalog == nil {
		return nil, errors.New("fusion requires lexical and vector retrievers and a catalog")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.CandidateMultiplier <= 0 {
		opts.CandidateMultiplier = DefaultFusionOptions().CandidateMultiplier
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fusion{lexical: lexical, vector: vec, catalog: catalog, opts: opts, logger: logger}, nil
}

// Options returns the effective options.
func (f *Fusion) Options() FusionOptions {
	return f.opts
}

// Search returns up to topK fused results. Every fused score lies in
// [0, LexicalWeight+VectorWeight].
func (f *Fusion) Search(ctx context.Context, query string, topK int) ([]models.RankedResult, error) {
	if topK <= 0 {
		return []models.RankedResult{}, nil
	}
	candidates := topK * f.opts.CandidateMultiplier
	if candidates < topK {
		candidates = topK
	}

	var (
		lexHits []keyword.Hit
		vecHits []vector.Hit
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := f.lexical.Search(gctx, query, candidates)
		if err != nil {
			return fmt.Errorf("lexical search failed: %w", err)
		}
		lexHits = hits
		return nil
	})
	g.Go(func() error {
		hits, err := f.vector.SearchText(gctx, query, candidates)
		if err != nil {
			return fmt.Errorf("vector search failed: %w", err)
		}
		vecHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	matched := make(map[string][]string, len(lexHits))
	for _, h := range lexHits {
		if _, seen := matched[h.Document.ID]; !seen {
			matched[h.Document.ID] = h.MatchedTerms
		}
	}

	fused := Fuse(NormalizeKeywordScores(lexHits), NormalizeSemanticScores(vecHits), f.opts.LexicalWeight, f.opts.VectorWeight)
	SortFused(fused, f.catalog.Ordinal)

	out := make([]models.RankedResult, 0, topK)
	for _, r := range fused {
		if len(out) == topK {
			break
		}
		doc, _, ok := f.catalog.Lookup(r.DocumentID)
		if !ok {
			f.logger.Debug("dropping fused hit for unknown document", zap.String("id", r.DocumentID))
			continue
		}
		terms := matched[r.DocumentID]
		if terms == nil {
			terms = []string{}
		}
		out = append(out, models.RankedResult{
			Document:     doc,
			Score:        r.Score,
			LexicalScore: r.LexicalScore,
			VectorScore:  r.VectorScore,
			MatchedTerms: terms,
			Rank:         len(out) + 1,
		})
	}
	return out, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
