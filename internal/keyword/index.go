// Package keyword provides the lexical (BM25-style) index over the document corpus.
package keyword

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hyperjump/recall/internal/models"
	"go.uber.org/zap"
)

// ErrUnknownScorer is returned for a lexical scorer name that is not recognized.
var ErrUnknownScorer = errors.New("unknown lexical scorer")

// ScorerKind selects how documents are ranked against query tokens.
type ScorerKind string

const (
	// ScorerBleve ranks with an in-memory Bleve index.
	ScorerBleve ScorerKind = "bleve"
	// ScorerBM25 ranks with the built-in Okapi BM25 implementation.
	ScorerBM25 ScorerKind = "bm25"
	// ScorerOverlap ranks by the number of distinct query tokens a document contains.
	ScorerOverlap ScorerKind = "overlap"
)

// ParseScorer maps a config value to a ScorerKind. Empty selects Bleve.
func ParseScorer(s string) (ScorerKind, error) {
	switch ScorerKind(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScorerBleve:
		return ScorerBleve, nil
	case ScorerBM25:
		return ScorerBM25, nil
	case ScorerOverlap:
		return ScorerOverlap, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScorer, s)
}

// Hit is a single lexical search hit.
type Hit struct {
	Document     models.Document
	Score        float64
	MatchedTerms []string
}

// scored is an ordinal into the built corpus with its raw score.
type scored struct {
	ord   int
	score float64
}

// scorer ranks the built corpus against query tokens.
type scorer interface {
	score(ctx context.Context, query []string, limit int) ([]scored, error)
	close() error
}

// Index is a lexical index over an immutable snapshot of documents.
// Build replaces the snapshot wholesale; Search is safe for concurrent use.
type Index struct {
	mu     sync.RWMutex
	kind   ScorerKind
	active ScorerKind
	logger *zap.Logger

	docs   []models.Document
	tokens []map[string]struct{}
	byID   map[string]int
	scorer scorer
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger used for degraded-mode warnings.
func WithLogger(l *zap.Logger) Option {
	return func(ix *Index) {
		if l != nil {
			ix.logger = l
		}
	}
}

// NewIndex returns an empty index using the given scorer.
func NewIndex(kind ScorerKind, opts ...Option) (*Index, error) {
	if _, err := ParseScorer(string(kind)); err != nil {
		return nil, err
	}
	if kind == "" {
		kind = ScorerBleve
	}
	ix := &Index{
		kind:   kind,
		active: kind,
		logger: zap.NewNop(),
		byID:   map[string]int{},
		scorer: &overlapScorer{},
	}
	for _, o := range opts {
		o(ix)
	}
	return ix, nil
}

// Build tokenizes every document and replaces the index contents.
// Documents without tokens stay indexed but can never score.
// If the Bleve scorer cannot be built, the index degrades to token overlap.
func (ix *Index) Build(ctx context.Context, docs []models.Document) error {
	snapshot := make([]models.Document, len(docs))
	tokenized := make([][]string, len(docs))
	sets := make([]map[string]struct{}, len(docs))
	byID := make(map[string]int, len(docs))
	for i, d := range docs {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		snapshot[i] = d.Clone()
		tokenized[i] = Tokenize(d.Text)
		sets[i] = tokenSet(tokenized[i])
		if _, dup := byID[d.ID]; !dup {
			byID[d.ID] = i
		}
	}

	active := ix.kind
	var sc scorer
	switch ix.kind {
	case ScorerBM25:
		sc = newOkapiScorer(tokenized)
	case ScorerOverlap:
		sc = &overlapScorer{sets: sets}
	default:
		bs, err := newBleveScorer(tokenized)
		if err != nil {
			ix.logger.Warn("bleve scorer unavailable, falling back to token overlap", zap.Error(err))
			active = ScorerOverlap
			sc = &overlapScorer{sets: sets}
		} else {
			sc = bs
		}
	}

	ix.mu.Lock()
	old := ix.scorer
	ix.docs = snapshot
	ix.tokens = sets
	ix.byID = byID
	ix.scorer = sc
	ix.active = active
	ix.mu.Unlock()

	if old != nil {
		_ = old.close()
	}
	ix.logger.Debug("lexical index built",
		zap.Int("documents", len(snapshot)),
		zap.String("scorer", string(active)))
	return nil
}

// Search returns up to topK documents with a positive score, best first.
// Equal scores keep build order. A query with no tokens yields no results.
func (ix *Index) Search(ctx context.Context, query string, topK int) ([]Hit, error) {
	if topK <= 0 {
		return []Hit{}, nil
	}
	qTokens := Tokenize(query)
	if len(qTokens) == 0 {
		return []Hit{}, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if len(ix.docs) == 0 {
		return []Hit{}, nil
	}

	ranked, err := ix.scorer.score(ctx, qTokens, topK)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		ix.logger.Warn("lexical scorer failed, using token overlap for this query", zap.Error(err))
		ranked, _ = (&overlapScorer{sets: ix.tokens}).score(ctx, qTokens, topK)
	}

	positive := ranked[:0]
	for _, s := range ranked {
		if s.score > 0 && s.ord >= 0 && s.ord < len(ix.docs) {
			positive = append(positive, s)
		}
	}
	sort.SliceStable(positive, func(i, j int) bool {
		if positive[i].score != positive[j].score {
			return positive[i].score > positive[j].score
		}
		return positive[i].ord < positive[j].ord
	})
	if len(positive) > topK {
		positive = positive[:topK]
	}

	qset := tokenSet(qTokens)
	hits := make([]Hit, len(positive))
	for i, s := range positive {
		hits[i] = Hit{
			Document:     ix.docs[s.ord].Clone(),
			Score:        s.score,
			MatchedTerms: matchedTerms(qset, ix.tokens[s.ord]),
		}
	}
	return hits, nil
}

// Document returns the indexed document with the given id.
func (ix *Index) Document(id string) (models.Document, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	i, ok := ix.byID[id]
	if !ok {
		return models.Document{}, false
	}
	return ix.docs[i].Clone(), true
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Scorer returns the scorer in use after the last Build, which differs from
// the configured one when the index degraded to token overlap.
func (ix *Index) Scorer() ScorerKind {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.active
}

// Close releases scorer resources.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.scorer == nil {
		return nil
	}
	err := ix.scorer.close()
	ix.scorer = &overlapScorer{}
	ix.docs = nil
	ix.tokens = nil
	ix.byID = map[string]int{}
	return err
}

func matchedTerms(query, doc map[string]struct{}) []string {
	out := make([]string, 0, len(query))
	for t := range query {
		if _, ok := doc[t]; ok {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}
