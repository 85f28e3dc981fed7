package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/recall/internal/models"
	"go.uber.org/zap"
)

var (
	// ErrUnknownMode is returned for a retrieval mode name that is not recognized.
	ErrUnknownMode = errors.New("unknown retrieval mode")
	// ErrModeUnavailable is returned when the retriever behind a mode was not configured.
	ErrModeUnavailable = errors.New("retrieval mode unavailable")
)

// Mode selects the retriever for a request.
type Mode string

const (
	ModeLexical Mode = "lexical"
	ModeVector  Mode = "vector"
	ModeHybrid  Mode = "hybrid"
)

// ParseMode trims and lowercases s. "bm25" is accepted as a name for lexical.
func ParseMode(s string) (Mode, error) {
	switch m := strings.ToLower(strings.TrimSpace(s)); m {
	case string(ModeLexical), "bm25":
		return ModeLexical, nil
	case string(ModeVector):
		return ModeVector, nil
	case string(ModeHybrid):
		return ModeHybrid, nil
	default:
		return "", fmt.Errorf("%w: %q (supported: lexical, vector, hybrid)", ErrUnknownMode, s)
	}
}

// RouterConfig wires the retrievers behind each mode. Any retriever may be
// nil; requests for its mode then fail with ErrModeUnavailable.
type RouterConfig struct {
	Lexical     LexicalRetriever
	Vector      VectorRetriever
	Fusion      *Fusion
	Catalog     *Catalog
	DefaultMode string
	Logger      *zap.Logger
}

// Router dispatches each request to the retriever of its mode.
type Router struct {
	lexical     LexicalRetriever
	vector      VectorRetriever
	fusion      *Fusion
	catalog     *Catalog
	defaultMode Mode
	logger      *zap.Logger
}

// NewRouter validates the default mode and that its retriever is configured.
func NewRouter(cfg RouterConfig) (*Router, error) {
	def := cfg.DefaultMode
	if strings.TrimSpace(def) == "" {
		def = string(ModeHybrid)
	}
	mode, err := ParseMode(def)
	if err != nil {
		return nil, fmt.Errorf("default mode: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{
		lexical:     cfg.Lexical,
		vector:      cfg.Vector,
		fusion:      cfg.Fusion,
		catalog:     cfg.Catalog,
		defaultMode: mode,
		logger:      logger,
	}
	if !r.Available(mode) {
		return nil, fmt.Errorf("default mode %q: %w", mode, ErrModeUnavailable)
	}
	return r, nil
}

// DefaultMode returns the mode used when a request names none.
func (r *Router) DefaultMode() Mode {
	return r.defaultMode
}

// Available reports whether mode can be served.
func (r *Router) Available(mode Mode) bool {
	switch mode {
	case ModeLexical:
		return r.lexical != nil
	case ModeVector:
		return r.vector != nil && r.catalog != nil
	case ModeHybrid:
		return r.fusion != nil
	}
	return false
}

// Resolve maps a requested mode name to a Mode, applying the default for "".
func (r *Router) Resolve(mode string) (Mode, error) {
	if strings.TrimSpace(mode) == "" {
		return r.defaultMode, nil
	}
	return ParseMode(mode)
}

// Search runs query in the requested mode. Lexical and vector modes return
// their raw component scores; hybrid returns fused scores.
func (r *Router) Search(ctx context.Context, query string, topK int, mode string) ([]models.RankedResult, Mode, error) {
	m, err := r.Resolve(mode)
	if err != nil {
		return nil, "", err
	}
	if !r.Available(m) {
		return nil, m, fmt.Errorf("%q: %w", m, ErrModeUnavailable)
	}
	if topK <= 0 {
		return []models.RankedResult{}, m, nil
	}

	var results []models.RankedResult
	switch m {
	case ModeLexical:
		results, err = r.searchLexical(ctx, query, topK)
	case ModeVector:
		results, err = r.searchVector(ctx, query, topK)
	default:
		results, err = r.fusion.Search(ctx, query, topK)
	}
	if err != nil {
		return nil, m, err
	}
	r.logger.Debug("routed search",
		zap.String("mode", string(m)),
		zap.Int("top_k", topK),
		zap.Int("results", len(results)))
	return results, m, nil
}

func (r *Router) searchLexical(ctx context.Context, query string, topK int) ([]models.RankedResult, error) {
	hits, err := r.lexical.Search(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}
	out := make([]models.RankedResult, 0, len(hits))
	for _, h := range hits {
		terms := h.MatchedTerms
		if terms == nil {
			terms = []string{}
		}
		out = append(out, models.RankedResult{
			Document:     h.Document,
			Score:        h.Score,
			LexicalScore: h.Score,
			MatchedTerms: terms,
			Rank:         len(out) + 1,
		})
	}
	return out, nil
}

func (r *Router) searchVector(ctx context.Context, query string, topK int) ([]models.RankedResult, error) {
	hits, err := r.vector.SearchText(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	out := make([]models.RankedResult, 0, len(hits))
	for _, h := range hits {
		doc, _, ok := r.catalog.Lookup(h.DocumentID)
		if !ok {
			continue
		}
		out = append(out, models.RankedResult{
			Document:     doc,
			Score:        h.Score,
			VectorScore:  h.Score,
			MatchedTerms: []string{},
			Rank:         len(out) + 1,
		})
	}
	return out, nil
}
