package keyword

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/whitespace"
)

const (
	bleveAnalyzer  = "recall_tokens"
	bleveTextField = "text"
	bleveBatchSize = 1000
)

// bleveScorer ranks pre-tokenized documents with an in-memory Bleve index.
// Documents are keyed by their zero-padded build ordinal so that sorting by
// _id after _score keeps build order among equal scores.
type bleveScorer struct {
	index bleve.Index
}

func newBleveScorer(tokenized [][]string) (*bleveScorer, error) {
	im := bleve.NewIndexMapping()
	// Text is already tokenized and lowercased; the analyzer only splits on spaces.
	err := im.AddCustomAnalyzer(bleveAnalyzer, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": whitespace.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register analyzer: %w", err)
	}

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = bleveAnalyzer
	textFieldMapping.Store = false
	textFieldMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt(bleveTextField, textFieldMapping)
	im.DefaultMapping = docMapping
	im.DefaultAnalyzer = bleveAnalyzer

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}

	batch := index.NewBatch()
	for ord, toks := range tokenized {
		if len(toks) == 0 {
			continue
		}
		if err := batch.Index(docKey(ord), map[string]interface{}{
			bleveTextField: strings.Join(toks, " "),
		}); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("failed to index document %d: %w", ord, err)
		}
		if batch.Size() >= bleveBatchSize {
			if err := index.Batch(batch); err != nil {
				_ = index.Close()
				return nil, fmt.Errorf("Bleve batch failed: %w", err)
			}
			batch.Reset()
		}
	}
	if batch.Size() > 0 {
		if err := index.Batch(batch); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("Bleve batch failed: %w", err)
		}
	}
	return &bleveScorer{index: index}, nil
}

func (b *bleveScorer) score(ctx context.Context, query []string, limit int) ([]scored, error) {
	q := bleve.NewMatchQuery(strings.Join(query, " "))
	q.SetField(bleveTextField)
	q.Analyzer = bleveAnalyzer
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.SortBy([]string{"-_score", "_id"})
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]scored, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ord, err := strconv.Atoi(hit.ID)
		if err != nil {
			continue
		}
		out = append(out, scored{ord: ord, score: hit.Score})
	}
	return out, nil
}

func (b *bleveScorer) close() error {
	return b.index.Close()
}

func docKey(ord int) string {
	return fmt.Sprintf("%010d", ord)
}
