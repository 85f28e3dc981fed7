package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/hyperjump/recall/internal/keyword"
	"github.com/hyperjump/recall/internal/vector"
)

func BenchmarkFuse(b *testing.B) {
	lex := make(map[string]float64)
	vec := make(map[string]float64)
	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("d%03d", i)
		lex[id] = float64(i) / 100
		vec[id] = float64(100-i) / 100
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Fuse(lex, vec, 0.6, 0.4)
	}
}

func BenchmarkFusionSearch(b *testing.B) {
	ids := make([]string, 500)
	lexHits := make([]keyword.Hit, 0, len(ids))
	vecHits := make([]vector.Hit, 0, len(ids))
	for i := range ids {
		ids[i] = fmt.Sprintf("d%03d", i)
		lexHits = append(lexHits, lexHit(ids[i], float64(len(ids)-i)))
		vecHits = append(vecHits, vector.Hit{DocumentID: ids[i], Score: float64(i) / float64(len(ids))})
	}
	f, err := NewFusion(&stubLexical{hits: lexHits}, &stubVector{hits: vecHits},
		NewCatalog(testDocs(ids...)), DefaultFusionOptions(), nil)
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = f.Search(ctx, "query", 20)
	}
}
