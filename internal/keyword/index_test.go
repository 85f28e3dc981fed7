package keyword

import (
	"context"
	"testing"

	"github.com/hyperjump/recall/internal/models"
)

func recipes() []models.Document {
	return []models.Document{
		{ID: "1", Text: "Chicken curry with rice and coconut milk", Metadata: map[string]interface{}{"name": "Curry"}},
		{ID: "2", Text: "Tomato soup with basil"},
		{ID: "3", Text: "Grilled chicken salad"},
		{ID: "4", Text: "!!!"},
		{ID: "5", Text: "Rice pudding with cinnamon"},
	}
}

func buildIndex(t *testing.T, kind ScorerKind, docs []models.Document) *Index {
	t.Helper()
	idx, err := NewIndex(kind)
	if err != nil {
		t.Fatalf("NewIndex(%q): %v", kind, err)
	}
	if err := idx.Build(context.Background(), docs); err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func allScorers() []ScorerKind {
	return []ScorerKind{ScorerBleve, ScorerBM25, ScorerOverlap}
}

func TestIndex_SearchFindsContent(t *testing.T) {
	for _, kind := range allScorers() {
		t.Run(string(kind), func(t *testing.T) {
			idx := buildIndex(t, kind, recipes())
			hits, err := idx.Search(context.Background(), "coconut curry", 10)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(hits) != 1 {
				t.Fatalf("got %d hits, want 1", len(hits))
			}
			if hits[0].Document.ID != "1" {
				t.Errorf("first hit = %q, want 1", hits[0].Document.ID)
			}
			want := []string{"coconut", "curry"}
			if len(hits[0].MatchedTerms) != 2 || hits[0].MatchedTerms[0] != want[0] || hits[0].MatchedTerms[1] != want[1] {
				t.Errorf("MatchedTerms = %v, want %v", hits[0].MatchedTerms, want)
			}
			if hits[0].Score <= 0 {
				t.Errorf("score = %v, want > 0", hits[0].Score)
			}
		})
	}
}

func TestIndex_OnlyPositiveScoresReturned(t *testing.T) {
	for _, kind := range allScorers() {
		t.Run(string(kind), func(t *testing.T) {
			idx := buildIndex(t, kind, recipes())
			hits, err := idx.Search(context.Background(), "chicken", 10)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(hits) != 2 {
				t.Fatalf("got %d hits, want 2", len(hits))
			}
			for _, h := range hits {
				if h.Document.ID != "1" && h.Document.ID != "3" {
					t.Errorf("unexpected hit %q", h.Document.ID)
				}
			}
		})
	}
}

func TestIndex_EmptyQuery(t *testing.T) {
	idx := buildIndex(t, ScorerBleve, recipes())
	for _, q := range []string{"", "   ", "?!", "the and or"} {
		hits, err := idx.Search(context.Background(), q, 5)
		if err != nil {
			t.Fatalf("Search(%q): %v", q, err)
		}
		if hits == nil || len(hits) != 0 {
			t.Errorf("Search(%q) = %v, want empty non-nil slice", q, hits)
		}
	}
}

func TestIndex_EmptyCorpus(t *testing.T) {
	for _, kind := range allScorers() {
		t.Run(string(kind), func(t *testing.T) {
			idx := buildIndex(t, kind, nil)
			hits, err := idx.Search(context.Background(), "anything", 5)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(hits) != 0 {
				t.Errorf("got %d hits from empty corpus", len(hits))
			}
		})
	}
}

func TestIndex_TopKBounds(t *testing.T) {
	idx := buildIndex(t, ScorerBM25, recipes())
	hits, err := idx.Search(context.Background(), "rice chicken", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("got %d hits, want 1", len(hits))
	}
	hits, _ = idx.Search(context.Background(), "rice", 0)
	if len(hits) != 0 {
		t.Errorf("topK 0 returned %d hits", len(hits))
	}
}

func TestIndex_TiesKeepBuildOrder(t *testing.T) {
	docs := []models.Document{
		{ID: "c", Text: "lemon tart"},
		{ID: "a", Text: "lemon cake"},
		{ID: "b", Text: "lemon pie"},
	}
	for _, kind := range allScorers() {
		t.Run(string(kind), func(t *testing.T) {
			idx := buildIndex(t, kind, docs)
			hits, err := idx.Search(context.Background(), "lemon", 3)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(hits) != 3 {
				t.Fatalf("got %d hits, want 3", len(hits))
			}
			for i, want := range []string{"c", "a", "b"} {
				if hits[i].Document.ID != want {
					t.Errorf("hit %d = %q, want %q", i, hits[i].Document.ID, want)
				}
			}
		})
	}
}

func TestIndex_Deterministic(t *testing.T) {
	for _, kind := range allScorers() {
		t.Run(string(kind), func(t *testing.T) {
			a := buildIndex(t, kind, recipes())
			b := buildIndex(t, kind, recipes())
			ha, _ := a.Search(context.Background(), "chicken rice soup", 5)
			hb, _ := b.Search(context.Background(), "chicken rice soup", 5)
			if len(ha) != len(hb) {
				t.Fatalf("lengths differ: %d vs %d", len(ha), len(hb))
			}
			for i := range ha {
				if ha[i].Document.ID != hb[i].Document.ID || ha[i].Score != hb[i].Score {
					t.Errorf("hit %d differs: %+v vs %+v", i, ha[i], hb[i])
				}
			}
		})
	}
}

func TestIndex_BM25PrefersRarerTerms(t *testing.T) {
	docs := []models.Document{
		{ID: "1", Text: "rice bowl"},
		{ID: "2", Text: "rice saffron"},
		{ID: "3", Text: "rice beans"},
	}
	idx := buildIndex(t, ScorerBM25, docs)
	hits, err := idx.Search(context.Background(), "rice saffron", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 3 || hits[0].Document.ID != "2" {
		t.Fatalf("expected doc 2 first, got %+v", hits)
	}
}

func TestIndex_BuildReplacesContents(t *testing.T) {
	idx := buildIndex(t, ScorerBleve, recipes())
	if err := idx.Build(context.Background(), []models.Document{{ID: "x", Text: "fresh bread"}}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if idx.Len() != 1 {
		t.Errorf("Len = %d, want 1", idx.Len())
	}
	hits, _ := idx.Search(context.Background(), "chicken", 5)
	if len(hits) != 0 {
		t.Errorf("stale documents still searchable: %+v", hits)
	}
	if _, ok := idx.Document("x"); !ok {
		t.Error("Document(x) not found after rebuild")
	}
}

func TestIndex_CallerCannotMutateIndexedDocuments(t *testing.T) {
	docs := recipes()
	idx := buildIndex(t, ScorerOverlap, docs)
	docs[0].Metadata["name"] = "changed"
	d, ok := idx.Document("1")
	if !ok {
		t.Fatal("Document(1) missing")
	}
	if d.Metadata["name"] != "Curry" {
		t.Errorf("indexed metadata mutated: %v", d.Metadata["name"])
	}
}

func TestParseScorer(t *testing.T) {
	tests := []struct {
		in      string
		want    ScorerKind
		wantErr bool
	}{
		{"", ScorerBleve, false},
		{"BM25", ScorerBM25, false},
		{" overlap ", ScorerOverlap, false},
		{"tfidf", "", true},
		// Okapi is reached through its config name, bm25.
		{"okapi", "", true},
	}
	for _, tt := range tests {
		got, err := ParseScorer(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseScorer(%q) err = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseScorer(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if _, err := NewIndex("nope"); err == nil {
		t.Error("NewIndex accepted unknown scorer")
	}
}
