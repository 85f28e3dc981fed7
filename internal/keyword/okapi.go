package keyword

import (
	"context"
	"math"
)

const (
	okapiK1 = 1.2
	okapiB  = 0.75
)

type posting struct {
	ord   int
	count int
}

// okapiScorer is an in-memory Okapi BM25 ranking over the built corpus.
type okapiScorer struct {
	inverted   map[string][]posting
	docLengths []int
	avgDL      float64
	docCount   int
}

func newOkapiScorer(tokenized [][]string) *okapiScorer {
	s := &okapiScorer{
		inverted:   make(map[string][]posting),
		docLengths: make([]int, len(tokenized)),
		docCount:   len(tokenized),
	}
	var total int
	for ord, toks := range tokenized {
		s.docLengths[ord] = len(toks)
		total += len(toks)
		tf := make(map[string]int)
		for _, t := range toks {
			tf[t]++
		}
		for t, c := range tf {
			s.inverted[t] = append(s.inverted[t], posting{ord: ord, count: c})
		}
	}
	if s.docCount > 0 {
		s.avgDL = float64(total) / float64(s.docCount)
	}
	return s
}

func (s *okapiScorer) score(ctx context.Context, query []string, _ int) ([]scored, error) {
	if s.docCount == 0 || s.avgDL == 0 {
		return nil, nil
	}
	acc := make(map[int]float64)
	for _, t := range query {
		postings, ok := s.inverted[t]
		if !ok {
			continue
		}
		idf := s.idf(len(postings))
		for _, p := range postings {
			tf := float64(p.count)
			dl := float64(s.docLengths[p.ord])
			num := tf * (okapiK1 + 1)
			denom := tf + okapiK1*(1-okapiB+okapiB*(dl/s.avgDL))
			acc[p.ord] += idf * (num / denom)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]scored, 0, len(acc))
	for ord, sc := range acc {
		out = append(out, scored{ord: ord, score: sc})
	}
	return out, nil
}

// idf = ln(1 + (N - n + 0.5) / (n + 0.5)), always positive.
func (s *okapiScorer) idf(df int) float64 {
	n := float64(df)
	return math.Log(1 + (float64(s.docCount)-n+0.5)/(n+0.5))
}

func (s *okapiScorer) close() error { return nil }
