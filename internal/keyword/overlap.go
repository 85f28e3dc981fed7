package keyword

import "context"

// overlapScorer scores a document by how many distinct query tokens it contains.
type overlapScorer struct {
	sets []map[string]struct{}
}

func (o *overlapScorer) score(ctx context.Context, query []string, _ int) ([]scored, error) {
	qset := tokenSet(query)
	out := make([]scored, 0)
	for ord, doc := range o.sets {
		n := 0
		for t := range qset {
			if _, ok := doc[t]; ok {
				n++
			}
		}
		if n > 0 {
			out = append(out, scored{ord: ord, score: float64(n)})
		}
	}
	return out, nil
}

func (o *overlapScorer) close() error { return nil }
