package evaluation

import (
	"math"
	"slices"
	"strings"
)

// DefaultCategoryWeights weight each category's average in the overall
// score. Categories missing here are reported but carry no weight.
var DefaultCategoryWeights = map[string]float64{
	"progressive_refinement":   40,
	"description_refinement":   35,
	"multilingual_progressive": 25,
}

const (
	hitScore   = 100
	floorScore = 60
	hitDepth   = 5
)

// ScoreRank grades where expected sits in returned. An empty expected id is
// a negative case: 100 when nothing came back, 50 otherwise.
func ScoreRank(expected string, returned []string) int {
	if expected == "" {
		if len(returned) == 0 {
			return 100
		}
		return 50
	}
	if len(returned) == 0 {
		return 0
	}
	i := slices.Index(returned, expected)
	switch {
	case i < 0:
		return 30
	case i == 0:
		return 100
	case i < 3:
		return 90
	case i < 5:
		return 80
	default:
		return 70
	}
}

// OverlapScore is the percentage, truncated, of distinct lowercased query
// words that appear in matched.
func OverlapScore(query string, matched []string) int {
	words := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(query)) {
		words[w] = struct{}{}
	}
	if len(words) == 0 {
		return 0
	}
	hits := 0
	for w := range words {
		if slices.Contains(matched, w) {
			hits++
		}
	}
	return hits * 100 / len(words)
}

// CaseScore is 100 when any step put the expected id in its top five.
// Otherwise the final step's query overlap with its top hit's matched terms
// decides, floored at 60.
func CaseScore(steps []StepResult) int {
	for _, s := range steps {
		if s.HitTop5 {
			return hitScore
		}
	}
	if len(steps) == 0 {
		return floorScore
	}
	last := steps[len(steps)-1]
	return max(floorScore, OverlapScore(last.StepQuery, last.MatchedTerms))
}

// Grade maps an overall score to a letter.
func Grade(score float64) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

// Summary is the graded outcome of a run.
type Summary struct {
	RunLabel         string             `json:"run_label"`
	OverallScore     float64            `json:"overall_score"`
	Grade            string             `json:"grade"`
	CategoryScores   map[string]float64 `json:"category_scores"`
	DifficultyScores map[string]float64 `json:"difficulty_scores"`
	TotalRuntimeSec  float64            `json:"total_runtime_sec"`
	WeightSumPresent float64            `json:"weight_sum_present"`
}

// Summarize averages case scores per category and per difficulty and
// combines the weighted category averages into an overall score. Only
// categories with a positive weight contribute; with none present the
// overall score is 0.
func Summarize(results []CaseResult, weights map[string]float64) Summary {
	byCategory := make(map[string][]int)
	byDifficulty := make(map[string][]int)
	for _, r := range results {
		byCategory[r.Category] = append(byCategory[r.Category], r.Score)
		byDifficulty[r.Difficulty] = append(byDifficulty[r.Difficulty], r.Score)
	}

	s := Summary{
		CategoryScores:   make(map[string]float64, len(byCategory)),
		DifficultyScores: make(map[string]float64, len(byDifficulty)),
	}
	var weighted float64
	for cat, scores := range byCategory {
		avg := mean(scores)
		s.CategoryScores[cat] = round2(avg)
		if w := weights[cat]; w > 0 {
			weighted += avg / 100 * w
			s.WeightSumPresent += w
		}
	}
	for diff, scores := range byDifficulty {
		s.DifficultyScores[diff] = round2(mean(scores))
	}
	if s.WeightSumPresent > 0 {
		s.OverallScore = round2(weighted / s.WeightSumPresent * 100)
	}
	s.Grade = Grade(s.OverallScore)
	return s
}

func mean(xs []int) float64 {
	sum := 0
	for _, x := range xs {
		sum += x
	}
	return float64(sum) / float64(len(xs))
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
