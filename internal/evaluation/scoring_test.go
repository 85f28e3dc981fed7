package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreRank(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		returned []string
		want     int
	}{
		{"negative with no hits", "", nil, 100},
		{"negative with hits", "", []string{"a"}, 50},
		{"no hits", "x", nil, 0},
		{"missing", "x", []string{"a", "b"}, 30},
		{"first", "x", []string{"x", "a"}, 100},
		{"third", "x", []string{"a", "b", "x"}, 90},
		{"fifth", "x", []string{"a", "b", "c", "d", "x"}, 80},
		{"sixth", "x", []string{"a", "b", "c", "d", "e", "x"}, 70},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScoreRank(tt.expected, tt.returned))
		})
	}
}

func TestOverlapScore(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		matched []string
		want    int
	}{
		{"empty query", "", []string{"a"}, 0},
		{"full", "Garlic Basil", []string{"garlic", "basil"}, 100},
		{"truncated third", "garlic basil lemon", []string{"garlic"}, 33},
		{"repeated words count once", "garlic garlic basil", []string{"garlic"}, 50},
		{"matched terms are not lowercased", "garlic", []string{"Garlic"}, 0},
		{"none", "garlic", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OverlapScore(tt.query, tt.matched))
		})
	}
}

func TestCaseScore(t *testing.T) {
	tests := []struct {
		name  string
		steps []StepResult
		want  int
	}{
		{"no steps", nil, 60},
		{"hit on an early step wins", []StepResult{{HitTop5: true}, {StepQuery: "x"}}, 100},
		{"hit on the last step", []StepResult{{StepQuery: "a"}, {HitTop5: true}}, 100},
		{"miss floors at sixty", []StepResult{{StepQuery: "garlic basil lemon", MatchedTerms: []string{"garlic"}}}, 60},
		{"miss uses final step overlap", []StepResult{
			{StepQuery: "unrelated"},
			{StepQuery: "garlic basil lemon cream", MatchedTerms: []string{"garlic", "basil", "lemon"}},
		}, 75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CaseScore(tt.steps))
		})
	}
}

func TestGrade(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{100, "A"}, {90, "A"}, {89.99, "B"}, {80, "B"}, {70, "C"}, {60, "D"}, {59.99, "F"}, {0, "F"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Grade(tt.score), "score %v", tt.score)
	}
}

func TestSummarize(t *testing.T) {
	results := []CaseResult{
		{Category: "progressive_refinement", Difficulty: "easy", Score: 100},
		{Category: "progressive_refinement", Difficulty: "hard", Score: 60},
		{Category: "description_refinement", Difficulty: "hard", Score: 70},
		{Category: "single_step", Difficulty: "easy", Score: 100},
	}
	s := Summarize(results, DefaultCategoryWeights)

	assert.Equal(t, map[string]float64{
		"progressive_refinement": 80,
		"description_refinement": 70,
		"single_step":            100,
	}, s.CategoryScores)
	assert.Equal(t, map[string]float64{"easy": 100, "hard": 65}, s.DifficultyScores)
	assert.Equal(t, 75.0, s.WeightSumPresent)
	// (0.8*40 + 0.7*35) / 75 * 100
	assert.Equal(t, 75.33, s.OverallScore)
	assert.Equal(t, "C", s.Grade)
}

func TestSummarizeWithoutWeightedCategories(t *testing.T) {
	s := Summarize([]CaseResult{{Category: "single_step", Difficulty: "easy", Score: 100}}, DefaultCategoryWeights)
	assert.Zero(t, s.OverallScore)
	assert.Zero(t, s.WeightSumPresent)
	assert.Equal(t, "F", s.Grade)
	assert.Equal(t, 100.0, s.CategoryScores["single_step"])
}
