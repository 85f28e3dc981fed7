package evaluation

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/recall/internal/models"
	"go.uber.org/zap"
)

// DefaultRunLabel tags summaries when no label is configured.
const DefaultRunLabel = "v6_clean_progressive_eval"

// Searcher is the search entry point under evaluation: the local pipeline or
// a client of a running server.
type Searcher interface {
	Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error)
}

// StepResult records one query of a case.
type StepResult struct {
	StepIndex     int      `json:"step_index"`
	StepQuery     string   `json:"step_query"`
	Top1ID        string   `json:"top1_id,omitempty"`
	Top1Score     *float64 `json:"top1_score,omitempty"`
	HitTop5       bool     `json:"hit_top5"`
	ReturnedTop5  []string `json:"returned_top5"`
	MatchedTerms  []string `json:"matched_terms"`
	EnhancedQuery string   `json:"enhanced_query,omitempty"`

	returned []string
}

// CaseResult is the scored outcome of one case. RankScore grades the final
// step's full result list with ScoreRank and does not feed the summary.
type CaseResult struct {
	TestID     string       `json:"test_id"`
	Category   string       `json:"category"`
	Difficulty string       `json:"difficulty"`
	ExpectedID *string      `json:"expected_id"`
	Score      int          `json:"score"`
	RankScore  int          `json:"rank_score"`
	Latency    float64      `json:"latency"`
	SessionID  string       `json:"session_id"`
	StepsDebug []StepResult `json:"steps_debug"`
}

// Detailed is the per-case report.
type Detailed struct {
	Tests []CaseResult `json:"tests"`
}

// Report is everything a run produces.
type Report struct {
	Detailed Detailed
	Summary  Summary
}

// Runner replays test cases through a Searcher.
type Runner struct {
	searcher   Searcher
	logger     *zap.Logger
	weights    map[string]float64
	label      string
	mode       string
	topK       int
	newSession func() string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithCategoryWeights replaces DefaultCategoryWeights.
func WithCategoryWeights(w map[string]float64) Option {
	return func(r *Runner) {
		if len(w) > 0 {
			r.weights = w
		}
	}
}

// WithRunLabel sets the summary's run label.
func WithRunLabel(label string) Option {
	return func(r *Runner) {
		if label != "" {
			r.label = label
		}
	}
}

// WithRetrieval fixes the retrieval mode and result count of every query.
// Empty or zero values leave the searcher's defaults in place.
func WithRetrieval(mode string, topK int) Option {
	return func(r *Runner) {
		r.mode = mode
		r.topK = topK
	}
}

// NewRunner returns a runner over s.
func NewRunner(s Searcher, opts ...Option) *Runner {
	r := &Runner{
		searcher:   s,
		logger:     zap.NewNop(),
		weights:    DefaultCategoryWeights,
		label:      DefaultRunLabel,
		newSession: func() string { return "eval_" + uuid.NewString() },
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes every case in its own session and grades the run. A failed
// search aborts the run.
func (r *Runner) Run(ctx context.Context, cases []TestCase) (*Report, error) {
	start := time.Now()
	results := make([]CaseResult, 0, len(cases))
	for _, tc := range cases {
		res, err := r.runCase(ctx, tc)
		if err != nil {
			return nil, fmt.Errorf("case %s: %w", tc.ID, err)
		}
		r.logger.Info("evaluation case scored",
			zap.String("test_id", res.TestID),
			zap.String("category", res.Category),
			zap.Int("score", res.Score),
			zap.Int("rank_score", res.RankScore),
			zap.Float64("latency_sec", res.Latency))
		results = append(results, res)
	}

	summary := Summarize(results, r.weights)
	summary.RunLabel = r.label
	summary.TotalRuntimeSec = round2(time.Since(start).Seconds())
	r.logger.Info("evaluation complete",
		zap.String("run_label", summary.RunLabel),
		zap.Float64("overall_score", summary.OverallScore),
		zap.String("grade", summary.Grade),
		zap.Int("cases", len(results)))
	return &Report{Detailed: Detailed{Tests: results}, Summary: summary}, nil
}

func (r *Runner) runCase(ctx context.Context, tc TestCase) (CaseResult, error) {
	res := CaseResult{
		TestID:     tc.ID,
		Category:   tc.Category,
		Difficulty: tc.Difficulty,
		ExpectedID: tc.ExpectedID,
		SessionID:  r.newSession(),
	}
	expected := tc.expected()
	var elapsed time.Duration
	for i, q := range tc.Queries() {
		began := time.Now()
		resp, err := r.searcher.Search(ctx, models.SearchRequest{
			Query:         q,
			SessionID:     res.SessionID,
			RetrievalMode: r.mode,
			TopK:          r.topK,
		})
		elapsed += time.Since(began)
		if err != nil {
			return res, fmt.Errorf("step %d: %w", i+1, err)
		}
		step := newStep(i+1, q, resp, expected)
		r.logger.Debug("evaluation step",
			zap.String("test_id", tc.ID),
			zap.Int("step", step.StepIndex),
			zap.String("query", q),
			zap.String("enhanced_query", step.EnhancedQuery),
			zap.String("top1_id", step.Top1ID),
			zap.Bool("hit_top5", step.HitTop5))
		res.StepsDebug = append(res.StepsDebug, step)
	}
	res.Latency = elapsed.Seconds()
	res.Score = CaseScore(res.StepsDebug)
	if n := len(res.StepsDebug); n > 0 {
		res.RankScore = ScoreRank(expected, res.StepsDebug[n-1].returned)
	}
	return res, nil
}

func newStep(index int, query string, resp *models.SearchResponse, expected string) StepResult {
	step := StepResult{StepIndex: index, StepQuery: query, MatchedTerms: []string{}}
	if resp == nil {
		step.ReturnedTop5 = []string{}
		return step
	}
	step.EnhancedQuery = resp.EnhancedQuery
	for _, hit := range resp.Results {
		if hit.ID != "" {
			step.returned = append(step.returned, hit.ID)
		}
	}
	step.ReturnedTop5 = append([]string{}, step.returned[:min(hitDepth, len(step.returned))]...)
	if len(resp.Results) > 0 {
		top := resp.Results[0]
		score := top.Score
		step.Top1ID = top.ID
		step.Top1Score = &score
		if top.Metadata.MatchedTerms != nil {
			step.MatchedTerms = top.Metadata.MatchedTerms
		}
	}
	step.HitTop5 = expected != "" && slices.Contains(step.ReturnedTop5, expected)
	return step
}
