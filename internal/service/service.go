// Package service runs the search pipeline: translation, session memory,
// query expansion, routed retrieval and response shaping.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/recall/internal/keyword"
	"github.com/hyperjump/recall/internal/models"
	"github.com/hyperjump/recall/internal/search"
	"github.com/hyperjump/recall/internal/session"
	"github.com/hyperjump/recall/internal/translate"
	"github.com/hyperjump/recall/internal/vector"
	"github.com/hyperjump/recall/pkg/utils"
	"go.uber.org/zap"
)

// ErrTranslation wraps translator failures. Retrieval is not attempted.
var ErrTranslation = errors.New("query translation failed")

// PreviewLength is the number of characters of document text in a result preview.
const PreviewLength = 200

// Searcher routes a query to a retriever.
type Searcher interface {
	Search(ctx context.Context, query string, topK int, mode string) ([]models.RankedResult, search.Mode, error)
	Resolve(mode string) (search.Mode, error)
	Available(mode search.Mode) bool
	DefaultMode() search.Mode
}

// Recorder receives per-request measurements.
type Recorder interface {
	RecordSearch(mode, outcome string, results int, duration time.Duration)
	RecordSessionWrite()
}

type nopRecorder struct{}

func (nopRecorder) RecordSearch(string, string, int, time.Duration) {}
func (nopRecorder) RecordSessionWrite()                             {}

// Service is the search pipeline.
type Service struct {
	router     Searcher
	sessions   session.Store
	translator translate.Translator
	recorder   Recorder
	logger     *zap.Logger
	topK       int
	maxTopK    int
}

// Option configures a Service.
type Option func(*Service)

// WithTranslator sets the query translator. The default passes queries through.
func WithTranslator(t translate.Translator) Option {
	return func(s *Service) {
		if t != nil {
			s.translator = t
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTopK sets the default result count and its upper bound.
func WithTopK(def, max int) Option {
	return func(s *Service) {
		if def > 0 {
			s.topK = def
		}
		if max > 0 {
			s.maxTopK = max
		}
	}
}

// New returns a pipeline over router and sessions.
func New(router Searcher, sessions session.Store, opts ...Option) *Service {
	s := &Service{
		router:     router,
		sessions:   sessions,
		translator: translate.Passthrough{},
		recorder:   nopRecorder{},
		logger:     zap.NewNop(),
		topK:       20,
		maxTopK:    100,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.topK > s.maxTopK {
		s.topK = s.maxTopK
	}
	return s
}

// Search runs one request through the pipeline. A request without query text
// returns an empty response and leaves session memory untouched.
func (s *Service) Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error) {
	start := time.Now()
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = session.DefaultID
	}
	resp := &models.SearchResponse{
		Results:       []models.SearchHit{},
		SessionID:     sessionID,
		RetrievalMode: requestedMode(req.RetrievalMode, s.router.DefaultMode()),
	}

	queryText := buildQueryText(req)
	resp.Query = queryText
	if queryText == "" {
		return resp, nil
	}

	// Reject a bad mode before anything is written to session memory.
	mode, err := s.router.Resolve(req.RetrievalMode)
	if err == nil && !s.router.Available(mode) {
		err = fmt.Errorf("%q: %w", mode, search.ErrModeUnavailable)
	}
	if mode != "" {
		resp.RetrievalMode = string(mode)
	}
	if err != nil {
		s.recorder.RecordSearch(resp.RetrievalMode, outcome(err), 0, time.Since(start))
		return nil, err
	}

	translated, err := s.translator.Translate(ctx, queryText)
	if err != nil {
		s.recorder.RecordSearch(resp.RetrievalMode, "translation_error", 0, time.Since(start))
		return nil, fmt.Errorf("%w: %w", ErrTranslation, err)
	}

	if err := s.sessions.StoreQuery(ctx, sessionID, translated); err != nil {
		return nil, fmt.Errorf("store session query: %w", err)
	}
	if err := s.sessions.StoreTerms(ctx, sessionID, keyword.Tokenize(translated)); err != nil {
		return nil, fmt.Errorf("store session terms: %w", err)
	}
	s.recorder.RecordSessionWrite()

	enhanced, err := s.sessions.BuildEnhancedQuery(ctx, sessionID, translated)
	if err != nil {
		return nil, fmt.Errorf("build enhanced query: %w", err)
	}
	resp.EnhancedQuery = enhanced

	results, routed, err := s.router.Search(ctx, enhanced, s.limit(req.TopK), string(mode))
	if routed != "" {
		resp.RetrievalMode = string(routed)
	}
	if err != nil {
		s.recorder.RecordSearch(resp.RetrievalMode, outcome(err), 0, time.Since(start))
		s.logger.Warn("search failed",
			zap.String("session_id", sessionID),
			zap.String("mode", resp.RetrievalMode),
			zap.Error(err))
		return nil, err
	}

	for _, r := range results {
		resp.Results = append(resp.Results, toHit(r))
	}
	resp.Total = len(resp.Results)
	elapsed := time.Since(start)
	resp.QueryTime = elapsed.Milliseconds()
	s.recorder.RecordSearch(resp.RetrievalMode, "ok", resp.Total, elapsed)

	s.logger.Debug("search completed",
		zap.String("session_id", sessionID),
		zap.String("query", queryText),
		zap.String("enhanced_query", enhanced),
		zap.String("mode", resp.RetrievalMode),
		zap.Int("results", resp.Total),
		zap.Duration("elapsed", elapsed))
	return resp, nil
}

// Session returns the memory accumulated by a session.
func (s *Service) Session(ctx context.Context, sessionID string) (models.SessionSnapshot, error) {
	return s.sessions.Snapshot(ctx, sessionID)
}

// limit applies the default and the upper bound to a requested topK.
func (s *Service) limit(requested int) int {
	if requested <= 0 {
		return s.topK
	}
	if requested > s.maxTopK {
		return s.maxTopK
	}
	return requested
}

func buildQueryText(req models.SearchRequest) string {
	if q := strings.TrimSpace(req.Query); q != "" {
		return q
	}
	return strings.TrimSpace(utils.JoinNonEmpty(" ", req.Terms...))
}

func requestedMode(requested string, def search.Mode) string {
	if m, err := search.ParseMode(requested); err == nil {
		return string(m)
	}
	if strings.TrimSpace(requested) != "" {
		return strings.ToLower(strings.TrimSpace(requested))
	}
	return string(def)
}

func toHit(r models.RankedResult) models.SearchHit {
	terms := r.MatchedTerms
	if terms == nil {
		terms = []string{}
	}
	return models.SearchHit{
		ID:           r.Document.ID,
		Score:        utils.Round(r.Score, 4),
		Rank:         r.Rank,
		LexicalScore: utils.Round(r.LexicalScore, 4),
		VectorScore:  utils.Round(r.VectorScore, 4),
		Metadata: models.ResultMetadata{
			Name:         r.Document.Name(),
			MatchedTerms: terms,
			Preview:      utils.Prefix(r.Document.Text, PreviewLength),
		},
	}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, search.ErrUnknownMode):
		return "unknown_mode"
	case errors.Is(err, search.ErrModeUnavailable):
		return "unavailable"
	case errors.Is(err, vector.ErrNotReady):
		return "not_ready"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "error"
	}
}
