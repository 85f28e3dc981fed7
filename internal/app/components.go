// Package app wires the retrieval engine together from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hyperjump/recall/internal/config"
	"github.com/hyperjump/recall/internal/embedding"
	"github.com/hyperjump/recall/internal/keyword"
	"github.com/hyperjump/recall/internal/metrics"
	"github.com/hyperjump/recall/internal/models"
	"github.com/hyperjump/recall/internal/ollama"
	"github.com/hyperjump/recall/internal/resilience"
	"github.com/hyperjump/recall/internal/search"
	"github.com/hyperjump/recall/internal/service"
	"github.com/hyperjump/recall/internal/session"
	"github.com/hyperjump/recall/internal/storage"
	"github.com/hyperjump/recall/internal/translate"
	"github.com/hyperjump/recall/internal/vector"
	"go.uber.org/zap"
)

// Components holds initialized services. It is built once per process and
// handed to the command or server that needs it.
type Components struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Storage  *storage.SQLiteStorage
	Executor *resilience.Executor
	Embedder embedding.Embedder
	Sessions session.Store

	// Set by Prepare.
	Lexical *keyword.Index
	Vector  *vector.Index
	Catalog *search.Catalog
	Router  *search.Router
	Service *service.Service

	buildMu     sync.Mutex
	buildCancel context.CancelFunc
	buildDone   chan struct{}
}

// New opens storage and constructs the providers. Indexes are not built
// until Prepare.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Components{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Storage = store

	c.Executor = resilience.NewExecutor(cfg.Resilience, logger)

	embedder, err := embedding.New(embedding.Options{
		Provider:          cfg.Embedding.Provider,
		Dimensions:        cfg.Embedding.Dimensions,
		ModelPath:         cfg.Embedding.ModelPath,
		MaxTokens:         cfg.Embedding.MaxTokens,
		CacheSize:         cfg.Embedding.CacheSize,
		OllamaURL:         cfg.Embedding.OllamaURL,
		Model:             cfg.Embedding.Model,
		Timeout:           cfg.Embedding.Timeout,
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
	}, c.Executor, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.Embedder = embedder

	sessions, err := newSessionStore(ctx, cfg.Session)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}
	c.Sessions = sessions

	if cfg.Vector.EnabledOrDefault() {
		indexType, err := vector.ParseIndexType(cfg.Vector.IndexType)
		if err != nil {
			c.Close()
			return nil, err
		}
		if indexType == vector.IndexTypeFAISS && !vector.IsFAISSAvailable() {
			logger.Warn("faiss not available in this build, falling back to memory index")
			indexType = vector.IndexTypeMemory
		}
		ix, err := vector.NewIndex(embedder, vector.DefaultArtifacts(cfg.Storage.CheckpointDir),
			vector.WithLogger(logger),
			vector.WithIndexType(indexType),
			vector.WithQueryTimeout(cfg.Vector.QueryTimeout),
			vector.WithObserver(c.Metrics),
		)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize vector index: %w", err)
		}
		c.Vector = ix
	}
	return c, nil
}

func newSessionStore(ctx context.Context, cfg config.SessionConfig) (session.Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "redis":
		store, err := session.NewRedisStore(ctx, session.RedisOptions{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			PoolSize:  cfg.Redis.PoolSize,
			KeyPrefix: cfg.Redis.KeyPrefix,
			TTL:       cfg.TTL,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return session.NewMemoryStore(cfg.TTL, cfg.CleanupInterval), nil
	}
}

// newTranslator returns the passthrough translator unless translation is enabled.
func (c *Components) newTranslator() translate.Translator {
	tc := c.Config.Translation
	if !tc.Enabled {
		return translate.Passthrough{}
	}
	client := ollama.New(tc.OllamaURL, ollama.WithExecutor(c.Executor), ollama.WithLogger(c.Logger))
	return translate.NewOllamaTranslator(client, translate.OllamaOptions{
		Model:    tc.Model,
		Timeout:  tc.Timeout,
		MaxWords: tc.MaxWords,
	}, c.Logger)
}

// Prepare loads the corpus, builds the lexical index, loads the vector
// checkpoint when one exists, and assembles the search pipeline.
func (c *Components) Prepare(ctx context.Context) error {
	docs, err := c.Storage.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("failed to load documents: %w", err)
	}

	scorer, err := keyword.ParseScorer(c.Config.Retrieval.LexicalScorer)
	if err != nil {
		return err
	}
	lex, err := keyword.NewIndex(scorer, keyword.WithLogger(c.Logger))
	if err != nil {
		return err
	}
	if err := lex.Build(ctx, docs); err != nil {
		return fmt.Errorf("failed to build lexical index: %w", err)
	}
	c.Lexical = lex
	c.Catalog = search.NewCatalog(docs)

	routerCfg := search.RouterConfig{
		Lexical:     lex,
		Catalog:     c.Catalog,
		DefaultMode: c.Config.Retrieval.DefaultMode,
		Logger:      c.Logger,
	}
	if c.Vector != nil {
		loaded, err := c.Vector.LoadIfExists(ctx)
		if err != nil {
			c.Logger.Warn("vector checkpoint not loaded", zap.Error(err))
		}
		if loaded {
			c.Metrics.SetIndexSize(c.Vector.Size())
		}
		fusion, err := search.NewFusion(lex, c.Vector, c.Catalog, search.FusionOptions{
			LexicalWeight:       c.Config.Retrieval.LexicalWeight,
			VectorWeight:        c.Config.Retrieval.VectorWeight,
			CandidateMultiplier: c.Config.Retrieval.CandidateMultiplier,
		}, c.Logger)
		if err != nil {
			return err
		}
		routerCfg.Vector = c.Vector
		routerCfg.Fusion = fusion
	}
	router, err := search.NewRouter(routerCfg)
	if err != nil {
		return err
	}
	c.Router = router

	c.Service = service.New(router, c.Sessions,
		service.WithTranslator(c.newTranslator()),
		service.WithRecorder(c.Metrics),
		service.WithLogger(c.Logger),
		service.WithTopK(c.Config.Retrieval.TopK, c.Config.Retrieval.MaxTopK),
	)
	c.Logger.Info("search pipeline ready",
		zap.Int("documents", len(docs)),
		zap.String("lexical_scorer", string(lex.Scorer())),
		zap.String("default_mode", string(router.DefaultMode())),
		zap.Bool("vector_ready", c.Vector != nil && c.Vector.IsReady()))
	return nil
}

// ErrVectorDisabled is returned by BuildVectors when the vector index is turned off.
var ErrVectorDisabled = errors.New("vector index is disabled")

// BuildVectors builds or resumes the vector checkpoint over the stored corpus.
func (c *Components) BuildVectors(ctx context.Context, force bool) (*vector.BuildReport, error) {
	if c.Vector == nil {
		return nil, ErrVectorDisabled
	}
	docs, err := c.Storage.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	return c.Vector.BuildAndSave(ctx, docs, vector.BuildOptions{
		BatchSize:    c.Config.Vector.BatchSize,
		MaxChars:     c.Config.Vector.MaxChars,
		ForceRebuild: force || c.Config.Vector.ForceRebuild,
		BatchTimeout: c.Config.Vector.BatchTimeout,
	})
}

// StartBackgroundBuild runs BuildVectors in a goroutine. Searches keep using
// the previously installed index until it finishes. Close cancels and waits.
func (c *Components) StartBackgroundBuild(ctx context.Context, force bool) {
	if c.Vector == nil {
		return
	}
	c.buildMu.Lock()
	defer c.buildMu.Unlock()
	if c.buildDone != nil {
		return
	}
	buildCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.buildCancel = cancel
	c.buildDone = done
	go func() {
		defer close(done)
		report, err := c.BuildVectors(buildCtx, force)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				c.Logger.Info("vector build interrupted; it will resume from the last checkpoint")
				return
			}
			c.Logger.Error("vector build failed", zap.Error(err))
			return
		}
		c.Logger.Info("vector index ready",
			zap.String("run_id", report.RunID),
			zap.Int("size", report.Size),
			zap.Bool("partial", report.Partial()))
	}()
}

// WaitBuild blocks until a background build started by StartBackgroundBuild
// finishes or timeout elapses. It reports whether the build finished.
func (c *Components) WaitBuild(timeout time.Duration) bool {
	c.buildMu.Lock()
	done := c.buildDone
	c.buildMu.Unlock()
	if done == nil {
		return true
	}
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Status summarizes the engine state.
type Status struct {
	Documents        int64             `json:"documents"`
	VectorEnabled    bool              `json:"vector_enabled"`
	VectorReady      bool              `json:"vector_ready"`
	VectorIndexSize  int               `json:"vector_index_size"`
	VectorDimension  int               `json:"vector_dimension,omitempty"`
	VectorIndexType  string            `json:"vector_index_type,omitempty"`
	LexicalScorer    string            `json:"lexical_scorer,omitempty"`
	DefaultMode      string            `json:"default_mode"`
	SessionBackend   string            `json:"session_backend"`
	DiskUsageBytes   *int64            `json:"disk_usage_bytes,omitempty"`
	DatabasePath     string            `json:"database_path,omitempty"`
	CheckpointDir    string            `json:"checkpoint_dir,omitempty"`
	// ProviderBreakers maps each Ollama operation called so far to its
	// circuit breaker state.
	ProviderBreakers map[string]string `json:"provider_breakers,omitempty"`
}

// Status reports document counts, index readiness and disk usage.
func (c *Components) Status(ctx context.Context) (*Status, error) {
	count, err := c.Storage.CountDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	st := &Status{
		Documents:      count,
		VectorEnabled:  c.Vector != nil,
		DefaultMode:    c.Config.Retrieval.DefaultMode,
		SessionBackend: c.Config.Session.Backend,
		DatabasePath:   c.Config.Storage.DatabasePath,
		CheckpointDir:  c.Config.Storage.CheckpointDir,
	}
	if c.Router != nil {
		st.DefaultMode = string(c.Router.DefaultMode())
	}
	if c.Lexical != nil {
		st.LexicalScorer = string(c.Lexical.Scorer())
	}
	if c.Vector != nil {
		st.VectorReady = c.Vector.IsReady()
		st.VectorIndexSize = c.Vector.Size()
		st.VectorDimension = c.Vector.Dimension()
		st.VectorIndexType = c.Config.Vector.IndexType
	}
	if c.Executor != nil {
		st.ProviderBreakers = c.Executor.States()
	}
	if n, err := storage.DiskUsageBytes(c.Config.Storage.DatabasePath, c.Config.Storage.CheckpointDir); err == nil {
		st.DiskUsageBytes = &n
	}
	return st, nil
}

// Search runs a request through the pipeline assembled by Prepare.
func (c *Components) Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error) {
	if c.Service == nil {
		return nil, errors.New("components not prepared")
	}
	return c.Service.Search(ctx, req)
}

// Close stops a background build and releases every resource.
func (c *Components) Close() {
	c.buildMu.Lock()
	cancel, done := c.buildCancel, c.buildDone
	c.buildMu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	if c.Vector != nil {
		_ = c.Vector.Close()
	}
	if c.Lexical != nil {
		_ = c.Lexical.Close()
	}
	if c.Sessions != nil {
		_ = c.Sessions.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}
