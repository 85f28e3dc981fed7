package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/recall/internal/models"
	"go.uber.org/zap"
)

// Writer persists normalized documents.
type Writer interface {
	SaveDocuments(ctx context.Context, docs []models.Document) (int, error)
	Clear(ctx context.Context) error
}

// Report summarizes one ingest run.
type Report struct {
	Path      string        `json:"path"`
	Domain    string        `json:"domain"`
	Records   int           `json:"records"`
	Malformed int           `json:"malformed"`
	Skipped   int           `json:"skipped"`
	Stored    int           `json:"stored"`
	Duration  time.Duration `json:"duration"`
}

// Normalize converts records with adapter. Records the adapter rejects are
// skipped and counted.
func Normalize(records []Record, adapter Adapter, logger *zap.Logger) ([]models.Document, int) {
	if logger == nil {
		logger = zap.NewNop()
	}
	docs := make([]models.Document, 0, len(records))
	skipped := 0
	for i, rec := range records {
		doc, err := adapter.Normalize(rec)
		if err != nil {
			skipped++
			logger.Debug("skipping record", zap.Int("index", i), zap.Error(err))
			continue
		}
		docs = append(docs, doc)
	}
	return docs, skipped
}

// Ingester loads a dataset file into a Writer.
type Ingester struct {
	writer    Writer
	adapter   Adapter
	domain    string
	batchSize int
	logger    *zap.Logger
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(in *Ingester) {
		if l != nil {
			in.logger = l
		}
	}
}

// WithBatchSize sets how many documents are written per transaction.
func WithBatchSize(n int) Option {
	return func(in *Ingester) {
		if n > 0 {
			in.batchSize = n
		}
	}
}

// NewIngester returns an ingester for the given domain adapter.
func NewIngester(writer Writer, domain string, opts ...Option) (*Ingester, error) {
	adapter, err := AdapterFor(domain)
	if err != nil {
		return nil, err
	}
	in := &Ingester{
		writer:    writer,
		adapter:   adapter,
		domain:    domain,
		batchSize: 1000,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in, nil
}

// Run loads path, normalizes its records and stores them. With replace set
// the store is cleared first so the dataset becomes the whole corpus.
func (in *Ingester) Run(ctx context.Context, path string, replace bool) (*Report, error) {
	start := time.Now()
	loaded, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	docs, skipped := Normalize(loaded.Records, in.adapter, in.logger)
	report := &Report{
		Path:      path,
		Domain:    in.domain,
		Records:   len(loaded.Records),
		Malformed: loaded.Malformed,
		Skipped:   skipped,
	}

	if replace {
		if err := in.writer.Clear(ctx); err != nil {
			return nil, fmt.Errorf("clear document store: %w", err)
		}
	}
	for i := 0; i < len(docs); i += in.batchSize {
		end := i + in.batchSize
		if end > len(docs) {
			end = len(docs)
		}
		n, err := in.writer.SaveDocuments(ctx, docs[i:end])
		report.Stored += n
		if err != nil {
			return report, fmt.Errorf("store documents: %w", err)
		}
	}
	report.Duration = time.Since(start)
	in.logger.Info("dataset ingested",
		zap.String("path", path),
		zap.String("domain", in.domain),
		zap.Int("records", report.Records),
		zap.Int("malformed", report.Malformed),
		zap.Int("skipped", report.Skipped),
		zap.Int("stored", report.Stored),
		zap.Duration("duration", report.Duration))
	return report, nil
}
