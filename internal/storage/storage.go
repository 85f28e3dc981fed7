// Package storage persists the document corpus and serves it back, in load
// order, to the lexical and vector index builders.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/recall/internal/models"
)

// ErrNotFound is returned when a document id is not stored.
var ErrNotFound = errors.New("document not found")

// DocumentSource yields the full corpus in load order.
type DocumentSource interface {
	ListDocuments(ctx context.Context) ([]models.Document, error)
}

// Storage defines document persistence operations.
type Storage interface {
	DocumentSource

	// SaveDocuments inserts or replaces docs. A replaced document keeps its
	// first load position.
	SaveDocuments(ctx context.Context, docs []models.Document) (int, error)
	GetDocument(ctx context.Context, id string) (models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	CountDocuments(ctx context.Context) (int64, error)
	// Clear removes every document.
	Clear(ctx context.Context) error

	Close() error
}

// SliceSource serves a fixed in-memory corpus.
type SliceSource []models.Document

// ListDocuments implements DocumentSource.
func (s SliceSource) ListDocuments(ctx context.Context) ([]models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]models.Document, len(s))
	for i, d := range s {
		out[i] = d.Clone()
	}
	return out, nil
}
