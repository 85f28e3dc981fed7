package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/recall/internal/models"
)

const schemaVersion = 1

// seq is assigned once on first insert and survives upserts, which makes it
// the load order.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT    NOT NULL UNIQUE,
	body        TEXT    NOT NULL,
	metadata    TEXT,
	ingested_at INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);
`

const (
	upsertSQL = `
INSERT INTO documents (id, body, metadata, ingested_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	body       = excluded.body,
	metadata   = excluded.metadata,
	updated_at = excluded.updated_at`
	selectOneSQL = `SELECT id, body, metadata FROM documents WHERE id = ?`
	selectAllSQL = `SELECT id, body, metadata FROM documents ORDER BY seq`
)

// SQLiteStorage is the document store backed by a single SQLite file.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage opens dbPath, creating the file, its parent directories
// and the schema as needed.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", dbPath, err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStorage{db: db, path: dbPath}, nil
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported %d", version, schemaVersion)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion)); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Path() string { return s.path }

// SaveDocuments upserts docs atomically and reports how many were written.
func (s *SQLiteStorage) SaveDocuments(ctx context.Context, docs []models.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	stamp := time.Now().UTC().Unix()
	for _, doc := range docs {
		meta, err := json.Marshal(doc.Metadata)
		if err != nil {
			return 0, fmt.Errorf("encode metadata for %s: %w", doc.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, doc.ID, doc.Text, string(meta), stamp, stamp); err != nil {
			return 0, fmt.Errorf("upsert %s: %w", doc.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit save: %w", err)
	}
	return len(docs), nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(r rowScanner) (models.Document, error) {
	var (
		doc  models.Document
		meta sql.NullString
	)
	if err := r.Scan(&doc.ID, &doc.Text, &meta); err != nil {
		return models.Document{}, err
	}
	doc.Metadata = map[string]interface{}{}
	if meta.Valid && meta.String != "" && meta.String != "null" {
		if err := json.Unmarshal([]byte(meta.String), &doc.Metadata); err != nil {
			return models.Document{}, fmt.Errorf("decode metadata for %s: %w", doc.ID, err)
		}
		if doc.Metadata == nil {
			doc.Metadata = map[string]interface{}{}
		}
	}
	return doc, nil
}

func (s *SQLiteStorage) GetDocument(ctx context.Context, id string) (models.Document, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx, selectOneSQL, id))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.Document{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	case err != nil:
		return models.Document{}, fmt.Errorf("get %s: %w", id, err)
	}
	return doc, nil
}

func (s *SQLiteStorage) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

// ListDocuments returns the corpus ordered by first insertion.
func (s *SQLiteStorage) ListDocuments(ctx context.Context) ([]models.Document, error) {
	rows, err := s.db.QueryContext(ctx, selectAllSQL)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// Clear empties the corpus.
func (s *SQLiteStorage) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return fmt.Errorf("clear documents: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error { return s.db.Close() }
