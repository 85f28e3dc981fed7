package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/recall/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStorage_CRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	n, err := store.SaveDocuments(ctx, []models.Document{{
		ID:       "doc1",
		Text:     "Tomato soup",
		Metadata: map[string]interface{}{"name": "Soup"},
	}})
	if err != nil || n != 1 {
		t.Fatalf("SaveDocuments() = %d, %v", n, err)
	}

	got, err := store.GetDocument(ctx, "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "Tomato soup" || got.Name() != "Soup" {
		t.Errorf("got %+v", got)
	}

	if err := store.DeleteDocument(ctx, "doc1"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetDocument(ctx, "doc1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSQLiteStorage_ListKeepsLoadOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	docs := []models.Document{
		{ID: "c", Text: "third"},
		{ID: "a", Text: "first"},
		{ID: "b", Text: "second"},
	}
	if _, err := store.SaveDocuments(ctx, docs); err != nil {
		t.Fatal(err)
	}
	// Replacing a document must not move it to the end.
	if _, err := store.SaveDocuments(ctx, []models.Document{{ID: "c", Text: "updated"}}); err != nil {
		t.Fatal(err)
	}

	list, err := store.ListDocuments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 docs, got %d", len(list))
	}
	wantIDs := []string{"c", "a", "b"}
	for i, d := range list {
		if d.ID != wantIDs[i] {
			t.Errorf("list[%d] = %s, want %s", i, d.ID, wantIDs[i])
		}
		if d.Metadata == nil {
			t.Errorf("list[%d] has nil metadata", i)
		}
	}
	if list[0].Text != "updated" {
		t.Errorf("expected replaced text, got %q", list[0].Text)
	}

	count, err := store.CountDocuments(ctx)
	if err != nil || count != 3 {
		t.Errorf("CountDocuments() = %d, %v", count, err)
	}
}

func TestSQLiteStorage_Clear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if _, err := store.SaveDocuments(ctx, []models.Document{{ID: "a", Text: "x"}, {ID: "b", Text: "y"}}); err != nil {
		t.Fatal(err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	list, err := store.ListDocuments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("expected empty store, got %d", len(list))
	}
}

func TestSQLiteStorage_SaveEmpty(t *testing.T) {
	store := newTestStore(t)
	n, err := store.SaveDocuments(context.Background(), nil)
	if err != nil || n != 0 {
		t.Errorf("SaveDocuments(nil) = %d, %v", n, err)
	}
}

func TestSliceSource(t *testing.T) {
	src := SliceSource{{ID: "a", Metadata: map[string]interface{}{"name": "x"}}}
	docs, err := src.ListDocuments(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	docs[0].Metadata["name"] = "changed"
	if src[0].Metadata["name"] != "x" {
		t.Error("SliceSource must return copies")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.ListDocuments(ctx); err == nil {
		t.Error("expected error for canceled context")
	}
}

var _ Storage = (*SQLiteStorage)(nil)

func TestSQLiteStorage_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.db")
	ctx := context.Background()
	store, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.SaveDocuments(ctx, []models.Document{{ID: "r1", Text: "tomato soup"}}); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	reopened, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if n, _ := reopened.CountDocuments(ctx); n != 1 {
		t.Errorf("CountDocuments after reopen = %d, want 1", n)
	}
	if reopened.Path() != path {
		t.Errorf("Path() = %s", reopened.Path())
	}
}

func TestSQLiteStorage_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.db")
	store, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.db.Exec(`PRAGMA user_version = 99`); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()
	if _, err := NewSQLiteStorage(path); err == nil {
		t.Error("expected error for newer schema version")
	}
}
