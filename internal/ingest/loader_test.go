package ingest

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadJSONArray(t *testing.T) {
	res, err := Load(strings.NewReader(`  [{"name":"a"}, 3, {"name":"b"}, null]`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(res.Records) != 2 || res.Malformed != 2 {
		t.Fatalf("got %d records, %d malformed", len(res.Records), res.Malformed)
	}
	if res.Records[1]["name"] != "b" {
		t.Errorf("unexpected record order: %v", res.Records)
	}
}

func TestLoadJSONLines(t *testing.T) {
	input := "{\"name\":\"a\"}\n\n   \n{broken\n{\"name\":\"c\"}\n"
	res, err := Load(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(res.Records) != 2 || res.Malformed != 1 {
		t.Fatalf("got %d records, %d malformed", len(res.Records), res.Malformed)
	}
}

func TestLoadEmpty(t *testing.T) {
	res, err := Load(strings.NewReader("  \n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(res.Records) != 0 {
		t.Fatalf("expected no records, got %d", len(res.Records))
	}
}

func TestLoadInvalidArray(t *testing.T) {
	if _, err := Load(strings.NewReader(`[{"name":`)); err == nil {
		t.Fatal("expected error for truncated array")
	}
}

func TestLoadFileZip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	if _, err := zw.Create("nested/"); err != nil {
		t.Fatal(err)
	}
	w, err := zw.Create("nested/recipes.json")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(`[{"name":"soup"},{"name":"salad"}]`)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	res, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(res.Records))
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
