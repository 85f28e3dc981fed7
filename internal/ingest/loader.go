// Package ingest loads raw dataset files and normalizes their records into
// documents for the document store.
package ingest

import (
	"archive/zip"
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Record is one raw dataset object.
type Record map[string]interface{}

// LoadResult holds the decoded records of a dataset file and the number of
// entries that could not be decoded as JSON objects.
type LoadResult struct {
	Records   []Record
	Malformed int
}

// ErrEmptyArchive is returned for a zip file without a regular file entry.
var ErrEmptyArchive = errors.New("archive contains no files")

const maxLineSize = 16 * 1024 * 1024

// LoadFile reads a JSON array, JSON Lines, or a zip archive whose first file
// holds either of those.
func LoadFile(path string) (*LoadResult, error) {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return loadZip(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func loadZip(path string) (*LoadResult, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()
	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s in archive: %w", entry.Name, err)
		}
		defer rc.Close()
		return Load(rc)
	}
	return nil, ErrEmptyArchive
}

// Load decodes r. Content starting with '[' is a JSON array; anything else is
// read as one JSON object per non-blank line. Entries that are not JSON
// objects are counted in Malformed and skipped.
func Load(r io.Reader) (*LoadResult, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return &LoadResult{Records: []Record{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	if first == '[' {
		return loadArray(br)
	}
	return loadLines(br)
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

func loadArray(r io.Reader) (*LoadResult, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode JSON array: %w", err)
	}
	res := &LoadResult{Records: make([]Record, 0, len(raw))}
	for _, item := range raw {
		var rec Record
		if err := json.Unmarshal(item, &rec); err != nil || rec == nil {
			res.Malformed++
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

func loadLines(r io.Reader) (*LoadResult, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	res := &LoadResult{Records: []Record{}}
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil || rec == nil {
			res.Malformed++
			continue
		}
		res.Records = append(res.Records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read JSON lines: %w", err)
	}
	return res, nil
}
