// Package evaluation replays scripted query sessions against the search
// pipeline and grades how early the expected document surfaces.
package evaluation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// TestCase is one scripted search session. Steps run in order within a
// single fresh session; a case without steps runs Query once. A nil
// ExpectedID marks a negative case that should find nothing.
type TestCase struct {
	ID         string   `json:"id"`
	Category   string   `json:"category"`
	Difficulty string   `json:"difficulty"`
	Query      string   `json:"query,omitempty"`
	Steps      []string `json:"steps,omitempty"`
	ExpectedID *string  `json:"expected_id"`
}

// Queries returns the queries the case issues, in order.
func (c TestCase) Queries() []string {
	if len(c.Steps) > 0 {
		return c.Steps
	}
	return []string{c.Query}
}

func (c TestCase) expected() string {
	if c.ExpectedID == nil {
		return ""
	}
	return *c.ExpectedID
}

// LoadCases reads a JSON array of test cases.
func LoadCases(path string) ([]TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read test cases: %w", err)
	}
	var cases []TestCase
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("decode test cases %s: %w", path, err)
	}
	return cases, nil
}

// SaveCases writes cases as an indented JSON array, creating parent
// directories as needed.
func SaveCases(path string, cases []TestCase) error {
	return writeJSONFile(path, cases)
}

func writeJSONFile(path string, v any) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
