package evaluation

import (
	"fmt"
	"os"
	"path/filepath"
)

// Report file names inside the output directory.
const (
	DetailedFile = "detailed_results.json"
	SummaryFile  = "evaluation_grade.json"
)

// WriteReports writes the detailed per-case results and the graded summary
// into dir, creating it if needed.
func WriteReports(dir string, r *Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := writeJSONFile(filepath.Join(dir, DetailedFile), r.Detailed); err != nil {
		return fmt.Errorf("write %s: %w", DetailedFile, err)
	}
	if err := writeJSONFile(filepath.Join(dir, SummaryFile), r.Summary); err != nil {
		return fmt.Errorf("write %s: %w", SummaryFile, err)
	}
	return nil
}
