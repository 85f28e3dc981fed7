// Package cli provides output helpers for the recall command.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/hyperjump/recall/internal/app"
	"github.com/hyperjump/recall/internal/evaluation"
	"github.com/hyperjump/recall/internal/ingest"
	"github.com/hyperjump/recall/internal/models"
	"github.com/hyperjump/recall/internal/resilience"
	"github.com/hyperjump/recall/internal/vector"
	"github.com/hyperjump/recall/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
	// OutputCompact prints one line per hit.
	OutputCompact OutputFormat = "compact"
)

// ParseOutputFormat maps a flag value to an OutputFormat. Unknown values are text.
func ParseOutputFormat(s string) OutputFormat {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case OutputJSON:
		return OutputJSON
	case OutputCompact:
		return OutputCompact
	default:
		return OutputText
	}
}

// WriteSearchResults writes search results to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputCompact:
		for _, hit := range response.Results {
			fmt.Fprintf(w, "%d\t%.4f\t%s\t%s\n", hit.Rank, hit.Score, hit.ID, TruncateWords(hit.Metadata.Name, 8))
		}
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\nFound %d results in %dms (mode: %s, session: %s)\n",
		response.Total, response.QueryTime, response.RetrievalMode, response.SessionID)
	if response.EnhancedQuery != "" && response.EnhancedQuery != response.Query {
		fmt.Fprintf(w, "Enhanced query: %s\n", response.EnhancedQuery)
	}
	fmt.Fprintln(w)
	for _, hit := range response.Results {
		writeOneResult(w, hit)
	}
}

func writeOneResult(w io.Writer, hit models.SearchHit) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | Score: %.4f (Lexical: %.4f, Vector: %.4f)\n",
		hit.Rank, hit.Score, hit.LexicalScore, hit.VectorScore)
	fmt.Fprintf(w, "ID: %s\n", hit.ID)
	if hit.Metadata.Name != "" {
		fmt.Fprintf(w, "Name: %s\n", hit.Metadata.Name)
	}
	if len(hit.Metadata.MatchedTerms) > 0 {
		fmt.Fprintf(w, "Matched: %s\n", strings.Join(hit.Metadata.MatchedTerms, ", "))
	}
	fmt.Fprintf(w, "\n%s\n", utils.Truncate(hit.Metadata.Preview, 200))
	fmt.Fprintln(w)
}

// PrintSearchResults prints search results to stdout in text format.
func PrintSearchResults(response *models.SearchResponse) {
	_ = WriteSearchResults(os.Stdout, response, OutputText)
}

// WriteStatus writes engine status as text or JSON.
func WriteStatus(w io.Writer, st *app.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "Documents: %d\n", st.Documents)
	if st.VectorEnabled {
		ready := "building"
		if st.VectorReady {
			ready = "ready"
		}
		fmt.Fprintf(w, "Vector index: %s (%d vectors", ready, st.VectorIndexSize)
		if st.VectorDimension > 0 {
			fmt.Fprintf(w, ", dim %d", st.VectorDimension)
		}
		if st.VectorIndexType != "" {
			fmt.Fprintf(w, ", %s", st.VectorIndexType)
		}
		fmt.Fprintln(w, ")")
	} else {
		fmt.Fprintln(w, "Vector index: disabled")
	}
	if st.LexicalScorer != "" {
		fmt.Fprintf(w, "Lexical scorer: %s\n", st.LexicalScorer)
	}
	fmt.Fprintf(w, "Default mode: %s\n", st.DefaultMode)
	fmt.Fprintf(w, "Session backend: %s\n", st.SessionBackend)
	if st.DiskUsageBytes != nil {
		fmt.Fprintf(w, "Disk usage: %s\n", FormatBytes(*st.DiskUsageBytes))
	}
	if st.DatabasePath != "" {
		fmt.Fprintf(w, "Database: %s\n", st.DatabasePath)
	}
	if st.CheckpointDir != "" {
		fmt.Fprintf(w, "Checkpoints: %s\n", st.CheckpointDir)
	}
	if len(st.ProviderBreakers) > 0 {
		fmt.Fprintf(w, "Provider breakers: %s\n", strings.Join(resilience.SortedStates(st.ProviderBreakers), " "))
	}
	return nil
}

// WriteBuildReport writes the outcome of a vector build.
func WriteBuildReport(w io.Writer, r *vector.BuildReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, r)
	}
	fmt.Fprintf(w, "Run: %s\n", r.RunID)
	if r.Resumed {
		fmt.Fprintf(w, "Resumed at document %d of %d\n", r.StartOffset, r.Total)
	}
	fmt.Fprintf(w, "Batches: %d committed, %d skipped\n", r.BatchesProcessed, r.BatchesSkipped)
	fmt.Fprintf(w, "Documents: %d embedded, %d empty\n", r.DocumentsEmbedded, r.DocumentsEmpty)
	fmt.Fprintf(w, "Index: %d vectors (dim %d) in %s\n", r.Size, r.Dimension, r.Duration.Round(time.Millisecond))
	if r.Partial() {
		fmt.Fprintln(w, "Warning: some batches were skipped; run build -force to re-embed them")
	}
	return nil
}

// WriteIngestReport writes the outcome of an ingest run.
func WriteIngestReport(w io.Writer, r *ingest.Report, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, r)
	}
	fmt.Fprintf(w, "Ingested %s (%s)\n", r.Path, r.Domain)
	fmt.Fprintf(w, "Records: %d read, %d malformed, %d skipped, %d stored in %s\n",
		r.Records, r.Malformed, r.Skipped, r.Stored, r.Duration.Round(time.Millisecond))
	return nil
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}

// WriteEvalSummary writes the graded summary of an evaluation run. Per-case
// detail lives in the report files, not here.
func WriteEvalSummary(w io.Writer, s evaluation.Summary, cases int, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	fmt.Fprintf(w, "Run: %s (%d cases, %.2fs)\n", s.RunLabel, cases, s.TotalRuntimeSec)
	fmt.Fprintf(w, "Overall score: %.2f / 100, grade %s (weight %.0f)\n", s.OverallScore, s.Grade, s.WeightSumPresent)
	writeScoreTable(w, "Categories", s.CategoryScores)
	writeScoreTable(w, "Difficulty", s.DifficultyScores)
	return nil
}

func writeScoreTable(w io.Writer, title string, scores map[string]float64) {
	if len(scores) == 0 {
		return
	}
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(w, "%s:\n", title)
	for _, name := range names {
		fmt.Fprintf(w, "  %-26s %6.2f\n", name, scores[name])
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
