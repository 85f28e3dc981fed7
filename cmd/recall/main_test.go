package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/recall/internal/app"
	"github.com/hyperjump/recall/internal/evaluation"
	"github.com/hyperjump/recall/internal/models"
)

func searchFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.String("mode", "", "")
	fs.String("session", "", "")
	fs.Int("limit", 0, "")
	fs.Bool("explain", false, "")
	return fs
}

func TestHoistFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"trailing flags move first", []string{"tomato soup", "-limit", "5"}, []string{"-limit", "5", "tomato soup"}},
		{"leading flags keep order", []string{"-mode", "lexical", "tomato soup"}, []string{"-mode", "lexical", "tomato soup"}},
		{"query only", []string{"tomato soup"}, []string{"tomato soup"}},
		{"no args", []string{}, []string{}},
		{"words around a flag", []string{"basil", "-session", "s1", "pesto"}, []string{"-session", "s1", "basil", "pesto"}},
		{"inline value", []string{"garlic", "-limit=3"}, []string{"-limit=3", "garlic"}},
		{"bool flag takes no value", []string{"leek", "-explain", "stew"}, []string{"-explain", "leek", "stew"}},
		{"double dash ends flags", []string{"-mode", "vector", "--", "-minus", "sign"}, []string{"-mode", "vector", "--", "-minus", "sign"}},
		{"lone dash is a word", []string{"salt", "-", "pepper"}, []string{"salt", "-", "pepper"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hoistFlags(searchFlagSet(), tt.args); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("hoistFlags(%q) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestHoistFlags_parsesInterleavedQuery(t *testing.T) {
	fs := searchFlagSet()
	if err := fs.Parse(hoistFlags(fs, []string{"tomato", "-limit", "5", "soup"})); err != nil {
		t.Fatal(err)
	}
	if got := buildSearchQuery(fs.Args()); got != "tomato soup" {
		t.Errorf("query = %q", got)
	}
	if got := fs.Lookup("limit").Value.String(); got != "5" {
		t.Errorf("limit = %s", got)
	}
}

func TestLookupCommand(t *testing.T) {
	for in, want := range map[string]string{"search": "search", "eval": "eval", "-v": "version", "--help": "help"} {
		c, ok := lookupCommand(in)
		if !ok || c.name != want {
			t.Errorf("lookupCommand(%q) = %q, %v", in, c.name, ok)
		}
	}
	if _, ok := lookupCommand("reindex"); ok {
		t.Error("unknown command resolved")
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "recipes", "structured_text"); got != "recipes" {
		t.Errorf("got %q", got)
	}
	if got := firstNonEmpty("", ""); got != "" {
		t.Errorf("got %q", got)
	}
}

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"tomato"}, "tomato"},
		{"multiple words", []string{"tomato", "soup"}, "tomato soup"},
		{"single quoted phrase", []string{"tomato soup"}, "tomato soup"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildSearchQuery(tt.args)
			if got != tt.expected {
				t.Errorf("buildSearchQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func samePath(t *testing.T, a, b string) bool {
	t.Helper()
	// t.TempDir may sit behind a symlink (macOS /var -> /private/var).
	ra, errA := filepath.EvalSymlinks(a)
	rb, errB := filepath.EvalSymlinks(b)
	return errA == nil && errB == nil && ra == rb
}

func TestLoadConfig(t *testing.T) {
	t.Run("working directory config beats default path", func(t *testing.T) {
		dir := t.TempDir()
		local := filepath.Join(dir, "config.yaml")
		writeFile(t, local, "debug: true\nretrieval:\n  default_mode: vector\n")
		chdir(t, dir)

		cfg, used, err := loadConfig(defaultConfigPath)
		if err != nil {
			t.Fatal(err)
		}
		if !samePath(t, used, local) {
			t.Errorf("loaded %q, want %q", used, local)
		}
		if !cfg.Debug || cfg.Retrieval.DefaultMode != "vector" {
			t.Errorf("cwd config not applied: debug=%v mode=%q", cfg.Debug, cfg.Retrieval.DefaultMode)
		}
	})

	t.Run("explicit path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "recall.yaml")
		writeFile(t, path, "server:\n  host: 0.0.0.0\n  port: 9191\n")

		cfg, used, err := loadConfig(path)
		if err != nil {
			t.Fatal(err)
		}
		if used != path {
			t.Errorf("loaded %q, want %q", used, path)
		}
		if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 9191 {
			t.Errorf("server = %+v", cfg.Server)
		}
	})

	t.Run("explicit path must exist", func(t *testing.T) {
		if _, _, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
			t.Error("missing explicit config loaded without error")
		}
	})
}

func TestAPIClient_Search(t *testing.T) {
	var got models.SearchRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/search" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(models.SearchResponse{
			Query:         got.Query,
			Total:         1,
			RetrievalMode: "lexical",
			Results:       []models.SearchHit{{ID: "r1", Rank: 1, Score: 1}},
		})
	}))
	defer ts.Close()

	req := models.SearchRequest{Query: "tomato", SessionID: "s1", RetrievalMode: "lexical", TopK: 3}
	resp, err := newAPIClient(ts.URL+"/").search(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, req) {
		t.Errorf("server received %+v, want %+v", got, req)
	}
	if resp.Total != 1 || resp.Results[0].ID != "r1" {
		t.Errorf("response: %+v", resp)
	}
}

func TestAPIClient_SearchErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"vector index not ready"}`))
	}))
	defer ts.Close()

	_, err := newAPIClient(ts.URL).search(context.Background(), models.SearchRequest{Query: "x"})
	if err == nil || !strings.Contains(err.Error(), "503") || !strings.Contains(err.Error(), "not ready") {
		t.Errorf("expected 503 error with body, got %v", err)
	}
}

func TestAPIClient_Status(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(app.Status{Documents: 7, VectorReady: true, DefaultMode: "hybrid"})
	}))
	defer ts.Close()

	st, err := newAPIClient(ts.URL).status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Documents != 7 || !st.VectorReady || st.DefaultMode != "hybrid" {
		t.Errorf("status: %+v", st)
	}
}

func TestRunEval_AgainstServer(t *testing.T) {
	var sessions []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.SearchRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		sessions = append(sessions, req.SessionID)
		resp := models.SearchResponse{Query: req.Query, SessionID: req.SessionID}
		if strings.Contains(req.Query, "basil") {
			resp.Results = []models.SearchHit{{ID: "r1", Rank: 1, Score: 1}}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer ts.Close()

	dir := t.TempDir()
	expected := "r1"
	casesPath := filepath.Join(dir, "cases.json")
	if err := evaluation.SaveCases(casesPath, []evaluation.TestCase{
		{ID: "T01", Category: "progressive_refinement", Difficulty: "hard", Steps: []string{"tomato", "tomato basil"}, ExpectedID: &expected},
	}); err != nil {
		t.Fatal(err)
	}
	outDir := filepath.Join(dir, "reports")
	if err := runEval([]string{"-cases", casesPath, "-server", ts.URL, "-out", outDir, "-output", "json"}); err != nil {
		t.Fatalf("runEval: %v", err)
	}

	if len(sessions) != 2 || sessions[0] != sessions[1] || !strings.HasPrefix(sessions[0], "eval_") {
		t.Errorf("steps should share one eval_ session, got %v", sessions)
	}
	data, err := os.ReadFile(filepath.Join(outDir, evaluation.SummaryFile))
	if err != nil {
		t.Fatal(err)
	}
	var summary evaluation.Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatal(err)
	}
	if summary.Grade != "A" || summary.OverallScore != 100 {
		t.Errorf("summary = %+v", summary)
	}
	if _, err := os.Stat(filepath.Join(outDir, evaluation.DetailedFile)); err != nil {
		t.Errorf("detailed report missing: %v", err)
	}
}

func TestRunEval_RequiresCases(t *testing.T) {
	if err := runEval(nil); err != errUsage {
		t.Errorf("runEval without -cases = %v, want errUsage", err)
	}
}

func TestGenerateCases(t *testing.T) {
	dir := t.TempDir()
	dataset := filepath.Join(dir, "recipes.json")
	var lines []string
	for i := 0; i < 4; i++ {
		lines = append(lines, fmt.Sprintf(`{"_id":{"$oid":"r%d"},"name":"Dish %d","ingredients":"1 cup chicken\nsalt%c\npepper%c"}`, i, i, 'a'+rune(i), 'a'+rune(i)))
	}
	if err := os.WriteFile(dataset, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "cases.json")
	if err := generateCases(dataset, out, evaluation.DefaultSeed); err != nil {
		t.Fatalf("generateCases: %v", err)
	}
	cases, err := evaluation.LoadCases(out)
	if err != nil {
		t.Fatal(err)
	}
	// Four single-step cases plus the negative one.
	if len(cases) != 5 || *cases[0].ExpectedID != "r0" || cases[4].ExpectedID != nil {
		t.Errorf("generated cases = %+v", cases)
	}
}
