package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hyperjump/recall/internal/app"
	"github.com/hyperjump/recall/internal/cli"
	"github.com/hyperjump/recall/internal/evaluation"
	"github.com/hyperjump/recall/internal/ingest"
	"github.com/hyperjump/recall/internal/models"
	"github.com/hyperjump/recall/internal/server"
	"github.com/hyperjump/recall/pkg/utils"
	"go.uber.org/zap"
)

const shutdownGrace = 10 * time.Second

// commonFlags registers the -config and -output flags shared by most commands.
func commonFlags(fs *flag.FlagSet, outputHelp string) (configPath, output *string) {
	configPath = fs.String("config", defaultConfigPath, "config file path")
	output = fs.String("output", "text", outputHelp)
	return configPath, output
}

func runIngest(args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath, output := commonFlags(fs, "output format: text or json")
	dataset := fs.String("dataset", "", "dataset path (.json, .jsonl or .zip); defaults to ingest.dataset")
	domain := fs.String("domain", "", "dataset domain: "+strings.Join(ingest.Domains(), ", "))
	replace := fs.Bool("replace", false, "clear stored documents before ingesting")
	build := fs.Bool("build", false, "build the vector index after ingesting")
	_ = fs.Parse(args)

	e, err := openEnv(*configPath, false)
	if err != nil {
		return err
	}
	defer e.Close()

	path := firstNonEmpty(*dataset, e.cfg.Ingest.Dataset)
	if path == "" {
		fmt.Fprintln(os.Stderr, "Usage: recall ingest -dataset <path> [-domain structured_text]")
		return errUsage
	}
	ingester, err := ingest.NewIngester(e.comp.Storage, firstNonEmpty(*domain, e.cfg.Ingest.Domain),
		ingest.WithLogger(e.logger),
		ingest.WithBatchSize(e.cfg.Ingest.BatchSize))
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	report, err := ingester.Run(ctx, path, *replace)
	if err != nil {
		return err
	}
	format := cli.ParseOutputFormat(*output)
	if err := cli.WriteIngestReport(os.Stdout, report, format); err != nil {
		return err
	}
	if !*build {
		return nil
	}
	buildReport, err := e.comp.BuildVectors(ctx, false)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}
	return cli.WriteBuildReport(os.Stdout, buildReport, format)
}

func runBuild(args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configPath, output := commonFlags(fs, "output format: text or json")
	force := fs.Bool("force", false, "discard checkpoints and rebuild from scratch")
	_ = fs.Parse(args)

	e, err := openEnv(*configPath, false)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, stop := signalContext()
	defer stop()
	report, err := e.comp.BuildVectors(ctx, *force)
	if errors.Is(err, context.Canceled) {
		return errors.New("interrupted; run build again to resume from the last checkpoint")
	}
	if err != nil {
		return err
	}
	return cli.WriteBuildReport(os.Stdout, report, cli.ParseOutputFormat(*output))
}

func runServer(args []string) error {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	build := fs.Bool("build", true, "build or resume the vector index in the background when it is not ready")
	_ = fs.Parse(args)

	e, err := openEnv(*configPath, *debug)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, stop := signalContext()
	defer stop()
	if err := e.comp.Prepare(ctx); err != nil {
		return fmt.Errorf("prepare search pipeline: %w", err)
	}
	force := e.cfg.Vector.ForceRebuild
	if vec := e.comp.Vector; *build && vec != nil && (force || !vec.IsReady()) {
		e.comp.StartBackgroundBuild(ctx, force)
	}

	srv := server.NewServer(e.comp.Service, e.comp, e.comp.Storage, e.comp.Metrics, &e.cfg.Server, e.logger)
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Start() }()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	e.logger.Info("shutting down", zap.Duration("grace", shutdownGrace))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func printSearchUsage(fs *flag.FlagSet) {
	out := fs.Output()
	fmt.Fprint(out, "Usage: recall search [flags] <query>\n\n")
	fmt.Fprint(out, "Every non-flag argument is part of the query, so quoting is optional and flags may follow the words.\n\n")
	fs.PrintDefaults()
	fmt.Fprint(out, `
Modes: lexical (bm25), vector, hybrid. Queries sharing a -session are expanded
with the terms of earlier queries in that session.

Examples:
  recall search tomato soup
  recall search -mode lexical "tomato soup"
  recall search basil -session dinner -limit 5
  recall search -server "" -output json garlic     # search the local index directly
`)
}

// buildSearchQuery joins the positional words into one query string.
func buildSearchQuery(words []string) string {
	return strings.TrimSpace(strings.Join(words, " "))
}

// hoistFlags reorders args so every flag, with its value when it takes one,
// precedes the positional words. flag.Parse stops at the first non-flag, so
// without this "recall search tomato -limit 5" would search for "-limit".
// Arguments after "--" stay positional and the "--" is kept for flag.Parse.
func hoistFlags(fs *flag.FlagSet, args []string) []string {
	flags := make([]string, 0, len(args)+1)
	words := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			flags = append(flags, a)
			words = append(words, args[i+1:]...)
			break
		}
		if len(a) < 2 || a[0] != '-' {
			words = append(words, a)
			continue
		}
		flags = append(flags, a)
		if strings.Contains(a, "=") || isBoolFlag(fs, a) {
			continue
		}
		if i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}
	return append(flags, words...)
}

func isBoolFlag(fs *flag.FlagSet, arg string) bool {
	f := fs.Lookup(strings.TrimLeft(arg, "-"))
	if f == nil {
		return false
	}
	b, ok := f.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}

func runSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath, output := commonFlags(fs, "output format: text (human-readable), compact (one result per line), or json (parseable)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = search the local index directly)")
	mode := fs.String("mode", "", "retrieval mode: lexical, vector or hybrid (default from config)")
	sessionID := fs.String("session", "", "session id for query expansion")
	limit := fs.Int("limit", 0, "number of results (default from config)")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(hoistFlags(fs, args))

	req := models.SearchRequest{
		Query:         buildSearchQuery(fs.Args()),
		SessionID:     *sessionID,
		RetrievalMode: *mode,
		TopK:          *limit,
	}
	if req.Query == "" {
		printSearchUsage(fs)
		return errUsage
	}

	ctx, stop := signalContext()
	defer stop()

	var (
		resp *models.SearchResponse
		err  error
	)
	if *serverURL != "" {
		// A running server already holds the indexes in memory.
		resp, err = newAPIClient(*serverURL).search(ctx, req)
	} else {
		resp, err = searchLocal(ctx, *configPath, req)
	}
	if err != nil {
		return err
	}
	return cli.WriteSearchResults(os.Stdout, resp, cli.ParseOutputFormat(*output))
}

func searchLocal(ctx context.Context, configPath string, req models.SearchRequest) (*models.SearchResponse, error) {
	e, err := openEnv(configPath, false)
	if err != nil {
		return nil, err
	}
	defer e.Close()
	if err := e.comp.Prepare(ctx); err != nil {
		return nil, fmt.Errorf("prepare search: %w", err)
	}
	return e.comp.Search(ctx, req)
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath, output := commonFlags(fs, "output format: text or json")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read local storage)")
	_ = fs.Parse(args)

	ctx, stop := signalContext()
	defer stop()

	var (
		st  *app.Status
		err error
	)
	if *serverURL != "" {
		st, err = newAPIClient(*serverURL).status(ctx)
	} else {
		st, err = statusLocal(ctx, *configPath)
	}
	if err != nil {
		return err
	}
	return cli.WriteStatus(os.Stdout, st, cli.ParseOutputFormat(*output))
}

func statusLocal(ctx context.Context, configPath string) (*app.Status, error) {
	e, err := openEnv(configPath, false)
	if err != nil {
		return nil, err
	}
	defer e.Close()
	if vec := e.comp.Vector; vec != nil {
		if _, err := vec.LoadIfExists(ctx); err != nil {
			e.logger.Warn("vector checkpoint not loaded", zap.Error(err))
		}
	}
	return e.comp.Status(ctx)
}

func runEval(args []string) error {
	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	configPath, output := commonFlags(fs, "summary format: text or json")
	casesPath := fs.String("cases", "", "test cases file (JSON array)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = search the local index directly)")
	outDir := fs.String("out", "eval_reports", "directory for detailed_results.json and evaluation_grade.json")
	mode := fs.String("mode", "", "retrieval mode for every query (default from server or config)")
	limit := fs.Int("limit", 0, "results per query (default from server or config)")
	label := fs.String("label", evaluation.DefaultRunLabel, "run label recorded in the summary")
	generate := fs.String("generate", "", "write test cases generated from this recipe dataset to -cases and exit")
	seed := fs.Uint64("seed", evaluation.DefaultSeed, "seed for -generate")
	debug := fs.Bool("debug", false, "log every step")
	_ = fs.Parse(args)

	if *casesPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: recall eval -cases <file> [-server URL] [-out DIR]")
		fmt.Fprintln(os.Stderr, "       recall eval -generate <dataset> -cases <file>")
		return errUsage
	}
	if *generate != "" {
		return generateCases(*generate, *casesPath, *seed)
	}
	cases, err := evaluation.LoadCases(*casesPath)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	var (
		searcher evaluation.Searcher
		logger   *zap.Logger
	)
	if *serverURL != "" {
		if logger, err = utils.NewLogger(*debug); err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()
		searcher = remoteSearcher{newAPIClient(*serverURL)}
	} else {
		e, err := openEnv(*configPath, *debug)
		if err != nil {
			return err
		}
		defer e.Close()
		if err := e.comp.Prepare(ctx); err != nil {
			return fmt.Errorf("prepare search: %w", err)
		}
		searcher, logger = e.comp, e.logger
	}

	runner := evaluation.NewRunner(searcher,
		evaluation.WithLogger(logger),
		evaluation.WithRunLabel(*label),
		evaluation.WithRetrieval(*mode, *limit))
	report, err := runner.Run(ctx, cases)
	if err != nil {
		return err
	}
	if err := evaluation.WriteReports(*outDir, report); err != nil {
		return err
	}
	return cli.WriteEvalSummary(os.Stdout, report.Summary, len(report.Detailed.Tests), cli.ParseOutputFormat(*output))
}

func generateCases(dataset, out string, seed uint64) error {
	loaded, err := ingest.LoadFile(dataset)
	if err != nil {
		return err
	}
	cases := evaluation.Generate(evaluation.RecipesFromRecords(loaded.Records), seed)
	if err := evaluation.SaveCases(out, cases); err != nil {
		return fmt.Errorf("save test cases: %w", err)
	}
	fmt.Printf("Generated %d test cases in %s\n", len(cases), out)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
