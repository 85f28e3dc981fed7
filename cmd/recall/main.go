// Command recall ingests a document corpus and serves hybrid lexical and
// vector search over it, from the shell or over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/hyperjump/recall/internal/app"
	"github.com/hyperjump/recall/internal/config"
	"github.com/hyperjump/recall/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/recall/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// errUsage marks failures where the command already printed its usage text.
var errUsage = errors.New("invalid usage")

type command struct {
	name    string
	summary string
	run     func(args []string) error
}

var commands []command

func init() {
	commands = []command{
		{"ingest", "Load a dataset into document storage", runIngest},
		{"build", "Build or resume the vector index checkpoint", runBuild},
		{"server", "Start the HTTP API server", runServer},
		{"search", "Search documents", runSearch},
		{"status", "Show document counts and index state", runStatus},
		{"eval", "Replay scripted search sessions and grade retrieval", runEval},
		{"version", "Show version", func([]string) error {
			fmt.Printf("recall version %s\n", version)
			return nil
		}},
		{"help", "Show this help", func([]string) error {
			printUsage()
			return nil
		}},
	}
}

func lookupCommand(name string) (command, bool) {
	switch name {
	case "--version", "-v":
		name = "version"
	case "--help", "-h":
		name = "help"
	}
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd, ok := lookupCommand(os.Args[1])
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err := cmd.run(os.Args[2:]); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "recall %s: %v\n", cmd.name, err)
		}
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print("recall - hybrid lexical and vector document retrieval\n\nUsage:\n  recall <command> [flags]\n\nCommands:\n")
	for _, c := range commands {
		fmt.Printf("  %-8s %s\n", c.name, c.summary)
	}
	fmt.Print(`
Examples:
  recall ingest -dataset recipes.json -domain recipes -replace
  recall build
  recall server -config config.yaml
  recall search -mode hybrid -session s1 tomato soup
  recall status -output json
  recall eval -cases test_cases.json -out reports

Run 'recall <command> -h' for command flags.
`)
}

// loadConfig resolves the config file and loads it. With the default path a
// config.yaml in the working directory wins, and when neither file exists
// built-in defaults plus environment overrides apply. The second result is
// the file actually read, or "" for defaults.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if local, err := filepath.Abs("config.yaml"); err == nil && fileExists(local) {
			path = local
		} else if !fileExists(path) {
			cfg, err := config.Default()
			return cfg, "", err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// env is what every local command needs: resolved config, logger and the
// opened components.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	comp   *app.Components
}

func openEnv(configPath string, debug bool) (*env, error) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	debug = debug || cfg.Debug
	logger, err := utils.NewLogger(debug)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debug))

	comp, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("initialize components: %w", err)
	}
	return &env{cfg: cfg, logger: logger, comp: comp}, nil
}

func (e *env) Close() {
	e.comp.Close()
	_ = e.logger.Sync()
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
