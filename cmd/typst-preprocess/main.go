// Command typst-preprocess materializes the web resources a Typst document
// references: it queries the document for <web-resource> metadata and
// downloads every declared {url, path} pair into the project root,
// skipping resources that are already current according to the resource
// index.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/SillyFreak/typst-preprocess/internal/config"
	"github.com/SillyFreak/typst-preprocess/internal/manifest"
	"github.com/SillyFreak/typst-preprocess/internal/observability"
	"github.com/SillyFreak/typst-preprocess/internal/query"
	"github.com/SillyFreak/typst-preprocess/internal/runner"
	"github.com/SillyFreak/typst-preprocess/internal/sandbox"
	"github.com/SillyFreak/typst-preprocess/internal/transport"
)

func main() {
	os.Exit(run())
}

func run() int {
	rootFlag := flag.String("root", "", "project root (defaults to the directory containing typst.toml)")
	typstFlag := flag.String("typst", "", "typst executable (overrides TYPST_PREPROCESS_TYPST_BIN)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <document.typ>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return 2
	}
	input := flag.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return 1
	}

	level := observability.ParseLevel(cfg.LogLevel)
	logger := observability.NewLogger(os.Stderr, level, cfg.LogFormat).
		WithFields(map[string]interface{}{"run_id": uuid.NewString()})
	metrics := observability.NewPrometheusMetrics("typst_preprocess")

	typstToml, err := findTypstToml(input)
	if err != nil {
		logger.Error("failed to locate typst.toml", "error", err)
		return 1
	}

	rootDir := *rootFlag
	if rootDir == "" {
		rootDir = filepath.Dir(typstToml)
	}
	root, err := sandbox.New(rootDir)
	if err != nil {
		logger.Error("invalid project root", "root", rootDir, "error", err)
		return 1
	}

	m, err := manifest.Read(typstToml)
	if err != nil {
		logger.Error("failed to read manifest", "error", err)
		return 1
	}

	typstBin := *typstFlag
	if typstBin == "" {
		typstBin = cfg.TypstBin
	}

	queries := query.NewRunner(typstBin, root.Path(), input, logger)
	client := transport.NewClient(cfg.HTTPTimeout, cfg.UserAgent, logger)
	jobs := runner.New(root, queries, client, cfg.MaxResourceSize, os.Stdout, logger, metrics)

	results, runErr := jobs.Run(context.Background(), m.Jobs)
	if runErr != nil {
		logger.Error("run aborted", "error", runErr)
	}

	code := runner.ExitCode(results, runErr)
	if code == 0 {
		logger.Info("all jobs finished", "jobs", len(results))
	} else {
		logger.Error("at least one job failed")
	}

	if level == observability.DebugLevel {
		if err := metrics.Dump(os.Stderr); err != nil {
			logger.Warn("failed to dump metrics", "error", err)
		}
	}
	return code
}

// findTypstToml walks up from the document's directory until it finds a
// typst.toml file.
func findTypstToml(input string) (string, error) {
	dir, err := filepath.Abs(filepath.Dir(input))
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, "typst.toml")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no typst.toml found above %s", input)
		}
		dir = parent
	}
}
