// Command ingest reconciles the vector index with the document corpus.
// Without flags it runs incrementally, skipping files whose fingerprint is
// unchanged since the last pass.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/dgallion1/corpusrag/internal/chunker"
	"github.com/dgallion1/corpusrag/internal/config"
	"github.com/dgallion1/corpusrag/internal/embed"
	"github.com/dgallion1/corpusrag/internal/extract"
	"github.com/dgallion1/corpusrag/internal/ingest"
	"github.com/dgallion1/corpusrag/internal/manifest"
	"github.com/dgallion1/corpusrag/internal/retry"
	"github.com/dgallion1/corpusrag/internal/vecstore"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath = flag.String("config", "", "path to YAML config file")
		dataDir = flag.String("data", "", "corpus root (overrides config)")
		reset   = flag.Bool("reset", false, "clear the index and manifest, then rebuild")
		rescan  = flag.Bool("rescan", false, "reprocess all files ignoring the fingerprint cache")
		workers = flag.Int("workers", 0, "worker pool size (overrides config)")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	if *reset && *rescan {
		log.Error("--reset and --rescan are mutually exclusive")
		os.Exit(1)
	}

	cfg := config.Load()
	if *cfgPath != "" {
		if err := cfg.FromFile(*cfgPath); err != nil {
			log.Error("could not read config file", "path", *cfgPath, "error", err)
			os.Exit(1)
		}
	}
	if *dataDir != "" {
		cfg.DataPath = *dataDir
	}
	if *workers > 0 {
		cfg.WorkerCount = *workers
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	store := vecstore.NewClient(vecstore.Config{
		URL:        cfg.QdrantURL,
		APIKey:     cfg.QdrantAPIKey,
		Collection: cfg.Collection,
		Timeout:    cfg.CallTimeout,
	})
	if err := store.Ping(ctx); err != nil {
		log.Error("vector index unreachable", "url", cfg.QdrantURL, "error", err)
		os.Exit(1)
	}

	embedder := embed.NewClient(embed.Config{
		BaseURL: cfg.OllamaURL,
		Model:   cfg.EmbedModel,
		Timeout: cfg.CallTimeout,
	})
	if err := embedder.Ping(ctx); err != nil {
		log.Error("embedding service unreachable", "url", cfg.OllamaURL, "error", err)
		os.Exit(1)
	}

	man := manifest.Load(cfg.ManifestPath, func(msg string, err error) {
		log.Warn(msg, "path", cfg.ManifestPath, "error", err)
	})

	coord, err := ingest.New(log, store, embedder, man, ingest.Options{
		DataPath:      cfg.DataPath,
		EmbeddingDims: cfg.EmbeddingDims,
		Workers:       cfg.WorkerCount,
		ChunkConfig:   chunker.Config{ChunkSize: cfg.ChunkSize, Overlap: cfg.ChunkOverlap},
		ExtractOpts:   extract.Options{OCRLanguages: cfg.OCRLanguages, FrameInterval: cfg.FrameInterval},
		Retry:         retry.Policy{MaxAttempts: cfg.MaxRetries, BaseDelay: cfg.RetryBaseDelay},
	})
	if err != nil {
		log.Error("invalid ingestion options", "error", err)
		os.Exit(1)
	}

	mode := ingest.ModeIncremental
	switch {
	case *reset:
		mode = ingest.ModeReset
	case *rescan:
		mode = ingest.ModeRescan
	}

	start := time.Now()
	summary, err := coord.Run(ctx, mode)
	if err != nil {
		log.Error("ingestion aborted", "error", err)
		os.Exit(1)
	}

	printSummary(summary, time.Since(start))
	// Per-file failures are reported above but do not fail the run.
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
	dim    = color.New(color.Faint)
	bold   = color.New(color.Bold)
)

func printSummary(sum ingest.Summary, elapsed time.Duration) {
	for _, f := range sum.Files {
		switch f.Status {
		case "indexed":
			green.Printf("  indexed     ")
			fmt.Printf("%s ", f.Path)
			dim.Printf("(%d chunks)\n", f.Chunks)
		case "skipped":
			dim.Printf("  skipped     %s\n", f.Path)
		case "unsupported":
			yellow.Printf("  unsupported ")
			fmt.Println(f.Path)
		case "failed":
			red.Printf("  failed      ")
			fmt.Printf("%s ", f.Path)
			dim.Printf("(%s)\n", f.Error)
		}
	}

	bold.Printf("\n%d indexed", sum.Indexed)
	fmt.Printf(", %d skipped, %d removed, %d unsupported", sum.Skipped, sum.Removed, sum.Unsupported)
	if sum.Failed > 0 {
		fmt.Print(", ")
		red.Printf("%d failed", sum.Failed)
	}
	dim.Printf("  (%.1fs)\n", elapsed.Seconds())
}
