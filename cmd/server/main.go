// Command server exposes ingestion and querying over HTTP.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/dgallion1/corpusrag/internal/api"
	"github.com/dgallion1/corpusrag/internal/chunker"
	"github.com/dgallion1/corpusrag/internal/config"
	"github.com/dgallion1/corpusrag/internal/embed"
	"github.com/dgallion1/corpusrag/internal/extract"
	"github.com/dgallion1/corpusrag/internal/ingest"
	"github.com/dgallion1/corpusrag/internal/llm"
	"github.com/dgallion1/corpusrag/internal/manifest"
	"github.com/dgallion1/corpusrag/internal/query"
	"github.com/dgallion1/corpusrag/internal/retry"
	"github.com/dgallion1/corpusrag/internal/vecstore"
)

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if *cfgPath != "" {
		if err := cfg.FromFile(*cfgPath); err != nil {
			log.Error("could not read config file", "path", *cfgPath, "error", err)
			os.Exit(1)
		}
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
	generator := llm.NewClient(llm.Config{
		BaseURL:      cfg.OllamaURL,
		DefaultModel: cfg.ChatModel,
		Timeout:      cfg.CallTimeout,
	})

	man := manifest.Load(cfg.ManifestPath, func(msg string, err error) {
		log.Warn(msg, "path", cfg.ManifestPath, "error", err)
	})

	policy := retry.Policy{MaxAttempts: cfg.MaxRetries, BaseDelay: cfg.RetryBaseDelay}

	ingester, err := ingest.New(log, store, embedder, man, ingest.Options{
		DataPath:      cfg.DataPath,
		EmbeddingDims: cfg.EmbeddingDims,
		Workers:       cfg.WorkerCount,
		ChunkConfig:   chunker.Config{ChunkSize: cfg.ChunkSize, Overlap: cfg.ChunkOverlap},
		ExtractOpts:   extract.Options{OCRLanguages: cfg.OCRLanguages, FrameInterval: cfg.FrameInterval},
		Retry:         policy,
	})
	if err != nil {
		log.Error("invalid ingestion options", "error", err)
		os.Exit(1)
	}
	answerer := query.New(log, embedder, store, generator, policy)

	srv := api.NewServer(ingester, answerer, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("starting corpusrag server", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
