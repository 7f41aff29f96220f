// Command query answers a natural-language question against the indexed
// corpus. The question is the positional argument; retrieval options are
// flags.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/dgallion1/corpusrag/internal/config"
	"github.com/dgallion1/corpusrag/internal/embed"
	"github.com/dgallion1/corpusrag/internal/extract"
	"github.com/dgallion1/corpusrag/internal/llm"
	"github.com/dgallion1/corpusrag/internal/query"
	"github.com/dgallion1/corpusrag/internal/retry"
	"github.com/dgallion1/corpusrag/internal/vecstore"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath         = flag.String("config", "", "path to YAML config file")
		file            = flag.String("file", "", "restrict retrieval to one document (base name)")
		modality        = flag.String("type", "", "restrict retrieval to one content type (text, pdf, office, image, video)")
		fetchK          = flag.Int("fetch-k", 0, "retrieval breadth (default from config)")
		k               = flag.Int("k", 0, "final chunk count, must not exceed fetch-k (default from config)")
		maxContextChars = flag.Int("max-context-chars", 0, "context packing budget in characters (default from config)")
		perSourceLimit  = flag.Int("per-source-limit", -1, "max chunks per document, 0 for unlimited (default from config)")
		model           = flag.String("model", "", "generative model identifier (default from config)")
		showSnippets    = flag.Bool("show-snippets", false, "print the cited chunks after the answer")
		snippetChars    = flag.Int("snippet-chars", 220, "snippet truncation length, 0 for full text")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	question := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if question == "" {
		fmt.Fprintln(os.Stderr, `Usage: query [options] "your question"`)
		flag.PrintDefaults()
		os.Exit(1)
	}

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

	if *modality != "" {
		if _, err := extract.ParseModality(*modality); err != nil {
			log.Error("invalid --type", "error", err)
			os.Exit(1)
		}
	}

	req := query.Request{
		Question:        question,
		File:            *file,
		Modality:        *modality,
		FetchK:          cfg.DefaultFetchK,
		K:               cfg.DefaultK,
		MaxContextChars: cfg.MaxContextChars,
		PerSourceLimit:  cfg.PerSourceLimit,
		Model:           *model,
		ShowSnippets:    *showSnippets,
		SnippetChars:    *snippetChars,
	}
	if *fetchK > 0 {
		req.FetchK = *fetchK
	}
	if *k > 0 {
		req.K = *k
	}
	if *maxContextChars > 0 {
		req.MaxContextChars = *maxContextChars
	}
	if *perSourceLimit >= 0 {
		req.PerSourceLimit = *perSourceLimit
	}
	if err := req.Validate(); err != nil {
		log.Error("invalid query options", "error", err)
		os.Exit(1)
	}

	store := vecstore.NewClient(vecstore.Config{
		URL:        cfg.QdrantURL,
		APIKey:     cfg.QdrantAPIKey,
		Collection: cfg.Collection,
		Timeout:    cfg.CallTimeout,
	})
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

	coord := query.New(log, embedder, store, generator,
		retry.Policy{MaxAttempts: cfg.MaxRetries, BaseDelay: cfg.RetryBaseDelay})

	res, err := coord.Answer(context.Background(), req)
	if err != nil {
		log.Error("query failed", "error", err)
		os.Exit(1)
	}

	if res.NoContext {
		color.New(color.FgYellow).Fprintln(os.Stderr, "no matching context found in the index")
	}
	fmt.Println(res.Answer)

	if len(res.Snippets) > 0 {
		bold := color.New(color.Bold)
		dim := color.New(color.Faint)
		bold.Println("\nSources:")
		for i, sn := range res.Snippets {
			bold.Printf("[%d] %s", i+1, sn.DocName)
			if sn.Locator != "" {
				fmt.Printf(" %s", sn.Locator)
			}
			dim.Printf("  score=%.3f type=%s\n", sn.Score, sn.Modality)
			if sn.Text != "" {
				fmt.Printf("    %s\n", strings.ReplaceAll(sn.Text, "\n", " "))
			}
		}
	}
}
