// Package query answers natural-language questions against the vector index:
// embed the question, retrieve candidate chunks, pack them into a bounded
// context and prompt the generative model with it.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgallion1/corpusrag/internal/retry"
	"github.com/dgallion1/corpusrag/internal/vecstore"
)

// Embedder embeds a single question.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher is the read side of the vector index.
type Searcher interface {
	Search(ctx context.Context, vector []float32, filter vecstore.Filter, limit int) ([]vecstore.ScoredChunk, error)
}

// Generator produces the answer text from a grounded prompt.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// Request carries the question and retrieval options for one query.
type Request struct {
	Question string

	// File restricts retrieval to chunks from one document (base name).
	File string
	// Modality restricts retrieval to one content type (text, pdf, image...).
	Modality string

	// FetchK is the retrieval breadth; K the final chunk count after
	// per-source dedup. K must not exceed FetchK.
	FetchK int
	K      int

	// MaxContextChars bounds the packed context. PerSourceLimit caps how
	// many chunks one document may contribute (0 = unlimited).
	MaxContextChars int
	PerSourceLimit  int

	// Model overrides the configured generative model when non-empty.
	Model string

	ShowSnippets bool
	SnippetChars int
}

// Validate rejects inconsistent options before any network I/O.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Question) == "" {
		return fmt.Errorf("question must not be empty")
	}
	if r.K <= 0 {
		return fmt.Errorf("k must be positive, got %d", r.K)
	}
	if r.FetchK < r.K {
		return fmt.Errorf("k (%d) must not exceed fetch-k (%d)", r.K, r.FetchK)
	}
	if r.MaxContextChars <= 0 {
		return fmt.Errorf("max-context-chars must be positive, got %d", r.MaxContextChars)
	}
	if r.PerSourceLimit < 0 {
		return fmt.Errorf("per-source-limit must not be negative, got %d", r.PerSourceLimit)
	}
	return nil
}

// Snippet is one packed chunk returned for citation.
type Snippet struct {
	Source   string  `json:"source"`
	DocName  string  `json:"doc_name"`
	Modality string  `json:"type"`
	Locator  string  `json:"locator,omitempty"`
	Score    float64 `json:"score"`
	Text     string  `json:"text,omitempty"`
}

// Result is the answer plus optional citations.
type Result struct {
	Answer    string    `json:"answer"`
	Snippets  []Snippet `json:"snippets,omitempty"`
	NoContext bool      `json:"no_context,omitempty"`
}

// Coordinator runs one query at a time; instances are safe for concurrent
// use since all state is read-only after construction.
type Coordinator struct {
	log       *slog.Logger
	embedder  Embedder
	searcher  Searcher
	generator Generator
	retry     retry.Policy
}

func New(log *slog.Logger, embedder Embedder, searcher Searcher, generator Generator, policy retry.Policy) *Coordinator {
	if policy.MaxAttempts <= 0 {
		policy = retry.DefaultPolicy()
	}
	return &Coordinator{
		log:       log,
		embedder:  embedder,
		searcher:  searcher,
		generator: generator,
		retry:     policy,
	}
}

// Answer resolves one query end to end. Zero retrieved chunks is not an
// error: the model is still invoked with an explicit no-context instruction
// so the caller gets an answer-level signal.
func (c *Coordinator) Answer(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	var vector []float32
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		var embedErr error
		vector, embedErr = c.embedder.Embed(ctx, req.Question)
		return embedErr
	})
	if err != nil {
		return Result{}, fmt.Errorf("embed question: %w", err)
	}

	filter := vecstore.Filter{DocName: req.File, Modality: req.Modality}
	var hits []vecstore.ScoredChunk
	err = c.retry.Do(ctx, func(ctx context.Context) error {
		var searchErr error
		hits, searchErr = c.searcher.Search(ctx, vector, filter, req.FetchK)
		return searchErr
	})
	if err != nil {
		return Result{}, fmt.Errorf("search index: %w", err)
	}

	selected := selectChunks(hits, req.K, req.PerSourceLimit)
	packed := packContext(selected, req.MaxContextChars)

	prompt := buildPrompt(req.Question, packed)
	var answer string
	err = c.retry.Do(ctx, func(ctx context.Context) error {
		var genErr error
		answer, genErr = c.generator.Generate(ctx, req.Model, prompt)
		return genErr
	})
	if err != nil {
		return Result{}, fmt.Errorf("generate answer: %w", err)
	}

	res := Result{Answer: answer, NoContext: len(packed) == 0}
	if req.ShowSnippets {
		res.Snippets = buildSnippets(packed, req.SnippetChars)
	}
	c.log.Info("query answered",
		"retrieved", len(hits),
		"selected", len(selected),
		"packed", len(packed),
		"no_context", res.NoContext,
	)
	return res, nil
}

// selectChunks applies the per-source cap in ranked order, then truncates to
// the top k. Hits arrive already ordered by descending score with chunk-ID
// tiebreak, so the output keeps that ordering.
func selectChunks(hits []vecstore.ScoredChunk, k, perSourceLimit int) []vecstore.ScoredChunk {
	var out []vecstore.ScoredChunk
	perSource := make(map[string]int)
	for _, h := range hits {
		if perSourceLimit > 0 && perSource[h.Source] >= perSourceLimit {
			continue
		}
		perSource[h.Source]++
		out = append(out, h)
		if len(out) == k {
			break
		}
	}
	return out
}

// packContext keeps whole chunks greedily in ranked order until the character
// budget is spent. A chunk that would overflow the budget is dropped entirely
// so citations always reference complete spans.
func packContext(chunks []vecstore.ScoredChunk, budget int) []vecstore.ScoredChunk {
	var packed []vecstore.ScoredChunk
	used := 0
	for _, ch := range chunks {
		n := len(ch.Text)
		if used+n > budget {
			continue
		}
		used += n
		packed = append(packed, ch)
	}
	return packed
}

func buildPrompt(question string, packed []vecstore.ScoredChunk) string {
	var b strings.Builder
	if len(packed) == 0 {
		b.WriteString("No relevant context was found in the document corpus for this question. ")
		b.WriteString("Say so explicitly, then answer from general knowledge if possible.\n\n")
		b.WriteString("Question: ")
		b.WriteString(question)
		return b.String()
	}

	b.WriteString("Answer the question using only the context below. ")
	b.WriteString("If the context does not contain the answer, say so instead of guessing.\n\n")
	b.WriteString("Context:\n")
	for i, ch := range packed {
		fmt.Fprintf(&b, "[%d] %s", i+1, ch.DocName)
		if ch.Locator != "" {
			fmt.Fprintf(&b, " (%s)", ch.Locator)
		}
		b.WriteString("\n")
		b.WriteString(ch.Text)
		b.WriteString("\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

func buildSnippets(packed []vecstore.ScoredChunk, snippetChars int) []Snippet {
	snippets := make([]Snippet, 0, len(packed))
	for _, ch := range packed {
		text := ch.Text
		if snippetChars > 0 && len(text) > snippetChars {
			text = truncateToRune(text, snippetChars) + "..."
		}
		snippets = append(snippets, Snippet{
			Source:   ch.Source,
			DocName:  ch.DocName,
			Modality: ch.Modality,
			Locator:  ch.Locator,
			Score:    ch.Score,
			Text:     text,
		})
	}
	return snippets
}

// truncateToRune cuts at or before n bytes without splitting a UTF-8 rune.
func truncateToRune(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}
