// Package ingest walks the corpus and reconciles the vector index with it:
// changed files are re-extracted, re-chunked, re-embedded and upserted,
// vanished files have their chunks deleted. The manifest records what the
// index holds so unchanged files cost nothing on the next pass.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/corpusrag/internal/chunker"
	"github.com/dgallion1/corpusrag/internal/extract"
	"github.com/dgallion1/corpusrag/internal/manifest"
	"github.com/dgallion1/corpusrag/internal/retry"
	"github.com/dgallion1/corpusrag/internal/vecstore"
)

// Mode selects how a pass treats files already recorded in the manifest.
type Mode string

const (
	// ModeIncremental skips files whose fingerprint matches the manifest.
	ModeIncremental Mode = "incremental"
	// ModeRescan reprocesses every file regardless of fingerprint.
	ModeRescan Mode = "rescan"
	// ModeReset clears the index and manifest, then proceeds as incremental.
	ModeReset Mode = "reset"
)

// Embedder is the embedding collaborator boundary.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore is the index boundary used during ingestion.
type VectorStore interface {
	EnsureCollection(ctx context.Context, dimensions int) error
	Reset(ctx context.Context, dimensions int) error
	Upsert(ctx context.Context, chunks []vecstore.Chunk, vectors [][]float32) error
	DeleteByID(ctx context.Context, chunkIDs []string) error
}

// FileStatus reports the outcome for one corpus file.
type FileStatus struct {
	Path   string `json:"path"`
	Status string `json:"status"` // indexed, skipped, failed, unsupported
	Chunks int    `json:"chunks,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Summary aggregates one ingestion pass.
type Summary struct {
	Indexed     int          `json:"indexed"`
	Skipped     int          `json:"skipped"`
	Failed      int          `json:"failed"`
	Removed     int          `json:"removed"`
	Unsupported int          `json:"unsupported"`
	Files       []FileStatus `json:"files,omitempty"`
}

// Options configures a Coordinator.
type Options struct {
	DataPath      string
	EmbeddingDims int
	Workers       int
	ChunkConfig   chunker.Config
	ExtractOpts   extract.Options
	Retry         retry.Policy
}

// Coordinator drives one ingestion pass at a time. It is the only writer of
// the manifest and of the vector index.
type Coordinator struct {
	log      *slog.Logger
	store    VectorStore
	embedder Embedder
	man      *manifest.Store
	opts     Options

	// Serializes manifest persistence; entry mutation is already guarded
	// inside the store, and each path is owned by a single worker per pass.
	saveMu sync.Mutex
}

func New(log *slog.Logger, store VectorStore, embedder Embedder, man *manifest.Store, opts Options) (*Coordinator, error) {
	if err := opts.ChunkConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chunk config: %w", err)
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = retry.DefaultPolicy()
	}
	return &Coordinator{
		log:      log,
		store:    store,
		embedder: embedder,
		man:      man,
		opts:     opts,
	}, nil
}

// Run executes one ingestion pass. Per-file failures are reported in the
// summary, not returned; the error is non-nil only for setup failures that
// abort the whole pass.
func (c *Coordinator) Run(ctx context.Context, mode Mode) (Summary, error) {
	if mode == ModeReset {
		c.log.Info("resetting index and manifest")
		if err := c.store.Reset(ctx, c.opts.EmbeddingDims); err != nil {
			return Summary{}, fmt.Errorf("reset index: %w", err)
		}
		c.man.Clear()
		if err := c.persistManifest(); err != nil {
			return Summary{}, fmt.Errorf("reset manifest: %w", err)
		}
		mode = ModeIncremental
	} else {
		if err := c.store.EnsureCollection(ctx, c.opts.EmbeddingDims); err != nil {
			return Summary{}, fmt.Errorf("prepare index: %w", err)
		}
	}

	paths, err := c.walkCorpus()
	if err != nil {
		return Summary{}, err
	}

	// Bounded worker pool across files; no cross-file dependency.
	results := make(chan FileStatus, len(paths))
	sem := make(chan struct{}, c.opts.Workers)
	for _, path := range paths {
		sem <- struct{}{}
		go func(path string) {
			defer func() { <-sem }()
			results <- c.processFile(ctx, path, mode)
		}(path)
	}

	var summary Summary
	seen := make(map[string]bool, len(paths))
	for range paths {
		st := <-results
		seen[st.Path] = true
		summary.Files = append(summary.Files, st)
		switch st.Status {
		case "indexed":
			summary.Indexed++
		case "skipped":
			summary.Skipped++
		case "failed":
			summary.Failed++
		case "unsupported":
			summary.Unsupported++
		}
	}

	// Files present in the old manifest but gone from the corpus: remove
	// their chunks and entries.
	for _, old := range c.man.Paths() {
		if seen[old] {
			continue
		}
		entry, ok := c.man.Get(old)
		if !ok {
			continue
		}
		err := c.opts.Retry.Do(ctx, func(ctx context.Context) error {
			return c.store.DeleteByID(ctx, entry.ChunkIDs)
		})
		if err != nil {
			// Entry stays in the manifest so the next pass retries the delete.
			c.log.Error("could not delete chunks for removed file", "path", old, "error", err)
			summary.Failed++
			summary.Files = append(summary.Files, FileStatus{Path: old, Status: "failed", Error: err.Error()})
			continue
		}
		c.man.Remove(old)
		c.log.Info("removed deleted file from index", "path", old, "chunks", len(entry.ChunkIDs))
		summary.Removed++
	}

	if err := c.persistManifest(); err != nil {
		return summary, fmt.Errorf("save manifest: %w", err)
	}

	c.log.Info("ingestion pass complete",
		"indexed", summary.Indexed,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"removed", summary.Removed,
		"unsupported", summary.Unsupported,
	)
	return summary, nil
}

// processFile runs the extract → chunk → embed → reconcile sequence for one
// file. The manifest entry is written only after the index writes succeed,
// so a failed file is retried on the next pass.
func (c *Coordinator) processFile(ctx context.Context, path string, mode Mode) FileStatus {
	log := c.log.With("path", path)

	extractor, modality, err := extract.ForPath(path, c.opts.ExtractOpts)
	if err != nil {
		return FileStatus{Path: path, Status: "unsupported", Error: err.Error()}
	}

	fp, err := manifest.Fingerprint(path)
	if err != nil {
		log.Error("fingerprint failed", "error", err)
		return FileStatus{Path: path, Status: "failed", Error: err.Error()}
	}

	if mode == ModeIncremental {
		if entry, ok := c.man.Get(path); ok && entry.Fingerprint == fp {
			return FileStatus{Path: path, Status: "skipped", Chunks: len(entry.ChunkIDs)}
		}
	}

	units, err := extractor.Extract(ctx, path)
	if err != nil {
		log.Error("extraction failed", "error", err)
		return FileStatus{Path: path, Status: "failed", Error: err.Error()}
	}

	chunks := c.buildChunks(path, modality, units)

	var vectors [][]float32
	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, ch := range chunks {
			texts[i] = ch.Text
		}
		err = c.opts.Retry.Do(ctx, func(ctx context.Context) error {
			var embedErr error
			vectors, embedErr = c.embedder.EmbedBatch(ctx, texts)
			return embedErr
		})
		if err != nil {
			log.Error("embedding failed", "chunks", len(chunks), "error", err)
			return FileStatus{Path: path, Status: "failed", Error: err.Error()}
		}
	}

	// Delete-then-upsert: a query during this window may transiently miss
	// this file's chunks, which is the documented trade-off.
	if old, ok := c.man.Get(path); ok && len(old.ChunkIDs) > 0 {
		err = c.opts.Retry.Do(ctx, func(ctx context.Context) error {
			return c.store.DeleteByID(ctx, old.ChunkIDs)
		})
		if err != nil {
			log.Error("stale chunk delete failed", "error", err)
			return FileStatus{Path: path, Status: "failed", Error: err.Error()}
		}
		// The index no longer holds this path's chunks. Drop the entry now:
		// if the upsert below fails, a surviving entry with a still-matching
		// fingerprint would make every later incremental pass skip the file
		// while the index has nothing for it.
		c.man.Remove(path)
		if err := c.persistManifest(); err != nil {
			log.Error("manifest save failed", "error", err)
		}
	}

	if len(chunks) > 0 {
		err = c.opts.Retry.Do(ctx, func(ctx context.Context) error {
			return c.store.Upsert(ctx, chunks, vectors)
		})
		if err != nil {
			log.Error("upsert failed", "error", err)
			return FileStatus{Path: path, Status: "failed", Error: err.Error()}
		}
	}

	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		ids[i] = ch.ID
	}
	c.man.Put(path, manifest.Entry{
		Fingerprint: fp,
		ChunkIDs:    ids,
		IndexedAt:   time.Now().UTC(),
	})
	if err := c.persistManifest(); err != nil {
		log.Error("manifest save failed", "error", err)
	}

	log.Info("indexed file", "modality", modality, "units", len(units), "chunks", len(chunks))
	return FileStatus{Path: path, Status: "indexed", Chunks: len(chunks)}
}

// buildChunks turns extracted units into index chunks with stable IDs.
func (c *Coordinator) buildChunks(path string, modality extract.Modality, units []extract.Unit) []vecstore.Chunk {
	var chunks []vecstore.Chunk
	docName := filepath.Base(path)
	for _, unit := range units {
		for seq, span := range chunker.Split(unit.Text, c.opts.ChunkConfig) {
			chunks = append(chunks, vecstore.Chunk{
				ID:       chunker.ID(path, unit.Index, seq, span),
				Text:     span,
				Source:   path,
				DocName:  docName,
				Modality: string(modality),
				Unit:     unit.Index,
				Locator:  unit.Locator,
			})
		}
	}
	return chunks
}

// walkCorpus lists candidate files under the corpus root, skipping hidden
// files and editor leftovers. A missing or unreadable root is fatal.
func (c *Coordinator) walkCorpus() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(c.opts.DataPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") && path != c.opts.DataPath {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") ||
			strings.HasSuffix(name, ".tmp") || strings.HasSuffix(name, ".backup") {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk corpus root %s: %w", c.opts.DataPath, err)
	}
	return paths, nil
}

func (c *Coordinator) persistManifest() error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	return c.man.Save()
}
