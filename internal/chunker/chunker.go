// Package chunker splits extracted text into overlapping fixed-size spans.
// Splitting is fully deterministic: identical text and config always yield
// byte-identical spans and IDs, which is what makes fingerprint-based skip
// during ingestion sound.
package chunker

import (
	"crypto/sha1"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Config controls chunking behavior. Sizes are in bytes of UTF-8 text.
type Config struct {
	ChunkSize int // maximum span length
	Overlap   int // bytes carried over between consecutive spans
}

// DefaultConfig returns the chunking defaults.
func DefaultConfig() Config {
	return Config{ChunkSize: 800, Overlap: 80}
}

func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("overlap must not be negative, got %d", c.Overlap)
	}
	if c.Overlap >= c.ChunkSize {
		return fmt.Errorf("overlap (%d) must be smaller than chunk size (%d)", c.Overlap, c.ChunkSize)
	}
	return nil
}

// Split breaks text into spans of at most ChunkSize bytes with Overlap bytes
// shared between consecutive spans. Boundaries prefer a paragraph break, then
// a sentence break, inside a tolerance window at the tail of the span, and
// fall back to a hard cut on a rune boundary.
func Split(text string, cfg Config) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= cfg.ChunkSize {
		return []string{text}
	}

	// The window within which a natural break is preferred over a hard cut.
	tolerance := cfg.ChunkSize / 5
	if tolerance < 1 {
		tolerance = 1
	}

	var spans []string
	start := 0
	for {
		remaining := len(text) - start
		if remaining <= cfg.ChunkSize {
			span := strings.TrimSpace(text[start:])
			if span != "" {
				spans = append(spans, span)
			}
			break
		}

		end := start + cfg.ChunkSize
		cut := findBreak(text, end-tolerance, end)
		if cut <= start {
			cut = hardCut(text, end)
		}
		if cut <= start {
			// ChunkSize is smaller than the rune at start; take the whole rune.
			_, size := utf8.DecodeRuneInString(text[start:])
			cut = start + size
		}

		span := strings.TrimSpace(text[start:cut])
		if span != "" {
			spans = append(spans, span)
		}

		// Step back for the overlap, never landing mid-rune. The progress
		// guard runs after the rune walkback: walking back first could
		// otherwise return next to start and stall the loop.
		next := cut - cfg.Overlap
		for next > 0 && next < len(text) && !utf8.RuneStart(text[next]) {
			next--
		}
		if next <= start {
			next = cut
		}
		start = next
	}

	return spans
}

// findBreak scans [lo, hi] backwards for the best natural boundary and
// returns the cut position just after it, or -1 if none exists.
func findBreak(text string, lo, hi int) int {
	if lo < 0 {
		lo = 0
	}
	window := text[lo:hi]

	// Paragraph break wins over sentence break.
	if i := strings.LastIndex(window, "\n\n"); i >= 0 {
		return lo + i + 2
	}
	for j := len(window) - 1; j > 0; j-- {
		c := window[j]
		if c == ' ' || c == '\n' {
			prev := window[j-1]
			if prev == '.' || prev == '!' || prev == '?' {
				return lo + j + 1
			}
		}
	}
	if i := strings.LastIndexByte(window, '\n'); i >= 0 {
		return lo + i + 1
	}
	return -1
}

// hardCut returns pos moved back to the nearest rune boundary.
func hardCut(text string, pos int) int {
	for pos > 0 && !utf8.RuneStart(text[pos]) {
		pos--
	}
	return pos
}

// ID builds the stable chunk identifier for a span: source path, unit index,
// sequence within the unit, and a short content hash. Re-chunking identical
// input reproduces the same IDs.
func ID(source string, unitIndex, seq int, text string) string {
	return fmt.Sprintf("%s:unit=%d:%d:%s", source, unitIndex, seq, shortHash(text))
}

func shortHash(text string) string {
	h := sha1.Sum([]byte(text))
	return fmt.Sprintf("%x", h[:])[:8]
}
