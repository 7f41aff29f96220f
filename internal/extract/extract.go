// Package extract converts corpus files into plain-text units ready for
// chunking. Each supported file type has one extraction strategy, selected
// by extension.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Modality is the closed set of content categories a source file can have.
// It is stored in chunk metadata and used for query filtering.
type Modality string

const (
	ModalityText   Modality = "text"
	ModalityPDF    Modality = "pdf"
	ModalityOffice Modality = "office"
	ModalityImage  Modality = "image"
	ModalityVideo  Modality = "video"
)

// ParseModality validates a user-supplied modality filter value.
func ParseModality(s string) (Modality, error) {
	switch Modality(strings.ToLower(s)) {
	case ModalityText:
		return ModalityText, nil
	case ModalityPDF:
		return ModalityPDF, nil
	case ModalityOffice:
		return ModalityOffice, nil
	case ModalityImage:
		return ModalityImage, nil
	case ModalityVideo:
		return ModalityVideo, nil
	}
	return "", fmt.Errorf("unknown modality %q (expected text, pdf, office, image or video)", s)
}

// Unit is one extracted piece of a source file: a page, a sampled video
// frame, or the whole file for single-unit formats. Units are ephemeral,
// produced and consumed within a single ingestion pass.
type Unit struct {
	Text    string
	Index   int    // page number, frame ordinal, or 0 for single-unit files
	Locator string // human-readable position, e.g. "page=3" or "t=00:40"
}

// Extractor converts a file on disk into plain-text units.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]Unit, error)
}

// Options carries extraction settings shared across strategies.
type Options struct {
	OCRLanguages  string        // tesseract -l value, e.g. "eng" or "deu+eng"
	FrameInterval time.Duration // video frame sampling interval
}

// ForPath returns the extraction strategy and modality for a file, or an
// error for unsupported extensions.
func ForPath(path string, opts Options) (Extractor, Modality, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".text", ".log":
		return &TextExtractor{}, ModalityText, nil
	case ".md", ".markdown":
		return &MarkdownExtractor{}, ModalityText, nil
	case ".html", ".htm":
		return &HTMLExtractor{}, ModalityText, nil
	case ".csv":
		return &CSVExtractor{}, ModalityText, nil
	case ".pdf":
		return &PDFExtractor{OCRLanguages: opts.OCRLanguages}, ModalityPDF, nil
	case ".docx":
		return &DOCXExtractor{}, ModalityOffice, nil
	case ".png", ".jpg", ".jpeg", ".webp":
		return &ImageExtractor{OCRLanguages: opts.OCRLanguages}, ModalityImage, nil
	case ".mp4", ".mov", ".mkv":
		return &VideoExtractor{OCRLanguages: opts.OCRLanguages, FrameInterval: opts.FrameInterval}, ModalityVideo, nil
	default:
		return nil, "", fmt.Errorf("unsupported file extension: %s", filepath.Ext(path))
	}
}

// IsSupported reports whether a file extension has an extraction strategy.
func IsSupported(path string) bool {
	_, _, err := ForPath(path, Options{})
	return err == nil
}
