package extract

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// PDFExtractor produces one unit per page from the PDF text layer. Pages
// with an empty text layer (scanned images) are rasterized and routed
// through OCR. A page that fails both paths is skipped, not fatal.
type PDFExtractor struct {
	OCRLanguages string
}

func (e *PDFExtractor) Extract(ctx context.Context, path string) ([]Unit, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var units []Unit
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		var text string
		if !page.V.IsNull() {
			text, _ = page.GetPlainText(nil)
		}
		text = strings.TrimSpace(text)

		if text == "" {
			// Likely a scanned page: rasterize and OCR it.
			text, err = e.ocrPage(ctx, path, i)
			if err != nil {
				continue
			}
		}
		if text == "" {
			continue
		}

		units = append(units, Unit{
			Text:    text,
			Index:   i,
			Locator: fmt.Sprintf("page=%d", i),
		})
	}

	return units, nil
}

// ocrPage rasterizes a single PDF page with pdftoppm then OCRs the result.
func (e *PDFExtractor) ocrPage(ctx context.Context, path string, page int) (string, error) {
	dir, err := os.MkdirTemp("", "corpusrag-pdf-")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	prefix := filepath.Join(dir, "page")
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png", "-r", "150",
		"-f", strconv.Itoa(page), "-l", strconv.Itoa(page),
		path, prefix)
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftoppm: %w", err)
	}

	matches, err := filepath.Glob(prefix + "*.png")
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("pdftoppm produced no image for page %d", page)
	}
	return runOCR(ctx, matches[0], e.OCRLanguages)
}
