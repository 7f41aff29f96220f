package extract

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// TextExtractor handles plain text files: one verbatim unit per file.
type TextExtractor struct{}

func (e *TextExtractor) Extract(ctx context.Context, path string) ([]Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read text file: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, nil
	}
	return []Unit{{Text: text}}, nil
}

// CSVExtractor flattens a CSV into header-labelled rows, one unit per file.
type CSVExtractor struct{}

func (e *CSVExtractor) Extract(ctx context.Context, path string) ([]Unit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	// First row is headers; label each cell so rows stay meaningful after
	// chunking detaches them from the header line.
	headers := records[0]
	var text strings.Builder
	text.WriteString("Headers: " + strings.Join(headers, ", ") + "\n\n")
	for _, row := range records[1:] {
		for j, cell := range row {
			if j < len(headers) {
				text.WriteString(headers[j] + ": " + cell)
			} else {
				text.WriteString(cell)
			}
			if j < len(row)-1 {
				text.WriteString(", ")
			}
		}
		text.WriteString("\n")
	}

	out := strings.TrimSpace(text.String())
	if out == "" {
		return nil, nil
	}
	return []Unit{{Text: out}}, nil
}
