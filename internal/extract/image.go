package extract

import (
	"context"
	"fmt"
)

// ImageExtractor OCRs a single image file into one unit. Images with no
// recognizable text yield zero units rather than an error, so the file is
// recorded as processed without polluting the index.
type ImageExtractor struct {
	OCRLanguages string
}

func (e *ImageExtractor) Extract(ctx context.Context, path string) ([]Unit, error) {
	text, err := runOCR(ctx, path, e.OCRLanguages)
	if err != nil {
		return nil, fmt.Errorf("ocr image: %w", err)
	}
	if text == "" {
		return nil, nil
	}
	return []Unit{{Text: text}}, nil
}
