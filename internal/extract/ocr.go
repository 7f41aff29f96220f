package extract

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// runOCR extracts text from an image file using the tesseract binary.
// OCR is an external utility; a missing binary or a failed run surfaces as
// an error the caller can skip on.
func runOCR(ctx context.Context, imagePath, languages string) (string, error) {
	args := []string{imagePath, "stdout"}
	if languages != "" {
		args = append(args, "-l", languages)
	}
	cmd := exec.CommandContext(ctx, "tesseract", args...)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
