package extract

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"
)

// VideoExtractor samples frames from a video at a fixed interval and OCRs
// each one. One unit per sampled frame; the unit index is the frame ordinal
// and the locator carries the frame timestamp. A frame that fails OCR is
// skipped without aborting the file.
type VideoExtractor struct {
	OCRLanguages  string
	FrameInterval time.Duration
}

func (e *VideoExtractor) Extract(ctx context.Context, path string) ([]Unit, error) {
	interval := e.FrameInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	dir, err := os.MkdirTemp("", "corpusrag-video-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	// One frame every interval seconds.
	fps := fmt.Sprintf("fps=1/%g", interval.Seconds())
	outPattern := filepath.Join(dir, "frame-%05d.png")
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-vf", fps,
		outPattern)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg frame sampling: %w", err)
	}

	frames, err := filepath.Glob(filepath.Join(dir, "frame-*.png"))
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	sort.Strings(frames)

	var units []Unit
	for i, frame := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := runOCR(ctx, frame, e.OCRLanguages)
		if err != nil || text == "" {
			continue
		}
		ts := time.Duration(i) * interval
		units = append(units, Unit{
			Text:    text,
			Index:   i + 1,
			Locator: fmt.Sprintf("t=%02d:%02d", int(ts.Minutes()), int(ts.Seconds())%60),
		})
	}

	return units, nil
}
