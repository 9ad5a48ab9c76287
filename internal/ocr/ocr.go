// Package ocr turns slip images into raw text.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// ProgressFunc receives recognition progress as a whole percent, 0 to 100.
type ProgressFunc func(percent int)

// Recognizer extracts text from an image.
type Recognizer interface {
	Recognize(ctx context.Context, image io.Reader, progress ProgressFunc) (string, error)
}

// RecognizerFunc adapts a function to Recognizer.
type RecognizerFunc func(ctx context.Context, image io.Reader, progress ProgressFunc) (string, error)

func (f RecognizerFunc) Recognize(ctx context.Context, image io.Reader, progress ProgressFunc) (string, error) {
	return f(ctx, image, progress)
}

// ErrEmptyImage is returned when no image bytes were supplied.
var ErrEmptyImage = errors.New("empty image")

// TesseractConfig configures the tesseract command line engine.
type TesseractConfig struct {
	// Path to the tesseract binary (default: "tesseract" from PATH)
	Path string

	// Languages passed to -l (default: "tha+eng")
	Languages string

	// Timeout bounds a single recognition (default: 60s)
	Timeout time.Duration
}

func DefaultTesseractConfig() TesseractConfig {
	return TesseractConfig{
		Path:      "tesseract",
		Languages: "tha+eng",
		Timeout:   60 * time.Second,
	}
}

// Tesseract runs the tesseract binary, feeding the image on stdin and reading
// text from stdout.
type Tesseract struct {
	config TesseractConfig
}

func NewTesseract(config TesseractConfig) *Tesseract {
	def := DefaultTesseractConfig()
	if config.Path == "" {
		config.Path = def.Path
	}
	if config.Languages == "" {
		config.Languages = def.Languages
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	return &Tesseract{config: config}
}

func (t *Tesseract) Recognize(ctx context.Context, image io.Reader, progress ProgressFunc) (string, error) {
	report := func(p int) {
		if progress != nil {
			progress(p)
		}
	}

	data, err := io.ReadAll(image)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return "", ErrEmptyImage
	}

	ctx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	report(0)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.config.Path, "stdin", "stdout", "-l", t.config.Languages)
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	report(100)

	slog.DebugContext(ctx, "Slip recognized",
		"bytes", len(data),
		"chars", stdout.Len(),
		"duration_ms", time.Since(start).Milliseconds())

	return stdout.String(), nil
}
