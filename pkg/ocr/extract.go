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

	"github.com/codeGROOVE-dev/sockpuppet/pkg/profile"
)

// DefaultBinary is the OCR program searched for on PATH when none is configured.
const DefaultBinary = "tesseract"

const defaultTimeout = 20 * time.Second

// Extractor runs tesseract over images.
type Extractor struct {
	logger   *slog.Logger
	binary   string // resolved path, empty when no binary was found
	language string
	timeout  time.Duration
}

// Option configures an Extractor.
type Option func(*config)

type config struct {
	logger   *slog.Logger
	binary   string
	language string
	timeout  time.Duration
}

// WithBinary sets the OCR program name or path instead of searching PATH for tesseract.
func WithBinary(binary string) Option {
	return func(c *config) { c.binary = binary }
}

// WithLanguage sets the tesseract language code (for example "eng").
func WithLanguage(lang string) Option {
	return func(c *config) { c.language = lang }
}

// WithTimeout bounds each OCR run.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// New locates the OCR binary. A missing binary is not an error: the
// Extractor is still returned and Extract reports ErrExtractionUnavailable.
func New(opts ...Option) *Extractor {
	cfg := &config{
		logger:  slog.Default(),
		binary:  DefaultBinary,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.binary == "" {
		cfg.binary = DefaultBinary
	}
	if cfg.timeout <= 0 {
		cfg.timeout = defaultTimeout
	}

	path, err := exec.LookPath(cfg.binary)
	if err != nil {
		cfg.logger.Debug("OCR binary not found", "binary", cfg.binary, "error", err)
		path = ""
	}

	return &Extractor{
		logger:   cfg.logger,
		binary:   path,
		language: cfg.language,
		timeout:  cfg.timeout,
	}
}

// Available reports whether an OCR binary was found.
func (e *Extractor) Available() bool { return e.binary != "" }

// Binary returns the resolved OCR binary path, or "" if none was found.
func (e *Extractor) Binary() string { return e.binary }

// Extract returns the text tesseract reads from img.
// On any failure the text is empty and the error wraps profile.ErrExtractionUnavailable,
// so callers can fall back to scoring empty text.
func (e *Extractor) Extract(ctx context.Context, img io.Reader) (string, error) {
	if !e.Available() {
		return "", fmt.Errorf("%w: no OCR binary found", profile.ErrExtractionUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := []string{"stdin", "stdout"}
	if e.language != "" {
		args = append(args, "-l", e.language)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.binary, args...) //nolint:gosec // binary comes from operator configuration
	cmd.Stdin = img
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", e.timeout, err)
		}
		msg := strings.TrimSpace(stderr.String())
		e.logger.WarnContext(ctx, "OCR failed", "binary", e.binary, "error", err, "stderr", msg)
		return "", fmt.Errorf("%w: %s: %w", profile.ErrExtractionUnavailable, e.binary, err)
	}

	e.logger.DebugContext(ctx, "OCR complete", "binary", e.binary, "bytes", stdout.Len(), "elapsed", time.Since(start))
	return stdout.String(), nil
}
