// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const defaultPdftotextBin = "pdftotext"

// Runner abstracts command execution for testing.
type Runner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// PdftotextExtractor reads PDFs with poppler's pdftotext binary. It copes
// with fonts whose content streams pdfcpu cannot map to text.
type PdftotextExtractor struct {
	bin         string
	runner      Runner
	maxFileSize int64
	logger      *zap.Logger
}

// PdftotextOption configures a PdftotextExtractor.
type PdftotextOption func(*PdftotextExtractor)

// WithBinary overrides the pdftotext binary path.
func WithBinary(bin string) PdftotextOption {
	return func(p *PdftotextExtractor) {
		if bin != "" {
			p.bin = bin
		}
	}
}

// WithRunner replaces the command runner.
func WithRunner(r Runner) PdftotextOption {
	return func(p *PdftotextExtractor) {
		p.runner = r
	}
}

// WithPdftotextLogger sets the logger.
func WithPdftotextLogger(logger *zap.Logger) PdftotextOption {
	return func(p *PdftotextExtractor) {
		p.logger = logger
	}
}

// NewPdftotext creates a PdftotextExtractor.
func NewPdftotext(options ...PdftotextOption) *PdftotextExtractor {
	p := &PdftotextExtractor{
		bin:         defaultPdftotextBin,
		runner:      execRunner{},
		maxFileSize: MaxFileSize,
		logger:      zap.NewNop(),
	}
	for _, o := range options {
		o(p)
	}
	return p
}

// Extract runs pdftotext on path and splits its output into pages on form
// feeds. Metadata is not available through this extractor.
func (p *PdftotextExtractor) Extract(ctx context.Context, path string) (*RawDocument, error) {
	f, err := CheckFile(path, p.maxFileSize)
	if err != nil {
		return nil, err
	}
	f.Close()

	// An absolute path never starts with "-", so pdftotext cannot mistake
	// the file for a flag.
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	out, err := p.runner.Output(ctx, p.bin, "-enc", "UTF-8", abs, "-")
	if err != nil {
		return nil, fmt.Errorf("running %s on %s: %w", p.bin, path, err)
	}

	doc := &RawDocument{Path: path, Pages: SplitPages(string(out))}
	p.logger.Debug("pdftotext extracted", zap.String("path", path), zap.Int("pages", doc.PageCount()))

	if doc.Empty() {
		return doc, fmt.Errorf("%s: %w", path, ErrNoText)
	}
	return doc, nil
}

// SplitPages splits pdftotext output on form feeds. Blank lines are kept
// as paragraph gaps, collapsed to one.
func SplitPages(out string) []Page {
	raw := strings.Split(out, "\f")
	// pdftotext terminates the last page with a form feed.
	if len(raw) > 1 && strings.TrimSpace(raw[len(raw)-1]) == "" {
		raw = raw[:len(raw)-1]
	}
	pages := make([]Page, 0, len(raw))
	for i, text := range raw {
		var lines []string
		for _, l := range strings.Split(text, "\n") {
			l = strings.Join(strings.Fields(l), " ")
			if l == "" && (len(lines) == 0 || lines[len(lines)-1] == "") {
				continue
			}
			lines = append(lines, l)
		}
		pages = append(pages, Page{Number: i + 1, Lines: trimBlankEdges(lines)})
	}
	return pages
}
