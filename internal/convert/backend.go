// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pdiddy/milkbottle/internal/format"
	"github.com/pdiddy/milkbottle/internal/grobid"
	"github.com/pdiddy/milkbottle/internal/mathpix"
	"github.com/pdiddy/milkbottle/internal/pdf"
	"github.com/pdiddy/milkbottle/internal/quality"
	"github.com/pdiddy/milkbottle/pkg/types"
)

var (
	// ErrNoText is returned when a backend finds no extractable text.
	ErrNoText = pdf.ErrNoText

	// ErrAllBackendsFailed is returned by a Chain when no backend produced
	// a document. It is joined with each backend's error.
	ErrAllBackendsFailed = errors.New("all extraction backends failed")

	// ErrOutputConflict is returned when the output slot of a PDF already
	// holds another PDF's Markdown.
	ErrOutputConflict = errors.New("output belongs to another PDF")
)

// Backend turns a PDF into a structured Document. Local parsing, pdftotext,
// Grobid and Mathpix each implement it.
type Backend interface {
	Name() string
	Extract(ctx context.Context, path string) (*types.Document, error)
}

// RawExtractor reads page text from a PDF.
type RawExtractor interface {
	Extract(ctx context.Context, path string) (*pdf.RawDocument, error)
}

// LocalBackend parses the PDF in-process and rebuilds its structure with
// the text heuristics.
type LocalBackend struct {
	extractor RawExtractor
}

// NewLocalBackend creates a LocalBackend.
func NewLocalBackend(ex RawExtractor) *LocalBackend {
	return &LocalBackend{extractor: ex}
}

// Name returns the backend identifier.
func (b *LocalBackend) Name() string { return string(types.BackendLocal) }

// Extract implements Backend.
func (b *LocalBackend) Extract(ctx context.Context, path string) (*types.Document, error) {
	return buildRaw(ctx, b.extractor, path, types.BackendLocal)
}

// PdftotextBackend reads text with poppler's pdftotext and applies the same
// heuristics as LocalBackend.
type PdftotextBackend struct {
	extractor RawExtractor
}

// NewPdftotextBackend creates a PdftotextBackend.
func NewPdftotextBackend(ex RawExtractor) *PdftotextBackend {
	return &PdftotextBackend{extractor: ex}
}

// Name returns the backend identifier.
func (b *PdftotextBackend) Name() string { return string(types.BackendPdftotext) }

// Extract implements Backend.
func (b *PdftotextBackend) Extract(ctx context.Context, path string) (*types.Document, error) {
	return buildRaw(ctx, b.extractor, path, types.BackendPdftotext)
}

func buildRaw(ctx context.Context, ex RawExtractor, path string, name types.BackendName) (*types.Document, error) {
	raw, err := ex.Extract(ctx, path)
	if err != nil {
		return nil, err
	}
	doc := format.Build(raw)
	doc.Backend = string(name)
	return doc, nil
}

// GrobidService is the subset of the Grobid client the backend uses.
type GrobidService interface {
	IsAlive(ctx context.Context) error
	ProcessFulltext(ctx context.Context, path string) (*types.Document, error)
}

// GrobidBackend delegates to a Grobid service. The service is probed once;
// when it is down every Extract fails fast with grobid.ErrUnavailable. A
// probe cut short by the caller's context is not remembered.
type GrobidBackend struct {
	service GrobidService
	logger  *zap.Logger

	mu       sync.Mutex
	probed   bool
	aliveErr error
}

// NewGrobidBackend creates a GrobidBackend.
func NewGrobidBackend(svc GrobidService, logger *zap.Logger) *GrobidBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GrobidBackend{service: svc, logger: logger}
}

// Name returns the backend identifier.
func (b *GrobidBackend) Name() string { return string(types.BackendGrobid) }

// Extract implements Backend.
func (b *GrobidBackend) Extract(ctx context.Context, path string) (*types.Document, error) {
	if err := b.alive(ctx); err != nil {
		return nil, err
	}

	doc, err := b.service.ProcessFulltext(ctx, path)
	if err != nil {
		return nil, err
	}
	fillPageCount(doc, path, b.logger)
	return doc, nil
}

func (b *GrobidBackend) alive(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.probed {
		return b.aliveErr
	}
	err := b.service.IsAlive(ctx)
	if err != nil && ctx.Err() != nil {
		return err
	}
	b.probed, b.aliveErr = true, err
	if err != nil {
		b.logger.Warn("grobid not reachable; backend disabled for this run", zap.Error(err))
	}
	return err
}

// MarkdownService converts a PDF straight to Markdown.
type MarkdownService interface {
	ConvertPDF(ctx context.Context, path string) (string, error)
}

// MathpixBackend delegates to the Mathpix PDF API and parses the Markdown
// it returns.
type MathpixBackend struct {
	service MarkdownService
	logger  *zap.Logger
}

// NewMathpixBackend creates a MathpixBackend.
func NewMathpixBackend(svc MarkdownService, logger *zap.Logger) *MathpixBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MathpixBackend{service: svc, logger: logger}
}

// Name returns the backend identifier.
func (b *MathpixBackend) Name() string { return string(types.BackendMathpix) }

// Extract implements Backend.
func (b *MathpixBackend) Extract(ctx context.Context, path string) (*types.Document, error) {
	md, err := b.service.ConvertPDF(ctx, path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(md) == "" {
		return nil, fmt.Errorf("mathpix returned empty markdown for %s: %w", path, ErrNoText)
	}
	doc := format.FromMarkdown(md)
	doc.SourcePath = path
	doc.Backend = string(types.BackendMathpix)
	fillPageCount(doc, path, b.logger)
	return doc, nil
}

func fillPageCount(doc *types.Document, path string, logger *zap.Logger) {
	if doc.PageCount > 0 {
		return
	}
	n, err := pdf.PageCount(path)
	if err != nil {
		logger.Debug("page count unavailable", zap.String("path", path), zap.Error(err))
		return
	}
	doc.PageCount = n
}

// Chain tries backends in order. A result scoring below the minimum quality
// sends the chain on to the next backend; the best-scoring result wins.
type Chain struct {
	backends   []Backend
	minQuality float64
	logger     *zap.Logger
}

// NewChain creates a Chain over backends.
func NewChain(minQuality float64, logger *zap.Logger, backends ...Backend) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{backends: backends, minQuality: minQuality, logger: logger}
}

// Name returns the backend identifier.
func (c *Chain) Name() string { return string(types.BackendAuto) }

// Backends returns the chained backends in order.
func (c *Chain) Backends() []Backend { return c.backends }

// Extract implements Backend. Every returned document carries its quality
// report.
func (c *Chain) Extract(ctx context.Context, path string) (*types.Document, error) {
	var (
		best *types.Document
		errs []error
	)
	for i, b := range c.backends {
		doc, err := b.Extract(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Info("backend failed", zap.String("backend", b.Name()), zap.String("path", path), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
			continue
		}
		doc.Quality = quality.Assess(doc)
		if best == nil || doc.Quality.Score > best.Quality.Score {
			best = doc
		}
		if doc.Quality.Score >= c.minQuality {
			break
		}
		if i < len(c.backends)-1 {
			c.logger.Info("low quality result; trying next backend",
				zap.String("backend", b.Name()),
				zap.String("path", path),
				zap.Float64("score", doc.Quality.Score),
				zap.Float64("min", c.minQuality),
			)
		}
	}
	if best == nil {
		return nil, errors.Join(append([]error{ErrAllBackendsFailed}, errs...)...)
	}
	return best, nil
}

// Deps carries collaborators for NewBackend. Zero values select the real
// implementations.
type Deps struct {
	Logger     *zap.Logger
	Runner     pdf.Runner
	HTTPClient *http.Client
}

// NewBackend resolves cfg.Backend to a Backend. The auto backend chains
// cfg.Fallback and leaves out Mathpix when no credentials are configured.
func NewBackend(cfg types.PDFMilkerConfig, deps Deps) (Backend, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	name := cfg.Backend
	if name == "" {
		name = types.BackendAuto
	}
	if name != types.BackendAuto {
		return newSingle(name, cfg, deps)
	}

	fallback := cfg.Fallback
	if len(fallback) == 0 {
		fallback = []types.BackendName{types.BackendGrobid, types.BackendLocal}
	}
	var backends []Backend
	for _, n := range fallback {
		if n == types.BackendAuto {
			return nil, fmt.Errorf("fallback cannot contain %q", n)
		}
		if n == types.BackendMathpix && !cfg.Mathpix.Configured() {
			deps.Logger.Debug("mathpix not configured; left out of chain")
			continue
		}
		b, err := newSingle(n, cfg, deps)
		if err != nil {
			return nil, err
		}
		backends = append(backends, b)
	}
	if len(backends) == 0 {
		return nil, fmt.Errorf("no usable backends in fallback %v", fallback)
	}
	return NewChain(cfg.MinQuality, deps.Logger, backends...), nil
}

func newSingle(name types.BackendName, cfg types.PDFMilkerConfig, deps Deps) (Backend, error) {
	switch name {
	case types.BackendLocal:
		return NewLocalBackend(pdf.New(pdf.WithLogger(deps.Logger))), nil
	case types.BackendPdftotext:
		opts := []pdf.PdftotextOption{
			pdf.WithBinary(cfg.PdftotextBin),
			pdf.WithPdftotextLogger(deps.Logger),
		}
		if deps.Runner != nil {
			opts = append(opts, pdf.WithRunner(deps.Runner))
		}
		return NewPdftotextBackend(pdf.NewPdftotext(opts...)), nil
	case types.BackendGrobid:
		opts := []grobid.Option{grobid.WithLogger(deps.Logger)}
		if deps.HTTPClient != nil {
			opts = append(opts, grobid.WithHTTPClient(deps.HTTPClient))
		}
		return NewGrobidBackend(grobid.NewFromConfig(cfg.Grobid, opts...), deps.Logger), nil
	case types.BackendMathpix:
		opts := []mathpix.Option{mathpix.WithLogger(deps.Logger)}
		if deps.HTTPClient != nil {
			opts = append(opts, mathpix.WithHTTPClient(deps.HTTPClient))
		}
		client, err := mathpix.New(cfg.Mathpix, opts...)
		if err != nil {
			return nil, err
		}
		return NewMathpixBackend(client, deps.Logger), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}
