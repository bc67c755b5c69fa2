// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert implements the PDF milking pipeline: a pluggable
// extraction Backend, quality-driven fallback between backends, and the
// Milker that renders and writes each document's outputs.
package convert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/milkbottle/internal/format"
	"github.com/pdiddy/milkbottle/internal/history"
	"github.com/pdiddy/milkbottle/internal/quality"
	"github.com/pdiddy/milkbottle/pkg/types"
)

const (
	// markdownDir is the subdirectory under the output base for Markdown.
	markdownDir = "markdown"
	// metadataDir holds the YAML metadata sidecars.
	metadataDir = "metadata"
	// jsonDir holds the full Document as JSON when enabled.
	jsonDir = "json"
)

// Ledger records conversion attempts. *history.Store implements it.
type Ledger interface {
	Record(ctx context.Context, e history.Entry) error
	Latest(ctx context.Context, sourcePath string) (*history.Entry, error)
}

// Result holds the outcome of milking one PDF.
type Result struct {
	Path       string
	Slug       string
	Status     types.ConversionStatus
	Backend    string
	Score      float64
	Grade      types.QualityGrade
	OutputPath string
	Err        error
	Duration   time.Duration
}

// Milker converts single PDFs with a Backend and writes their outputs. It
// is safe for concurrent use.
type Milker struct {
	backend Backend
	cfg     types.PDFMilkerConfig
	ledger  Ledger
	logger  *zap.Logger
	now     func() time.Time

	slugs map[string]string

	mu sync.Mutex
	w  io.Writer
}

// Option configures a Milker.
type Option func(*Milker)

// WithLedger records every attempt in l and enables source-hash checks.
func WithLedger(l Ledger) Option {
	return func(m *Milker) {
		m.ledger = l
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Milker) {
		m.logger = logger
	}
}

// WithStatusWriter sends per-file status lines to w.
func WithStatusWriter(w io.Writer) Option {
	return func(m *Milker) {
		m.w = w
	}
}

// WithSlugs names outputs from slugs, keyed by source path, instead of
// Slug. Paths missing from the map fall back to Slug.
func WithSlugs(slugs map[string]string) Option {
	return func(m *Milker) {
		m.slugs = slugs
	}
}

// WithClock overrides the time source for timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Milker) {
		m.now = now
	}
}

// NewMilker creates a Milker writing below cfg.OutputDir.
func NewMilker(backend Backend, cfg types.PDFMilkerConfig, options ...Option) *Milker {
	m := &Milker{
		backend: backend,
		cfg:     cfg,
		logger:  zap.NewNop(),
		now:     time.Now,
		w:       io.Discard,
	}
	for _, o := range options {
		o(m)
	}
	return m
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slug derives the output name of a PDF: the lowercased base name with
// runs of other characters collapsed to "-".
func Slug(path string) string {
	s := slugify(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	if s == "" {
		return "document"
	}
	return s
}

func slugify(s string) string {
	return strings.Trim(slugRe.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// UniqueSlugs assigns every path a slug no other path in paths shares.
// Paths whose Slug collides are prefixed with as many parent directory
// names as it takes to tell them apart ("2024/main.pdf" becomes
// "2024-main"); any clash left after that gets a numeric suffix.
func UniqueSlugs(paths []string) map[string]string {
	groups := make(map[string][]string)
	for _, p := range paths {
		s := Slug(p)
		groups[s] = append(groups[s], p)
	}
	out := make(map[string]string, len(paths))
	used := make(map[string]bool, len(paths))
	for _, p := range paths {
		if _, done := out[p]; done {
			continue
		}
		s := Slug(p)
		if len(groups[s]) > 1 {
			s = dirSlug(p, groups[s])
		}
		base := s
		for n := 2; used[s]; n++ {
			s = fmt.Sprintf("%s-%d", base, n)
		}
		used[s] = true
		out[p] = s
	}
	return out
}

// dirSlug prefixes Slug(p) with the fewest parent directories that no
// other member of group shares.
func dirSlug(p string, group []string) string {
	dirs := parentDirs(p)
	for d := 1; d <= len(dirs); d++ {
		cand := withDirs(p, dirs, d)
		unique := true
		for _, q := range group {
			if q != p && withDirs(q, parentDirs(q), d) == cand {
				unique = false
				break
			}
		}
		if unique {
			return cand
		}
	}
	return Slug(p)
}

func parentDirs(p string) []string {
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	var dirs []string
	for _, d := range strings.Split(filepath.ToSlash(filepath.Dir(p)), "/") {
		if s := slugify(d); s != "" {
			dirs = append(dirs, s)
		}
	}
	return dirs
}

func withDirs(p string, dirs []string, d int) string {
	if d > len(dirs) {
		d = len(dirs)
	}
	return strings.Join(append(append([]string(nil), dirs[len(dirs)-d:]...), Slug(p)), "-")
}

func (m *Milker) slug(path string) string {
	if s, ok := m.slugs[path]; ok && s != "" {
		return s
	}
	return Slug(path)
}

// MarkdownPath returns where the Markdown for path is written.
func (m *Milker) MarkdownPath(path string) string {
	return filepath.Join(m.cfg.OutputDir, markdownDir, m.slug(path)+".md")
}

// MilkFile extracts path, renders it, and writes the outputs. Failures are
// reported in the Result, never as a panic or an aborted run.
func (m *Milker) MilkFile(ctx context.Context, path string) Result {
	start := m.now()
	res := Result{Path: path, Slug: m.slug(path)}
	mdPath := m.MarkdownPath(path)

	finish := func(status types.ConversionStatus, err error) Result {
		res.Status, res.Err = status, err
		res.Duration = m.now().Sub(start)
		return res
	}

	if err := ctx.Err(); err != nil {
		return finish(types.ConversionCancelled, err)
	}

	var sum string
	if m.ledger != nil {
		s, err := history.FileSHA256(path)
		if err != nil {
			m.status("failed:  %s (%v)", res.Slug, err)
			return m.record(ctx, finish(types.ConversionFailed, err), sum, 0)
		}
		sum = s
	}

	if err := m.checkOwner(path, mdPath); err != nil {
		m.status("failed:  %s (%v)", res.Slug, err)
		return m.record(ctx, finish(types.ConversionFailed, err), sum, 0)
	}

	if m.skip(ctx, path, mdPath, sum) {
		m.status("skipped: %s (already exists)", res.Slug)
		res.OutputPath = mdPath
		return m.record(ctx, finish(types.ConversionSkipped, nil), sum, 0)
	}

	doc, err := m.backend.Extract(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			m.status("cancelled: %s", res.Slug)
			return m.record(ctx, finish(types.ConversionCancelled, ctx.Err()), sum, 0)
		}
		m.status("failed:  %s (%v)", res.Slug, err)
		return m.record(ctx, finish(types.ConversionFailed, err), sum, 0)
	}

	doc.ID = res.Slug
	if doc.SourcePath == "" {
		doc.SourcePath = path
	}
	doc.ExtractedAt = start.UTC()
	if doc.Quality == nil {
		doc.Quality = quality.Assess(doc)
	}
	res.Backend = doc.Backend
	res.Score = doc.Quality.Score
	res.Grade = doc.Quality.Grade

	if err := m.write(doc, mdPath); err != nil {
		m.status("failed:  %s (%v)", res.Slug, err)
		return m.record(ctx, finish(types.ConversionFailed, err), sum, doc.PageCount)
	}
	res.OutputPath = mdPath

	m.status("converted: %s (%s, quality %.2f %s)", res.Slug, res.Backend, res.Score, res.Grade)
	for _, w := range doc.Quality.Warnings {
		m.logger.Info("quality warning", zap.String("slug", res.Slug), zap.String("warning", w))
	}
	return m.record(ctx, finish(types.ConversionDone, nil), sum, doc.PageCount)
}

// skip reports whether existing output can be kept: it exists, overwrite is
// off, and the ledger does not show a different source hash or a failure.
func (m *Milker) skip(ctx context.Context, path, mdPath, sum string) bool {
	if m.cfg.Overwrite {
		return false
	}
	if _, err := os.Stat(mdPath); err != nil {
		return false
	}
	if m.ledger == nil {
		return true
	}
	latest, err := m.ledger.Latest(ctx, path)
	if err != nil {
		m.logger.Warn("history lookup failed", zap.String("path", path), zap.Error(err))
		return true
	}
	if latest == nil {
		return true
	}
	if latest.Status == types.ConversionFailed {
		return false
	}
	return latest.SourceSHA256 == "" || latest.SourceSHA256 == sum
}

// checkOwner fails when mdPath already holds the Markdown of another PDF
// that still exists. Overwrite replaces it regardless.
func (m *Milker) checkOwner(path, mdPath string) error {
	if m.cfg.Overwrite {
		return nil
	}
	data, err := os.ReadFile(mdPath)
	if err != nil {
		return nil
	}
	owner, err := format.SourcePDF(data)
	if err != nil {
		m.logger.Warn("unreadable frontmatter", zap.String("path", mdPath), zap.Error(err))
		return nil
	}
	if owner == "" || samePath(owner, path) {
		return nil
	}
	if _, err := os.Stat(owner); err != nil {
		return nil
	}
	return fmt.Errorf("%w: %s holds the output of %s", ErrOutputConflict, mdPath, owner)
}

func samePath(a, b string) bool {
	if a == b {
		return true
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

func (m *Milker) write(doc *types.Document, mdPath string) error {
	md, err := format.Render(doc, format.RenderOptions{
		MathMode:    m.cfg.MathMode,
		ConvertedAt: doc.ExtractedAt,
	})
	if err != nil {
		return fmt.Errorf("rendering markdown: %w", err)
	}
	if err := WriteFileAtomic(mdPath, []byte(md)); err != nil {
		return err
	}

	meta := *doc
	meta.Sections = nil
	metaYAML, err := yaml.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	metaPath := filepath.Join(m.cfg.OutputDir, metadataDir, doc.ID+".yaml")
	if err := WriteFileAtomic(metaPath, metaYAML); err != nil {
		return err
	}

	if m.cfg.WriteJSON {
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling document: %w", err)
		}
		jsonPath := filepath.Join(m.cfg.OutputDir, jsonDir, doc.ID+".json")
		if err := WriteFileAtomic(jsonPath, append(data, '\n')); err != nil {
			return err
		}
	}
	return nil
}

func (m *Milker) record(ctx context.Context, res Result, sum string, pages int) Result {
	if m.ledger == nil {
		return res
	}
	e := history.Entry{
		SourcePath:   res.Path,
		SourceSHA256: sum,
		Slug:         res.Slug,
		Backend:      res.Backend,
		Status:       res.Status,
		QualityScore: res.Score,
		QualityGrade: res.Grade,
		Pages:        pages,
		OutputPath:   res.OutputPath,
		StartedAt:    m.now().Add(-res.Duration),
		Duration:     res.Duration,
	}
	if res.Err != nil {
		e.Error = res.Err.Error()
	}
	// A cancelled run still gets its entry.
	if err := m.ledger.Record(context.WithoutCancel(ctx), e); err != nil {
		m.logger.Warn("history record failed", zap.String("path", res.Path), zap.Error(err))
	}
	return res
}

func (m *Milker) status(msg string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fmt.Fprintf(m.w, msg+"\n", args...)
}

// WriteFileAtomic writes data to a temp file next to path and renames it into
// place, so readers never see a partial file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}
