// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/milkbottle/internal/format"
	"github.com/pdiddy/milkbottle/internal/history"
	"github.com/pdiddy/milkbottle/pkg/types"
)

// fakeBackend implements Backend for testing. It returns a canned document
// or an error, and counts calls.
type fakeBackend struct {
	name  string
	doc   *types.Document
	err   error
	mu    sync.Mutex
	calls int
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Extract(_ context.Context, path string) (*types.Document, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	doc := *f.doc
	doc.SourcePath = path
	doc.Backend = f.name
	return &doc, nil
}

// goodDoc scores well: clean text, five sections and references.
func goodDoc() *types.Document {
	para := strings.Repeat("Widgets are studied in depth throughout this paper with care. ", 25)
	doc := &types.Document{Title: "Deep Widgets", Authors: []string{"Ann Lee"}, PageCount: 1}
	for _, h := range []string{"Introduction", "Method", "Results", "Discussion", "Conclusion"} {
		doc.Sections = append(doc.Sections, types.Section{
			Heading: h,
			Level:   1,
			Blocks:  []types.Block{{Kind: types.BlockParagraph, Text: para}},
		})
	}
	doc.References = []types.Reference{{Key: "1", Raw: "A. Smith. Widget theory. 2019."}}
	return doc
}

// poorDoc scores badly: a short fragment with no structure.
func poorDoc() *types.Document {
	return &types.Document{
		PageCount: 10,
		Sections:  []types.Section{{Blocks: []types.Block{{Kind: types.BlockParagraph, Text: "x y"}}}},
	}
}

// garbledDoc scores worse than poorDoc: nothing but replacement characters.
func garbledDoc() *types.Document {
	return &types.Document{
		PageCount: 10,
		Sections:  []types.Section{{Blocks: []types.Block{{Kind: types.BlockParagraph, Text: "\ufffd\ufffd\ufffd"}}}},
	}
}

// memLedger is an in-memory Ledger.
type memLedger struct {
	mu      sync.Mutex
	entries []history.Entry
}

func (l *memLedger) Record(_ context.Context, e history.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	return nil
}

func (l *memLedger) Latest(_ context.Context, sourcePath string) (*history.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].SourcePath == sourcePath {
			e := l.entries[i]
			return &e, nil
		}
	}
	return nil, nil
}

// setupPDF creates a temporary PDF file and returns its path and the output dir.
func setupPDF(t *testing.T) (pdfPath, outDir string) {
	t.Helper()
	tmpDir := t.TempDir()
	rawDir := filepath.Join(tmpDir, "raw")
	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		t.Fatal(err)
	}
	pdfPath = filepath.Join(rawDir, "Deep Widgets (2024).pdf")
	if err := os.WriteFile(pdfPath, []byte("%PDF-1.4 fake"), 0o644); err != nil {
		t.Fatal(err)
	}
	return pdfPath, filepath.Join(tmpDir, "milked")
}

func TestSlug(t *testing.T) {
	tests := []struct {
		path, want string
	}{
		{"papers/Deep Widgets (2024).pdf", "deep-widgets-2024"},
		{"2301.07041.pdf", "2301-07041"},
		{"/tmp/__Odd__Name__.PDF", "odd-name"},
		{"???.pdf", "document"},
	}
	for _, tt := range tests {
		if got := Slug(tt.path); got != tt.want {
			t.Errorf("Slug(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestUniqueSlugs(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
		want  map[string]string
	}{
		{
			name:  "distinct names keep plain slugs",
			paths: []string{"in/a.pdf", "in/b.pdf"},
			want:  map[string]string{"in/a.pdf": "a", "in/b.pdf": "b"},
		},
		{
			name:  "same name takes parent dir",
			paths: []string{"in/2023/main.pdf", "in/2024/main.pdf", "in/other.pdf"},
			want:  map[string]string{"in/2023/main.pdf": "2023-main", "in/2024/main.pdf": "2024-main", "in/other.pdf": "other"},
		},
		{
			name:  "climbs until dirs differ",
			paths: []string{"x/a b/main.pdf", "y/a-b/main.pdf"},
			want:  map[string]string{"x/a b/main.pdf": "x-a-b-main", "y/a-b/main.pdf": "y-a-b-main"},
		},
		{
			name:  "clash with a plain slug gets a suffix",
			paths: []string{"p/2023/main.pdf", "p/2024-main.pdf", "p/2024/main.pdf"},
			want:  map[string]string{"p/2023/main.pdf": "2023-main", "p/2024-main.pdf": "2024-main", "p/2024/main.pdf": "2024-main-2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UniqueSlugs(tt.paths)
			for p, want := range tt.want {
				if got[p] != want {
					t.Errorf("slug for %q = %q, want %q", p, got[p], want)
				}
			}
		})
	}
}

// sameNamePDFs creates two PDFs named main.pdf in sibling directories.
func sameNamePDFs(t *testing.T) (first, second, outDir string) {
	t.Helper()
	tmpDir := t.TempDir()
	for i, year := range []string{"2023", "2024"} {
		dir := filepath.Join(tmpDir, year)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		p := filepath.Join(dir, "main.pdf")
		if err := os.WriteFile(p, []byte("%PDF-1.4 paper "+year), 0o644); err != nil {
			t.Fatal(err)
		}
		if i == 0 {
			first = p
		} else {
			second = p
		}
	}
	return first, second, filepath.Join(tmpDir, "milked")
}

func TestMilkFile_OutputOfAnotherPDF(t *testing.T) {
	first, second, outDir := sameNamePDFs(t)
	backend := &fakeBackend{name: "local", doc: goodDoc()}
	m := NewMilker(backend, types.PDFMilkerConfig{OutputDir: outDir}, WithLedger(&memLedger{}))
	ctx := context.Background()

	if res := m.MilkFile(ctx, first); res.Status != types.ConversionDone {
		t.Fatalf("first status = %q (%v)", res.Status, res.Err)
	}
	res := m.MilkFile(ctx, second)
	if res.Status != types.ConversionFailed {
		t.Fatalf("second status = %q, want failed", res.Status)
	}
	if !errors.Is(res.Err, ErrOutputConflict) {
		t.Errorf("err = %v, want ErrOutputConflict", res.Err)
	}
	if backend.calls != 1 {
		t.Errorf("backend calls = %d, want 1", backend.calls)
	}

	data, err := os.ReadFile(m.MarkdownPath(first))
	if err != nil {
		t.Fatal(err)
	}
	if src, _ := format.SourcePDF(data); src != first {
		t.Errorf("first output now names %q", src)
	}

	over := NewMilker(backend, types.PDFMilkerConfig{OutputDir: outDir, Overwrite: true})
	if res := over.MilkFile(ctx, second); res.Status != types.ConversionDone {
		t.Errorf("overwrite status = %q (%v), want converted", res.Status, res.Err)
	}
}

func TestMilkFile_UniqueSlugsKeepOutputsApart(t *testing.T) {
	first, second, outDir := sameNamePDFs(t)
	slugs := UniqueSlugs([]string{first, second})
	m := NewMilker(&fakeBackend{name: "local", doc: goodDoc()}, types.PDFMilkerConfig{OutputDir: outDir},
		WithLedger(&memLedger{}), WithSlugs(slugs))
	ctx := context.Background()

	for _, p := range []string{first, second} {
		res := m.MilkFile(ctx, p)
		if res.Status != types.ConversionDone {
			t.Fatalf("%s status = %q (%v)", p, res.Status, res.Err)
		}
		if res.Slug != slugs[p] {
			t.Errorf("%s slug = %q, want %q", p, res.Slug, slugs[p])
		}
		data, err := os.ReadFile(res.OutputPath)
		if err != nil {
			t.Fatal(err)
		}
		if src, _ := format.SourcePDF(data); src != p {
			t.Errorf("%s output names %q", p, src)
		}
	}
	if m.MarkdownPath(first) == m.MarkdownPath(second) {
		t.Errorf("both files share %s", m.MarkdownPath(first))
	}
}

func TestMilkFile(t *testing.T) {
	tests := []struct {
		name       string
		backend    *fakeBackend
		preCreate  bool // create output MD before running
		overwrite  bool
		wantStatus types.ConversionStatus
		wantLog    string
		wantCalls  int
	}{
		{
			name:       "successful conversion",
			backend:    &fakeBackend{name: "local", doc: goodDoc()},
			wantStatus: types.ConversionDone,
			wantLog:    "converted: deep-widgets-2024 (local",
			wantCalls:  1,
		},
		{
			name:       "skip existing markdown",
			backend:    &fakeBackend{name: "local", doc: goodDoc()},
			preCreate:  true,
			wantStatus: types.ConversionSkipped,
			wantLog:    "skipped:",
		},
		{
			name:       "overwrite existing markdown",
			backend:    &fakeBackend{name: "local", doc: goodDoc()},
			preCreate:  true,
			overwrite:  true,
			wantStatus: types.ConversionDone,
			wantLog:    "converted:",
			wantCalls:  1,
		},
		{
			name:       "extraction failure",
			backend:    &fakeBackend{name: "local", err: errors.New("parser crashed")},
			wantStatus: types.ConversionFailed,
			wantLog:    "failed:  deep-widgets-2024 (parser crashed)",
			wantCalls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pdfPath, outDir := setupPDF(t)
			cfg := types.PDFMilkerConfig{OutputDir: outDir, Overwrite: tt.overwrite}

			if tt.preCreate {
				mdDir := filepath.Join(outDir, "markdown")
				if err := os.MkdirAll(mdDir, 0o755); err != nil {
					t.Fatal(err)
				}
				if err := os.WriteFile(filepath.Join(mdDir, "deep-widgets-2024.md"), []byte("existing"), 0o644); err != nil {
					t.Fatal(err)
				}
			}

			var log bytes.Buffer
			m := NewMilker(tt.backend, cfg, WithStatusWriter(&log))
			res := m.MilkFile(context.Background(), pdfPath)

			if res.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q (err %v)", res.Status, tt.wantStatus, res.Err)
			}
			if !strings.Contains(log.String(), tt.wantLog) {
				t.Errorf("log output %q does not contain %q", log.String(), tt.wantLog)
			}
			if tt.backend.calls != tt.wantCalls {
				t.Errorf("backend calls = %d, want %d", tt.backend.calls, tt.wantCalls)
			}
			if res.Status == types.ConversionFailed && res.Err == nil {
				t.Error("failed result should carry an error")
			}
		})
	}
}

func TestMilkFile_Outputs(t *testing.T) {
	pdfPath, outDir := setupPDF(t)
	cfg := types.PDFMilkerConfig{OutputDir: outDir, WriteJSON: true}
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	m := NewMilker(&fakeBackend{name: "grobid", doc: goodDoc()}, cfg, WithClock(func() time.Time { return fixed }))
	res := m.MilkFile(context.Background(), pdfPath)
	if res.Status != types.ConversionDone {
		t.Fatalf("expected ConversionDone, got %q (%v)", res.Status, res.Err)
	}
	if res.Backend != "grobid" {
		t.Errorf("backend = %q, want grobid", res.Backend)
	}
	if res.Grade != types.GradeGood {
		t.Errorf("grade = %q (score %.3f), want good", res.Grade, res.Score)
	}

	mdPath := filepath.Join(outDir, "markdown", "deep-widgets-2024.md")
	if res.OutputPath != mdPath {
		t.Errorf("output path = %q, want %q", res.OutputPath, mdPath)
	}
	data, err := os.ReadFile(mdPath)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "---\n") {
		t.Error("output should start with YAML frontmatter delimiter")
	}
	for _, want := range []string{"title: Deep Widgets", "backend: grobid", "converted_at:", "2026-03-01T12:00:00Z", "# Deep Widgets", "## Introduction", "## References"} {
		if !strings.Contains(content, want) {
			t.Errorf("markdown should contain %q", want)
		}
	}

	metaData, err := os.ReadFile(filepath.Join(outDir, "metadata", "deep-widgets-2024.yaml"))
	if err != nil {
		t.Fatalf("reading metadata: %v", err)
	}
	var meta types.Document
	if err := yaml.Unmarshal(metaData, &meta); err != nil {
		t.Fatalf("parsing metadata: %v", err)
	}
	if meta.ID != "deep-widgets-2024" || meta.Title != "Deep Widgets" {
		t.Errorf("metadata id/title = %q/%q", meta.ID, meta.Title)
	}
	if len(meta.Sections) != 0 {
		t.Error("metadata should not carry sections")
	}
	if meta.Quality == nil || meta.Quality.Grade != types.GradeGood {
		t.Error("metadata should carry the quality report")
	}

	jsonData, err := os.ReadFile(filepath.Join(outDir, "json", "deep-widgets-2024.json"))
	if err != nil {
		t.Fatalf("reading json: %v", err)
	}
	var full types.Document
	if err := json.Unmarshal(jsonData, &full); err != nil {
		t.Fatalf("parsing json: %v", err)
	}
	if len(full.Sections) != 5 {
		t.Errorf("json sections = %d, want 5", len(full.Sections))
	}

	entries, _ := os.ReadDir(filepath.Join(outDir, "markdown"))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestMilkFile_LedgerHash(t *testing.T) {
	pdfPath, outDir := setupPDF(t)
	cfg := types.PDFMilkerConfig{OutputDir: outDir}
	ledger := &memLedger{}
	backend := &fakeBackend{name: "local", doc: goodDoc()}
	m := NewMilker(backend, cfg, WithLedger(ledger))
	ctx := context.Background()

	if res := m.MilkFile(ctx, pdfPath); res.Status != types.ConversionDone {
		t.Fatalf("first run status = %q (%v)", res.Status, res.Err)
	}
	if res := m.MilkFile(ctx, pdfPath); res.Status != types.ConversionSkipped {
		t.Fatalf("unchanged source should be skipped, got %q", res.Status)
	}

	if err := os.WriteFile(pdfPath, []byte("%PDF-1.4 changed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if res := m.MilkFile(ctx, pdfPath); res.Status != types.ConversionDone {
		t.Fatalf("changed source should be converted again, got %q", res.Status)
	}

	if backend.calls != 2 {
		t.Errorf("backend calls = %d, want 2", backend.calls)
	}
	if len(ledger.entries) != 3 {
		t.Fatalf("ledger entries = %d, want 3", len(ledger.entries))
	}
	first, last := ledger.entries[0], ledger.entries[2]
	if first.SourceSHA256 == "" || first.SourceSHA256 == last.SourceSHA256 {
		t.Errorf("ledger hashes should differ: %q vs %q", first.SourceSHA256, last.SourceSHA256)
	}
	if ledger.entries[1].Status != types.ConversionSkipped {
		t.Errorf("second entry status = %q, want skipped", ledger.entries[1].Status)
	}
}

func TestMilkFile_RetriesAfterFailure(t *testing.T) {
	pdfPath, outDir := setupPDF(t)
	ledger := &memLedger{}
	m := NewMilker(&fakeBackend{name: "local", doc: goodDoc()}, types.PDFMilkerConfig{OutputDir: outDir}, WithLedger(ledger))

	mdDir := filepath.Join(outDir, "markdown")
	if err := os.MkdirAll(mdDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(mdDir, "deep-widgets-2024.md"), []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}
	ledger.Record(context.Background(), history.Entry{SourcePath: pdfPath, Status: types.ConversionFailed})

	if res := m.MilkFile(context.Background(), pdfPath); res.Status != types.ConversionDone {
		t.Errorf("status after recorded failure = %q, want converted", res.Status)
	}
}

func TestMilkFile_Cancelled(t *testing.T) {
	pdfPath, outDir := setupPDF(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	backend := &fakeBackend{name: "local", doc: goodDoc()}
	res := NewMilker(backend, types.PDFMilkerConfig{OutputDir: outDir}).MilkFile(ctx, pdfPath)
	if res.Status != types.ConversionCancelled {
		t.Errorf("status = %q, want cancelled", res.Status)
	}
	if backend.calls != 0 {
		t.Error("backend should not run after cancellation")
	}
}

func TestChain(t *testing.T) {
	tests := []struct {
		name        string
		backends    []*fakeBackend
		wantBackend string
		wantCalls   []int
		wantErr     bool
	}{
		{
			name: "first good result wins",
			backends: []*fakeBackend{
				{name: "grobid", doc: goodDoc()},
				{name: "local", doc: goodDoc()},
			},
			wantBackend: "grobid",
			wantCalls:   []int{1, 0},
		},
		{
			name: "failure falls through",
			backends: []*fakeBackend{
				{name: "grobid", err: errors.New("grobid service unavailable")},
				{name: "local", doc: goodDoc()},
			},
			wantBackend: "local",
			wantCalls:   []int{1, 1},
		},
		{
			name: "low quality tries next",
			backends: []*fakeBackend{
				{name: "local", doc: poorDoc()},
				{name: "pdftotext", doc: goodDoc()},
			},
			wantBackend: "pdftotext",
			wantCalls:   []int{1, 1},
		},
		{
			name: "best low quality result kept",
			backends: []*fakeBackend{
				{name: "local", doc: poorDoc()},
				{name: "pdftotext", doc: garbledDoc()},
			},
			wantBackend: "local",
			wantCalls:   []int{1, 1},
		},
		{
			name: "all fail",
			backends: []*fakeBackend{
				{name: "grobid", err: errors.New("down")},
				{name: "local", err: ErrNoText},
			},
			wantCalls: []int{1, 1},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backends := make([]Backend, len(tt.backends))
			for i, b := range tt.backends {
				backends[i] = b
			}
			chain := NewChain(0.5, nil, backends...)

			doc, err := chain.Extract(context.Background(), "paper.pdf")
			if tt.wantErr {
				if !errors.Is(err, ErrAllBackendsFailed) {
					t.Fatalf("err = %v, want ErrAllBackendsFailed", err)
				}
				if !errors.Is(err, ErrNoText) {
					t.Errorf("joined error should keep ErrNoText: %v", err)
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if doc.Backend != tt.wantBackend {
					t.Errorf("backend = %q, want %q", doc.Backend, tt.wantBackend)
				}
				if doc.Quality == nil {
					t.Error("chain result should carry a quality report")
				}
			}
			for i, b := range tt.backends {
				if b.calls != tt.wantCalls[i] {
					t.Errorf("%s calls = %d, want %d", b.name, b.calls, tt.wantCalls[i])
				}
			}
		})
	}
}

// fakeGrobid implements GrobidService.
type fakeGrobid struct {
	aliveErr    error
	aliveCalls  int
	processCall int
}

func (f *fakeGrobid) IsAlive(context.Context) error {
	f.aliveCalls++
	return f.aliveErr
}

func (f *fakeGrobid) ProcessFulltext(_ context.Context, path string) (*types.Document, error) {
	f.processCall++
	return &types.Document{SourcePath: path, Backend: "grobid", PageCount: 3, Title: "T"}, nil
}

func TestGrobidBackend_AliveCheckedOnce(t *testing.T) {
	svc := &fakeGrobid{aliveErr: errors.New("grobid service unavailable")}
	b := NewGrobidBackend(svc, nil)

	for range 3 {
		if _, err := b.Extract(context.Background(), "paper.pdf"); err == nil {
			t.Fatal("expected unavailable error")
		}
	}
	if svc.aliveCalls != 1 {
		t.Errorf("isalive calls = %d, want 1", svc.aliveCalls)
	}
	if svc.processCall != 0 {
		t.Error("ProcessFulltext should not run when Grobid is down")
	}

	svc = &fakeGrobid{}
	b = NewGrobidBackend(svc, nil)
	doc, err := b.Extract(context.Background(), "paper.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if doc.PageCount != 3 {
		t.Errorf("page count = %d, want 3", doc.PageCount)
	}
}

// ctxGrobid fails its liveness probe when the caller's context is done.
type ctxGrobid struct {
	fakeGrobid
}

func (f *ctxGrobid) IsAlive(ctx context.Context) error {
	f.aliveCalls++
	return ctx.Err()
}

func TestGrobidBackend_CancelledProbeNotCached(t *testing.T) {
	svc := &ctxGrobid{}
	b := NewGrobidBackend(svc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.Extract(ctx, "paper.pdf"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	doc, err := b.Extract(context.Background(), "paper.pdf")
	if err != nil {
		t.Fatalf("second extract after a cancelled probe: %v", err)
	}
	if doc.Title != "T" {
		t.Errorf("title = %q, want T", doc.Title)
	}
	if svc.aliveCalls != 2 {
		t.Errorf("isalive calls = %d, want 2", svc.aliveCalls)
	}
	if _, err := b.Extract(context.Background(), "paper.pdf"); err != nil {
		t.Fatal(err)
	}
	if svc.aliveCalls != 2 {
		t.Errorf("isalive calls after success = %d, want 2", svc.aliveCalls)
	}
}

type fakeMarkdown struct {
	md  string
	err error
}

func (f fakeMarkdown) ConvertPDF(context.Context, string) (string, error) { return f.md, f.err }

func TestMathpixBackend(t *testing.T) {
	b := NewMathpixBackend(fakeMarkdown{md: "# Deep Widgets\n\n## Introduction\n\nWidgets matter.\n"}, nil)
	doc, err := b.Extract(context.Background(), "paper.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Title != "Deep Widgets" || doc.Backend != "mathpix" || doc.SourcePath != "paper.pdf" {
		t.Errorf("unexpected document: title %q backend %q source %q", doc.Title, doc.Backend, doc.SourcePath)
	}
	if len(doc.Sections) == 0 || doc.Sections[0].Heading != "Introduction" {
		t.Errorf("sections = %+v", doc.Sections)
	}

	_, err = NewMathpixBackend(fakeMarkdown{md: "  \n"}, nil).Extract(context.Background(), "paper.pdf")
	if !errors.Is(err, ErrNoText) {
		t.Errorf("empty markdown err = %v, want ErrNoText", err)
	}
}

func TestNewBackend(t *testing.T) {
	tests := []struct {
		name    string
		cfg     types.PDFMilkerConfig
		want    string
		chain   []string
		wantErr bool
	}{
		{name: "local", cfg: types.PDFMilkerConfig{Backend: types.BackendLocal}, want: "local"},
		{name: "pdftotext", cfg: types.PDFMilkerConfig{Backend: types.BackendPdftotext}, want: "pdftotext"},
		{name: "grobid", cfg: types.PDFMilkerConfig{Backend: types.BackendGrobid}, want: "grobid"},
		{name: "mathpix unconfigured", cfg: types.PDFMilkerConfig{Backend: types.BackendMathpix}, wantErr: true},
		{
			name: "mathpix configured",
			cfg: types.PDFMilkerConfig{Backend: types.BackendMathpix,
				Mathpix: types.MathpixConfig{AppID: "id", AppKey: "key"}},
			want: "mathpix",
		},
		{name: "default auto", cfg: types.PDFMilkerConfig{}, want: "auto", chain: []string{"grobid", "local"}},
		{
			name: "auto skips unconfigured mathpix",
			cfg: types.PDFMilkerConfig{Backend: types.BackendAuto,
				Fallback: []types.BackendName{types.BackendMathpix, types.BackendGrobid, types.BackendPdftotext}},
			want:  "auto",
			chain: []string{"grobid", "pdftotext"},
		},
		{
			name:    "auto only mathpix unconfigured",
			cfg:     types.PDFMilkerConfig{Fallback: []types.BackendName{types.BackendMathpix}},
			wantErr: true,
		},
		{name: "unknown", cfg: types.PDFMilkerConfig{Backend: "ocr"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBackend(tt.cfg, Deps{})
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got backend %v", b)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if b.Name() != tt.want {
				t.Errorf("name = %q, want %q", b.Name(), tt.want)
			}
			if tt.chain != nil {
				c, ok := b.(*Chain)
				if !ok {
					t.Fatalf("expected *Chain, got %T", b)
				}
				var names []string
				for _, cb := range c.Backends() {
					names = append(names, cb.Name())
				}
				if strings.Join(names, ",") != strings.Join(tt.chain, ",") {
					t.Errorf("chain = %v, want %v", names, tt.chain)
				}
			}
		})
	}
}
