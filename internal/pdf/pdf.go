// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pdf extracts page text and document metadata from PDF files.
// The default Extractor parses content streams with pdfcpu; the
// PdftotextExtractor shells out to poppler's pdftotext.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"go.uber.org/zap"
)

// MaxFileSize is the default size limit for PDFs read by the extractors.
const MaxFileSize = 100 * 1024 * 1024

var (
	// ErrNoText is returned when no page of the PDF yields any text.
	ErrNoText = errors.New("no text content found in PDF")

	// ErrNotPDF is returned when the file does not carry a PDF header.
	ErrNotPDF = errors.New("not a PDF file")

	// ErrTooLarge is returned when the file exceeds the size limit.
	ErrTooLarge = errors.New("PDF exceeds maximum file size")
)

// Page holds the text lines of one PDF page. An empty string marks a
// paragraph gap.
type Page struct {
	Number int
	Lines  []string
}

// Metadata holds the PDF document information dictionary.
type Metadata struct {
	Title    string
	Author   string
	Subject  string
	Keywords string
	Creator  string
	Producer string
}

// RawDocument is the unstructured result of reading a PDF.
type RawDocument struct {
	Path      string
	Pages     []Page
	Metadata  Metadata
	HasImages bool
}

// PageCount returns the number of pages read.
func (d *RawDocument) PageCount() int { return len(d.Pages) }

// Empty reports whether no page produced any non-blank line.
func (d *RawDocument) Empty() bool {
	for _, p := range d.Pages {
		for _, l := range p.Lines {
			if strings.TrimSpace(l) != "" {
				return false
			}
		}
	}
	return true
}

// Extractor reads PDFs with pdfcpu.
type Extractor struct {
	maxFileSize int64
	logger      *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxFileSize overrides the 100 MB default size limit.
func WithMaxFileSize(n int64) Option {
	return func(e *Extractor) {
		e.maxFileSize = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// New creates an Extractor.
func New(options ...Option) *Extractor {
	e := &Extractor{
		maxFileSize: MaxFileSize,
		logger:      zap.NewNop(),
	}
	for _, o := range options {
		o(e)
	}
	return e
}

// Extract reads the PDF at path and returns its pages, metadata and
// whether it carries images. When every page is empty it returns the
// document together with ErrNoText, so callers can still see HasImages.
func (e *Extractor) Extract(ctx context.Context, path string) (*RawDocument, error) {
	f, err := CheckFile(path, e.maxFileSize)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	pctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read %s: %w", path, err)
	}

	doc := &RawDocument{
		Path: path,
		Metadata: Metadata{
			Title:    strings.TrimSpace(pctx.Title),
			Author:   strings.TrimSpace(pctx.Author),
			Subject:  strings.TrimSpace(pctx.Subject),
			Keywords: strings.TrimSpace(pctx.Keywords),
			Creator:  strings.TrimSpace(pctx.Creator),
			Producer: strings.TrimSpace(pctx.Producer),
		},
		HasImages: detectImageStreams(pctx),
	}

	for pageNr := 1; pageNr <= pctx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc.Pages = append(doc.Pages, Page{
			Number: pageNr,
			Lines:  e.pageLines(pctx, pageNr),
		})
	}

	e.logger.Debug("pdf extracted",
		zap.String("path", path),
		zap.Int("pages", pctx.PageCount),
		zap.Bool("images", doc.HasImages),
	)

	if doc.Empty() {
		return doc, fmt.Errorf("%s: %w", path, ErrNoText)
	}
	return doc, nil
}

func (e *Extractor) pageLines(pctx *model.Context, pageNr int) []string {
	r, err := pdfcpu.ExtractPageContent(pctx, pageNr)
	if err != nil {
		e.logger.Debug("page content unavailable", zap.Int("page", pageNr), zap.Error(err))
		return nil
	}
	if r == nil {
		return nil
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return nil
	}
	return ContentLines(data)
}

// CheckFile opens path after verifying its size and PDF header. The
// returned file is positioned at the start.
func CheckFile(path string, maxSize int64) (*os.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s: is a directory", path)
	}
	if maxSize > 0 && info.Size() > maxSize {
		return nil, fmt.Errorf("%s (%d bytes): %w", path, info.Size(), ErrTooLarge)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	head := make([]byte, 1024)
	n, _ := io.ReadFull(f, head)
	if !bytes.Contains(head[:n], []byte("%PDF-")) {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrNotPDF)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// PageCount returns the number of pages of the PDF at path without
// extracting any content.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("counting pages of %s: %w", path, err)
	}
	return n, nil
}

// detectImageStreams checks if the PDF contains image XObjects.
func detectImageStreams(pctx *model.Context) bool {
	if pctx.Optimize != nil {
		for pageNr := 1; pageNr <= pctx.PageCount; pageNr++ {
			if len(pdfcpu.ImageObjNrs(pctx, pageNr)) > 0 {
				return true
			}
		}
	}
	for _, entry := range pctx.Table {
		if entry == nil || entry.Free || entry.Compressed {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok {
			continue
		}
		if subtype, found := sd.Find("Subtype"); found {
			if name, isName := subtype.(types.Name); isName && name == "Image" {
				return true
			}
		}
	}
	return false
}
