// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types holds the records shared across milkbottle stages: the
// structured Document produced by PDF extraction, its quality report, and
// the configuration structs for each bottle.
package types

import (
	"strings"
	"time"
)

// ConversionStatus indicates the outcome of milking a single PDF.
type ConversionStatus string

const (
	ConversionNone      ConversionStatus = "none"
	ConversionDone      ConversionStatus = "converted"
	ConversionSkipped   ConversionStatus = "skipped"
	ConversionFailed    ConversionStatus = "failed"
	ConversionCancelled ConversionStatus = "cancelled"
)

// BlockKind identifies the type of a content block inside a section.
type BlockKind string

const (
	BlockParagraph BlockKind = "paragraph"
	BlockList      BlockKind = "list"
	BlockEquation  BlockKind = "equation"
	BlockCode      BlockKind = "code"
	BlockFigure    BlockKind = "figure"
)

// Block is one unit of body content.
type Block struct {
	Kind BlockKind `json:"kind" yaml:"kind"`

	// Text holds paragraph, equation, or code content.
	Text string `json:"text,omitempty" yaml:"text,omitempty"`

	// Items holds list entries when Kind is BlockList.
	Items []string `json:"items,omitempty" yaml:"items,omitempty"`

	// Ordered marks a numbered list.
	Ordered bool `json:"ordered,omitempty" yaml:"ordered,omitempty"`

	// Label is the equation number, e.g. "(3)".
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

// Section is a heading and the blocks under it. Level 0 is the preamble
// before the first heading.
type Section struct {
	Heading string  `json:"heading,omitempty" yaml:"heading,omitempty"`
	Level   int     `json:"level" yaml:"level"`
	Blocks  []Block `json:"blocks,omitempty" yaml:"blocks,omitempty"`
}

// Reference is one bibliography entry.
type Reference struct {
	Key     string   `json:"key,omitempty" yaml:"key,omitempty"`
	Raw     string   `json:"raw,omitempty" yaml:"raw,omitempty"`
	Title   string   `json:"title,omitempty" yaml:"title,omitempty"`
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`
	Year    string   `json:"year,omitempty" yaml:"year,omitempty"`
	Venue   string   `json:"venue,omitempty" yaml:"venue,omitempty"`
	DOI     string   `json:"doi,omitempty" yaml:"doi,omitempty"`
}

// Figure is a figure or table caption.
type Figure struct {
	ID      string `json:"id,omitempty" yaml:"id,omitempty"`
	Kind    string `json:"kind" yaml:"kind"` // "figure" or "table"
	Label   string `json:"label,omitempty" yaml:"label,omitempty"`
	Caption string `json:"caption,omitempty" yaml:"caption,omitempty"`
}

// Document is the structured result of extracting a PDF.
type Document struct {
	// ID is the slug derived from the source filename.
	ID string `json:"id" yaml:"id"`

	// SourcePath is the PDF the document was extracted from.
	SourcePath string `json:"source_path" yaml:"source_path"`

	// Backend names the extraction backend that produced this document.
	Backend string `json:"backend" yaml:"backend"`

	Title      string      `json:"title,omitempty" yaml:"title,omitempty"`
	Authors    []string    `json:"authors,omitempty" yaml:"authors,omitempty"`
	Abstract   string      `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	Keywords   []string    `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Sections   []Section   `json:"sections,omitempty" yaml:"sections,omitempty"`
	References []Reference `json:"references,omitempty" yaml:"references,omitempty"`
	Figures    []Figure    `json:"figures,omitempty" yaml:"figures,omitempty"`

	PageCount int `json:"page_count" yaml:"page_count"`

	// HasImages reports whether the PDF carries image XObjects. Only the
	// local backend can observe this.
	HasImages bool `json:"has_images,omitempty" yaml:"has_images,omitempty"`

	Quality     *QualityReport `json:"quality,omitempty" yaml:"quality,omitempty"`
	ExtractedAt time.Time      `json:"extracted_at" yaml:"extracted_at"`
}

// Text returns every paragraph, list item, and equation of the document
// joined by newlines. Quality metrics are computed over this text.
func (d *Document) Text() string {
	var n int
	for _, s := range d.Sections {
		n += len(s.Blocks)
	}
	parts := make([]string, 0, n+2)
	if d.Title != "" {
		parts = append(parts, d.Title)
	}
	if d.Abstract != "" {
		parts = append(parts, d.Abstract)
	}
	for _, s := range d.Sections {
		if s.Heading != "" {
			parts = append(parts, s.Heading)
		}
		for _, b := range s.Blocks {
			if b.Text != "" {
				parts = append(parts, b.Text)
			}
			parts = append(parts, b.Items...)
		}
	}
	return strings.Join(parts, "\n")
}

// CountBlocks returns the number of blocks of the given kind.
func (d *Document) CountBlocks(kind BlockKind) int {
	count := 0
	for _, s := range d.Sections {
		for _, b := range s.Blocks {
			if b.Kind == kind {
				count++
			}
		}
	}
	return count
}

// HeadingCount returns the number of sections that carry a heading.
func (d *Document) HeadingCount() int {
	count := 0
	for _, s := range d.Sections {
		if s.Heading != "" {
			count++
		}
	}
	return count
}
