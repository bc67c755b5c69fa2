// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package format

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/milkbottle/internal/mathconv"
	"github.com/pdiddy/milkbottle/pkg/types"
)

// RenderOptions controls Markdown rendering.
type RenderOptions struct {
	MathMode types.MathMode
	// ConvertedAt is stamped into the frontmatter. Zero means now.
	ConvertedAt time.Time
}

// frontmatter is the YAML header of a rendered document.
type frontmatter struct {
	Title        string   `yaml:"title,omitempty"`
	Authors      []string `yaml:"authors,omitempty"`
	SourcePDF    string   `yaml:"source_pdf"`
	Backend      string   `yaml:"backend,omitempty"`
	Pages        int      `yaml:"pages"`
	QualityScore *float64 `yaml:"quality_score,omitempty"`
	QualityGrade string   `yaml:"quality_grade,omitempty"`
	ConvertedAt  string   `yaml:"converted_at"`
}

// SourcePDF returns the source_pdf recorded in the frontmatter of a
// rendered document, or "" when md has no frontmatter.
func SourcePDF(md []byte) (string, error) {
	text := string(md)
	if !strings.HasPrefix(text, "---\n") {
		return "", nil
	}
	end := strings.Index(text[4:], "\n---\n")
	if end < 0 {
		return "", nil
	}
	var fm frontmatter
	if err := yaml.Unmarshal([]byte(text[4:4+end+1]), &fm); err != nil {
		return "", fmt.Errorf("parsing frontmatter: %w", err)
	}
	return fm.SourcePDF, nil
}

// Render emits doc as Markdown with YAML frontmatter. Text passes through
// the math converter for opts.MathMode.
func Render(doc *types.Document, opts RenderOptions) (string, error) {
	conv := mathconv.New(opts.MathMode)
	ts := opts.ConvertedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	fm := frontmatter{
		Title:       doc.Title,
		Authors:     doc.Authors,
		SourcePDF:   doc.SourcePath,
		Backend:     doc.Backend,
		Pages:       doc.PageCount,
		ConvertedAt: ts.UTC().Format(time.RFC3339),
	}
	if doc.Quality != nil {
		score := doc.Quality.Score
		fm.QualityScore = &score
		fm.QualityGrade = string(doc.Quality.Grade)
	}
	header, err := yaml.Marshal(&fm)
	if err != nil {
		return "", fmt.Errorf("marshaling frontmatter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(header)
	b.WriteString("---\n\n")

	if doc.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", conv.Convert(doc.Title))
	}
	if len(doc.Authors) > 0 {
		fmt.Fprintf(&b, "%s\n\n", strings.Join(doc.Authors, ", "))
	}
	if doc.Abstract != "" {
		fmt.Fprintf(&b, "## Abstract\n\n%s\n\n", conv.Convert(doc.Abstract))
	}

	for _, s := range doc.Sections {
		if s.Heading != "" {
			level := min(max(s.Level, 1)+1, maxLevel)
			fmt.Fprintf(&b, "%s %s\n\n", strings.Repeat("#", level), conv.Convert(s.Heading))
		}
		for _, blk := range s.Blocks {
			renderBlock(&b, conv, blk)
		}
	}

	for _, f := range doc.Figures {
		kind := "Figure"
		if f.Kind == "table" {
			kind = "Table"
		}
		label := f.Label
		if label == "" {
			label = f.ID
		}
		fmt.Fprintf(&b, "> **%s %s.** %s\n\n", kind, label, conv.Convert(f.Caption))
	}

	if len(doc.References) > 0 {
		b.WriteString("## References\n\n")
		for i, r := range doc.References {
			fmt.Fprintf(&b, "%d. %s\n", i+1, conv.Convert(referenceText(r)))
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n") + "\n", nil
}

func renderBlock(b *strings.Builder, conv *mathconv.Converter, blk types.Block) {
	switch blk.Kind {
	case types.BlockParagraph:
		fmt.Fprintf(b, "%s\n\n", conv.Convert(blk.Text))
	case types.BlockList:
		for i, item := range blk.Items {
			marker := "-"
			if blk.Ordered {
				marker = strconv.Itoa(i+1) + "."
			}
			fmt.Fprintf(b, "%s %s\n", marker, conv.Convert(item))
		}
		b.WriteString("\n")
	case types.BlockEquation:
		fmt.Fprintf(b, "%s\n\n", conv.Display(blk.Text, blk.Label))
	case types.BlockCode:
		fmt.Fprintf(b, "```\n%s\n```\n\n", blk.Text)
	case types.BlockFigure:
		fmt.Fprintf(b, "%s\n\n", blk.Text)
	}
}

// referenceText returns the raw reference, or one assembled from its
// fields when no raw text is known.
func referenceText(r types.Reference) string {
	if r.Raw != "" {
		return r.Raw
	}
	var parts []string
	if len(r.Authors) > 0 {
		parts = append(parts, strings.Join(r.Authors, ", "))
	}
	if r.Title != "" {
		parts = append(parts, r.Title)
	}
	if r.Venue != "" {
		parts = append(parts, r.Venue)
	}
	if r.Year != "" {
		parts = append(parts, r.Year)
	}
	text := strings.Join(parts, ". ")
	if r.DOI != "" {
		text += ". doi:" + r.DOI
	}
	return text
}
