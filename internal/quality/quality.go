// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package quality scores how well a PDF was extracted: whether the text is
// clean, dense enough to be real content, and carries the structure of a
// scientific paper.
package quality

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/pdiddy/milkbottle/internal/mathconv"
	"github.com/pdiddy/milkbottle/pkg/types"
)

const (
	// densityTarget is the chars-per-page count treated as a full page.
	densityTarget = 1500.0
	// sectionTarget is the section count treated as fully structured.
	sectionTarget = 5.0

	goodThreshold = 0.75
	fairThreshold = 0.5
)

// Warning messages attached to a report.
const (
	WarnNeedsOCR     = "needs OCR"
	WarnNoSections   = "no sections detected"
	WarnNoReferences = "no references detected"
	WarnVisualGap    = "figures referenced but not extracted"
)

// Assess computes the quality report for an extracted document.
func Assess(doc *types.Document) *types.QualityReport {
	text := doc.Text()

	pages := doc.PageCount
	var charsPerPage float64
	if pages > 0 {
		charsPerPage = float64(len([]rune(text))) / float64(pages)
	}

	q := &types.QualityReport{
		PageCount:       pages,
		CharsPerPage:    round(charsPerPage, 1),
		PrintableRatio:  round(PrintableRatio(text), 3),
		WordlikeRatio:   round(WordlikeRatio(text), 3),
		HasImageStreams: doc.HasImages,
		VisualRefCount:  CountVisualRefs(text),
		SectionCount:    doc.HeadingCount(),
		ReferenceCount:  len(doc.References),
		EquationCount:   CountEquations(doc),
	}

	density := math.Min(1, charsPerPage/densityTarget)
	structure := 0.7 * math.Min(1, float64(q.SectionCount)/sectionTarget)
	if q.ReferenceCount > 0 {
		structure += 0.3
	}

	q.Score = round(0.35*q.PrintableRatio+0.25*q.WordlikeRatio+0.2*density+0.2*structure, 3)
	q.Grade = Grade(q.Score)
	q.NeedsOCR = (q.CharsPerPage < 50 && q.HasImageStreams) || q.PrintableRatio < 0.85

	if q.NeedsOCR {
		q.Warnings = append(q.Warnings, WarnNeedsOCR)
	}
	if q.SectionCount == 0 {
		q.Warnings = append(q.Warnings, WarnNoSections)
	}
	if q.ReferenceCount == 0 {
		q.Warnings = append(q.Warnings, WarnNoReferences)
	}
	if q.VisualRefCount > 0 && q.HasImageStreams {
		q.Warnings = append(q.Warnings, WarnVisualGap)
	}
	return q
}

// Grade buckets a score.
func Grade(score float64) types.QualityGrade {
	switch {
	case score >= goodThreshold:
		return types.GradeGood
	case score >= fairThreshold:
		return types.GradeFair
	default:
		return types.GradePoor
	}
}

// PrintableRatio returns the ratio of printable characters in text.
// Excludes PUA U+E000-U+F8FF, control chars < U+0020 (except \n\r\t), U+FFFD.
func PrintableRatio(text string) float64 {
	if len(text) == 0 {
		return 1.0
	}
	total := 0
	printable := 0
	for _, r := range text {
		total++
		if isGarbageRune(r) {
			continue
		}
		if unicode.IsPrint(r) || r == '\n' || r == '\r' || r == '\t' {
			printable++
		}
	}
	return float64(printable) / float64(total)
}

func isGarbageRune(r rune) bool {
	if r >= 0xE000 && r <= 0xF8FF {
		return true
	}
	if r == 0xFFFD {
		return true
	}
	return r < 0x0020 && r != '\n' && r != '\r' && r != '\t'
}

// WordlikeRatio returns the ratio of word-like tokens (length 2-15) to total tokens.
func WordlikeRatio(text string) float64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}
	wordlike := 0
	for _, f := range fields {
		n := len([]rune(f))
		if n >= 2 && n <= 15 {
			wordlike++
		}
	}
	return float64(wordlike) / float64(len(fields))
}

var visualRefRe = regexp.MustCompile(`(?i)\b(figure|fig\.|table|tab\.)\s*\d+`)

// CountVisualRefs counts references to figures and tables in text.
func CountVisualRefs(text string) int {
	return len(visualRefRe.FindAllString(text, -1))
}

// CountEquations counts equation blocks plus math spans inside paragraphs.
func CountEquations(doc *types.Document) int {
	count := 0
	for _, s := range doc.Sections {
		for _, b := range s.Blocks {
			switch b.Kind {
			case types.BlockEquation:
				count++
			case types.BlockParagraph:
				count += mathconv.CountMath(b.Text)
			}
		}
	}
	return count
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
