// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package format turns extracted PDF text into structured documents and
// renders documents as Markdown. The heuristics recognise running headers,
// hyphenation, headings, lists, equations, captions and reference lists.
package format

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/milkbottle/internal/pdf"
	"github.com/pdiddy/milkbottle/pkg/types"
)

// maxTitleWords bounds a preamble paragraph taken as the title.
const maxTitleWords = 25

var (
	inlineAbstractRe = regexp.MustCompile(`(?i)^abstract\s*[—–:.\-]\s*`)
	abstractHeadRe   = regexp.MustCompile(`(?i)^abstract$`)
	authorSplitRe    = regexp.MustCompile(`\s*(?:;|,|\band\b|&)\s*`)
	keywordSplitRe   = regexp.MustCompile(`\s*[;,]\s*`)
	badTitleRe       = regexp.MustCompile(`(?i)(\.(pdf|docx?|tex|dvi)$|^untitled|^microsoft word)`)
)

// Build structures a raw PDF extraction into a Document. The title comes
// from the PDF metadata when it looks real, otherwise from the first short
// preamble paragraph.
func Build(raw *pdf.RawDocument) *types.Document {
	lines := Dehyphenate(NormalizeLigatures(CleanPages(raw.Pages)))
	parsed := Structure(lines)

	doc := &types.Document{
		SourcePath: raw.Path,
		Sections:   parsed.Sections,
		References: parsed.References,
		Figures:    parsed.Figures,
		PageCount:  raw.PageCount(),
		HasImages:  raw.HasImages,
	}
	applyMetadata(doc, raw.Metadata)
	if doc.Title == "" {
		doc.Title = takeTitle(doc)
	}
	LiftAbstract(doc)
	return doc
}

// FromMarkdown builds a Document from Markdown produced by a delegation
// service. A leading level-1 heading becomes the title and the remaining
// headings move up one level. A References section becomes the
// reference list.
func FromMarkdown(md string) *types.Document {
	doc := &types.Document{Sections: ParseMarkdown(md)}

	titleAt := -1
	ones := 0
	for i, s := range doc.Sections {
		if s.Level == 1 {
			if titleAt < 0 && ones == 0 {
				titleAt = i
			}
			ones++
		}
	}
	if titleAt >= 0 && ones == 1 {
		doc.Title = doc.Sections[titleAt].Heading
		doc.Sections[titleAt].Heading = ""
		doc.Sections[titleAt].Level = 0
		for i := range doc.Sections {
			if doc.Sections[i].Level > 1 {
				doc.Sections[i].Level--
			}
		}
	}

	kept := doc.Sections[:0]
	for _, s := range doc.Sections {
		if referencesHeadRe.MatchString(strings.TrimSpace(s.Heading)) {
			doc.References = append(doc.References, markdownReferences(s)...)
			continue
		}
		if s.Heading == "" && s.Level == 0 && len(s.Blocks) == 0 {
			continue
		}
		kept = append(kept, s)
	}
	doc.Sections = kept
	LiftAbstract(doc)
	return doc
}

func markdownReferences(s types.Section) []types.Reference {
	var refs []types.Reference
	for _, b := range s.Blocks {
		switch b.Kind {
		case types.BlockList:
			for _, item := range b.Items {
				refs = append(refs, referenceFromLine(item, len(refs)+1))
			}
		case types.BlockParagraph:
			refs = append(refs, referenceFromLine(b.Text, len(refs)+1))
		}
	}
	return refs
}

func referenceFromLine(text string, n int) types.Reference {
	if m := refBracketRe.FindStringSubmatch(text); m != nil {
		return ParseReference(m[1], m[2])
	}
	return ParseReference(strconv.Itoa(n), text)
}

// LiftAbstract moves an Abstract section, or a preamble paragraph opening
// with "Abstract", into Document.Abstract when it is not already set.
func LiftAbstract(doc *types.Document) {
	if doc.Abstract != "" {
		return
	}
	for i, s := range doc.Sections {
		if !abstractHeadRe.MatchString(strings.TrimSpace(s.Heading)) {
			continue
		}
		var parts []string
		for _, b := range s.Blocks {
			if b.Kind == types.BlockParagraph {
				parts = append(parts, b.Text)
			}
		}
		doc.Abstract = strings.Join(parts, "\n\n")
		doc.Sections = append(doc.Sections[:i], doc.Sections[i+1:]...)
		return
	}
	for i := range doc.Sections {
		s := &doc.Sections[i]
		if s.Heading != "" {
			return
		}
		for j, b := range s.Blocks {
			if b.Kind != types.BlockParagraph || !inlineAbstractRe.MatchString(b.Text) {
				continue
			}
			doc.Abstract = inlineAbstractRe.ReplaceAllString(b.Text, "")
			s.Blocks = append(s.Blocks[:j], s.Blocks[j+1:]...)
			return
		}
	}
}

func applyMetadata(doc *types.Document, meta pdf.Metadata) {
	if t := strings.TrimSpace(meta.Title); t != "" && !badTitleRe.MatchString(t) {
		doc.Title = t
	}
	if a := strings.TrimSpace(meta.Author); a != "" {
		for _, name := range authorSplitRe.Split(a, -1) {
			if name = strings.TrimSpace(name); name != "" {
				doc.Authors = append(doc.Authors, name)
			}
		}
	}
	if k := strings.TrimSpace(meta.Keywords); k != "" {
		for _, kw := range keywordSplitRe.Split(k, -1) {
			if kw = strings.TrimSpace(kw); kw != "" {
				doc.Keywords = append(doc.Keywords, kw)
			}
		}
	}
}

// takeTitle removes and returns the first preamble paragraph when it is
// short enough to be a title.
func takeTitle(doc *types.Document) string {
	if len(doc.Sections) == 0 || doc.Sections[0].Heading != "" {
		return ""
	}
	pre := &doc.Sections[0]
	if len(pre.Blocks) == 0 || pre.Blocks[0].Kind != types.BlockParagraph {
		return ""
	}
	text := pre.Blocks[0].Text
	if len(strings.Fields(text)) > maxTitleWords || endsSentence(text) || utf8.RuneCountInString(text) < 3 {
		return ""
	}
	pre.Blocks = pre.Blocks[1:]
	if len(pre.Blocks) == 0 {
		doc.Sections = doc.Sections[1:]
	}
	return text
}
