// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package format

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pdiddy/milkbottle/internal/mathconv"
	"github.com/pdiddy/milkbottle/pkg/types"
)

const (
	maxHeadingWords = 12
	maxHeadingRunes = 100
	maxCapsWords    = 8
	maxLevel        = 6
	// shortLineRatio is the fraction of the typical line length below which
	// a sentence-ending line is read as the last line of a paragraph.
	shortLineRatio = 0.7
)

var (
	numberedHeadingRe = regexp.MustCompile(`^(\d{1,2}(?:\.\d{1,2})*)(\.?)\s+(\S.*)$`)
	romanHeadingRe    = regexp.MustCompile(`^([IVX]{1,5})\.\s+(\S.*)$`)
	letterHeadingRe   = regexp.MustCompile(`^([A-H])\.\s+(\S.*)$`)
	knownSectionRe    = regexp.MustCompile(`(?i)^(?:(?:\d{1,2}|[IVX]{1,5})\.?\s+)?(abstract|introduction|related work|background|methods?|methodology|experiments?|results|discussion|conclusions?|acknowledge?ments|references|bibliography|appendix(?:\s+[A-Z])?)\s*:?$`)
	referencesHeadRe  = regexp.MustCompile(`(?i)^(references|bibliography)$`)
	refsExitRe        = regexp.MustCompile(`(?i)^(appendix|acknowledge?ments)`)

	bulletRe  = regexp.MustCompile(`^([•●▪◦‣∙*–-])\s+(\S.*)$`)
	orderedRe = regexp.MustCompile(`^(\d{1,3}[.)]|\([a-z0-9]{1,3}\)|[a-z]\))\s+(\S.*)$`)

	captionRe = regexp.MustCompile(`(?i)^(figure|fig\.|table)\s*(\d+[a-z]?)\s*[.:|]\s*(.*)$`)

	refBracketRe = regexp.MustCompile(`^\[(\d{1,4})\]\s*(.*)$`)
	refNumberRe  = regexp.MustCompile(`^(\d{1,3})\.\s+(\S.*)$`)
	refAuthorRe  = regexp.MustCompile(`^\p{Lu}[\p{L}'’-]+,\s`)
	yearRe       = regexp.MustCompile(`\b((?:19|20)\d{2})[a-z]?\b`)
	doiRe        = regexp.MustCompile(`\b10\.\d{4,9}/\S+`)
	quotedRe     = regexp.MustCompile(`[“"]([^”"]{8,})[”"]`)
)

// Parsed is the result of structuring a document's lines.
type Parsed struct {
	Sections   []types.Section
	References []types.Reference
	Figures    []types.Figure
}

// structurer accumulates blocks while walking lines.
type structurer struct {
	out      Parsed
	section  int // index into out.Sections, -1 before the first block
	para     []string
	list     *types.Block
	caption  int // index into out.Figures of an open caption, or -1
	inRefs   bool
	numbered bool // reference entries carry [n] or n. markers
	ref      []string
	refKey   string
	typical  int
}

// Structure classifies cleaned lines into headed sections of paragraphs,
// lists and equations. Lines under a References heading become reference
// entries and figure or table captions are collected separately.
func Structure(lines []string) Parsed {
	s := &structurer{section: -1, caption: -1, typical: typicalLength(lines)}
	prev := ""
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if s.inRefs {
			s.refLine(line)
			continue
		}
		s.line(line, prev)
		prev = line
	}
	s.closeAll()
	s.closeRef()
	return s.out
}

func (s *structurer) line(line, prev string) {
	if line == "" {
		s.closeAll()
		return
	}

	if m := captionRe.FindStringSubmatch(line); m != nil {
		s.closeBlocks()
		kind := "figure"
		if strings.EqualFold(m[1], "table") {
			kind = "table"
		}
		s.out.Figures = append(s.out.Figures, types.Figure{
			ID:      kind + "-" + m[2],
			Kind:    kind,
			Label:   m[2],
			Caption: m[3],
		})
		s.caption = len(s.out.Figures) - 1
		s.closeCaptionIfDone()
		return
	}
	if s.caption >= 0 {
		fig := &s.out.Figures[s.caption]
		fig.Caption = strings.TrimSpace(fig.Caption + " " + line)
		s.closeCaptionIfDone()
		return
	}

	if heading, level, ok := DetectHeading(line); ok {
		s.closeAll()
		if referencesHeadRe.MatchString(heading) {
			s.inRefs = true
			return
		}
		s.out.Sections = append(s.out.Sections, types.Section{Heading: heading, Level: level})
		s.section = len(s.out.Sections) - 1
		return
	}

	if mathconv.IsEquationLine(line) {
		s.closeBlocks()
		tex, label := mathconv.LiftEquation(line)
		s.add(types.Block{Kind: types.BlockEquation, Text: tex, Label: label})
		return
	}

	if item, ordered, ok := listItem(line); ok {
		s.closePara()
		if s.list != nil && s.list.Ordered != ordered {
			s.closeList()
		}
		if s.list == nil {
			s.list = &types.Block{Kind: types.BlockList, Ordered: ordered}
		}
		s.list.Items = append(s.list.Items, item)
		return
	}
	if s.list != nil {
		last := len(s.list.Items) - 1
		s.list.Items[last] = s.list.Items[last] + " " + line
		return
	}

	if len(s.para) > 0 && s.paragraphEnds(prev, line) {
		s.closePara()
	}
	s.para = append(s.para, line)
}

// paragraphEnds reports whether prev is the short closing line of a
// paragraph and line opens a new one.
func (s *structurer) paragraphEnds(prev, line string) bool {
	if s.typical == 0 || !endsSentence(prev) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(line)
	if !unicode.IsUpper(r) {
		return false
	}
	return float64(utf8.RuneCountInString(prev)) < shortLineRatio*float64(s.typical)
}

func (s *structurer) closeCaptionIfDone() {
	if s.caption >= 0 && endsSentence(s.out.Figures[s.caption].Caption) {
		s.caption = -1
	}
}

func (s *structurer) add(b types.Block) {
	if s.section < 0 {
		s.out.Sections = append(s.out.Sections, types.Section{Level: 0})
		s.section = len(s.out.Sections) - 1
	}
	sec := &s.out.Sections[s.section]
	sec.Blocks = append(sec.Blocks, b)
}

func (s *structurer) closePara() {
	if len(s.para) == 0 {
		return
	}
	s.add(types.Block{Kind: types.BlockParagraph, Text: strings.Join(s.para, " ")})
	s.para = nil
}

func (s *structurer) closeList() {
	if s.list == nil {
		return
	}
	s.add(*s.list)
	s.list = nil
}

func (s *structurer) closeBlocks() {
	s.closePara()
	s.closeList()
}

func (s *structurer) closeAll() {
	s.closeBlocks()
	s.caption = -1
}

func (s *structurer) refLine(line string) {
	if line == "" {
		if !s.numbered {
			s.closeRef()
		}
		return
	}
	if heading, _, ok := DetectHeading(line); ok && refsExitRe.MatchString(heading) {
		s.closeRef()
		s.inRefs = false
		s.line(line, "")
		return
	}
	if m := refBracketRe.FindStringSubmatch(line); m != nil {
		s.startRef(m[1], m[2])
		return
	}
	if m := refNumberRe.FindStringSubmatch(line); m != nil && (s.numbered || len(s.ref) == 0) {
		s.startRef(m[1], m[2])
		return
	}
	if !s.numbered && len(s.ref) > 0 && endsSentence(s.ref[len(s.ref)-1]) && refAuthorRe.MatchString(line) {
		s.closeRef()
	}
	s.ref = append(s.ref, line)
}

func (s *structurer) startRef(key, text string) {
	s.closeRef()
	s.numbered = true
	s.refKey = key
	if text != "" {
		s.ref = []string{text}
	}
}

func (s *structurer) closeRef() {
	if len(s.ref) == 0 {
		s.refKey = ""
		return
	}
	s.out.References = append(s.out.References, ParseReference(s.refKey, strings.Join(s.ref, " ")))
	s.ref = nil
	s.refKey = ""
}

// ParseReference builds a reference from its raw text, picking out the
// year, DOI and a quoted title when present.
func ParseReference(key, raw string) types.Reference {
	raw = strings.Join(strings.Fields(raw), " ")
	ref := types.Reference{Key: key, Raw: raw}
	if m := yearRe.FindStringSubmatch(raw); m != nil {
		ref.Year = m[1]
	}
	if m := doiRe.FindString(raw); m != "" {
		ref.DOI = strings.TrimRight(m, ".,;)")
	}
	if m := quotedRe.FindStringSubmatch(raw); m != nil {
		ref.Title = strings.TrimRight(strings.TrimSpace(m[1]), ",.")
	}
	return ref
}

// DetectHeading reports whether line is a section heading and returns its
// text and level. Numbered headings take their level from the depth of the
// number; named, Roman numeral and all-caps headings are level 1.
func DetectHeading(line string) (string, int, bool) {
	line = strings.TrimSpace(line)
	if line == "" || utf8.RuneCountInString(line) > maxHeadingRunes {
		return "", 0, false
	}
	if knownSectionRe.MatchString(line) {
		m := knownSectionRe.FindStringSubmatch(line)
		name := m[1]
		if isAllCaps(name) {
			name = titleWord(name)
		}
		return name, 1, true
	}
	if m := numberedHeadingRe.FindStringSubmatch(line); m != nil {
		number, dot, text := m[1], m[2], m[3]
		depth := strings.Count(number, ".")
		// "1. Text" is also an ordered list marker, so only title-cased text
		// counts as a heading there.
		ambiguous := depth == 0 && dot == "."
		if headingText(text) && (!ambiguous || titleCased(text)) {
			return text, min(depth+1, maxLevel), true
		}
		return "", 0, false
	}
	if m := romanHeadingRe.FindStringSubmatch(line); m != nil && headingText(m[2]) && (titleCased(m[2]) || isAllCaps(m[2])) {
		return m[2], 1, true
	}
	if m := letterHeadingRe.FindStringSubmatch(line); m != nil && headingText(m[2]) && titleCased(m[2]) {
		return m[2], 2, true
	}
	if isAllCaps(line) && headingText(line) && len(strings.Fields(line)) <= maxCapsWords {
		return line, 1, true
	}
	return "", 0, false
}

// headingText reports whether text is short, starts with a capital and
// does not end like a sentence.
func headingText(text string) bool {
	words := strings.Fields(text)
	if len(words) == 0 || len(words) > maxHeadingWords {
		return false
	}
	r, _ := utf8.DecodeRuneInString(text)
	if !unicode.IsUpper(r) {
		return false
	}
	if strings.ContainsAny(text[len(text)-1:], ".,;") {
		return false
	}
	if mathconv.IsEquationLine(text) {
		return false
	}
	letters := 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters*2 >= utf8.RuneCountInString(text)
}

// titleCased reports whether most words of four or more letters start
// with a capital.
func titleCased(text string) bool {
	long, capped := 0, 0
	for _, w := range strings.Fields(text) {
		if utf8.RuneCountInString(w) < 4 {
			continue
		}
		long++
		r, _ := utf8.DecodeRuneInString(w)
		if unicode.IsUpper(r) {
			capped++
		}
	}
	return long == 0 || capped*2 > long
}

func isAllCaps(text string) bool {
	letters := 0
	for _, r := range text {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters >= 3
}

func titleWord(s string) string {
	lower := strings.ToLower(s)
	r, size := utf8.DecodeRuneInString(lower)
	return string(unicode.ToUpper(r)) + lower[size:]
}

func listItem(line string) (string, bool, bool) {
	if m := bulletRe.FindStringSubmatch(line); m != nil {
		return m[2], false, true
	}
	if m := orderedRe.FindStringSubmatch(line); m != nil {
		return m[2], true, true
	}
	return "", false, false
}

func endsSentence(line string) bool {
	line = strings.TrimRight(line, ")”\"' ")
	return strings.HasSuffix(line, ".") || strings.HasSuffix(line, "!") || strings.HasSuffix(line, "?")
}

// typicalLength returns the median rune length of lines with at least 20
// runes, or 0 when there are none.
func typicalLength(lines []string) int {
	var lengths []int
	for _, l := range lines {
		if n := utf8.RuneCountInString(strings.TrimSpace(l)); n >= 20 {
			lengths = append(lengths, n)
		}
	}
	if len(lengths) == 0 {
		return 0
	}
	sort.Ints(lengths)
	return lengths[len(lengths)/2]
}
