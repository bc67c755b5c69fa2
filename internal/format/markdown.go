// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package format

import (
	"regexp"
	"strings"

	"github.com/pdiddy/milkbottle/pkg/types"
)

var (
	atxHeadingRe  = regexp.MustCompile(`^(#{1,6})\s+(.*?)\s*#*\s*$`)
	mdBulletRe    = regexp.MustCompile(`^\s*[-*+]\s+(.*)$`)
	mdOrderedRe   = regexp.MustCompile(`^\s*\d{1,3}[.)]\s+(.*)$`)
	tagRe         = regexp.MustCompile(`\s*\\tag\*?\{([^}]*)\}\s*$`)
	mdFigureLine  = regexp.MustCompile(`^\s*(!\[|\|)`)
	inlineDisplay = regexp.MustCompile(`^\$\$(.+)\$\$$`)
)

// ParseMarkdown splits Markdown into sections on ATX headings. Section
// levels equal the number of leading hashes. Blocks are paragraphs, lists,
// $$ display equations, fenced code, and image or table lines kept
// verbatim as figure blocks.
func ParseMarkdown(md string) []types.Section {
	p := &mdParser{section: -1}
	lines := strings.Split(strings.ReplaceAll(md, "\r\n", "\n"), "\n")
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~"):
			p.flush()
			fence := trimmed[:3]
			var body []string
			for i++; i < len(lines) && !strings.HasPrefix(strings.TrimSpace(lines[i]), fence); i++ {
				body = append(body, lines[i])
			}
			p.add(types.Block{Kind: types.BlockCode, Text: strings.Join(body, "\n")})

		case trimmed == "$$" || trimmed == `\[`:
			p.flush()
			closer := "$$"
			if trimmed == `\[` {
				closer = `\]`
			}
			var body []string
			for i++; i < len(lines) && strings.TrimSpace(lines[i]) != closer; i++ {
				body = append(body, lines[i])
			}
			p.equation(strings.Join(body, "\n"))

		case inlineDisplay.MatchString(trimmed):
			p.flush()
			p.equation(inlineDisplay.FindStringSubmatch(trimmed)[1])

		case atxHeadingRe.MatchString(trimmed):
			p.flush()
			m := atxHeadingRe.FindStringSubmatch(trimmed)
			p.sections = append(p.sections, types.Section{Heading: m[2], Level: len(m[1])})
			p.section = len(p.sections) - 1

		case trimmed == "":
			p.flush()

		case mdFigureLine.MatchString(line):
			p.flushPara()
			p.flushList()
			p.figure = append(p.figure, trimmed)

		case mdBulletRe.MatchString(line) || mdOrderedRe.MatchString(line):
			p.flushPara()
			p.flushFigure()
			ordered := !mdBulletRe.MatchString(line)
			item := mdItem(line)
			if p.list != nil && p.list.Ordered != ordered {
				p.flushList()
			}
			if p.list == nil {
				p.list = &types.Block{Kind: types.BlockList, Ordered: ordered}
			}
			p.list.Items = append(p.list.Items, item)

		case p.list != nil:
			last := len(p.list.Items) - 1
			p.list.Items[last] += " " + trimmed

		default:
			p.flushFigure()
			p.para = append(p.para, trimmed)
		}
	}
	p.flush()
	return p.sections
}

func mdItem(line string) string {
	if m := mdBulletRe.FindStringSubmatch(line); m != nil {
		return m[1]
	}
	return mdOrderedRe.FindStringSubmatch(line)[1]
}

type mdParser struct {
	sections []types.Section
	section  int
	para     []string
	list     *types.Block
	figure   []string
}

func (p *mdParser) add(b types.Block) {
	if p.section < 0 {
		p.sections = append(p.sections, types.Section{})
		p.section = len(p.sections) - 1
	}
	sec := &p.sections[p.section]
	sec.Blocks = append(sec.Blocks, b)
}

func (p *mdParser) equation(tex string) {
	label := ""
	if m := tagRe.FindStringSubmatch(tex); m != nil {
		label = m[1]
		tex = tex[:len(tex)-len(m[0])]
	}
	p.add(types.Block{Kind: types.BlockEquation, Text: strings.TrimSpace(tex), Label: label})
}

func (p *mdParser) flushPara() {
	if len(p.para) == 0 {
		return
	}
	p.add(types.Block{Kind: types.BlockParagraph, Text: strings.Join(p.para, " ")})
	p.para = nil
}

func (p *mdParser) flushList() {
	if p.list == nil {
		return
	}
	p.add(*p.list)
	p.list = nil
}

func (p *mdParser) flushFigure() {
	if len(p.figure) == 0 {
		return
	}
	p.add(types.Block{Kind: types.BlockFigure, Text: strings.Join(p.figure, "\n")})
	p.figure = nil
}

func (p *mdParser) flush() {
	p.flushPara()
	p.flushList()
	p.flushFigure()
}
