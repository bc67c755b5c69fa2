// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mathconv

import (
	"regexp"
	"strings"
	"unicode"
)

// ToUnicode renders a TeX math expression as plain Unicode text. Commands
// with no Unicode form keep their name without the backslash.
func ToUnicode(tex string) string {
	p := &texParser{src: []rune(tex)}
	var b strings.Builder
	for !p.done() {
		if p.peek() == '}' {
			// Unbalanced brace; drop it.
			p.pos++
			continue
		}
		b.WriteString(p.atom())
	}
	return collapseSpaces(b.String())
}

type texParser struct {
	src []rune
	pos int
}

func (p *texParser) done() bool { return p.pos >= len(p.src) }

func (p *texParser) peek() rune {
	if p.done() {
		return 0
	}
	return p.src[p.pos]
}

// seq renders atoms until the end of input or a closing brace, which is
// left for the caller.
func (p *texParser) seq() string {
	var b strings.Builder
	for !p.done() && p.peek() != '}' {
		b.WriteString(p.atom())
	}
	return b.String()
}

func (p *texParser) atom() string {
	r := p.src[p.pos]
	switch r {
	case '{':
		return p.arg()
	case '\\':
		return p.command()
	case '^':
		p.pos++
		return script(p.arg(), superscripts, "^")
	case '_':
		p.pos++
		return script(p.arg(), subscripts, "_")
	case '&', '~':
		p.pos++
		return " "
	case '\'':
		p.pos++
		return "′"
	}
	p.pos++
	if unicode.IsSpace(r) {
		return " "
	}
	return string(r)
}

// arg renders one argument: a braced group, a command, or a single rune.
func (p *texParser) arg() string {
	for !p.done() && p.peek() == ' ' {
		p.pos++
	}
	if p.done() {
		return ""
	}
	switch p.peek() {
	case '{':
		p.pos++
		s := p.seq()
		if p.peek() == '}' {
			p.pos++
		}
		return s
	case '\\':
		return p.command()
	}
	r := p.src[p.pos]
	p.pos++
	return string(r)
}

// rawArg returns the source text of a braced argument without rendering it.
func (p *texParser) rawArg() string {
	for !p.done() && p.peek() == ' ' {
		p.pos++
	}
	if p.peek() != '{' {
		return ""
	}
	depth := 0
	start := p.pos + 1
	for !p.done() {
		switch p.src[p.pos] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				s := string(p.src[start:p.pos])
				p.pos++
				return s
			}
		}
		p.pos++
	}
	return string(p.src[start:])
}

// optArg renders an optional [..] argument when present.
func (p *texParser) optArg() string {
	if p.peek() != '[' {
		return ""
	}
	p.pos++
	var b strings.Builder
	for !p.done() && p.peek() != ']' {
		b.WriteString(p.atom())
	}
	if p.peek() == ']' {
		p.pos++
	}
	return b.String()
}

func (p *texParser) command() string {
	p.pos++ // backslash
	if p.done() {
		return ""
	}
	name := p.commandName()

	switch {
	case name == "\\":
		return "\n"
	case name == "frac" || name == "dfrac" || name == "tfrac" || name == "cfrac":
		num, den := p.arg(), p.arg()
		return operand(num) + "/" + operand(den)
	case name == "binom":
		n, k := p.arg(), p.arg()
		return "C(" + strings.TrimSpace(n) + ", " + strings.TrimSpace(k) + ")"
	case name == "sqrt":
		index := p.optArg()
		body := strings.TrimSpace(p.arg())
		return script(index, superscripts, "") + "√(" + body + ")"
	case name == "mathbb":
		var b strings.Builder
		for _, r := range p.arg() {
			if s, ok := blackboard[r]; ok {
				b.WriteString(s)
			} else {
				b.WriteRune(r)
			}
		}
		return b.String()
	case name == "begin" || name == "end" || name == "label":
		p.rawArg()
		return ""
	case name == "tag":
		return " (" + strings.TrimSpace(p.arg()) + ")"
	case unwrapCommands[name]:
		return p.arg()
	case vanishingCommands[name]:
		return ""
	case functionNames[name]:
		return name
	}
	if mark, ok := accentMarks[name]; ok {
		body := p.arg()
		if len([]rune(body)) == 1 {
			return body + string(mark)
		}
		return name + "(" + body + ")"
	}
	if sym, ok := commandSymbols[name]; ok {
		return sym
	}
	return name
}

func (p *texParser) commandName() string {
	start := p.pos
	if !isASCIILetter(p.src[p.pos]) {
		p.pos++
		return string(p.src[start:p.pos])
	}
	for !p.done() && isASCIILetter(p.src[p.pos]) {
		p.pos++
	}
	return string(p.src[start:p.pos])
}

// script maps every rune of s through table. When a rune has no mapping
// it falls back to prefix(s), or prefix+s for a single rune.
func script(s string, table map[rune]rune, prefix string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range s {
		m, ok := table[r]
		if !ok {
			if prefix == "" {
				return s
			}
			if len([]rune(s)) == 1 {
				return prefix + s
			}
			return prefix + "(" + s + ")"
		}
		b.WriteRune(m)
	}
	return b.String()
}

// operand parenthesises a fraction operand unless it is a single token.
func operand(s string) string {
	s = strings.TrimSpace(s)
	if atomic(s) {
		return s
	}
	return "(" + s + ")"
}

func atomic(s string) bool {
	if s == "" {
		return true
	}
	if len([]rune(s)) == 1 {
		return true
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' {
			return false
		}
	}
	return true
}

var spaceRunRe = regexp.MustCompile(`[ \t]+`)

func collapseSpaces(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRunRe.ReplaceAllString(line, " "))
	}
	return strings.Join(lines, "\n")
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// FromUnicode lifts Unicode math symbols, as found in text extracted from a
// PDF, into TeX commands. Runs of super- and subscript characters become
// ^{...} and _{...} groups.
func FromUnicode(text string) string {
	runes := []rune(text)
	var b strings.Builder
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if _, ok := superscriptInverse[r]; ok {
			j := i
			for j < len(runes) {
				if _, ok := superscriptInverse[runes[j]]; !ok {
					break
				}
				j++
			}
			b.WriteString("^{")
			for _, s := range runes[i:j] {
				b.WriteRune(superscriptInverse[s])
			}
			b.WriteString("}")
			i = j - 1
			continue
		}
		if _, ok := subscriptInverse[r]; ok {
			j := i
			for j < len(runes) {
				if _, ok := subscriptInverse[runes[j]]; !ok {
					break
				}
				j++
			}
			b.WriteString("_{")
			for _, s := range runes[i:j] {
				b.WriteRune(subscriptInverse[s])
			}
			b.WriteString("}")
			i = j - 1
			continue
		}

		if r == '−' {
			b.WriteByte('-')
			continue
		}
		if cmd, ok := unicodeToCommand[r]; ok {
			b.WriteByte('\\')
			b.WriteString(cmd)
			if i+1 < len(runes) && isASCIILetter(runes[i+1]) && isASCIILetter(rune(cmd[len(cmd)-1])) {
				b.WriteByte(' ')
			}
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
