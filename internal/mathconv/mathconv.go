// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mathconv converts LaTeX math in extracted text into Markdown
// math. In latex mode TeX is kept between $ (inline) and $$ (display)
// delimiters; in unicode mode math spans are rendered as plain Unicode.
package mathconv

import (
	"regexp"
	"strings"

	"github.com/pdiddy/milkbottle/pkg/types"
)

// Converter rewrites math in Markdown text according to its mode.
type Converter struct {
	mode types.MathMode
}

// New returns a Converter. An empty mode selects latex.
func New(mode types.MathMode) *Converter {
	if mode == "" {
		mode = types.MathLaTeX
	}
	return &Converter{mode: mode}
}

// Mode returns the converter's rendering mode.
func (c *Converter) Mode() types.MathMode { return c.mode }

// displayEnvs are environments rewritten into $$ display blocks.
var displayEnvs = []string{
	"equation", "equation*", "displaymath",
	"align", "align*", "gather", "gather*",
	"eqnarray", "eqnarray*", "multline", "multline*",
}

// alignedEnvs keep their alignment by nesting an aligned environment.
var alignedEnvs = map[string]bool{
	"align": true, "align*": true, "eqnarray": true, "eqnarray*": true,
}

type envPattern struct {
	name string
	re   *regexp.Regexp
}

var envPatterns = func() []envPattern {
	out := make([]envPattern, len(displayEnvs))
	for i, name := range displayEnvs {
		q := regexp.QuoteMeta(name)
		out[i] = envPattern{
			name: name,
			re:   regexp.MustCompile(`(?s)\\begin\{` + q + `\}(.*?)\\end\{` + q + `\}`),
		}
	}
	return out
}()

var labelRe = regexp.MustCompile(`\\label\{([^}]*)\}`)

// NormalizeDelimiters rewrites \( \), \[ \] and display environments into
// $ and $$ delimiters. Code spans are left untouched.
func (c *Converter) NormalizeDelimiters(text string) string {
	var b strings.Builder
	for _, seg := range splitCode(text) {
		if seg.code {
			b.WriteString(seg.text)
			continue
		}
		b.WriteString(c.normalize(seg.text))
	}
	return b.String()
}

// normalizeText rewrites delimiters in the plain parts of text only. Math
// already between $ delimiters is copied through unchanged.
func (c *Converter) normalizeText(text string) string {
	var b strings.Builder
	for _, sp := range splitMath(text) {
		switch sp.kind {
		case spanText:
			b.WriteString(c.normalize(sp.text))
		case spanInline:
			b.WriteString("$" + sp.text + "$")
		case spanDisplay:
			b.WriteString("$$" + sp.text + "$$")
		}
	}
	return b.String()
}

func (c *Converter) normalize(text string) string {
	for _, env := range envPatterns {
		if !strings.Contains(text, `\begin{`+env.name+`}`) {
			continue
		}
		name := env.name
		text = env.re.ReplaceAllStringFunc(text, func(m string) string {
			body := env.re.FindStringSubmatch(m)[1]
			var label string
			if lm := labelRe.FindStringSubmatch(body); lm != nil {
				label = lm[1]
			}
			body = strings.TrimSpace(labelRe.ReplaceAllString(body, ""))
			if alignedEnvs[name] {
				body = `\begin{aligned}` + "\n" + body + "\n" + `\end{aligned}`
			}
			if label != "" && c.mode == types.MathLaTeX {
				body += ` \tag{` + label + `}`
			}
			return "$$\n" + body + "\n$$"
		})
	}
	return replaceBracketMath(text)
}

// replaceBracketMath rewrites \(x\) to $x$ and \[x\] to a $$ block.
// A backslash pair (\\) is a TeX line break and never opens math.
func replaceBracketMath(text string) string {
	var b strings.Builder
	i := 0
	for i < len(text) {
		if text[i] != '\\' || i+1 >= len(text) {
			b.WriteByte(text[i])
			i++
			continue
		}
		next := text[i+1]
		if next == '(' || next == '[' {
			closer := byte(')')
			if next == '[' {
				closer = ']'
			}
			if end := findEscaped(text, i+2, closer); end >= 0 {
				body := trimMath(text[i+2 : end])
				if next == '[' {
					b.WriteString("$$\n" + body + "\n$$")
				} else {
					b.WriteString("$" + body + "$")
				}
				i = end + 2
				continue
			}
		}
		b.WriteString(text[i : i+2])
		i += 2
	}
	return b.String()
}

// findEscaped returns the index of the backslash of the next `\<closer>`
// at or after from, skipping other escape pairs.
func findEscaped(text string, from int, closer byte) int {
	for j := from; j+1 < len(text); j++ {
		if text[j] != '\\' {
			continue
		}
		if text[j+1] == closer {
			return j
		}
		j++
	}
	return -1
}

// maxPasses bounds the latex-mode rewrite loop in Convert.
const maxPasses = 16

// Convert normalises delimiters and then renders every math span
// according to the mode. In latex mode the result is stable under
// repeated application: nested or unbalanced bracket delimiters can
// leave a pair that only lines up after a pass, so the rewrite repeats
// until the text stops changing.
func (c *Converter) Convert(text string) string {
	out := c.convert(text)
	if c.mode == types.MathUnicode {
		return out
	}
	for range maxPasses {
		next := c.convert(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

func (c *Converter) convert(text string) string {
	var b strings.Builder
	for _, seg := range splitCode(text) {
		if seg.code {
			b.WriteString(seg.text)
			continue
		}
		for _, sp := range splitMath(c.normalizeText(seg.text)) {
			switch sp.kind {
			case spanText:
				b.WriteString(sp.text)
			case spanInline:
				if c.mode == types.MathUnicode {
					b.WriteString(ToUnicode(sp.text))
				} else {
					b.WriteString("$" + trimMath(sp.text) + "$")
				}
			case spanDisplay:
				if c.mode == types.MathUnicode {
					b.WriteString(ToUnicode(sp.text))
				} else {
					b.WriteString("$$\n" + trimMath(sp.text) + "\n$$")
				}
			}
		}
	}
	return b.String()
}

// trimMath trims a math body. A trailing odd run of backslashes keeps one
// space so it cannot escape the closing delimiter.
func trimMath(body string) string {
	t := strings.TrimSpace(body)
	n := len(t) - len(strings.TrimRight(t, `\`))
	if n%2 == 1 {
		t += " "
	}
	return t
}

// Display renders a standalone TeX equation as a display block. The label,
// when present, is shown as a tag in latex mode and appended in
// parentheses in unicode mode.
func (c *Converter) Display(tex, label string) string {
	tex = strings.TrimSpace(tex)
	label = strings.Trim(strings.TrimSpace(label), "()")
	if c.mode == types.MathUnicode {
		out := ToUnicode(tex)
		if label != "" {
			out += " (" + label + ")"
		}
		return out
	}
	if label != "" {
		tex += ` \tag{` + label + `}`
	}
	return "$$\n" + tex + "\n$$"
}

type segment struct {
	text string
	code bool
}

// splitCode separates backtick code spans (and fences, which are runs of
// three or more backticks) from the surrounding text. An unclosed run of
// backticks is plain text.
func splitCode(text string) []segment {
	var out []segment
	start := 0
	i := 0
	for i < len(text) {
		if text[i] != '`' {
			i++
			continue
		}
		n := 0
		for i+n < len(text) && text[i+n] == '`' {
			n++
		}
		fence := strings.Repeat("`", n)
		end := findRun(text, i+n, fence)
		if end < 0 {
			i += n
			continue
		}
		if i > start {
			out = append(out, segment{text: text[start:i]})
		}
		out = append(out, segment{text: text[i : end+n], code: true})
		i = end + n
		start = i
	}
	if start < len(text) {
		out = append(out, segment{text: text[start:]})
	}
	return out
}

// findRun finds a run of exactly len(fence) backticks at or after from.
func findRun(text string, from int, fence string) int {
	for j := from; j < len(text); {
		k := strings.Index(text[j:], fence)
		if k < 0 {
			return -1
		}
		pos := j + k
		runEnd := pos
		for runEnd < len(text) && text[runEnd] == '`' {
			runEnd++
		}
		if runEnd-pos == len(fence) {
			return pos
		}
		j = runEnd
	}
	return -1
}

type spanKind int

const (
	spanText spanKind = iota
	spanInline
	spanDisplay
)

type span struct {
	kind spanKind
	text string
}

// splitMath cuts text into plain, inline-math and display-math spans.
// Escaped dollars stay plain. An inline closer immediately followed by a
// digit does not close ("$5 and $10"), and inline math never spans a
// blank line.
func splitMath(text string) []span {
	var out []span
	var plain strings.Builder
	flush := func() {
		if plain.Len() > 0 {
			out = append(out, span{kind: spanText, text: plain.String()})
			plain.Reset()
		}
	}

	i := 0
	for i < len(text) {
		ch := text[i]
		if ch == '\\' && i+1 < len(text) {
			plain.WriteString(text[i : i+2])
			i += 2
			continue
		}
		if ch != '$' {
			plain.WriteByte(ch)
			i++
			continue
		}

		if i+1 < len(text) && text[i+1] == '$' {
			if end := findDollar(text, i+2, true); end >= 0 && strings.TrimSpace(text[i+2:end]) != "" {
				flush()
				out = append(out, span{kind: spanDisplay, text: text[i+2 : end]})
				i = end + 2
				continue
			}
			plain.WriteString("$$")
			i += 2
			continue
		}

		end := findDollar(text, i+1, false)
		if end >= 0 {
			body := text[i+1 : end]
			closesBeforeDigit := end+1 < len(text) && text[end+1] >= '0' && text[end+1] <= '9'
			if strings.TrimSpace(body) != "" && !closesBeforeDigit && !strings.Contains(body, "\n\n") {
				flush()
				out = append(out, span{kind: spanInline, text: body})
				i = end + 1
				continue
			}
		}
		plain.WriteByte(ch)
		i++
	}
	flush()
	return out
}

// findDollar returns the index of the next unescaped $ (or $$ when double)
// at or after from.
func findDollar(text string, from int, double bool) int {
	for j := from; j < len(text); j++ {
		switch text[j] {
		case '\\':
			j++
		case '$':
			if !double {
				return j
			}
			if j+1 < len(text) && text[j+1] == '$' {
				return j
			}
		}
	}
	return -1
}
