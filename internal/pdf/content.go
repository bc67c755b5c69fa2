// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdf

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// kernSpace is the TJ displacement (thousandths of an em) below which a
// gap between glyph runs is read as a word space.
const kernSpace = -200

// lineEpsilon is the vertical movement, in text space units, treated as
// staying on the same line.
const lineEpsilon = 1.0

// paragraphGapFactor marks a vertical jump this many times the usual line
// gap as a paragraph break.
const paragraphGapFactor = 1.8

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokString
	tokName
	tokOperator
	tokArrayStart
	tokArrayEnd
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

// lexer splits a PDF content stream into tokens.
type lexer struct {
	data []byte
	pos  int
}

func (l *lexer) next() (token, bool) {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		switch {
		case isPDFSpace(c):
			l.pos++
		case c == '%':
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
		case c == '(':
			return token{kind: tokString, text: l.literal()}, true
		case c == '<':
			if l.pos+1 < len(l.data) && l.data[l.pos+1] == '<' {
				l.pos += 2
				continue
			}
			return token{kind: tokString, text: l.hex()}, true
		case c == '>':
			l.pos++
		case c == '[':
			l.pos++
			return token{kind: tokArrayStart}, true
		case c == ']':
			l.pos++
			return token{kind: tokArrayEnd}, true
		case c == '{' || c == '}' || c == ')':
			l.pos++
		case c == '/':
			l.pos++
			return token{kind: tokName, text: l.regular()}, true
		case c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
			word := l.regular()
			if n, err := strconv.ParseFloat(word, 64); err == nil {
				return token{kind: tokNumber, num: n}, true
			}
			return token{kind: tokOperator, text: word}, true
		default:
			word := l.regular()
			if word == "" {
				l.pos++
				continue
			}
			return token{kind: tokOperator, text: word}, true
		}
	}
	return token{}, false
}

func (l *lexer) regular() string {
	start := l.pos
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if isPDFSpace(c) || isDelimiter(c) {
			break
		}
		l.pos++
	}
	return string(l.data[start:l.pos])
}

// literal reads a (...) string with nested parentheses and escapes.
func (l *lexer) literal() string {
	l.pos++ // (
	var b []byte
	depth := 1
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		switch c {
		case '\\':
			l.pos++
			if l.pos >= len(l.data) {
				return string(b)
			}
			e := l.data[l.pos]
			switch e {
			case 'n':
				b = append(b, '\n')
			case 'r':
				b = append(b, '\r')
			case 't':
				b = append(b, '\t')
			case 'b', 'f':
			case '\r':
				// Line continuation.
				if l.pos+1 < len(l.data) && l.data[l.pos+1] == '\n' {
					l.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					val := int(e - '0')
					for k := 0; k < 2 && l.pos+1 < len(l.data); k++ {
						d := l.data[l.pos+1]
						if d < '0' || d > '7' {
							break
						}
						l.pos++
						val = val*8 + int(d-'0')
					}
					b = append(b, byte(val))
				} else {
					b = append(b, e)
				}
			}
			l.pos++
		case '(':
			depth++
			b = append(b, c)
			l.pos++
		case ')':
			depth--
			l.pos++
			if depth == 0 {
				return string(b)
			}
			b = append(b, c)
		default:
			b = append(b, c)
			l.pos++
		}
	}
	return string(b)
}

// hex reads a <...> string.
func (l *lexer) hex() string {
	l.pos++ // <
	var digits []byte
	for l.pos < len(l.data) && l.data[l.pos] != '>' {
		c := l.data[l.pos]
		if isHexDigit(c) {
			digits = append(digits, c)
		}
		l.pos++
	}
	l.pos++ // >
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, 0, len(digits)/2)
	for i := 0; i+1 < len(digits); i += 2 {
		v, _ := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		out = append(out, byte(v))
	}
	return string(out)
}

// skipInlineImage advances past inline image data up to the EI operator.
func (l *lexer) skipInlineImage() {
	for l.pos+2 < len(l.data) {
		if isPDFSpace(l.data[l.pos]) && l.data[l.pos+1] == 'E' && l.data[l.pos+2] == 'I' &&
			(l.pos+3 >= len(l.data) || isPDFSpace(l.data[l.pos+3]) || isDelimiter(l.data[l.pos+3])) {
			l.pos += 3
			return
		}
		l.pos++
	}
	l.pos = len(l.data)
}

func isPDFSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func isDelimiter(c byte) bool {
	return strings.IndexByte("()<>[]{}/%", c) >= 0
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// textState tracks the text cursor while interpreting a content stream.
type textState struct {
	lines   []string
	cur     strings.Builder
	lineY   float64 // y of the line being built
	tlmY    float64 // y of the text line matrix
	leading float64
	gap     float64 // usual vertical gap between lines
	started bool
}

// ContentLines interprets a decoded page content stream and returns its
// text lines in stream order. An empty line marks a paragraph gap.
func ContentLines(data []byte) []string {
	lx := &lexer{data: data}
	st := &textState{}
	var operands []token
	var array []token
	inArray := false

	for {
		tok, ok := lx.next()
		if !ok {
			break
		}
		switch tok.kind {
		case tokArrayStart:
			inArray = true
			array = array[:0]
			continue
		case tokArrayEnd:
			inArray = false
			operands = append(operands, token{kind: tokArrayEnd})
			continue
		}
		if inArray {
			array = append(array, tok)
			continue
		}
		if tok.kind != tokOperator {
			operands = append(operands, tok)
			continue
		}

		switch tok.text {
		case "BT":
			st.tlmY = 0
		case "ET":
			st.forceBreak()
		case "TL":
			if n, ok := lastNumber(operands, 0); ok {
				st.leading = n
			}
		case "Td", "TD":
			tx, _ := lastNumber(operands, 1)
			ty, _ := lastNumber(operands, 0)
			if tok.text == "TD" {
				st.leading = -ty
			}
			st.moveTo(st.tlmY+ty, tx)
		case "Tm":
			f, _ := lastNumber(operands, 0)
			e, _ := lastNumber(operands, 1)
			st.moveTo(f, e)
		case "T*":
			st.moveTo(st.tlmY-st.leading, 0)
			st.forceBreak()
		case "Tj":
			if s, ok := lastString(operands); ok {
				st.show(s)
			}
		case "'":
			st.moveTo(st.tlmY-st.leading, 0)
			st.forceBreak()
			if s, ok := lastString(operands); ok {
				st.show(s)
			}
		case "\"":
			st.moveTo(st.tlmY-st.leading, 0)
			st.forceBreak()
			if s, ok := lastString(operands); ok {
				st.show(s)
			}
		case "TJ":
			for _, el := range array {
				switch el.kind {
				case tokString:
					st.show(el.text)
				case tokNumber:
					if el.num < kernSpace {
						st.space()
					}
				}
			}
		case "ID":
			lx.skipInlineImage()
		}
		operands = operands[:0]
		if tok.text != "TJ" {
			continue
		}
		array = array[:0]
	}
	st.flush()
	return trimBlankEdges(st.lines)
}

// moveTo positions the cursor at a new text line origin. A vertical move
// ends the current line; a horizontal move on the same line is a space.
func (st *textState) moveTo(y, dx float64) {
	st.tlmY = y
	if !st.started {
		st.lineY = y
		return
	}
	dy := math.Abs(y - st.lineY)
	if dy <= lineEpsilon {
		if dx != 0 {
			st.space()
		}
		return
	}
	st.flush()
	if st.gap > 0 && dy > paragraphGapFactor*st.gap {
		st.lines = append(st.lines, "")
	}
	if st.gap == 0 || dy <= 2*st.gap {
		st.gap = dy
	}
	st.lineY = y
}

func (st *textState) forceBreak() {
	if st.cur.Len() > 0 {
		st.flush()
	}
	st.lineY = st.tlmY
}

func (st *textState) show(s string) {
	st.started = true
	for _, r := range decodeBytes(s) {
		st.cur.WriteRune(r)
	}
}

func (st *textState) space() {
	if st.cur.Len() == 0 {
		return
	}
	str := st.cur.String()
	if !strings.HasSuffix(str, " ") {
		st.cur.WriteByte(' ')
	}
}

func (st *textState) flush() {
	line := strings.Join(strings.Fields(st.cur.String()), " ")
	st.cur.Reset()
	if line != "" {
		st.lines = append(st.lines, line)
	}
}

// decodeBytes maps single-byte string content to runes. Bytes are read as
// Latin-1 except for the WinAnsi punctuation block; control bytes are
// dropped.
func decodeBytes(s string) []rune {
	out := make([]rune, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\t' || c == '\n' || c == '\r':
			out = append(out, ' ')
		case c < 0x20:
		case c >= 0x80 && c <= 0x9F:
			if r, ok := winAnsi[c]; ok {
				out = append(out, r)
			}
		default:
			r := rune(c)
			if unicode.IsPrint(r) || r == ' ' {
				out = append(out, r)
			}
		}
	}
	return out
}

// winAnsi covers the 0x80-0x9F block where WinAnsiEncoding differs from
// Latin-1.
var winAnsi = map[byte]rune{
	0x80: '€', 0x82: '‚', 0x83: 'ƒ', 0x84: '„', 0x85: '…', 0x86: '†',
	0x87: '‡', 0x88: 'ˆ', 0x89: '‰', 0x8A: 'Š', 0x8B: '‹', 0x8C: 'Œ',
	0x8E: 'Ž', 0x91: '\'', 0x92: '\'', 0x93: '"', 0x94: '"', 0x95: '•',
	0x96: '–', 0x97: '—', 0x98: '˜', 0x99: '™', 0x9A: 'š', 0x9B: '›',
	0x9C: 'œ', 0x9E: 'ž', 0x9F: 'Ÿ',
}

// lastNumber returns the operand at offset from the end when it is a number.
func lastNumber(ops []token, offset int) (float64, bool) {
	i := len(ops) - 1 - offset
	if i < 0 || ops[i].kind != tokNumber {
		return 0, false
	}
	return ops[i].num, true
}

func lastString(ops []token) (string, bool) {
	for i := len(ops) - 1; i >= 0; i-- {
		if ops[i].kind == tokString {
			return ops[i].text, true
		}
	}
	return "", false
}

func trimBlankEdges(lines []string) []string {
	start, end := 0, len(lines)
	for start < end && lines[start] == "" {
		start++
	}
	for end > start && lines[end-1] == "" {
		end--
	}
	out := lines[start:end]
	// Collapse repeated paragraph gaps.
	compact := out[:0:0]
	for i, l := range out {
		if l == "" && i > 0 && out[i-1] == "" {
			continue
		}
		compact = append(compact, l)
	}
	return compact
}
