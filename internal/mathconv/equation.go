// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mathconv

import (
	"regexp"
	"strings"
	"unicode"
)

const maxEquationRunes = 160

// relationRunes mark a line as a statement rather than a bare expression.
var relationRunes = "=<>≤≥≠≈≡∝∼≃≅∈⊂⊆⊃⊇→⇒⇔↦"

// asciiMathRunes count towards math density alongside Unicode symbols.
var asciiMathRunes = "+-*/=<>^_|()[]{}!,.:;'"

// IsEquationLine reports whether a line of PDF-extracted text looks like a
// displayed equation: short, containing a relation, dense in symbols and
// single-letter variables, and carrying little prose.
func IsEquationLine(line string) bool {
	line = strings.TrimSpace(line)
	runes := []rune(line)
	if len(runes) == 0 || len(runes) > maxEquationRunes {
		return false
	}
	if !strings.ContainsAny(line, relationRunes) {
		return false
	}

	nonSpace := 0
	mathy := 0
	for _, r := range runes {
		if unicode.IsSpace(r) {
			continue
		}
		nonSpace++
		if isMathRune(r) || unicode.IsDigit(r) {
			mathy++
		}
	}
	if nonSpace < 3 {
		return false
	}

	longWords := 0
	for _, f := range strings.Fields(line) {
		fr := []rune(f)
		if len(fr) == 1 && unicode.IsLetter(fr[0]) {
			mathy++
			continue
		}
		if len(fr) >= 4 && allLetters(fr) {
			longWords++
		}
	}
	if longWords >= 6 {
		return false
	}
	return float64(mathy)/float64(nonSpace) >= 0.4
}

func isMathRune(r rune) bool {
	if r < 0x80 {
		return strings.ContainsRune(asciiMathRunes, r)
	}
	if _, ok := unicodeToCommand[r]; ok {
		return true
	}
	if _, ok := superscriptInverse[r]; ok {
		return true
	}
	if _, ok := subscriptInverse[r]; ok {
		return true
	}
	return r == '−' || unicode.Is(unicode.Sm, r)
}

func allLetters(rs []rune) bool {
	for _, r := range rs {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// equationLabelRe matches a trailing equation number such as "(3)" or "(2a)".
var equationLabelRe = regexp.MustCompile(`\s*\((\d+[a-z]?)\)\s*$`)

// LiftEquation turns a PDF-extracted equation line into TeX and splits off
// a trailing equation number.
func LiftEquation(line string) (tex, label string) {
	line = strings.TrimSpace(line)
	if m := equationLabelRe.FindStringSubmatchIndex(line); m != nil {
		label = line[m[2]:m[3]]
		line = strings.TrimSpace(line[:m[0]])
	}
	return FromUnicode(line), label
}

// CountMath returns the number of inline and display math spans in
// Markdown text.
func CountMath(text string) int {
	count := 0
	for _, seg := range splitCode(text) {
		if seg.code {
			continue
		}
		for _, sp := range splitMath(seg.text) {
			if sp.kind != spanText {
				count++
			}
		}
	}
	return count
}
