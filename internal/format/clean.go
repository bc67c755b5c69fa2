// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package format

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pdiddy/milkbottle/internal/pdf"
)

const (
	// minPagesForRunning is the page count below which running headers and
	// footers are not detected.
	minPagesForRunning = 3
	// edgeLines is how many lines at each end of a page are checked for
	// headers, footers and page numbers.
	edgeLines = 2
)

var pageNumberRe = regexp.MustCompile(`(?i)^\s*(page\s+)?\d+(\s+of\s+\d+)?\s*$`)

var ligatures = strings.NewReplacer(
	"\ufb00", "ff",
	"\ufb01", "fi",
	"\ufb02", "fl",
	"\ufb03", "ffi",
	"\ufb04", "ffl",
	"\ufb05", "st",
	"\ufb06", "st",
	"\u00ad", "", // soft hyphen
	"\u200b", "", // zero-width space
	"\u00a0", " ",
	"\u2002", " ",
	"\u2009", " ",
	"\u202f", " ",
)

// CleanPages removes running headers, footers and bare page numbers from
// pages and returns the remaining lines of the whole document in order.
func CleanPages(pages []pdf.Page) []string {
	running := runningLines(pages)

	var out []string
	for _, p := range pages {
		first, last := edgeBounds(p.Lines)
		for i, line := range p.Lines {
			atEdge := i < first || i > last
			if atEdge && pageNumberRe.MatchString(line) {
				continue
			}
			if atEdge && running[normalizeEdge(line)] {
				continue
			}
			out = append(out, line)
		}
	}
	return out
}

// edgeBounds returns the index of the first body line and the last body
// line, counting edgeLines non-blank lines in from each end. Lines before
// first or after last are edge lines.
func edgeBounds(lines []string) (first, last int) {
	first, last = 0, len(lines)-1
	seen := 0
	for first < len(lines) && seen < edgeLines {
		if strings.TrimSpace(lines[first]) != "" {
			seen++
		}
		first++
	}
	seen = 0
	for last >= 0 && seen < edgeLines {
		if strings.TrimSpace(lines[last]) != "" {
			seen++
		}
		last--
	}
	return first, last
}

// runningLines returns the normalised edge lines repeated on at least half
// of the pages.
func runningLines(pages []pdf.Page) map[string]bool {
	running := make(map[string]bool)
	if len(pages) < minPagesForRunning {
		return running
	}
	counts := make(map[string]int)
	for _, p := range pages {
		first, last := edgeBounds(p.Lines)
		seen := make(map[string]bool)
		for i, line := range p.Lines {
			if i >= first && i <= last {
				continue
			}
			key := normalizeEdge(line)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			counts[key]++
		}
	}
	for key, n := range counts {
		if n*2 >= len(pages) {
			running[key] = true
		}
	}
	return running
}

// normalizeEdge lowercases line, strips digits and collapses spaces so that
// "Page 3" and "Page 4" compare equal.
func normalizeEdge(line string) string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, line)
	return strings.Join(strings.Fields(stripped), " ")
}

// NormalizeLigatures expands typographic ligatures and replaces special
// spaces in every line.
func NormalizeLigatures(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = ligatures.Replace(l)
	}
	return out
}

// Dehyphenate joins a line ending in a hyphenated word with the following
// line when that line continues in lowercase.
func Dehyphenate(lines []string) []string {
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		cur := lines[i]
		for i+1 < len(lines) && hyphenated(cur) && startsLower(lines[i+1]) {
			cur = strings.TrimSuffix(cur, "-") + strings.TrimSpace(lines[i+1])
			i++
		}
		out = append(out, cur)
	}
	return out
}

func hyphenated(line string) bool {
	if !strings.HasSuffix(line, "-") || strings.HasSuffix(line, "--") {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(strings.TrimSuffix(line, "-"))
	return unicode.IsLetter(r)
}

func startsLower(line string) bool {
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(line))
	return unicode.IsLower(r)
}
