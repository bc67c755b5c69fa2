// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mathconv

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/milkbottle/pkg/types"
)

func TestToUnicode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"greek and superscript", `\alpha + \beta^2`, "α + β²"},
		{"fraction with compound numerator", `\frac{a+b}{2}`, "(a+b)/2"},
		{"simple fraction", `\frac{1}{2}`, "1/2"},
		{"square root", `\sqrt{x^2+1}`, "√(x²+1)"},
		{"nth root", `\sqrt[3]{x}`, "³√(x)"},
		{"mappable subscript group", `x_{max}`, "xₘₐₓ"},
		{"negative exponent", `x^{-1}`, "x⁻¹"},
		{"unmappable exponent", `e^{i\pi}`, "e^(iπ)"},
		{"blackboard bold", `\mathbb{R}^n`, "ℝⁿ"},
		{"accent", `\hat{x}`, "x\u0302"},
		{"big operator with limits", `\sum_{i=1}^{n} x_i`, "∑ᵢ₌₁ⁿ xᵢ"},
		{"text unwraps", `\text{if } x > 0`, "if x > 0"},
		{"function names", `\sin x + \log_2 n`, "sin x + log₂ n"},
		{"relations", `a \leq b \neq c`, "a ≤ b ≠ c"},
		{"left right vanish", `\left[ x \right]`, "[ x ]"},
		{"unknown command keeps name", `\foo`, "foo"},
		{"spacing commands", `a\,b\quad c`, "a b c"},
		{"tag", `x = 1 \tag{2}`, "x = 1 (2)"},
		{"label dropped", `x = 1 \label{eq:x}`, "x = 1"},
		{"unbalanced brace", `x}`, "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToUnicode(tt.in))
		})
	}
}

func TestFromUnicode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"α ≤ β²", `\alpha \leq \beta^{2}`},
		{"αx", `\alpha x`},
		{"x₁ + x₂", `x_{1} + x_{2}`},
		{"a − b", "a - b"},
		{"E = mc²", "E = mc^{2}"},
		{"∑ xᵢ", `\sum x_{i}`},
		{"plain text", "plain text"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FromUnicode(tt.in))
		})
	}
}

func TestConvert_LaTeXMode(t *testing.T) {
	c := New(types.MathLaTeX)
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"paren delimiters", `Energy \(E=mc^2\) holds.`, "Energy $E=mc^2$ holds."},
		{"bracket delimiters", `\[ a+b \]`, "$$\na+b\n$$"},
		{
			"equation environment with label",
			`\begin{equation}\label{eq:1} x = 1 \end{equation}`,
			"$$\nx = 1 \\tag{eq:1}\n$$",
		},
		{
			"align becomes aligned",
			`\begin{align} a &= b \\ c &= d \end{align}`,
			"$$\n\\begin{aligned}\na &= b \\\\ c &= d\n\\end{aligned}\n$$",
		},
		{"inline whitespace trimmed", "$ x $", "$x$"},
		{"display canonicalised", "$$a=b$$", "$$\na=b\n$$"},
		{"currency is not math", "costs $5 and $10", "costs $5 and $10"},
		{"escaped dollar untouched", `price \$5`, `price \$5`},
		{"code span untouched", "`$x$` and $ y $", "`$x$` and $y$"},
		{"fenced code untouched", "```\n\\(x\\)\n```", "```\n\\(x\\)\n```"},
		{"tex line break is not display math", `a \\[2pt] b`, `a \\[2pt] b`},
		{"blank line ends inline candidate", "$a\n\nb$", "$a\n\nb$"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Convert(tt.in))
		})
	}
}

func TestConvert_Idempotent(t *testing.T) {
	c := New(types.MathLaTeX)
	inputs := []string{
		`We have \(a^2 + b^2 = c^2\) and \[ \int_0^1 f(x)\,dx \] here.`,
		"\\begin{align*} x &= 1 \\\\ y &= 2 \\end{align*}",
		"Mixed $ x $ and `code $y$` and \\$ money",
		"$$\n\\sum_i x_i\n$$ trailing",
	}
	for _, in := range inputs {
		once := c.Convert(in)
		assert.Equal(t, once, c.Convert(once), "input %q", in)
	}
}

func TestConvert_NestedDelimitersStable(t *testing.T) {
	c := New(types.MathLaTeX)
	inputs := []string{
		`\[\[\]\]`,
		`\(\(\)\label{e}\)`,
		`\( x\ \) tail`,
		`\(a$b\) $c$`,
	}
	for _, in := range inputs {
		once := c.Convert(in)
		assert.Equal(t, once, c.Convert(once), "input %q", in)
	}
}

func TestConvert_RandomInputsStable(t *testing.T) {
	tokens := []string{
		`\(`, `\)`, `\[`, `\]`, "$", "$$", "x", "5", " ", "\n", "`",
		`\\`, `\label{e}`, `\begin{equation}`, `\end{equation}`,
	}
	c := New(types.MathLaTeX)
	rng := rand.New(rand.NewSource(7))
	for range 5000 {
		var b strings.Builder
		for range 1 + rng.Intn(12) {
			b.WriteString(tokens[rng.Intn(len(tokens))])
		}
		in := b.String()
		once := c.Convert(in)
		if twice := c.Convert(once); twice != once {
			t.Fatalf("Convert not stable for %q:\n once  %q\n twice %q", in, once, twice)
		}
	}
}

func TestConvert_UnicodeMode(t *testing.T) {
	c := New(types.MathUnicode)
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"inline", `Let $\alpha \leq \beta$ hold.`, "Let α ≤ β hold."},
		{"display environment drops label", `\begin{equation}\label{e} x^2 \end{equation}`, "x²"},
		{"code span untouched", "`$\\alpha$`", "`$\\alpha$`"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Convert(tt.in))
		})
	}
}

func TestNormalizeDelimiters(t *testing.T) {
	c := New("")
	assert.Equal(t, types.MathLaTeX, c.Mode())
	assert.Equal(t, "see $x$ and\n$$\ny\n$$", c.NormalizeDelimiters(`see \(x\) and`+"\n"+`\[y\]`))
	assert.Equal(t, "`\\(x\\)`", c.NormalizeDelimiters("`\\(x\\)`"))
}

func TestDisplay(t *testing.T) {
	assert.Equal(t, "$$\nx^2 \\tag{1}\n$$", New(types.MathLaTeX).Display(" x^2 ", "(1)"))
	assert.Equal(t, "$$\nx^2\n$$", New(types.MathLaTeX).Display("x^2", ""))
	assert.Equal(t, "x² (1)", New(types.MathUnicode).Display("x^2", "1"))
}

func TestIsEquationLine(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"E = mc²", true},
		{"x = (a + b)/2", true},
		{"f(x) ≤ g(x) + ε", true},
		{"α + β ≥ γ (4)", true},
		{"The results in Table 2 show that accuracy = 0.93 for all models tested", false},
		{"See Fig. 3 → results", false},
		{"Introduction", false},
		{"", false},
		{"a=", false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, IsEquationLine(tt.line))
		})
	}
}

func TestLiftEquation(t *testing.T) {
	tex, label := LiftEquation("E = mc² (3)")
	assert.Equal(t, "E = mc^{2}", tex)
	assert.Equal(t, "3", label)

	tex, label = LiftEquation("a ≤ b")
	assert.Equal(t, `a \leq b`, tex)
	assert.Empty(t, label)
}

func TestCountMath(t *testing.T) {
	assert.Equal(t, 2, CountMath("$a$ and $$b$$"))
	assert.Equal(t, 0, CountMath("`$a$` costs $5"))
}
