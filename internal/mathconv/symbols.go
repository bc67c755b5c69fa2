// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mathconv

// commandSymbols maps TeX commands to their Unicode rendering.
var commandSymbols = map[string]string{
	// Lowercase Greek.
	"alpha": "α", "beta": "β", "gamma": "γ", "delta": "δ", "epsilon": "ϵ",
	"varepsilon": "ε", "zeta": "ζ", "eta": "η", "theta": "θ", "vartheta": "ϑ",
	"iota": "ι", "kappa": "κ", "lambda": "λ", "mu": "μ", "nu": "ν", "xi": "ξ",
	"pi": "π", "varpi": "ϖ", "rho": "ρ", "varrho": "ϱ", "sigma": "σ",
	"varsigma": "ς", "tau": "τ", "upsilon": "υ", "phi": "ϕ", "varphi": "φ",
	"chi": "χ", "psi": "ψ", "omega": "ω",

	// Uppercase Greek.
	"Gamma": "Γ", "Delta": "Δ", "Theta": "Θ", "Lambda": "Λ", "Xi": "Ξ",
	"Pi": "Π", "Sigma": "Σ", "Upsilon": "Υ", "Phi": "Φ", "Psi": "Ψ",
	"Omega": "Ω",

	// Binary operators.
	"pm": "±", "mp": "∓", "times": "×", "div": "÷", "cdot": "·", "ast": "∗",
	"star": "⋆", "circ": "∘", "bullet": "•", "oplus": "⊕", "ominus": "⊖",
	"otimes": "⊗", "odot": "⊙", "cap": "∩", "cup": "∪", "wedge": "∧",
	"land": "∧", "vee": "∨", "lor": "∨", "setminus": "∖",

	// Relations.
	"leq": "≤", "le": "≤", "geq": "≥", "ge": "≥", "neq": "≠", "ne": "≠",
	"approx": "≈", "equiv": "≡", "sim": "∼", "simeq": "≃", "cong": "≅",
	"propto": "∝", "ll": "≪", "gg": "≫", "in": "∈", "notin": "∉", "ni": "∋",
	"subset": "⊂", "supset": "⊃", "subseteq": "⊆", "supseteq": "⊇",
	"perp": "⊥", "parallel": "∥", "mid": "∣", "models": "⊨", "vdash": "⊢",

	// Arrows.
	"to": "→", "rightarrow": "→", "leftarrow": "←", "gets": "←",
	"leftrightarrow": "↔", "Rightarrow": "⇒", "Leftarrow": "⇐",
	"Leftrightarrow": "⇔", "implies": "⟹", "iff": "⟺", "mapsto": "↦",
	"uparrow": "↑", "downarrow": "↓", "longrightarrow": "⟶",

	// Big operators and misc.
	"sum": "∑", "prod": "∏", "coprod": "∐", "int": "∫", "iint": "∬",
	"iiint": "∭", "oint": "∮", "bigcup": "⋃", "bigcap": "⋂",
	"partial": "∂", "nabla": "∇", "infty": "∞", "forall": "∀",
	"exists": "∃", "nexists": "∄", "emptyset": "∅", "varnothing": "∅",
	"neg": "¬", "lnot": "¬", "angle": "∠", "ell": "ℓ", "hbar": "ℏ",
	"Re": "ℜ", "Im": "ℑ", "aleph": "ℵ", "wp": "℘", "prime": "′",
	"ldots": "…", "cdots": "⋯", "vdots": "⋮", "ddots": "⋱", "dots": "…",
	"langle": "⟨", "rangle": "⟩", "lceil": "⌈", "rceil": "⌉",
	"lfloor": "⌊", "rfloor": "⌋", "degree": "°", "top": "⊤", "bot": "⊥",

	// Escaped literals.
	"{": "{", "}": "}", "%": "%", "$": "$", "_": "_", "#": "#", "&": "&",
	"|": "‖",

	// Spacing.
	",": " ", ";": " ", ":": " ", ">": " ", "!": "", " ": " ",
	"quad": " ", "qquad": "  ",
}

// functionNames are upright operator names rendered as their own name.
var functionNames = map[string]bool{
	"sin": true, "cos": true, "tan": true, "cot": true, "sec": true, "csc": true,
	"arcsin": true, "arccos": true, "arctan": true, "sinh": true, "cosh": true,
	"tanh": true, "log": true, "ln": true, "lg": true, "exp": true, "lim": true,
	"liminf": true, "limsup": true, "max": true, "min": true, "sup": true,
	"inf": true, "arg": true, "det": true, "dim": true, "ker": true, "deg": true,
	"gcd": true, "Pr": true, "hom": true,
}

// unwrapCommands render their single argument unchanged.
var unwrapCommands = map[string]bool{
	"mathrm": true, "mathbf": true, "mathit": true, "mathsf": true,
	"mathtt": true, "mathcal": true, "mathfrak": true, "mathscr": true,
	"boldsymbol": true, "bm": true, "text": true, "textrm": true,
	"textbf": true, "textit": true, "textsf": true, "texttt": true,
	"mbox": true, "operatorname": true,
}

// vanishingCommands are dropped without consuming an argument.
var vanishingCommands = map[string]bool{
	"left": true, "right": true, "big": true, "Big": true, "bigg": true,
	"Bigg": true, "bigl": true, "bigr": true, "Bigl": true, "Bigr": true,
	"biggl": true, "biggr": true, "displaystyle": true, "textstyle": true,
	"scriptstyle": true, "nonumber": true, "notag": true, "limits": true,
	"nolimits": true,
}

// accentMarks map accent commands to combining characters.
var accentMarks = map[string]rune{
	"hat":       '̂',
	"widehat":   '̂',
	"bar":       '̄',
	"overline":  '̅',
	"tilde":     '̃',
	"widetilde": '̃',
	"dot":       '̇',
	"ddot":      '̈',
	"vec":       '⃗',
}

// blackboard maps \mathbb letters to double-struck characters.
var blackboard = map[rune]string{
	'R': "ℝ", 'N': "ℕ", 'Z': "ℤ", 'Q': "ℚ", 'C': "ℂ", 'P': "ℙ", 'H': "ℍ",
}

var superscripts = map[rune]rune{
	'0': '⁰', '1': '¹', '2': '²', '3': '³', '4': '⁴', '5': '⁵', '6': '⁶',
	'7': '⁷', '8': '⁸', '9': '⁹', '+': '⁺', '-': '⁻', '=': '⁼', '(': '⁽',
	')': '⁾', 'n': 'ⁿ', 'i': 'ⁱ', 'a': 'ᵃ', 'b': 'ᵇ', 'c': 'ᶜ', 'd': 'ᵈ',
	'e': 'ᵉ', 'f': 'ᶠ', 'g': 'ᵍ', 'h': 'ʰ', 'j': 'ʲ', 'k': 'ᵏ', 'l': 'ˡ',
	'm': 'ᵐ', 'o': 'ᵒ', 'p': 'ᵖ', 'r': 'ʳ', 's': 'ˢ', 't': 'ᵗ', 'u': 'ᵘ',
	'v': 'ᵛ', 'w': 'ʷ', 'x': 'ˣ', 'y': 'ʸ', 'z': 'ᶻ', 'T': 'ᵀ', '′': '′',
	'*': '*',
}

var subscripts = map[rune]rune{
	'0': '₀', '1': '₁', '2': '₂', '3': '₃', '4': '₄', '5': '₅', '6': '₆',
	'7': '₇', '8': '₈', '9': '₉', '+': '₊', '-': '₋', '=': '₌', '(': '₍',
	')': '₎', 'a': 'ₐ', 'e': 'ₑ', 'h': 'ₕ', 'i': 'ᵢ', 'j': 'ⱼ', 'k': 'ₖ',
	'l': 'ₗ', 'm': 'ₘ', 'n': 'ₙ', 'o': 'ₒ', 'p': 'ₚ', 'r': 'ᵣ', 's': 'ₛ',
	't': 'ₜ', 'u': 'ᵤ', 'v': 'ᵥ', 'x': 'ₓ',
}

// unicodeToCommand inverts commandSymbols for the symbols worth mapping
// back when lifting PDF-extracted text into TeX. Aliases resolve to one
// canonical command.
var unicodeToCommand = buildUnicodeToCommand()

// canonicalAliases chooses the command emitted when several spell the
// same symbol.
var canonicalAliases = map[string]string{
	"≤": "leq", "≥": "geq", "≠": "neq", "→": "rightarrow", "←": "leftarrow",
	"∧": "wedge", "∨": "vee", "¬": "neg", "∅": "emptyset", "…": "ldots",
	"⊥": "perp",
}

func buildUnicodeToCommand() map[rune]string {
	m := make(map[rune]string)
	for cmd, sym := range commandSymbols {
		r := []rune(sym)
		if len(r) != 1 || r[0] < 0x80 {
			continue
		}
		if alias, ok := canonicalAliases[sym]; ok {
			m[r[0]] = alias
			continue
		}
		if _, exists := m[r[0]]; !exists || len(cmd) < len(m[r[0]]) {
			m[r[0]] = cmd
		}
	}
	delete(m, '•')
	return m
}

var superscriptInverse = invertRunes(superscripts)
var subscriptInverse = invertRunes(subscripts)

func invertRunes(m map[rune]rune) map[rune]rune {
	out := make(map[rune]rune, len(m))
	for k, v := range m {
		if k == v {
			continue
		}
		out[v] = k
	}
	return out
}
