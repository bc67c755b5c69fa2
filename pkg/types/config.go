// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by backends that call a
// remote service.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// BackendName identifies a PDF extraction backend.
type BackendName string

const (
	BackendAuto      BackendName = "auto"
	BackendLocal     BackendName = "local"
	BackendPdftotext BackendName = "pdftotext"
	BackendGrobid    BackendName = "grobid"
	BackendMathpix   BackendName = "mathpix"
)

// MathMode selects how math is rendered in Markdown output.
type MathMode string

const (
	// MathLaTeX keeps TeX source inside $ and $$ delimiters.
	MathLaTeX MathMode = "latex"
	// MathUnicode renders math as plain Unicode text.
	MathUnicode MathMode = "unicode"
)

// GrobidConfig holds settings for the Grobid delegation backend.
type GrobidConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// URL is the Grobid service base URL (default http://localhost:8070).
	URL string `json:"url" yaml:"url" mapstructure:"url"`

	// ConsolidateHeader asks Grobid to consolidate header metadata
	// against its bibliographic sources.
	ConsolidateHeader bool `json:"consolidate_header" yaml:"consolidate_header" mapstructure:"consolidate_header"`

	// MaxRetries bounds retries on 429/503 responses (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// Image is the container image started by `pdfmilker grobid start`.
	Image string `json:"image" yaml:"image" mapstructure:"image"`
}

// MathpixConfig holds settings for the Mathpix delegation backend.
type MathpixConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	URL    string `json:"url" yaml:"url" mapstructure:"url"`
	AppID  string `json:"app_id,omitempty" yaml:"app_id,omitempty" mapstructure:"app_id"`
	AppKey string `json:"app_key,omitempty" yaml:"app_key,omitempty" mapstructure:"app_key"`

	// PollInterval is the delay between conversion status checks.
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval" mapstructure:"poll_interval"`

	// MaxWait bounds the total time spent waiting for one conversion.
	MaxWait time.Duration `json:"max_wait" yaml:"max_wait" mapstructure:"max_wait"`
}

// Configured reports whether credentials are present.
func (c MathpixConfig) Configured() bool {
	return c.AppID != "" && c.AppKey != ""
}

// HistoryConfig holds settings for the conversion ledger.
type HistoryConfig struct {
	// Path is the SQLite database file (default <output_dir>/history.db).
	Path string `json:"path" yaml:"path" mapstructure:"path"`

	// Disabled turns off the ledger entirely.
	Disabled bool `json:"disabled" yaml:"disabled" mapstructure:"disabled"`
}

// PDFMilkerConfig holds settings for the pdfmilker bottle.
type PDFMilkerConfig struct {
	// OutputDir is the base directory for outputs (contains markdown/,
	// metadata/, json/).
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`

	// Backend selects the extraction backend; "auto" chains Fallback.
	Backend BackendName `json:"backend" yaml:"backend" mapstructure:"backend"`

	// Fallback lists the backends tried in order by the auto backend.
	Fallback []BackendName `json:"fallback" yaml:"fallback" mapstructure:"fallback"`

	// Workers bounds batch parallelism.
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`

	// MinQuality is the score below which the auto backend tries the next
	// backend in the chain.
	MinQuality float64 `json:"min_quality" yaml:"min_quality" mapstructure:"min_quality"`

	// Overwrite re-extracts PDFs whose Markdown output already exists.
	Overwrite bool `json:"overwrite" yaml:"overwrite" mapstructure:"overwrite"`

	// WriteJSON additionally writes the full Document as JSON.
	WriteJSON bool `json:"write_json" yaml:"write_json" mapstructure:"write_json"`

	MathMode MathMode `json:"math_mode" yaml:"math_mode" mapstructure:"math_mode"`

	// PdftotextBin is the pdftotext binary used by the pdftotext backend.
	PdftotextBin string `json:"pdftotext_bin" yaml:"pdftotext_bin" mapstructure:"pdftotext_bin"`

	Grobid  GrobidConfig  `json:"grobid" yaml:"grobid" mapstructure:"grobid"`
	Mathpix MathpixConfig `json:"mathpix" yaml:"mathpix" mapstructure:"mathpix"`
	History HistoryConfig `json:"history" yaml:"history" mapstructure:"history"`
}
