// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// QualityGrade buckets a quality score.
type QualityGrade string

const (
	GradeGood QualityGrade = "good"
	GradeFair QualityGrade = "fair"
	GradePoor QualityGrade = "poor"
)

// QualityReport captures extraction quality metrics for one document and
// the score derived from them.
type QualityReport struct {
	PageCount       int     `json:"page_count" yaml:"page_count"`
	CharsPerPage    float64 `json:"chars_per_page" yaml:"chars_per_page"`
	PrintableRatio  float64 `json:"printable_ratio" yaml:"printable_ratio"`
	WordlikeRatio   float64 `json:"wordlike_ratio" yaml:"wordlike_ratio"`
	HasImageStreams bool    `json:"has_image_streams" yaml:"has_image_streams"`
	VisualRefCount  int     `json:"visual_ref_count" yaml:"visual_ref_count"`
	SectionCount    int     `json:"section_count" yaml:"section_count"`
	ReferenceCount  int     `json:"reference_count" yaml:"reference_count"`
	EquationCount   int     `json:"equation_count" yaml:"equation_count"`

	// Score is in [0, 1]; higher is better.
	Score    float64      `json:"score" yaml:"score"`
	Grade    QualityGrade `json:"grade" yaml:"grade"`
	NeedsOCR bool         `json:"needs_ocr" yaml:"needs_ocr"`
	Warnings []string     `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}
