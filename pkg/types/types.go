// Package types holds the shapes exchanged with vision model backends.
package types

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Empty reports whether the box has no area
func (b Box) Empty() bool {
	return b.W <= 0 || b.H <= 0
}

// Clamp returns the box restricted to the unit square
func (b Box) Clamp() Box {
	x := clamp(b.X, 0, 1)
	y := clamp(b.Y, 0, 1)
	return Box{
		X: x,
		Y: y,
		W: clamp(b.W, 0, 1-x),
		H: clamp(b.H, 0, 1-y),
	}
}

// NearestToCenter returns the point of the box closest to the image center
func (b Box) NearestToCenter() (float64, float64) {
	return clamp(0.5, b.X, b.X+b.W), clamp(0.5, b.Y, b.Y+b.H)
}

// Primary represents the primary subject detected in an image
type Primary struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
	Cx         float64 `json:"cx"`
	Cy         float64 `json:"cy"`
}

// AnalysisResult contains the complete analysis result from the vision model
type AnalysisResult struct {
	Primary     Primary  `json:"primary"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// CenterBox is what backends fall back to when the model answer is unusable
var CenterBox = Box{X: 0.25, Y: 0.25, W: 0.5, H: 0.5}

// Fallback builds a low confidence result centered on the image
func Fallback(label, description string, tags ...string) *AnalysisResult {
	return &AnalysisResult{
		Primary: Primary{
			Label:      label,
			Confidence: 0.1,
			Box:        CenterBox,
			Cx:         0.5,
			Cy:         0.5,
		},
		Description: description,
		Tags:        tags,
	}
}

// ParseAnalysis turns a raw model answer into a result. Models rarely return
// clean JSON, so unparseable answers yield a Fallback instead of an error.
func ParseAnalysis(raw string) *AnalysisResult {
	raw = SanitizeModelJSON(raw)
	if !strings.HasPrefix(raw, "{") {
		return Fallback("unclear image", "Model returned non-JSON response", "unclear", "non-json", "fallback")
	}

	var result AnalysisResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return Fallback("parse error", "Failed to parse model response", "parse-error", "fallback")
	}

	if result.Primary.Label == "" && result.Primary.Confidence == 0 {
		if result.Primary.Cx == 0 && result.Primary.Cy == 0 {
			result.Primary.Cx, result.Primary.Cy = 0.5, 0.5
		}
		if result.Primary.Box.Empty() {
			result.Primary.Box = CenterBox
		}
	}
	return &result
}

var (
	reBlockComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment   = regexp.MustCompile(`(?m)//.*$`)
	reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// SanitizeModelJSON removes code fences, comments, and trailing commas and
// keeps only the outermost object
func SanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reTrailingComma.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
