package geometry

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Size represents a width and height in pixels
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// UnknownSize is the sentinel for a size that hasn't been observed yet
var UnknownSize = Size{}

// NewSize creates a size, collapsing invalid dimensions to UnknownSize
func NewSize(width, height float64) Size {
	s := Size{Width: width, Height: height}
	if s.IsUnknown() {
		return UnknownSize
	}
	return s
}

// IsUnknown reports whether the size can't be used for ratio computations
func (s Size) IsUnknown() bool {
	return !(s.Width > 0 && s.Height > 0) ||
		math.IsInf(s.Width, 0) || math.IsInf(s.Height, 0)
}

// Ratio returns width divided by height, NaN when unknown
func (s Size) Ratio() float64 {
	if s.IsUnknown() {
		return math.NaN()
	}
	return s.Width / s.Height
}

// Equal compares both dimensions exactly
func (s Size) Equal(other Size) bool {
	return s.Width == other.Width && s.Height == other.Height
}

func (s Size) String() string {
	if s.IsUnknown() {
		return "unknown"
	}
	return fmt.Sprintf("%sx%s", FormatPixels(s.Width), FormatPixels(s.Height))
}

// ParseSize parses a "WxH" string such as "400x300"
func ParseSize(value string) (Size, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(value)), "x")
	if !ok {
		return UnknownSize, fmt.Errorf("invalid size %q: expected WxH", value)
	}
	width, err := strconv.ParseFloat(strings.TrimSpace(w), 64)
	if err != nil {
		return UnknownSize, fmt.Errorf("invalid width in %q: %w", value, err)
	}
	height, err := strconv.ParseFloat(strings.TrimSpace(h), 64)
	if err != nil {
		return UnknownSize, fmt.Errorf("invalid height in %q: %w", value, err)
	}
	size := NewSize(width, height)
	if size.IsUnknown() {
		return UnknownSize, fmt.Errorf("invalid size %q: dimensions must be positive", value)
	}
	return size, nil
}

// Divergence returns the aspect ratio mismatch factor between two sizes.
// It is always >= 1, where 1 means identical ratios. Unknown sizes diverge
// infinitely.
func Divergence(a, b Size) float64 {
	if a.IsUnknown() || b.IsUnknown() {
		return math.Inf(1)
	}
	ra, rb := a.Ratio(), b.Ratio()
	return math.Max(ra, rb) / math.Min(ra, rb)
}

// Position represents a point in pixels
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns p - other
func (p Position) Sub(other Position) Position {
	return Position{X: p.X - other.X, Y: p.Y - other.Y}
}

// Neg returns -p
func (p Position) Neg() Position {
	return Position{X: -p.X, Y: -p.Y}
}

func (p Position) String() string {
	return fmt.Sprintf("(%s, %s)", FormatPixels(p.X), FormatPixels(p.Y))
}

// SizeSlot holds the last observed size of something
type SizeSlot struct {
	current Size
}

// Get returns the stored size
func (s *SizeSlot) Get() Size {
	return s.current
}

// SetIfDifferent replaces the stored size and reports whether it changed
func (s *SizeSlot) SetIfDifferent(size Size) bool {
	if s.current.Equal(size) {
		return false
	}
	s.current = size
	return true
}

// FormatPixels prints a pixel value with at most 3 decimals and no trailing zeros
func FormatPixels(v float64) string {
	s := strconv.FormatFloat(Round(v, 3), 'f', -1, 64)
	if s == "-0" {
		return "0"
	}
	return s
}

// Round rounds v to the given number of decimal digits
func Round(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}
