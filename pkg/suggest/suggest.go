// Package suggest proposes image-regions for an image by asking a vision
// model where its subject is.
package suggest

import (
	"context"
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"

	"github.com/menta2k/img-frameright/pkg/client"
	"github.com/menta2k/img-frameright/pkg/geometry"
	"github.com/menta2k/img-frameright/pkg/processing"
	"github.com/menta2k/img-frameright/pkg/regions"
	"github.com/menta2k/img-frameright/pkg/types"
)

// NoSubject is the label models use when nothing stands out
const NoSubject = "none"

// Aspect is a crop shape proposed around the subject
type Aspect struct {
	Name   string
	Width  int
	Height int
}

var (
	Square    = Aspect{"square", 1, 1}
	Portrait  = Aspect{"portrait", 3, 4}
	Landscape = Aspect{"landscape", 4, 3}
	Wide      = Aspect{"wide", 16, 9}
)

// ParseAspect reads "W:H". Well known ratios get their usual name.
func ParseAspect(value string) (Aspect, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 {
		return Aspect{}, fmt.Errorf("invalid aspect %q, expected W:H", value)
	}
	w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || w <= 0 {
		return Aspect{}, fmt.Errorf("invalid aspect width in %q", value)
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || h <= 0 {
		return Aspect{}, fmt.Errorf("invalid aspect height in %q", value)
	}
	for _, known := range []Aspect{Square, Portrait, Landscape, Wide} {
		if known.Width == w && known.Height == h {
			return known, nil
		}
	}
	return Aspect{Name: fmt.Sprintf("%dx%d", w, h), Width: w, Height: h}, nil
}

// DefaultAspects are proposed unless Options says otherwise
func DefaultAspects() []Aspect {
	return []Aspect{Square, Portrait, Landscape}
}

// Options configures a Suggester
type Options struct {
	Model  string
	Prompt string

	// Image sent to the model
	SendFormat  string
	SendSize    int
	SendQuality int

	// Aspects are crops proposed around the subject center. Zoom shrinks
	// them, 1 being the largest crop that fits the image.
	Aspects []Aspect
	Zoom    float64
}

// DefaultOptions returns the settings used by the CLI
func DefaultOptions() Options {
	return Options{
		Model:       "openbmb/minicpm-v4.5",
		Prompt:      DefaultPrompt,
		SendFormat:  "jpg",
		SendSize:    1536,
		SendQuality: 85,
		Aspects:     DefaultAspects(),
		Zoom:        1,
	}
}

// Suggestion is the model's answer and the regions derived from it
type Suggestion struct {
	Analysis    *types.AnalysisResult
	Descriptors []regions.Descriptor
}

// Suggester handles subject detection using a vision model
type Suggester struct {
	client    client.VisionClient
	processor *processing.Processor
	opts      Options
}

// New creates a Suggester with DefaultOptions
func New(c client.VisionClient) *Suggester {
	return NewWithOptions(c, DefaultOptions())
}

// NewWithOptions creates a Suggester. Zero fields fall back to defaults.
func NewWithOptions(c client.VisionClient, opts Options) *Suggester {
	def := DefaultOptions()
	if opts.Model == "" {
		opts.Model = def.Model
	}
	if opts.Prompt == "" {
		opts.Prompt = def.Prompt
	}
	if opts.SendFormat == "" {
		opts.SendFormat = def.SendFormat
	}
	if opts.SendQuality <= 0 {
		opts.SendQuality = def.SendQuality
	}
	if opts.Zoom <= 0 {
		opts.Zoom = def.Zoom
	}
	return &Suggester{
		client:    c,
		processor: processing.NewProcessor(),
		opts:      opts,
	}
}

// Suggest asks the model for the subject of img and derives relative
// rectangle descriptors: the subject box itself, then one crop per aspect.
func (s *Suggester) Suggest(ctx context.Context, img image.Image) (*Suggestion, error) {
	imgB64, err := s.processor.PrepareImageForModel(img, s.opts.SendFormat, s.opts.SendSize, s.opts.SendQuality)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image: %w", err)
	}

	result, err := s.client.AnalyzeImage(ctx, s.opts.Model, s.opts.Prompt, imgB64)
	if err != nil {
		return nil, fmt.Errorf("subject detection failed: %w", err)
	}
	result = validate(result)

	b := img.Bounds()
	natural := geometry.NewSize(float64(b.Dx()), float64(b.Dy()))
	return &Suggestion{
		Analysis:    result,
		Descriptors: Descriptors(result, natural, s.opts.Aspects, s.opts.Zoom),
	}, nil
}

// CheckVision asks a free form question to see whether the model gets the
// image at all
func (s *Suggester) CheckVision(ctx context.Context, img image.Image) (string, error) {
	imgB64, err := s.processor.PrepareImageForModel(img, s.opts.SendFormat, s.opts.SendSize, s.opts.SendQuality)
	if err != nil {
		return "", fmt.Errorf("failed to prepare image: %w", err)
	}
	return s.client.SimpleQuery(ctx, s.opts.Model, VisionCheckPrompt, imgB64)
}

// Descriptors converts an analysis into image-regions entries. A subject
// labelled none only yields the aspect crops, centered on the image.
func Descriptors(result *types.AnalysisResult, natural geometry.Size, aspects []Aspect, zoom float64) []regions.Descriptor {
	var out []regions.Descriptor

	base := "subject"
	cx, cy := 0.5, 0.5
	if result.Primary.Label != NoSubject && !result.Primary.Box.Empty() {
		base = Slug(result.Primary.Label)
		out = append(out, descriptor(base, result.Primary.Box))
		cx, cy = focus(result.Primary)
	}

	if natural.IsUnknown() {
		return out
	}
	for _, a := range aspects {
		if a.Width <= 0 || a.Height <= 0 {
			continue
		}
		box := CropBox(cx, cy, a, natural, zoom)
		if box.Empty() {
			continue
		}
		out = append(out, descriptor(base+"-"+a.Name, box))
	}
	return out
}

// CropBox returns the largest box of the given aspect centered as close to
// (cx, cy) as the image allows, scaled down by zoom. Coordinates are
// normalized.
func CropBox(cx, cy float64, a Aspect, natural geometry.Size, zoom float64) types.Box {
	r := float64(a.Width) / float64(a.Height)
	imgW, imgH := natural.Width, natural.Height

	px := cx * imgW
	py := cy * imgH

	// The crop may be shifted to stay inside the image, so the bound is the
	// image itself, not the distance to the nearest edge
	widthPx := math.Min(imgW, r*imgH) * clamp(zoom, 0.01, 1.0)
	heightPx := widthPx / r

	x0 := clamp(px-widthPx/2, 0, imgW-widthPx)
	y0 := clamp(py-heightPx/2, 0, imgH-heightPx)

	return types.Box{
		X: x0 / imgW,
		Y: y0 / imgH,
		W: widthPx / imgW,
		H: heightPx / imgH,
	}
}

// focus picks the crop center: the model's focus point when it lies in the
// box, else the point of the box nearest the image center
func focus(p types.Primary) (float64, float64) {
	b := p.Box
	if p.Cx >= b.X && p.Cx <= b.X+b.W && p.Cy >= b.Y && p.Cy <= b.Y+b.H && (p.Cx != 0 || p.Cy != 0) {
		return p.Cx, p.Cy
	}
	return b.NearestToCenter()
}

func descriptor(id string, b types.Box) regions.Descriptor {
	return regions.Descriptor{
		ID:       id,
		Shape:    regions.ShapeRectangle,
		Absolute: regions.FlagOf(false),
		X:        regions.NumberOf(geometry.Round(b.X, 4)),
		Y:        regions.NumberOf(geometry.Round(b.Y, 4)),
		Width:    regions.NumberOf(geometry.Round(b.W, 4)),
		Height:   regions.NumberOf(geometry.Round(b.H, 4)),
	}
}

// validate cleans up a model answer: box inside the image, tidy tags, and
// fallback answers turned into "none"
func validate(result *types.AnalysisResult) *types.AnalysisResult {
	result.Primary.Box = result.Primary.Box.Clamp()
	result.Tags = normalizeTags(result.Tags)
	result.Primary.Label = strings.TrimSpace(result.Primary.Label)

	if strings.EqualFold(result.Primary.Label, NoSubject) {
		result.Primary.Label = NoSubject
		return result
	}

	fallbackIndicators := []string{"unclear", "empty", "parse", "error", "fallback", "non-json", "generic"}
	label := strings.ToLower(result.Primary.Label)
	description := strings.ToLower(result.Description)
	for _, indicator := range fallbackIndicators {
		if strings.Contains(label, indicator) || strings.Contains(description, indicator) {
			result.Primary.Label = NoSubject
			result.Primary.Confidence = 0
			break
		}
	}
	if result.Primary.Label == "" {
		result.Primary.Label = NoSubject
	}
	return result
}

// normalizeTags lowercases, dedupes and keeps at most 5 tags
func normalizeTags(tags []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 5)
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == 5 {
			break
		}
	}
	return out
}

// Slug turns a label into a region id
func Slug(label string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(label) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if s == "" {
		return "subject"
	}
	return s
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
