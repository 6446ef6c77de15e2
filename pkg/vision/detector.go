// Package vision finds the most salient part of an image without a model.
// Detector satisfies client.VisionClient, so it serves as an offline
// backend for region suggestions.
package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/img-frameright/pkg/processing"
	"github.com/menta2k/img-frameright/pkg/types"
)

// Label is reported for the detected region
const Label = "salient region"

// Detector scores windows of the image by how much edge and contrast
// energy they hold
type Detector struct {
	config DetectionConfig
}

// DetectionConfig holds configuration for subject detection
type DetectionConfig struct {
	// ContrastWeight weighs the distance of a pixel to the mean brightness
	ContrastWeight float64
	// EdgeWeight weighs the difference of a pixel to its neighbours
	EdgeWeight float64
	// MinScore is the excess saliency under which nothing stands out
	MinScore float64
	// MinEnergy is the mean per pixel saliency under which the image is flat
	MinEnergy float64
	// MaxSide bounds the analysed image, larger images are downscaled
	MaxSide int
}

// New creates a new Detector with default configuration
func New() *Detector {
	return &Detector{
		config: DetectionConfig{
			ContrastWeight: 0.6,
			EdgeWeight:     0.4,
			MinScore:       0.05,
			MinEnergy:      0.004,
			MaxSide:        256,
		},
	}
}

// NewWithConfig creates a new Detector with custom configuration
func NewWithConfig(config DetectionConfig) *Detector {
	if config.MaxSide <= 0 {
		config.MaxSide = 256
	}
	return &Detector{config: config}
}

// window is a candidate subject box in analysed pixels
type window struct {
	x, y, w, h int
	score      float64
}

// Window fractions of the image side tried for each dimension
var fractions = []float64{0.2, 0.3, 0.4, 0.5, 0.65}

// DetectSubject returns the window holding the most saliency beyond its
// share of the image area. Uniform images yield a "none" subject.
func (d *Detector) DetectSubject(img image.Image) *types.AnalysisResult {
	if img.Bounds().Empty() {
		return none()
	}
	small := imaging.Fit(img, d.config.MaxSide, d.config.MaxSide, imaging.Box)
	width, height := small.Bounds().Dx(), small.Bounds().Dy()
	if width < 3 || height < 3 {
		return none()
	}

	sat, total := d.saliency(small)
	if total <= 0 || total/float64(width*height) < d.config.MinEnergy {
		return none()
	}

	best := window{score: math.Inf(-1)}
	area := float64(width * height)
	for _, fw := range fractions {
		for _, fh := range fractions {
			w := max(int(fw*float64(width)), 1)
			h := max(int(fh*float64(height)), 1)
			stepX, stepY := max(w/8, 1), max(h/8, 1)
			for y := 0; y+h <= height; y += stepY {
				for x := 0; x+w <= width; x += stepX {
					mass := sat.sum(x, y, w, h) / total
					score := mass - float64(w*h)/area
					if score > best.score {
						best = window{x: x, y: y, w: w, h: h, score: score}
					}
				}
			}
		}
	}
	if best.score < d.config.MinScore {
		return none()
	}

	cx, cy := sat.centroid(best)
	return &types.AnalysisResult{
		Primary: types.Primary{
			Label:      Label,
			Confidence: math.Min(1, best.score*2),
			Box: types.Box{
				X: float64(best.x) / float64(width),
				Y: float64(best.y) / float64(height),
				W: float64(best.w) / float64(width),
				H: float64(best.h) / float64(height),
			},
			Cx: cx / float64(width),
			Cy: cy / float64(height),
		},
		Description: fmt.Sprintf("high contrast area holding %.0f%% of the image saliency", 100*(best.score+float64(best.w*best.h)/area)),
		Tags:        []string{"saliency", "offline"},
	}
}

// AnalyzeImage implements client.VisionClient. Model and prompt are ignored.
func (d *Detector) AnalyzeImage(ctx context.Context, model, prompt, imgB64 string) (*types.AnalysisResult, error) {
	img, err := decode(imgB64)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.DetectSubject(img), nil
}

// SimpleQuery implements client.VisionClient with a fixed description
func (d *Detector) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	img, err := decode(imgB64)
	if err != nil {
		return "", err
	}
	b := img.Bounds()
	result := d.DetectSubject(img)
	return fmt.Sprintf("%dx%d image, %s: %s", b.Dx(), b.Dy(), result.Primary.Label, result.Description), nil
}

func decode(imgB64 string) (image.Image, error) {
	data, err := base64.StdEncoding.DecodeString(imgB64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 image: %w", err)
	}
	return processing.DecodeImage(data)
}

func none() *types.AnalysisResult {
	return &types.AnalysisResult{
		Primary: types.Primary{
			Label: "none",
			Box:   types.CenterBox,
			Cx:    0.5,
			Cy:    0.5,
		},
		Description: "no salient area",
		Tags:        []string{"saliency", "offline"},
	}
}

// summedArea is a summed-area table over the saliency map, padded by one
// row and column of zeros
type summedArea struct {
	width  int
	values []float64 // per pixel saliency
	table  []float64
}

func (s summedArea) at(x, y int) float64 {
	return s.table[y*(s.width+1)+x]
}

// sum returns the saliency inside the window
func (s summedArea) sum(x, y, w, h int) float64 {
	return s.at(x+w, y+h) - s.at(x, y+h) - s.at(x+w, y) + s.at(x, y)
}

// centroid returns the saliency weighted center of the window, or its
// geometric center when it holds nothing
func (s summedArea) centroid(win window) (float64, float64) {
	var mass, mx, my float64
	for y := win.y; y < win.y+win.h; y++ {
		for x := win.x; x < win.x+win.w; x++ {
			v := s.values[y*s.width+x]
			mass += v
			mx += v * (float64(x) + 0.5)
			my += v * (float64(y) + 0.5)
		}
	}
	if mass == 0 {
		return float64(win.x) + float64(win.w)/2, float64(win.y) + float64(win.h)/2
	}
	return mx / mass, my / mass
}

// saliency combines local edge strength with global contrast
func (d *Detector) saliency(img *image.NRGBA) (summedArea, float64) {
	width, height := img.Bounds().Dx(), img.Bounds().Dy()

	lum := make([]float64, width*height)
	var mean float64
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := img.NRGBAAt(x, y)
			l := (0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)) / 255
			lum[y*width+x] = l
			mean += l
		}
	}
	mean /= float64(len(lum))

	values := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			l := lum[y*width+x]

			var edge float64
			var n int
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if (dx == 0 && dy == 0) || nx < 0 || ny < 0 || nx >= width || ny >= height {
						continue
					}
					edge += math.Abs(l - lum[ny*width+nx])
					n++
				}
			}
			if n > 0 {
				edge /= float64(n)
			}

			values[y*width+x] = d.config.ContrastWeight*math.Abs(l-mean) + d.config.EdgeWeight*edge
		}
	}

	s := summedArea{width: width, values: values, table: make([]float64, (width+1)*(height+1))}
	for y := 0; y < height; y++ {
		var row float64
		for x := 0; x < width; x++ {
			row += values[y*width+x]
			s.table[(y+1)*(width+1)+x+1] = s.table[y*(width+1)+x+1] + row
		}
	}
	return s, s.at(width, height)
}
