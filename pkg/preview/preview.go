// Package preview renders what a frame element would display for a given
// box, using the decoded image instead of a browser.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/img-frameright/pkg/compositor"
	"github.com/menta2k/img-frameright/pkg/geometry"
)

// Background fills the parts of the box the image doesn't reach
var Background = color.NRGBA{0, 0, 0, 0}

// Apply renders img transformed by t into a box-sized image
func Apply(img image.Image, t compositor.Transform, box geometry.Size) (*image.NRGBA, error) {
	if box.IsUnknown() {
		return nil, fmt.Errorf("invalid box size: %s", box)
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("invalid image dimensions")
	}

	w := int(math.Round(box.Width))
	h := int(math.Round(box.Height))
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("box too small: %s", box)
	}

	if t.Cover || t.Scale <= 0 {
		return imaging.Fill(img, w, h, imaging.Center, imaging.Lanczos), nil
	}

	natural := NaturalSize(img)
	origin, visible := t.Visible(natural, box)

	// Window in natural pixels, grown to whole pixels and clipped to the image
	window := image.Rect(
		int(math.Floor(origin.X)),
		int(math.Floor(origin.Y)),
		int(math.Ceil(origin.X+visible.Width)),
		int(math.Ceil(origin.Y+visible.Height)),
	).Add(bounds.Min).Intersect(bounds)

	canvas := imaging.New(w, h, Background)
	if window.Empty() {
		return canvas, nil
	}

	cropped := imaging.Crop(img, window)
	scaledW := int(math.Round(float64(window.Dx()) * t.Scale))
	scaledH := int(math.Round(float64(window.Dy()) * t.Scale))
	if scaledW <= 0 || scaledH <= 0 {
		return canvas, nil
	}
	scaled := imaging.Resize(cropped, scaledW, scaledH, imaging.Lanczos)

	at := image.Pt(
		int(math.Round((float64(window.Min.X-bounds.Min.X)-origin.X)*t.Scale)),
		int(math.Round((float64(window.Min.Y-bounds.Min.Y)-origin.Y)*t.Scale)),
	)
	return imaging.Paste(canvas, scaled, at), nil
}

// NaturalSize returns the intrinsic size of a decoded image
func NaturalSize(img image.Image) geometry.Size {
	b := img.Bounds()
	return geometry.NewSize(float64(b.Dx()), float64(b.Dy()))
}
