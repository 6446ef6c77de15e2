package compositor

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/menta2k/img-frameright/pkg/geometry"
	"github.com/menta2k/img-frameright/pkg/regions"
)

// TransitionFactor stretches the style transition over the observer period
const TransitionFactor = 1.5

// Transform positions the image so that a region fills the box
type Transform struct {
	// Cover means the whole image fills the box, cropped, with no
	// translation. The remaining fields are zero.
	Cover bool

	Scale     float64
	Offset    geometry.Position
	Origin    geometry.Position
	Translate geometry.Position
}

// Compose computes the transform rendering region inside a box. The region
// fills the box on one axis and is centred on the other, anything
// overflowing the box is cropped.
func Compose(region regions.Region, box geometry.Size) Transform {
	if region.IsOriginal() || box.IsUnknown() || region.Size.IsUnknown() {
		return Transform{Cover: true}
	}

	var scale float64
	var offset geometry.Position
	if box.Ratio() > region.Size.Ratio() {
		scale = box.Width / region.Size.Width
		offset.Y = roundHalfUp((box.Height/scale - region.Size.Height) / 2)
	} else {
		scale = box.Height / region.Size.Height
		offset.X = roundHalfUp((box.Width/scale - region.Size.Width) / 2)
	}

	origin := region.Position.Sub(offset)
	return Transform{
		Scale:     geometry.Round(scale, 3),
		Offset:    offset,
		Origin:    origin,
		Translate: origin.Neg(),
	}
}

// Visible returns the rectangle of the natural image that ends up inside the
// box, in natural pixels.
func (t Transform) Visible(natural, box geometry.Size) (geometry.Position, geometry.Size) {
	if t.Cover || t.Scale <= 0 {
		return coverWindow(natural, box)
	}
	return t.Origin, geometry.Size{Width: box.Width / t.Scale, Height: box.Height / t.Scale}
}

func coverWindow(natural, box geometry.Size) (geometry.Position, geometry.Size) {
	if natural.IsUnknown() || box.IsUnknown() {
		return geometry.Position{}, natural
	}
	scale := math.Max(box.Width/natural.Width, box.Height/natural.Height)
	w, h := box.Width/scale, box.Height/scale
	return geometry.Position{X: (natural.Width - w) / 2, Y: (natural.Height - h) / 2},
		geometry.Size{Width: w, Height: h}
}

// Style renders the <img> style attribute for a transform. The first
// styling has no transition to avoid an initial animation.
func Style(t Transform, firstTime bool, period time.Duration) string {
	style := []string{"visibility: visible;"}

	if !firstTime {
		seconds := geometry.Round(period.Seconds()*TransitionFactor, 3)
		style = append(style, "transition: all", strconv.FormatFloat(seconds, 'f', -1, 64)+"s;")
	}

	if t.Cover {
		style = append(style, "width: 100%;", "height: 100%;", "object-fit: cover;")
	} else {
		x, y := geometry.FormatPixels(t.Origin.X), geometry.FormatPixels(t.Origin.Y)
		style = append(style,
			fmt.Sprintf("transform-origin: %spx %spx;", x, y),
			fmt.Sprintf("transform: translate(%spx,", geometry.FormatPixels(t.Translate.X)),
			fmt.Sprintf("%spx)", geometry.FormatPixels(t.Translate.Y)),
			fmt.Sprintf("scale(%s);", strconv.FormatFloat(t.Scale, 'f', 3, 64)),
		)
	}

	return strings.Join(style, " ")
}

// roundHalfUp rounds .5 towards positive infinity, as browsers do
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}
