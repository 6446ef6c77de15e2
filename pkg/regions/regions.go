package regions

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/menta2k/img-frameright/pkg/geometry"
)

// OriginalID identifies the region covering the entire original image. It
// is reserved: descriptors using it are given a generated id.
const OriginalID = "<no region>"

// Region is a rectangle in absolute pixels of the natural image
type Region struct {
	ID       string            `json:"id"`
	Position geometry.Position `json:"position"`
	Size     geometry.Size     `json:"size"`
}

// Original returns the region covering the whole image of the given size
func Original(natural geometry.Size) Region {
	return Region{ID: OriginalID, Size: natural}
}

// IsOriginal reports whether r represents the entire original image
func (r Region) IsOriginal() bool {
	return r.ID == OriginalID
}

func (r Region) String() string {
	return fmt.Sprintf("id=%s, position=%s, size=%s", r.ID, r.Position, r.Size)
}

// Options tweaks normalization
type Options struct {
	// ResponsiveSource is set when the image's natural size follows the
	// viewport (srcset=). Absolute regions then get a warning.
	ResponsiveSource bool

	// NewID generates identifiers for descriptors without one
	NewID func() string
}

// Result holds the outcome of a normalization run
type Result struct {
	Regions  []Region
	Warnings []string
	Dropped  int
	Deferred bool
}

// Normalize turns descriptors into absolute rectangles of the natural
// image. Invalid descriptors are dropped silently. Nothing is produced while
// the natural size is unknown.
func Normalize(descs []Descriptor, natural geometry.Size, opts Options) Result {
	if natural.IsUnknown() {
		return Result{Deferred: true}
	}

	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	res := Result{Regions: make([]Region, 0, len(descs))}
	for _, d := range descs {
		region, ok := resolve(d, natural)
		if !ok {
			res.Dropped++
			continue
		}

		switch d.ID {
		case "":
			region.ID = newID()
		case OriginalID:
			region.ID = newID()
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"Region id %s is reserved, using %s", OriginalID, region.ID))
		default:
			region.ID = d.ID
		}

		if d.Absolute.Bool() && opts.ResponsiveSource {
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"Do not use absolute regions together with srcset= (region %s)", region.ID))
		}

		res.Regions = append(res.Regions, region)
	}
	return res
}

func resolve(d Descriptor, natural geometry.Size) (Region, bool) {
	if !strings.EqualFold(strings.TrimSpace(d.Shape), ShapeRectangle) {
		return Region{}, false
	}
	if !d.Absolute.IsSet() {
		return Region{}, false
	}

	x, ok := d.X.Float()
	if !ok || x < 0 {
		return Region{}, false
	}
	y, ok := d.Y.Float()
	if !ok || y < 0 {
		return Region{}, false
	}
	w, ok := d.Width.Float()
	if !ok || w <= 0 {
		return Region{}, false
	}
	h, ok := d.Height.Float()
	if !ok || h <= 0 {
		return Region{}, false
	}

	if !d.Absolute.Bool() {
		x *= natural.Width
		y *= natural.Height
		w *= natural.Width
		h *= natural.Height
	}

	return Region{
		Position: geometry.Position{X: x, Y: y},
		Size:     geometry.Size{Width: w, Height: h},
	}, true
}

// Find returns the region with the given id
func Find(list []Region, id string) (Region, bool) {
	for _, r := range list {
		if r.ID == id {
			return r, true
		}
	}
	return Region{}, false
}
