package selector

import (
	"math"

	"github.com/menta2k/img-frameright/pkg/geometry"
	"github.com/menta2k/img-frameright/pkg/regions"
)

// DefaultThreshold is the divergence under which the original image is kept
// as is rather than cropped.
const DefaultThreshold = 1.1

// Reason explains why a region was selected
type Reason string

const (
	ReasonOverride        Reason = "override"
	ReasonUnknownSize     Reason = "unknown-size"
	ReasonWithinThreshold Reason = "within-threshold"
	ReasonBestFit         Reason = "best-fit"
)

// Input holds everything the selector looks at
type Input struct {
	Box      geometry.Size
	Original regions.Region
	Regions  []regions.Region
	// OverrideID selects a region by id, bypassing the ratio search
	OverrideID string
	// Threshold defaults to DefaultThreshold when zero
	Threshold float64
}

// Result is the selected region
type Result struct {
	Region     regions.Region
	Divergence float64
	Reason     Reason
}

// Select returns the region whose aspect ratio best matches the box
func Select(in Input) Result {
	if in.OverrideID != "" {
		if in.OverrideID == in.Original.ID {
			return Result{Region: in.Original, Divergence: geometry.Divergence(in.Box, in.Original.Size), Reason: ReasonOverride}
		}
		if r, ok := regions.Find(in.Regions, in.OverrideID); ok {
			return Result{Region: r, Divergence: geometry.Divergence(in.Box, r.Size), Reason: ReasonOverride}
		}
	}

	best := Result{Region: in.Original, Divergence: math.Inf(1), Reason: ReasonUnknownSize}
	if in.Original.Size.IsUnknown() {
		return best
	}

	threshold := in.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	best.Divergence = geometry.Divergence(in.Box, in.Original.Size)
	if best.Divergence <= threshold {
		best.Reason = ReasonWithinThreshold
		return best
	}

	best.Reason = ReasonBestFit
	for _, r := range in.Regions {
		d := geometry.Divergence(in.Box, r.Size)
		if d < best.Divergence {
			best.Region = r
			best.Divergence = d
		}
	}
	return best
}
