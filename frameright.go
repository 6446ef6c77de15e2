// Package frameright fits an image to a box by zooming into the author
// defined region whose aspect ratio best matches the box.
//
// Basic usage:
//
//	descs, _ := regions.ParseDescriptors(`[{"id":"face","shape":"rectangle","absolute":false,"x":0.25,"y":0.1,"width":0.5,"height":0.3}]`)
//	fit := frameright.Fit(descs, geometry.NewSize(4000, 3000), geometry.NewSize(400, 300), frameright.Options{})
//	fmt.Println(fit.Region.ID, fit.Style)
//
// The package consists of these components:
//
//  1. Regions (pkg/regions): parses and normalizes image-regions
//  2. Selector (pkg/selector): picks the best matching region
//  3. Compositor (pkg/compositor): computes the CSS transform
//  4. Frame (pkg/frame): the long lived element watching sizes over time
//  5. Preview (pkg/preview): renders the result without a browser
//
// Fit is a one-shot computation. Use pkg/frame for an element that follows
// size changes.
package frameright

import (
	"fmt"
	"image"
	"time"

	"github.com/menta2k/img-frameright/pkg/compositor"
	"github.com/menta2k/img-frameright/pkg/geometry"
	"github.com/menta2k/img-frameright/pkg/observer"
	"github.com/menta2k/img-frameright/pkg/preview"
	"github.com/menta2k/img-frameright/pkg/regions"
	"github.com/menta2k/img-frameright/pkg/selector"
)

// Version of the frameright library
const Version = "1.0.0"

// Options tweaks a Fit
type Options struct {
	// OverrideID forces a region, as the image-region-id attribute does
	OverrideID string
	// Threshold defaults to selector.DefaultThreshold
	Threshold float64
	// ResponsiveSource warns about absolute regions
	ResponsiveSource bool
	// Restyle renders the style as a later update, with a transition
	Restyle bool
	// Period sets the transition duration, observer.DefaultPeriod when zero
	Period time.Duration
	// NewID generates ids for regions without one
	NewID func() string
}

// Result holds everything computed for one box
type Result struct {
	Regions    []regions.Region
	Warnings   []string
	Region     regions.Region
	Reason     selector.Reason
	Divergence float64
	Transform  compositor.Transform
	Style      string
}

// Fit normalizes descs against the natural size, selects the best region
// for box and computes its style
func Fit(descs []regions.Descriptor, natural, box geometry.Size, opts Options) Result {
	norm := regions.Normalize(descs, natural, regions.Options{
		ResponsiveSource: opts.ResponsiveSource,
		NewID:            opts.NewID,
	})

	sel := selector.Select(selector.Input{
		Box:        box,
		Original:   regions.Original(natural),
		Regions:    norm.Regions,
		OverrideID: opts.OverrideID,
		Threshold:  opts.Threshold,
	})

	period := opts.Period
	if period <= 0 {
		period = observer.DefaultPeriod
	}
	t := compositor.Compose(sel.Region, box)

	return Result{
		Regions:    norm.Regions,
		Warnings:   norm.Warnings,
		Region:     sel.Region,
		Reason:     sel.Reason,
		Divergence: sel.Divergence,
		Transform:  t,
		Style:      compositor.Style(t, !opts.Restyle, period),
	}
}

// FitAttribute is Fit for a raw image-regions attribute value
func FitAttribute(value string, natural, box geometry.Size, opts Options) (Result, error) {
	descs, err := regions.ParseDescriptors(value)
	if err != nil {
		return Result{}, err
	}
	return Fit(descs, natural, box, opts), nil
}

// Preview fits img into box and renders what a browser would show
func Preview(img image.Image, descs []regions.Descriptor, box geometry.Size, opts Options) (*image.NRGBA, Result, error) {
	fit := Fit(descs, preview.NaturalSize(img), box, opts)
	out, err := preview.Apply(img, fit.Transform, box)
	if err != nil {
		return nil, fit, fmt.Errorf("preview failed: %w", err)
	}
	return out, fit, nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
